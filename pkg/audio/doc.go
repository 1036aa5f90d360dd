// Package audio decodes uploaded files into the 16 kHz mono float32 PCM the
// recognizer consumes, delegating format support to the host's ffmpeg.
package audio
