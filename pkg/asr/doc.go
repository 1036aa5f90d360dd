// Package asr wraps speech recognition behind the Engine interface. The
// production implementation binds whisper.cpp through CGO; tests use the
// scripted engine in the mock subpackage. Audio is always 16 kHz mono
// float32, the decoder's output format.
package asr
