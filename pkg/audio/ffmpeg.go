package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os/exec"
	"strings"

	"github.com/cisco7507/LangId-mr/pkg/log"
)

// FFmpegDecoder shells out to ffmpeg to decode any container or codec the
// host build supports into raw little-endian float32 at 16 kHz mono.
type FFmpegDecoder struct {
	// Binary overrides the ffmpeg executable name, for tests.
	Binary string
}

// NewFFmpegDecoder returns a decoder using the "ffmpeg" found on PATH.
func NewFFmpegDecoder() *FFmpegDecoder {
	return &FFmpegDecoder{Binary: "ffmpeg"}
}

func (d *FFmpegDecoder) DecodeMono16k(ctx context.Context, path string) ([]float32, error) {
	bin := d.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-f", "f32le",
		"-ac", "1",
		"-ar", fmt.Sprint(SampleRate),
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		log.WithComponent("audio").Warn().Str("path", path).Str("ffmpeg", msg).Msg("decode failed")
		return nil, fmt.Errorf("%w: %s", ErrInvalidAudio, firstLine(msg))
	}

	raw := stdout.Bytes()
	if len(raw) < 4 {
		return nil, fmt.Errorf("%w: decoded stream is empty", ErrInvalidAudio)
	}

	samples := make([]float32, len(raw)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	if s == "" {
		return "ffmpeg produced no diagnostics"
	}
	return s
}
