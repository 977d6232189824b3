// Package ffmpeg shells out to the ffmpeg binary for format conversion.
// Everything inside the render pipeline works on WAV; this package converts
// arbitrary inputs to WAV on the way in and encodes the final MP3 on the
// way out.
package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"segue/internal/services"
)

var commandContext = exec.CommandContext

// DecodeToWAV converts any ffmpeg-readable audio file into a stereo PCM16
// WAV at the given sample rate.
func DecodeToWAV(ctx context.Context, binary, source, dest string, sampleRate int) error {
	if sampleRate <= 0 {
		return services.Wrap(services.ErrValidation, "ffmpeg", "decode", fmt.Sprintf("invalid sample rate %d", sampleRate), nil)
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-ac", "2",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-c:a", "pcm_s16le",
		dest,
	}
	return run(ctx, binary, "decode", args)
}

// EncodeMP3 converts a WAV file into an MP3 at the given bitrate (for
// example "320k").
func EncodeMP3(ctx context.Context, binary, source, dest, bitrate string) error {
	if strings.TrimSpace(bitrate) == "" {
		bitrate = "320k"
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-c:a", "libmp3lame",
		"-b:a", bitrate,
		dest,
	}
	return run(ctx, binary, "encode_mp3", args)
}

func run(ctx context.Context, binary, operation string, args []string) error {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	cmd := commandContext(ctx, binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", operation,
			strings.TrimSpace(string(output)), err)
	}
	return nil
}
