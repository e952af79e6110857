package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// FFprobeDecoder implements Decoder by shelling out to ffprobe, which is
// resolved from the configured ffmpeg path.
type FFprobeDecoder struct {
	ffmpegPath string
}

// NewFFprobeDecoder creates a new FFprobeDecoder.
func NewFFprobeDecoder(ffmpegPath string) *FFprobeDecoder {
	return &FFprobeDecoder{ffmpegPath: ffmpegPath}
}

// ffprobeOutput defines the structure of ffprobe's JSON output.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// DecodeDuration uses ffprobe to get the duration of an audio file in seconds.
func (p *FFprobeDecoder) DecodeDuration(ctx context.Context, path string) (float64, error) {
	ffprobePath := strings.Replace(p.ffmpegPath, "ffmpeg", "ffprobe", 1)

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	}

	cmd := exec.CommandContext(ctx, ffprobePath, args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe execution failed for %s: %w\nFFprobe Error: %s", path, err, stderr.String())
	}

	var probeData ffprobeOutput
	if err := json.Unmarshal(out.Bytes(), &probeData); err != nil {
		return 0, fmt.Errorf("failed to unmarshal ffprobe output: %w", err)
	}

	if probeData.Format.Duration == "" {
		return 0, fmt.Errorf("ffprobe reported no duration for %s", path)
	}

	duration, err := strconv.ParseFloat(probeData.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", probeData.Format.Duration, err)
	}

	return duration, nil
}
