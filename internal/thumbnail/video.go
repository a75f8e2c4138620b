package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// videoRenderer extracts a single frame with ffmpeg. Seek order: the
// preferred timestamp, then the middle of the clip, then the first frame.
// A missing ffmpeg binary surfaces as an error, which Ensure degrades to
// "no thumbnail".
type videoRenderer struct{}

func (videoRenderer) Render(ctx context.Context, src string, preferredSeconds float64) (image.Image, error) {
	offsets := []float64{preferredSeconds}
	if dur, err := probeDuration(ctx, src); err == nil {
		if preferredSeconds >= dur {
			offsets = nil
		}
		offsets = append(offsets, dur/2)
	}
	offsets = append(offsets, 0)

	var lastErr error
	for _, at := range offsets {
		img, err := extractFrame(ctx, src, at)
		if err == nil {
			return img, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("extract frame: %w", lastErr)
}

// probeDuration asks ffprobe for the container duration in seconds.
func probeDuration(ctx context.Context, src string) (float64, error) {
	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		src,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe output: %w", err)
	}
	return dur, nil
}

// extractFrame renders one frame at the given offset to a temp PNG.
func extractFrame(ctx context.Context, src string, atSeconds float64) (image.Image, error) {
	tmp, err := os.CreateTemp("", "thumb-frame-*.png")
	if err != nil {
		return nil, fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpName)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-ss", strconv.FormatFloat(atSeconds, 'f', 2, 64),
		"-i", src,
		"-frames:v", "1",
		"-q:v", "3",
		"-y", tmpName,
	)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg at %.2fs: %v: %s", atSeconds, err, strings.TrimSpace(stderr.String()))
	}

	img, err := imaging.Open(tmpName)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}
