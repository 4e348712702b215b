package overlay

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"
)

// JPEGRecorder saves debug frames to disk. Files are organized into
// subdirectories by date and hour (12-hour format).
type JPEGRecorder struct {
	directory string
	every     int64 // Save one frame out of every N
	all       bool  // Save the HSV and mask buffers as well as the annotated frame
	now       func() time.Time
}

// NewJPEGRecorder creates the output directory and returns a recorder that
// saves one frame out of every `every` frames.
func NewJPEGRecorder(directory string, every int, all bool) (*JPEGRecorder, error) {
	if directory == "" {
		return nil, fmt.Errorf("JPEG directory is required")
	}
	if every < 1 {
		every = 1
	}
	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create JPEG directory '%s': %w", directory, err)
	}
	debugMsg("JPEG_CONFIG", fmt.Sprintf("Saving every %d frame(s) to: %s", every, directory))
	return &JPEGRecorder{
		directory: directory,
		every:     int64(every),
		all:       all,
		now:       time.Now,
	}, nil
}

// Observe implements Observer
func (jr *JPEGRecorder) Observe(frames Frames) {
	if frames.Sequence%jr.every != 0 {
		return
	}

	subdir, err := jr.subdirectory()
	if err != nil {
		debugMsg("JPEG_ERROR", err.Error())
		return
	}

	timestamp := jr.now().Format("20060102_150405.000")
	jr.save(subdir, timestamp, "annotated", frames.Annotated)
	if jr.all {
		jr.save(subdir, timestamp, "original", frames.Original)
		jr.save(subdir, timestamp, "hsv", frames.HSV)
		jr.save(subdir, timestamp, "mask", frames.Mask)
	}
}

// subdirectory returns (and creates) the 2025-01-01_03PM style directory for now
func (jr *JPEGRecorder) subdirectory() (string, error) {
	now := jr.now()
	hour := now.Hour()
	hour12 := hour % 12
	if hour12 == 0 {
		hour12 = 12
	}
	ampm := "AM"
	if hour >= 12 {
		ampm = "PM"
	}
	subdir := filepath.Join(jr.directory, fmt.Sprintf("%s_%02d%s", now.Format("2006-01-02"), hour12, ampm))

	if err := os.MkdirAll(subdir, 0755); err != nil {
		return "", fmt.Errorf("failed to create subdirectory %s: %w", subdir, err)
	}
	return subdir, nil
}

func (jr *JPEGRecorder) save(subdir, timestamp, prefix string, img gocv.Mat) {
	if img.Empty() {
		return
	}
	filename := fmt.Sprintf("%s_%s.jpg", timestamp, prefix)
	if !gocv.IMWrite(filepath.Join(subdir, filename), img) {
		debugMsg("JPEG_ERROR", fmt.Sprintf("Failed to save %s frame: %s", prefix, filename))
	}
}
