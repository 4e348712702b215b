package stream

import (
	"errors"
	"fmt"
	"os"

	"gocv.io/x/gocv"
)

// Global debug function for stream package
var debugMsgFunc func(string, string)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(string, string)) {
	debugMsgFunc = fn
}

func debugMsg(component, message string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message)
	}
}

var (
	// ErrStreamClosed is returned when the capture device stops producing frames
	ErrStreamClosed = errors.New("stream closed")
	// ErrBadFrame is returned when a frame is empty or not 8-bit BGR
	ErrBadFrame = errors.New("unreadable frame")
)

// Source is a frame source that holds a resource
type Source interface {
	Read(dst *gocv.Mat) error
	Close() error
}

// CaptureSource reads frames from an OpenCV video capture (MJPEG/RTSP URL,
// video file, or device index)
type CaptureSource struct {
	uri     string
	capture *gocv.VideoCapture
}

// OpenCapture opens uri for reading. A bare integer opens a local camera.
func OpenCapture(uri string) (*CaptureSource, error) {
	// Low latency capture for network streams
	if os.Getenv("OPENCV_FFMPEG_CAPTURE_OPTIONS") == "" {
		os.Setenv("OPENCV_FFMPEG_CAPTURE_OPTIONS", "rtsp_transport;tcp|buffer_size;65536|stimeout;5000000")
	}

	capture, err := gocv.OpenVideoCapture(uri)
	if err != nil {
		return nil, fmt.Errorf("error opening video stream %s: %w", uri, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("video stream %s did not open", uri)
	}

	return &CaptureSource{uri: uri, capture: capture}, nil
}

// Read blocks until the next frame arrives
func (cs *CaptureSource) Read(dst *gocv.Mat) error {
	if ok := cs.capture.Read(dst); !ok {
		return fmt.Errorf("%s: %w", cs.uri, ErrStreamClosed)
	}
	if dst.Empty() || dst.Type() != gocv.MatTypeCV8UC3 || dst.Channels() != 3 {
		return fmt.Errorf("%s: %w", cs.uri, ErrBadFrame)
	}
	return nil
}

// Close releases the capture device
func (cs *CaptureSource) Close() error {
	return cs.capture.Close()
}

// ImageSource replays a stored image a fixed number of times
type ImageSource struct {
	image     gocv.Mat
	remaining int
}

// OpenImage loads a colour image from disk. repeat is how many times Read
// returns it before reporting ErrStreamClosed.
func OpenImage(path string, repeat int) (*ImageSource, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return nil, fmt.Errorf("could not read image %s", path)
	}
	return NewImageSource(img, repeat), nil
}

// NewImageSource wraps an image already in memory. The source takes ownership.
func NewImageSource(img gocv.Mat, repeat int) *ImageSource {
	return &ImageSource{image: img, remaining: repeat}
}

// Read copies the stored image into dst
func (is *ImageSource) Read(dst *gocv.Mat) error {
	if is.remaining <= 0 {
		return ErrStreamClosed
	}
	is.remaining--
	is.image.CopyTo(dst)
	return nil
}

// Close releases the stored image
func (is *ImageSource) Close() error {
	return is.image.Close()
}
