package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"testing"
	"time"

	"towertracker/detection"
	"towertracker/overlay"

	"gocv.io/x/gocv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cyan = color.RGBA{R: 0, G: 255, B: 255}

type recordingSink struct {
	outputs []string
	err     error
}

func (rs *recordingSink) Publish(output string) error {
	rs.outputs = append(rs.outputs, output)
	return rs.err
}

// frameQueue replays stored frames, then fails with err
type frameQueue struct {
	frames []gocv.Mat
	err    error
	reads  int
	onRead func(n int)
}

func (q *frameQueue) Read(dst *gocv.Mat) error {
	if q.reads >= len(q.frames) {
		return q.err
	}
	q.frames[q.reads].CopyTo(dst)
	q.reads++
	if q.onRead != nil {
		q.onRead(q.reads)
	}
	return nil
}

type recordingObserver struct {
	frames []overlay.Frames
}

func (ro *recordingObserver) Observe(frames overlay.Frames) {
	// buffers are only valid during Observe, so keep metadata only
	frames.Original, frames.HSV, frames.Mask, frames.Annotated = gocv.Mat{}, gocv.Mat{}, gocv.Mat{}, gocv.Mat{}
	ro.frames = append(ro.frames, frames)
}

func newFrame(t *testing.T, boxes ...image.Rectangle) gocv.Mat {
	t.Helper()
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
	for _, b := range boxes {
		gocv.Rectangle(&frame, b, cyan, -1)
	}
	t.Cleanup(func() { frame.Close() })
	return frame
}

func newPipeline(t *testing.T, sink Sink) *Pipeline {
	t.Helper()
	p, err := New(DefaultConfig(), sink)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestProcessFrameReferenceTarget(t *testing.T) {
	sink := &recordingSink{}
	p := newPipeline(t, sink)

	frame := newFrame(t, image.Rect(300, 200, 360, 240))
	outcome, err := p.ProcessFrame(frame)
	require.NoError(t, err)

	assert.Equal(t, Published, outcome.State)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, image.Rect(300, 200, 360, 240), outcome.Result.Box)
	assert.Equal(t, "60.00,-0.77,53.58", outcome.Output)
	assert.Equal(t, []string{"60.00,-0.77,53.58"}, sink.outputs)
	assert.Equal(t, Idle, p.State())
}

func TestProcessFrameNoTargetPublishesEmpty(t *testing.T) {
	sink := &recordingSink{}
	p := newPipeline(t, sink)

	// one blob too small, one too elongated
	frame := newFrame(t, image.Rect(10, 10, 30, 30), image.Rect(100, 100, 400, 140))
	outcome, err := p.ProcessFrame(frame)
	require.NoError(t, err)

	assert.Equal(t, NoTarget, outcome.State)
	assert.Nil(t, outcome.Result)
	assert.Equal(t, 2, outcome.Candidates)
	assert.Equal(t, 0, outcome.Accepted)
	assert.Equal(t, []string{""}, sink.outputs)
}

func TestProcessFrameWidestCandidateWins(t *testing.T) {
	narrow := image.Rect(50, 100, 90, 140) // 40x40
	wide := image.Rect(400, 300, 460, 340) // 60x40
	narrowRight := image.Rect(500, 50, 540, 90)
	wideLeft := image.Rect(20, 300, 80, 340)

	for name, boxes := range map[string][]image.Rectangle{
		"wide on the right": {narrow, wide},
		"wide on the left":  {narrowRight, wideLeft},
	} {
		t.Run(name, func(t *testing.T) {
			sink := &recordingSink{}
			p := newPipeline(t, sink)

			outcome, err := p.ProcessFrame(newFrame(t, boxes...))
			require.NoError(t, err)
			require.NotNil(t, outcome.Result)
			assert.Equal(t, 60.0, outcome.Result.Width)
			assert.Equal(t, boxes[1], outcome.Result.Box)
		})
	}
}

func TestProcessFrameIsIdempotent(t *testing.T) {
	sink := &recordingSink{}
	p := newPipeline(t, sink)

	frame := newFrame(t, image.Rect(120, 80, 200, 130), image.Rect(400, 300, 440, 340))
	first, err := p.ProcessFrame(frame)
	require.NoError(t, err)
	second, err := p.ProcessFrame(frame)
	require.NoError(t, err)

	assert.Equal(t, first.Output, second.Output)
	assert.Equal(t, sink.outputs[0], sink.outputs[1])
}

func TestProcessFrameSkipsInvalidFrame(t *testing.T) {
	sink := &recordingSink{}
	p := newPipeline(t, sink)

	empty := gocv.NewMat()
	defer empty.Close()

	_, err := p.ProcessFrame(empty)
	assert.Error(t, err)
	assert.Empty(t, sink.outputs)
	assert.Equal(t, int64(1), p.Stats().Snapshot().Skipped)
}

func TestProcessFramePublishErrorIsNotFatal(t *testing.T) {
	sink := &recordingSink{err: errors.New("listener gone")}
	p := newPipeline(t, sink)

	outcome, err := p.ProcessFrame(newFrame(t, image.Rect(300, 200, 360, 240)))
	require.NoError(t, err)
	assert.Equal(t, Published, outcome.State)
	assert.Equal(t, int64(1), p.Stats().Snapshot().PublishErrors)
}

func TestProcessFrameNotifiesObserver(t *testing.T) {
	sink := &recordingSink{}
	p := newPipeline(t, sink)

	var sawBuffers bool
	p.SetObserver(observerFunc(func(f overlay.Frames) {
		sawBuffers = !f.Original.Empty() && !f.HSV.Empty() && !f.Mask.Empty() && !f.Annotated.Empty() &&
			f.Mask.Channels() == 1 && f.Annotated.Cols() == 640
	}))

	_, err := p.ProcessFrame(newFrame(t, image.Rect(300, 200, 360, 240)))
	require.NoError(t, err)
	assert.True(t, sawBuffers)
}

type observerFunc func(overlay.Frames)

func (f observerFunc) Observe(frames overlay.Frames) { f(frames) }

func TestRunPropagatesAcquisitionError(t *testing.T) {
	sink := &recordingSink{}
	p := newPipeline(t, sink)
	obs := &recordingObserver{}
	p.SetObserver(obs)

	frame := newFrame(t, image.Rect(300, 200, 360, 240))
	source := &frameQueue{frames: []gocv.Mat{frame, frame, frame}, err: io.ErrUnexpectedEOF}

	err := p.Run(context.Background(), source)

	var acqErr *AcquisitionError
	require.True(t, errors.As(err, &acqErr))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, []string{"60.00,-0.77,53.58", "60.00,-0.77,53.58", "60.00,-0.77,53.58"}, sink.outputs)
	require.Len(t, obs.frames, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{obs.frames[0].Sequence, obs.frames[1].Sequence, obs.frames[2].Sequence})
}

func TestRunFinishesInFlightFrameOnStop(t *testing.T) {
	sink := &recordingSink{}
	p := newPipeline(t, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frame := newFrame(t)
	source := &frameQueue{
		frames: []gocv.Mat{frame, frame, frame, frame},
		err:    io.EOF,
		onRead: func(n int) {
			if n == 2 {
				cancel()
			}
		},
	}

	require.NoError(t, p.Run(ctx, source))
	assert.Equal(t, 2, source.reads)
	assert.Equal(t, []string{"", ""}, sink.outputs)
}

func TestRunReturnsImmediatelyWhenAlreadyStopped(t *testing.T) {
	sink := &recordingSink{}
	p := newPipeline(t, sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &frameQueue{err: io.EOF}
	require.NoError(t, p.Run(ctx, source))
	assert.Equal(t, 0, source.reads)
}

type failingProvider struct{ calls int }

func (fp *failingProvider) Detect(gocv.Mat) (*detection.DetectionResult, error) {
	fp.calls++
	return nil, errors.New("segmentation blew up")
}
func (fp *failingProvider) Close() error { return nil }
func (fp *failingProvider) GetProviderInfo() detection.ProviderInfo {
	return detection.ProviderInfo{Type: "FAKE"}
}

func TestRunSkipsFramesThatFailProcessing(t *testing.T) {
	sink := &recordingSink{}
	provider := &failingProvider{}
	p, err := NewWithProvider(provider, DefaultConfig(), sink)
	require.NoError(t, err)

	frame := newFrame(t)
	source := &frameQueue{frames: []gocv.Mat{frame, frame}, err: io.EOF}

	err = p.Run(context.Background(), source)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, provider.calls)
	assert.Empty(t, sink.outputs)
	assert.Equal(t, int64(2), p.Stats().Snapshot().Skipped)
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Geometry.VerticalFOV = 0
	_, err := New(cfg, &recordingSink{})
	assert.Error(t, err)

	_, err = New(DefaultConfig(), nil)
	assert.Error(t, err)
}

func TestStatsFPS(t *testing.T) {
	s := NewStats()
	start := time.Unix(1000, 0)

	assert.Equal(t, 0.0, s.UpdateFPS(start))
	var fps float64
	for i := 1; i <= 10; i++ {
		fps = s.UpdateFPS(start.Add(time.Duration(i) * 100 * time.Millisecond))
	}
	assert.InDelta(t, 10.0, fps, 1e-6)
	assert.Equal(t, int64(11), s.Snapshot().Frames)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "IDLE", Idle.String())
	assert.Equal(t, "PROCESSING", Processing.String())
	assert.Equal(t, "PUBLISHED", Published.String())
	assert.Equal(t, "NO_TARGET", NoTarget.String())
}
