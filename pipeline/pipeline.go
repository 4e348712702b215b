package pipeline

import (
	"context"
	"fmt"
	"time"

	"towertracker/detection"
	"towertracker/overlay"
	"towertracker/targeting"

	"gocv.io/x/gocv"
)

const perfReportInterval = 15 * time.Second

// Global debug functions for pipeline package
var (
	debugMsgFunc        func(string, string)
	debugMsgVerboseFunc func(string, string)
)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(string, string)) {
	debugMsgFunc = fn
}

// SetDebugVerboseFunction allows main package to provide the per-candidate logger
func SetDebugVerboseFunction(fn func(string, string)) {
	debugMsgVerboseFunc = fn
}

func debugMsg(component, message string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message)
	}
}

func debugMsgVerbose(component, message string) {
	if debugMsgVerboseFunc != nil {
		debugMsgVerboseFunc(component, message)
	}
}

// FrameSource produces frames on demand. Read blocks until a frame is
// available and overwrites dst with it.
type FrameSource interface {
	Read(dst *gocv.Mat) error
}

// Sink receives the output string for every processed frame: empty when no
// target was found, otherwise "<width>,<pan>,<tilt>".
type Sink interface {
	Publish(output string) error
}

// AcquisitionError reports that the frame source failed. It ends Run; retrying
// is up to the caller.
type AcquisitionError struct {
	Err error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("frame acquisition failed: %v", e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// State is where the pipeline is in its per-frame cycle
type State int

const (
	Idle State = iota
	Processing
	Published
	NoTarget
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Processing:
		return "PROCESSING"
	case Published:
		return "PUBLISHED"
	case NoTarget:
		return "NO_TARGET"
	default:
		return "UNKNOWN"
	}
}

// Config holds everything the per-frame stages read. It is fixed at startup.
type Config struct {
	Threshold detection.ColorThreshold
	Filter    targeting.FilterConfig
	Geometry  targeting.CameraGeometry
}

// DefaultConfig returns the tuned defaults for every stage
func DefaultConfig() Config {
	return Config{
		Threshold: detection.DefaultColorThreshold(),
		Filter:    targeting.DefaultFilterConfig(),
		Geometry:  targeting.DefaultCameraGeometry(),
	}
}

// Outcome is what happened to one frame
type Outcome struct {
	Sequence   int64
	State      State // Published or NoTarget
	Result     *targeting.Result
	Output     string
	Candidates int
	Accepted   int
}

// Pipeline turns frames into published target geometry, one frame at a time.
// It is not safe for concurrent use.
type Pipeline struct {
	provider detection.Provider
	filter   *targeting.Filter
	geometry targeting.CameraGeometry
	renderer *overlay.Renderer
	sink     Sink
	observer overlay.Observer
	stats    *Stats

	state    State
	sequence int64
	fps      float64
}

// New builds a pipeline that segments with an HSV provider
func New(config Config, sink Sink) (*Pipeline, error) {
	provider, err := detection.NewHSVProvider(config.Threshold)
	if err != nil {
		return nil, err
	}
	return NewWithProvider(provider, config, sink)
}

// NewWithProvider builds a pipeline around an existing detection provider
func NewWithProvider(provider detection.Provider, config Config, sink Sink) (*Pipeline, error) {
	if provider == nil {
		return nil, fmt.Errorf("detection provider is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("result sink is required")
	}
	if err := config.Filter.Validate(); err != nil {
		return nil, fmt.Errorf("invalid filter config: %w", err)
	}
	if err := config.Geometry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid camera geometry: %w", err)
	}

	return &Pipeline{
		provider: provider,
		filter:   targeting.NewFilter(config.Filter),
		geometry: config.Geometry,
		renderer: overlay.NewRenderer(),
		sink:     sink,
		stats:    NewStats(),
		state:    Idle,
	}, nil
}

// SetObserver attaches a debug observer. Pass nil to detach.
func (p *Pipeline) SetObserver(observer overlay.Observer) {
	p.observer = observer
}

// State returns the current per-frame state
func (p *Pipeline) State() State {
	return p.state
}

// Stats returns the pipeline's diagnostic counters
func (p *Pipeline) Stats() *Stats {
	return p.stats
}

// Close releases the detection provider
func (p *Pipeline) Close() error {
	return p.provider.Close()
}

func (p *Pipeline) setState(s State) {
	if p.state != s {
		debugMsgVerbose("PIPELINE", fmt.Sprintf("Frame %d: %s -> %s", p.sequence, p.state, s))
	}
	p.state = s
}

// ProcessFrame runs segmentation, extraction, filtering, selection and
// projection on one BGR frame, then publishes the output. An error means the
// frame could not be processed and nothing was published for it.
func (p *Pipeline) ProcessFrame(frame gocv.Mat) (Outcome, error) {
	p.sequence++
	p.setState(Processing)

	det, err := p.provider.Detect(frame)
	if err != nil {
		p.setState(Idle)
		p.stats.UpdateSkipped()
		return Outcome{Sequence: p.sequence}, fmt.Errorf("frame %d: detection failed: %w", p.sequence, err)
	}
	defer det.Close()
	p.stats.UpdateDetect(det.Elapsed)

	filtered := p.filter.Apply(det.Candidates)
	for _, c := range filtered.Classified {
		debugMsgVerbose("FILTER", fmt.Sprintf("Frame %d: box %v (%dx%d) %s",
			p.sequence, c.Box.Min, c.Box.Dx(), c.Box.Dy(), c.Verdict))
	}

	outcome := Outcome{
		Sequence:   p.sequence,
		State:      NoTarget,
		Candidates: len(filtered.Classified),
		Accepted:   len(filtered.Accepted),
	}

	if best, ok := targeting.Select(filtered.Accepted); ok {
		result, err := targeting.NewResult(best.Box, frame.Cols(), frame.Rows(), p.geometry)
		if err != nil {
			p.setState(Idle)
			p.stats.UpdateSkipped()
			return outcome, fmt.Errorf("frame %d: projection failed: %w", p.sequence, err)
		}
		if !result.HasDistance {
			debugMsg("GEOMETRY", fmt.Sprintf("Frame %d: target elevation is degenerate, distance unavailable", p.sequence))
		}
		outcome.State = Published
		outcome.Result = result
	}
	outcome.Output = outcome.Result.Output()

	p.setState(outcome.State)
	p.stats.UpdateOutcome(outcome.State)

	if err := p.sink.Publish(outcome.Output); err != nil {
		p.stats.UpdatePublishError()
		debugMsg("PUBLISH", fmt.Sprintf("Frame %d: publish failed: %v", p.sequence, err))
	}

	if p.observer != nil {
		p.notify(frame, det, filtered, outcome)
	}

	p.setState(Idle)
	return outcome, nil
}

// notify draws the annotated frame and hands every buffer to the observer
func (p *Pipeline) notify(frame gocv.Mat, det *detection.DetectionResult, filtered targeting.FilterResult, outcome Outcome) {
	annotated := frame.Clone()
	defer annotated.Close()

	p.renderer.DrawCandidates(&annotated, filtered.Classified)
	p.renderer.DrawTarget(&annotated, outcome.Result)
	p.renderer.DrawStatus(&annotated, p.fps, outcome.Output)

	p.observer.Observe(overlay.Frames{
		Sequence:  outcome.Sequence,
		Original:  frame,
		HSV:       det.HSV,
		Mask:      det.Mask,
		Annotated: annotated,
		Result:    outcome.Result,
		Output:    outcome.Output,
	})
}

// Run reads and processes frames until ctx is cancelled or the source fails.
// Cancellation is checked only between frames; a frame that has started is
// always finished. A source failure is returned as *AcquisitionError.
func (p *Pipeline) Run(ctx context.Context, source FrameSource) error {
	frame := gocv.NewMat()
	defer frame.Close()

	for {
		select {
		case <-ctx.Done():
			debugMsg("PIPELINE", "Stop requested, leaving frame loop")
			return nil
		default:
		}

		if err := source.Read(&frame); err != nil {
			p.setState(Idle)
			return &AcquisitionError{Err: err}
		}

		now := time.Now()
		p.fps = p.stats.UpdateFPS(now)

		outcome, err := p.ProcessFrame(frame)
		if err != nil {
			debugMsg("PIPELINE", fmt.Sprintf("Skipping frame: %v", err))
			continue
		}
		debugMsgVerbose("PIPELINE", fmt.Sprintf("Frame %d: %s %q (%d candidates, %d accepted, %.1f fps)",
			outcome.Sequence, outcome.State, outcome.Output, outcome.Candidates, outcome.Accepted, p.fps))

		if p.stats.ReportDue(now, perfReportInterval) {
			s := p.stats.Snapshot()
			debugMsg("PERF", fmt.Sprintf("%.1f fps | frames=%d published=%d no_target=%d skipped=%d publish_errors=%d avg_detect=%v",
				s.FPS, s.Frames, s.Published, s.NoTarget, s.Skipped, s.PublishErrors, s.AvgDetect))
		}
	}
}
