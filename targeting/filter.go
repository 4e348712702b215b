package targeting

import (
	"fmt"
	"image"
)

// FilterConfig holds the size and shape limits a candidate box must satisfy.
type FilterConfig struct {
	MinWidth  int     // Minimum box width in pixels (inclusive)
	MinHeight int     // Minimum box height in pixels (inclusive)
	MinAspect float64 // Minimum width/height ratio (inclusive)
	MaxAspect float64 // Maximum width/height ratio (inclusive)
}

// DefaultFilterConfig returns the limits tuned for the retro-reflective goal target
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MinWidth:  30,
		MinHeight: 30,
		MinAspect: 0.75,
		MaxAspect: 2.5,
	}
}

// Validate checks the limits are usable.
func (c FilterConfig) Validate() error {
	if c.MinWidth < 0 || c.MinHeight < 0 {
		return fmt.Errorf("minimum box size must not be negative, got %dx%d", c.MinWidth, c.MinHeight)
	}
	if c.MinAspect < 0 {
		return fmt.Errorf("minimum aspect ratio must not be negative, got %v", c.MinAspect)
	}
	if c.MaxAspect < c.MinAspect {
		return fmt.Errorf("aspect ratio range is inverted: min %v > max %v", c.MinAspect, c.MaxAspect)
	}
	return nil
}

// Filter rejects candidate boxes that are too small or have the wrong shape.
type Filter struct {
	config FilterConfig
}

// NewFilter creates a filter with the given limits
func NewFilter(config FilterConfig) *Filter {
	return &Filter{config: config}
}

// Config returns the filter's limits.
func (f *Filter) Config() FilterConfig {
	return f.config
}

// Classify decides whether a single box passes. The size rule is checked
// first, so a box that is both too small and badly shaped is a size reject.
func (f *Filter) Classify(box image.Rectangle) Verdict {
	width, height := box.Dx(), box.Dy()
	if width < f.config.MinWidth || height < f.config.MinHeight {
		return RejectedSize
	}

	// Zero height only reaches here when MinHeight is 0
	if height == 0 {
		return RejectedShape
	}

	aspect := float64(width) / float64(height)
	if aspect > f.config.MaxAspect || aspect < f.config.MinAspect {
		return RejectedShape
	}
	return Accepted
}

// FilterResult holds the outcome of filtering one frame's candidates.
type FilterResult struct {
	Accepted   []Candidate  // Candidates that passed, in input order
	Classified []Classified // Every candidate with its verdict, in input order
}

// Rejected returns the number of candidates that failed either rule
func (r FilterResult) Rejected() int {
	return len(r.Classified) - len(r.Accepted)
}

// Apply classifies every candidate. The result does not depend on anything
// but each candidate's own box.
func (f *Filter) Apply(candidates []Candidate) FilterResult {
	result := FilterResult{
		Accepted:   make([]Candidate, 0, len(candidates)),
		Classified: make([]Classified, 0, len(candidates)),
	}

	for _, c := range candidates {
		verdict := f.Classify(c.Box)
		result.Classified = append(result.Classified, Classified{Candidate: c, Verdict: verdict})
		if verdict == Accepted {
			result.Accepted = append(result.Accepted, c)
		}
	}
	return result
}
