// Package panel aggregates classified contours of one frame into the wrenches,
// valve, panel and tool regions, and decides whether a full panel was found.
package panel

import (
	"image"
	"math"

	"gonum.org/v1/gonum/stat"

	"panel-locator/internal/classify"
	"panel-locator/internal/shape"
	"panel-locator/pkg/geometry"
)

// DefaultMaxConsistencyError is the errPer bound the panel detector was tuned with.
const DefaultMaxConsistencyError = 80.0

// Params holds the aggregator's tunable constants.
type Params struct {
	// MaxConsistencyError bounds |var(cY) - var(h)| / var(h) over the wrench
	// candidates; the panel is only reported below it.
	MaxConsistencyError float64 `json:"max_consistency_error"`
}

// DefaultParams returns the default aggregator parameters.
func DefaultParams() Params {
	return Params{MaxConsistencyError: DefaultMaxConsistencyError}
}

// Candidate is a classified contour.
type Candidate struct {
	Contour    shape.Contour
	Descriptor shape.Descriptor
	Tag        classify.Tag

	// SizeLabel is the nearest tool size, set for wrench candidates only.
	SizeLabel string
}

// Frame is the aggregator input for one image.
type Frame struct {
	Candidates []Candidate
	Bounds     image.Rectangle // Source image bounds

	// RequestedSize is the tool label being searched for; empty disables the tool search.
	RequestedSize string
}

// Result holds the regions found in one frame. A nil region was not published.
type Result struct {
	Wrenches *geometry.RectInt `json:"wrenches,omitempty"`
	Valve    *geometry.RectInt `json:"valve,omitempty"`
	Panel    *geometry.RectInt `json:"panel,omitempty"`
	Tool     *geometry.RectInt `json:"tool,omitempty"`

	WrenchCount int `json:"wrench_count"`
	CircleCount int `json:"circle_count"`

	// ConsistencyError is errPer; NaN when it could not be computed.
	ConsistencyError float64 `json:"-"`

	PanelFound     bool `json:"panel_found"`
	ToolIdentified bool `json:"tool_identified"`
}

// accumulator holds the per-frame candidate sets. A new one is built for
// every Aggregate call.
type accumulator struct {
	wrenchPoints []image.Point
	circlePoints []image.Point
	centroidsY   []float64
	heights      []float64
	wrenchCount  int
	circleCount  int
	tool         shape.Contour
}

func (acc *accumulator) add(c Candidate, requested string) {
	if c.Tag.IsWrench() {
		acc.wrenchCount++
		acc.wrenchPoints = append(acc.wrenchPoints, c.Contour...)
		acc.centroidsY = append(acc.centroidsY, float64(c.Descriptor.Centroid.Y))
		acc.heights = append(acc.heights, float64(c.Descriptor.Bounds.Height))
		if requested != "" && c.SizeLabel == requested {
			acc.tool = c.Contour
		}
	}
	if c.Tag.IsCircle() {
		acc.circleCount++
		acc.circlePoints = append(acc.circlePoints, c.Contour...)
	}
}

// Aggregate runs the frame decision logic. It is a pure function of its inputs.
func Aggregate(frame Frame, params Params) Result {
	acc := &accumulator{}
	for _, c := range frame.Candidates {
		acc.add(c, frame.RequestedSize)
	}

	res := Result{
		WrenchCount:      acc.wrenchCount,
		CircleCount:      acc.circleCount,
		ConsistencyError: math.NaN(),
	}

	if len(acc.wrenchPoints) > 0 {
		res.Wrenches = publishable(geometry.BoundingRect(acc.wrenchPoints), frame.Bounds)
	}

	// exactly one circular landmark is required; zero or several means no panel
	if acc.circleCount == 1 {
		res.Valve = publishable(geometry.BoundingRect(acc.circlePoints), frame.Bounds)

		res.ConsistencyError = ConsistencyError(acc.centroidsY, acc.heights)
		if res.ConsistencyError < params.MaxConsistencyError {
			all := geometry.Concat(acc.wrenchPoints, acc.circlePoints)
			res.Panel = publishable(geometry.BoundingRect(all), frame.Bounds)
			res.PanelFound = res.Panel != nil
		}
	}

	if acc.tool != nil {
		res.Tool = publishable(acc.tool.Bounds(), frame.Bounds)
		res.ToolIdentified = res.Tool != nil
	}
	return res
}

// ConsistencyError returns |var(cY) - var(h)| / var(h) using population
// variances. It returns NaN when there are no samples or var(h) is zero;
// NaN fails every threshold comparison.
func ConsistencyError(centroidsY, heights []float64) float64 {
	if len(heights) == 0 || len(centroidsY) != len(heights) {
		return math.NaN()
	}
	_, hVar := stat.PopMeanVariance(heights, nil)
	if hVar == 0 {
		return math.NaN()
	}
	_, cyVar := stat.PopMeanVariance(centroidsY, nil)
	return math.Abs(cyVar-hVar) / hVar
}

// publishable returns the region when it is non-empty and inside bounds,
// and nil otherwise. An empty bounds disables the containment check.
func publishable(r geometry.RectInt, bounds image.Rectangle) *geometry.RectInt {
	if r.Empty() {
		return nil
	}
	if !bounds.Empty() && !r.Within(bounds) {
		return nil
	}
	return &r
}
