package panel

import (
	"image"
	"math"
	"testing"

	"go.viam.com/test"

	"panel-locator/internal/classify"
	"panel-locator/internal/shape"
	"panel-locator/pkg/geometry"
)

var frameBounds = image.Rect(0, 0, 960, 540)

// rectContour returns a four-corner contour whose bounding rect is exactly (x, y, w, h).
func rectContour(x, y, w, h int) shape.Contour {
	return shape.Contour{{x, y}, {x + w - 1, y}, {x + w - 1, y + h - 1}, {x, y + h - 1}}
}

func wrench(x, y, w, h int, label string) Candidate {
	c := rectContour(x, y, w, h)
	return Candidate{
		Contour: c,
		Descriptor: shape.Descriptor{
			Bounds:   c.Bounds(),
			Centroid: image.Pt(x+w/2, y+h/2),
		},
		Tag:       classify.TagWrench,
		SizeLabel: label,
	}
}

func circle(x, y, d int) Candidate {
	c := shape.Contour(geometry.GenerateCirclePoints(float64(x+d/2), float64(y+d/2), float64(d/2), 64))
	return Candidate{
		Contour:    c,
		Descriptor: shape.Descriptor{Bounds: c.Bounds()},
		Tag:        classify.TagCircle,
	}
}

// ringOfWrenches returns six top-aligned wrenches with the table heights.
func ringOfWrenches() []Candidate {
	sizes := classify.ToolSizes()
	out := make([]Candidate, 0, len(sizes))
	for i, s := range sizes {
		out = append(out, wrench(300+i*30, 100, int(s.Width), int(s.Height), s.Label))
	}
	return out
}

func TestAggregateEmptyFrame(t *testing.T) {
	res := Aggregate(Frame{Bounds: frameBounds, RequestedSize: "14mm"}, DefaultParams())
	test.That(t, res.Wrenches, test.ShouldBeNil)
	test.That(t, res.Valve, test.ShouldBeNil)
	test.That(t, res.Panel, test.ShouldBeNil)
	test.That(t, res.Tool, test.ShouldBeNil)
	test.That(t, res.PanelFound, test.ShouldBeFalse)
	test.That(t, math.IsNaN(res.ConsistencyError), test.ShouldBeTrue)
}

func TestAggregateIgnoredCandidatesAreLikeEmpty(t *testing.T) {
	noise := Candidate{Contour: rectContour(1, 1, 3, 3), Tag: classify.TagIgnore}
	res := Aggregate(Frame{Candidates: []Candidate{noise, noise}, Bounds: frameBounds}, DefaultParams())
	test.That(t, res.WrenchCount, test.ShouldEqual, 0)
	test.That(t, res.CircleCount, test.ShouldEqual, 0)
	test.That(t, res.Wrenches, test.ShouldBeNil)
	test.That(t, res.Valve, test.ShouldBeNil)
	test.That(t, res.Panel, test.ShouldBeNil)
	test.That(t, res.Tool, test.ShouldBeNil)
}

func TestAggregateSixWrenchesOneCircle(t *testing.T) {
	cands := ringOfWrenches()
	valve := circle(360, 230, 60)
	cands = append(cands, valve)

	res := Aggregate(Frame{Candidates: cands, Bounds: frameBounds, RequestedSize: "14mm"}, DefaultParams())
	test.That(t, res.WrenchCount, test.ShouldEqual, 6)
	test.That(t, res.CircleCount, test.ShouldEqual, 1)
	test.That(t, res.Wrenches, test.ShouldNotBeNil)
	test.That(t, res.Valve, test.ShouldNotBeNil)
	test.That(t, *res.Valve, test.ShouldResemble, valve.Contour.Bounds())
	test.That(t, res.ConsistencyError, test.ShouldBeLessThan, DefaultMaxConsistencyError)
	test.That(t, res.PanelFound, test.ShouldBeTrue)

	var all []image.Point
	for _, c := range cands {
		all = append(all, c.Contour...)
	}
	test.That(t, *res.Panel, test.ShouldResemble, geometry.BoundingRect(all))

	test.That(t, res.ToolIdentified, test.ShouldBeTrue)
	test.That(t, *res.Tool, test.ShouldResemble, cands[2].Contour.Bounds())
}

func TestAggregateZeroCirclesNeverPublishesPanel(t *testing.T) {
	cands := ringOfWrenches()[:5]
	res := Aggregate(Frame{Candidates: cands, Bounds: frameBounds}, DefaultParams())
	test.That(t, res.Wrenches, test.ShouldNotBeNil)
	test.That(t, res.Valve, test.ShouldBeNil)
	test.That(t, res.Panel, test.ShouldBeNil)
	test.That(t, res.Tool, test.ShouldBeNil)
	test.That(t, res.PanelFound, test.ShouldBeFalse)
}

func TestAggregateTwoCircles(t *testing.T) {
	cands := append(ringOfWrenches(), circle(360, 230, 60), circle(600, 230, 60))
	res := Aggregate(Frame{Candidates: cands, Bounds: frameBounds}, DefaultParams())
	test.That(t, res.CircleCount, test.ShouldEqual, 2)
	test.That(t, res.Wrenches, test.ShouldNotBeNil)
	test.That(t, res.Valve, test.ShouldBeNil)
	test.That(t, res.Panel, test.ShouldBeNil)
}

func TestAggregateInconsistentWrenches(t *testing.T) {
	// var(h) = 1, var(cY) = 10000 → errPer = 9999
	cands := []Candidate{
		wrench(100, 50, 16, 90, "14mm"),
		wrench(300, 250, 16, 92, "14mm"),
		circle(200, 150, 50),
	}
	res := Aggregate(Frame{Candidates: cands, Bounds: frameBounds}, DefaultParams())
	test.That(t, res.Valve, test.ShouldNotBeNil)
	test.That(t, res.ConsistencyError, test.ShouldBeGreaterThanOrEqualTo, DefaultMaxConsistencyError)
	test.That(t, res.Panel, test.ShouldBeNil)
	test.That(t, res.PanelFound, test.ShouldBeFalse)

	// a looser bound accepts the same frame
	res = Aggregate(Frame{Candidates: cands, Bounds: frameBounds}, Params{MaxConsistencyError: 1e5})
	test.That(t, res.PanelFound, test.ShouldBeTrue)
}

func TestAggregateEqualHeightsFailConsistency(t *testing.T) {
	cands := []Candidate{
		wrench(100, 100, 16, 90, ""),
		wrench(140, 104, 16, 90, ""),
		circle(120, 220, 50),
	}
	res := Aggregate(Frame{Candidates: cands, Bounds: frameBounds}, DefaultParams())
	test.That(t, res.Valve, test.ShouldNotBeNil)
	test.That(t, math.IsNaN(res.ConsistencyError), test.ShouldBeTrue)
	test.That(t, res.Panel, test.ShouldBeNil)
}

func TestAggregateCircleWithoutWrenches(t *testing.T) {
	res := Aggregate(Frame{Candidates: []Candidate{circle(100, 100, 40)}, Bounds: frameBounds}, DefaultParams())
	test.That(t, res.Valve, test.ShouldNotBeNil)
	test.That(t, res.Wrenches, test.ShouldBeNil)
	test.That(t, res.Panel, test.ShouldBeNil)
}

func TestAggregateToolIndependentOfPanel(t *testing.T) {
	cands := []Candidate{wrench(100, 100, 16, 90, "14mm"), wrench(200, 100, 20, 105, "18mm")}
	res := Aggregate(Frame{Candidates: cands, Bounds: frameBounds, RequestedSize: "18mm"}, DefaultParams())
	test.That(t, res.PanelFound, test.ShouldBeFalse)
	test.That(t, res.Tool, test.ShouldNotBeNil)
	test.That(t, *res.Tool, test.ShouldResemble, geometry.NewRectInt(200, 100, 20, 105))

	res = Aggregate(Frame{Candidates: cands, Bounds: frameBounds, RequestedSize: "12mm"}, DefaultParams())
	test.That(t, res.Tool, test.ShouldBeNil)
	test.That(t, res.ToolIdentified, test.ShouldBeFalse)

	res = Aggregate(Frame{Candidates: cands, Bounds: frameBounds}, DefaultParams())
	test.That(t, res.Tool, test.ShouldBeNil)
}

func TestAggregateLastMatchingToolWins(t *testing.T) {
	cands := []Candidate{wrench(100, 100, 16, 90, "14mm"), wrench(200, 120, 16, 90, "14mm")}
	res := Aggregate(Frame{Candidates: cands, Bounds: frameBounds, RequestedSize: "14mm"}, DefaultParams())
	test.That(t, res.Tool.X, test.ShouldEqual, 200)
}

func TestAggregateBothTagCountsTwice(t *testing.T) {
	both := circle(100, 100, 40)
	both.Tag = classify.TagBoth
	res := Aggregate(Frame{Candidates: []Candidate{both}, Bounds: frameBounds}, DefaultParams())
	test.That(t, res.WrenchCount, test.ShouldEqual, 1)
	test.That(t, res.CircleCount, test.ShouldEqual, 1)
	test.That(t, res.Wrenches, test.ShouldNotBeNil)
	test.That(t, res.Valve, test.ShouldNotBeNil)
}

func TestAggregateDropsOutOfBoundsRegions(t *testing.T) {
	res := Aggregate(Frame{
		Candidates: []Candidate{wrench(950, 500, 16, 90, "")},
		Bounds:     frameBounds,
	}, DefaultParams())
	test.That(t, res.WrenchCount, test.ShouldEqual, 1)
	test.That(t, res.Wrenches, test.ShouldBeNil)
}

func TestConsistencyError(t *testing.T) {
	test.That(t, ConsistencyError([]float64{1, 3}, []float64{2, 4}), test.ShouldAlmostEqual, 0)
	test.That(t, ConsistencyError([]float64{0, 4}, []float64{2, 4}), test.ShouldAlmostEqual, 3)
	test.That(t, math.IsNaN(ConsistencyError(nil, nil)), test.ShouldBeTrue)
	test.That(t, math.IsNaN(ConsistencyError([]float64{1, 2}, []float64{5, 5})), test.ShouldBeTrue)
}
