package vision

import (
	"gocv.io/x/gocv"

	"panel-locator/internal/shape"
	"panel-locator/pkg/geometry"
)

// ApproxEpsilonFraction is the polygon approximation tolerance as a fraction
// of the contour perimeter.
const ApproxEpsilonFraction = 0.01

var matchMethods = [3]gocv.ShapeMatchModes{
	gocv.ContoursMatchI1,
	gocv.ContoursMatchI2,
	gocv.ContoursMatchI3,
}

// Extractor computes shape descriptors with OpenCV against a reference wrench.
type Extractor struct {
	ref *Reference
}

// NewExtractor creates an extractor that matches against ref.
func NewExtractor(ref *Reference) *Extractor {
	return &Extractor{ref: ref}
}

// Describe computes the descriptor of one contour. It has no side effects.
func (e *Extractor) Describe(c shape.Contour) (shape.Descriptor, error) {
	if len(c) < 3 {
		return shape.Descriptor{}, shape.ErrDegenerate
	}

	pv := gocv.NewPointVectorFromPoints(c)
	defer pv.Close()

	var d shape.Descriptor
	d.Area = gocv.ContourArea(pv)
	d.Perimeter = gocv.ArcLength(pv, true)

	approx := gocv.ApproxPolyDP(pv, ApproxEpsilonFraction*d.Perimeter, true)
	d.ApproxPoints = approx.Size()
	d.ApproxBounds = geometry.FromRectangle(gocv.BoundingRect(approx))
	approx.Close()
	d.AspectRatio = shape.AspectRatio(d.ApproxBounds)

	d.Bounds = c.Bounds()
	if centroid, ok := geometry.ContourMoments(c).Centroid(); ok {
		d.Centroid = centroid
	}

	x, y, radius := gocv.MinEnclosingCircle(pv)
	d.EnclosingCenter = geometry.NewPoint2D(float64(x), float64(y))
	d.EnclosingRadius = float64(radius)
	d.EnclosingRatio = shape.EnclosingRatio(d.EnclosingRadius, d.Area)

	for i, method := range matchMethods {
		d.Similarity[i] = gocv.MatchShapes(e.ref.pv, pv, method, 0)
	}
	return d, nil
}
