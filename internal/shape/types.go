// Package shape defines contours and the per-contour shape descriptor that the
// classifier and frame aggregator consume.
package shape

import (
	"image"
	"math"

	"github.com/pkg/errors"

	"panel-locator/pkg/geometry"
)

// ErrDegenerate is returned when a contour has no usable geometry (too few
// points or zero enclosed area).
var ErrDegenerate = errors.New("degenerate contour")

// Contour is a closed polygon in image pixel coordinates.
type Contour []image.Point

// Bounds returns the bounding rectangle of the raw contour points.
func (c Contour) Bounds() geometry.RectInt {
	return geometry.BoundingRect(c)
}

// Descriptor holds the geometric and statistical features of one contour.
type Descriptor struct {
	Area      float64 `json:"area"`      // Enclosed contour area (px²)
	Perimeter float64 `json:"perimeter"` // Closed arc length (px)

	// ApproxPoints is the vertex count of the polygon approximation
	// taken at a fixed fraction of the perimeter.
	ApproxPoints int `json:"approx_points"`

	// ApproxBounds is the bounding box of the polygon approximation; AspectRatio
	// is its width/height (+Inf when the height is zero).
	ApproxBounds geometry.RectInt `json:"approx_bounds"`
	AspectRatio  float64          `json:"aspect_ratio"`

	// Bounds is the bounding box of the raw contour. Tool size labeling and
	// the aggregator's height statistics use it.
	Bounds geometry.RectInt `json:"bounds"`

	// Centroid is derived from the contour moments and truncated to integers.
	Centroid image.Point `json:"centroid"`

	// Similarity holds the three Hu-moment match scores against the reference
	// wrench (methods I1, I2, I3). Lower is more similar.
	Similarity [3]float64 `json:"similarity"`

	EnclosingCenter geometry.Point2D `json:"enclosing_center"`
	EnclosingRadius float64          `json:"enclosing_radius"`

	// EnclosingRatio is enclosing-circle area / contour area.
	EnclosingRatio float64 `json:"enclosing_ratio"`
}

// AspectRatio returns width/height, treating a zero height as an infinite ratio.
func AspectRatio(r geometry.RectInt) float64 {
	if r.Height == 0 {
		return math.Inf(1)
	}
	return float64(r.Width) / float64(r.Height)
}

// EnclosingRatio returns the area of a circle of the given radius divided by
// contourArea, or +Inf for a zero contour area.
func EnclosingRatio(radius, contourArea float64) float64 {
	if contourArea <= 0 {
		return math.Inf(1)
	}
	return math.Pi * radius * radius / contourArea
}
