package geometry

import (
	"image"
	"math"
	"sort"
)

// Moments holds the spatial moments of a closed polygon up to first order.
type Moments struct {
	M00 float64 // Enclosed area
	M10 float64
	M01 float64
}

// ContourMoments computes the polygon moments of a closed contour using
// Green's theorem, the same way OpenCV treats a point-vector input to
// cv::moments. The sign is normalized so M00 is never negative regardless
// of winding order.
func ContourMoments(contour []image.Point) Moments {
	n := len(contour)
	if n < 3 {
		return Moments{}
	}

	var a00, a10, a01 float64
	prev := contour[n-1]
	for _, p := range contour {
		xi1, yi1 := float64(prev.X), float64(prev.Y)
		xi, yi := float64(p.X), float64(p.Y)
		cross := xi1*yi - xi*yi1
		a00 += cross
		a10 += cross * (xi1 + xi)
		a01 += cross * (yi1 + yi)
		prev = p
	}

	m := Moments{M00: a00 / 2, M10: a10 / 6, M01: a01 / 6}
	if m.M00 < 0 {
		m.M00, m.M10, m.M01 = -m.M00, -m.M10, -m.M01
	}
	return m
}

// Centroid returns the integer centroid (truncated toward zero) and false
// when the moments describe a zero-area polygon.
func (m Moments) Centroid() (image.Point, bool) {
	if math.Abs(m.M00) < 1e-12 {
		return image.Point{}, false
	}
	return image.Pt(int(m.M10/m.M00), int(m.M01/m.M00)), true
}

// SortLeftToRight orders contours by the x coordinate of their bounding
// rectangle. The sort is stable so contours sharing an x keep their input order.
func SortLeftToRight(contours [][]image.Point) {
	sort.SliceStable(contours, func(i, j int) bool {
		return BoundingRect(contours[i]).X < BoundingRect(contours[j]).X
	})
}

// Concat flattens several point sets into one, preserving order.
func Concat(sets ...[]image.Point) []image.Point {
	total := 0
	for _, s := range sets {
		total += len(s)
	}
	out := make([]image.Point, 0, total)
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}
