// Package geometry provides basic geometric types used throughout the application.
package geometry

import (
	"image"
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// RectInt represents a rectangle with integer coordinates.
// Width and Height count pixels, so a single point has a 1x1 rectangle.
type RectInt struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewRectInt creates a new RectInt.
func NewRectInt(x, y, width, height int) RectInt {
	return RectInt{X: x, Y: y, Width: width, Height: height}
}

// Empty reports whether the rectangle covers no pixels.
func (r RectInt) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Area returns Width × Height.
func (r RectInt) Area() int {
	return r.Width * r.Height
}

// Center returns the integer center, truncating halves the same way the
// detector's region arithmetic does.
func (r RectInt) Center() image.Point {
	return image.Pt(r.X+r.Width/2, r.Y+r.Height/2)
}

// Rectangle converts to an image.Rectangle (exclusive max corner).
func (r RectInt) Rectangle() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Within returns true if the rectangle is non-empty and lies entirely inside bounds.
func (r RectInt) Within(bounds image.Rectangle) bool {
	if r.Empty() {
		return false
	}
	return r.Rectangle().In(bounds)
}

// Union returns the smallest rectangle containing both rectangles.
// An empty operand is ignored.
func (r RectInt) Union(other RectInt) RectInt {
	if r.Empty() {
		return other
	}
	if other.Empty() {
		return r
	}
	u := r.Rectangle().Union(other.Rectangle())
	return FromRectangle(u)
}

// FromRectangle converts an image.Rectangle to a RectInt.
func FromRectangle(r image.Rectangle) RectInt {
	return RectInt{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// GenerateCirclePoints generates n evenly-spaced integer points around a circle.
// Consecutive duplicates produced by rounding are dropped.
func GenerateCirclePoints(centerX, centerY, radius float64, n int) []image.Point {
	points := make([]image.Point, 0, n)
	for i := 0; i < n; i++ {
		angle := float64(i) * 2.0 * math.Pi / float64(n)
		p := image.Pt(
			int(math.Round(centerX+radius*math.Cos(angle))),
			int(math.Round(centerY+radius*math.Sin(angle))),
		)
		if len(points) > 0 && points[len(points)-1] == p {
			continue
		}
		points = append(points, p)
	}
	return points
}

// BoundingRect computes the axis-aligned bounding rectangle of a set of
// integer points. Like OpenCV's boundingRect, both extreme pixels are
// included, so Width = maxX - minX + 1.
func BoundingRect(points []image.Point) RectInt {
	if len(points) == 0 {
		return RectInt{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return RectInt{X: minX, Y: minY, Width: maxX - minX + 1, Height: maxY - minY + 1}
}
