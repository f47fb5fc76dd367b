// Package vision holds the OpenCV side of the panel locator: frame decoding,
// the edge pipeline that produces contours, the reference wrench template,
// per-contour descriptor extraction, and debug rendering.
package vision

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"panel-locator/internal/shape"
)

// ReferenceThreshold is the binary-inverse threshold applied to the template.
const ReferenceThreshold = 128

// Reference is the wrench template contour that every candidate is matched
// against. It is read-only after loading.
type Reference struct {
	pv     gocv.PointVector
	points shape.Contour
}

// LoadReference reads a template image and takes its first contour after an
// inverted binary threshold, so a dark wrench on a light background becomes
// the foreground.
func LoadReference(path string) (*Reference, error) {
	img := gocv.IMRead(path, gocv.IMReadGrayScale)
	if img.Empty() {
		return nil, errors.Errorf("failed to read reference template %s", path)
	}
	defer img.Close()
	return ReferenceFromGray(img)
}

// ReferenceFromGray builds the reference from a single channel image.
func ReferenceFromGray(gray gocv.Mat) (*Reference, error) {
	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(gray, &binary, ReferenceThreshold, 255, gocv.ThresholdBinaryInv)

	contours := gocv.FindContours(binary, gocv.RetrievalList, gocv.ChainApproxSimple)
	defer contours.Close()
	if contours.Size() == 0 {
		return nil, errors.New("reference template has no contour")
	}
	return NewReference(contours.At(0).ToPoints())
}

// NewReference builds a reference from contour points.
func NewReference(points []image.Point) (*Reference, error) {
	if len(points) < 3 {
		return nil, errors.Wrap(shape.ErrDegenerate, "reference contour")
	}
	pts := make(shape.Contour, len(points))
	copy(pts, points)
	return &Reference{
		pv:     gocv.NewPointVectorFromPoints(pts),
		points: pts,
	}, nil
}

// Contour returns a copy of the reference points.
func (r *Reference) Contour() shape.Contour {
	out := make(shape.Contour, len(r.points))
	copy(out, r.points)
	return out
}

// Close releases the OpenCV memory.
func (r *Reference) Close() error {
	r.pv.Close()
	return nil
}
