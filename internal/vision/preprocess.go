package vision

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"panel-locator/internal/shape"
	"panel-locator/pkg/geometry"
)

// EdgeParams controls the edge pipeline that turns a frame into contours.
type EdgeParams struct {
	BlurKernel  int     `json:"blur_kernel"`  // Gaussian kernel side, odd
	CannySigma  float64 `json:"canny_sigma"`  // Band around the median for automatic Canny
	CloseWidth  int     `json:"close_width"`  // Elliptical closing kernel width
	CloseHeight int     `json:"close_height"` // Elliptical closing kernel height
}

// DefaultEdgeParams returns the default edge pipeline settings.
func DefaultEdgeParams() EdgeParams {
	return EdgeParams{
		BlurKernel:  5,
		CannySigma:  0.33,
		CloseWidth:  4,
		CloseHeight: 12,
	}
}

// Validate checks the parameters.
func (p EdgeParams) Validate() error {
	if p.BlurKernel <= 0 || p.BlurKernel%2 == 0 {
		return errors.Errorf("blur kernel must be a positive odd number, got %d", p.BlurKernel)
	}
	if p.CannySigma < 0 || p.CannySigma > 1 {
		return errors.Errorf("canny sigma must be within [0, 1], got %v", p.CannySigma)
	}
	if p.CloseWidth <= 0 || p.CloseHeight <= 0 {
		return errors.Errorf("closing kernel must be positive, got %dx%d", p.CloseWidth, p.CloseHeight)
	}
	return nil
}

// CannyThresholds returns the automatic Canny hysteresis thresholds for a
// given median intensity.
func CannyThresholds(median, sigma float64) (lower, upper float32) {
	lo := (1.0 - sigma) * median
	if lo < 0 {
		lo = 0
	}
	hi := (1.0 + sigma) * median
	if hi > 255 {
		hi = 255
	}
	return float32(int(lo)), float32(int(hi))
}

// Median returns the median of 8-bit samples, averaging the two middle
// values for an even count.
func Median(samples []byte) float64 {
	n := len(samples)
	if n == 0 {
		return 0
	}
	var hist [256]int
	for _, s := range samples {
		hist[s]++
	}
	lowRank := (n - 1) / 2
	highRank := n / 2
	lowVal, highVal := -1, -1
	seen := 0
	for v, count := range hist {
		seen += count
		if lowVal < 0 && seen > lowRank {
			lowVal = v
		}
		if seen > highRank {
			highVal = v
			break
		}
	}
	return float64(lowVal+highVal) / 2
}

// EdgeMap runs blur, automatic Canny, a 3x3 dilate/erode pass and the
// elliptical closing on a BGR frame. The caller owns the returned Mat.
func EdgeMap(img gocv.Mat, p EdgeParams) (gocv.Mat, error) {
	if img.Empty() {
		return gocv.Mat{}, errors.New("empty frame")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if img.Channels() == 1 {
		img.CopyTo(&gray)
	} else {
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{p.BlurKernel, p.BlurKernel}, 0, 0, gocv.BorderDefault)

	lower, upper := CannyThresholds(Median(blurred.ToBytes()), p.CannySigma)
	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, lower, upper)

	// close small gaps between edge fragments
	small := gocv.GetStructuringElement(gocv.MorphRect, image.Point{3, 3})
	defer small.Close()
	gocv.Dilate(edges, &edges, small)
	gocv.Erode(edges, &edges, small)

	closing := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{p.CloseWidth, p.CloseHeight})
	defer closing.Close()
	filled := gocv.NewMat()
	gocv.MorphologyEx(edges, &filled, gocv.MorphClose, closing)
	return filled, nil
}

// Contours extracts the external contours of a BGR frame, sorted left to
// right by bounding box x.
func Contours(img gocv.Mat, p EdgeParams) ([]shape.Contour, error) {
	filled, err := EdgeMap(img, p)
	if err != nil {
		return nil, err
	}
	defer filled.Close()

	found := gocv.FindContours(filled, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer found.Close()

	raw := found.ToPoints()
	geometry.SortLeftToRight(raw)

	out := make([]shape.Contour, len(raw))
	for i, pts := range raw {
		out[i] = shape.Contour(pts)
	}
	return out, nil
}
