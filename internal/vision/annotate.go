package vision

import (
	"fmt"
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"panel-locator/internal/detector"
	"panel-locator/pkg/geometry"
)

var (
	colorBlue    = color.RGBA{0, 0, 255, 0}
	colorRed     = color.RGBA{255, 0, 0, 0}
	colorMagenta = color.RGBA{255, 0, 255, 0}
)

// Annotate draws the detected regions, the panel pose and the image
// crosshair onto a copy of frame. The caller owns the returned Mat.
func Annotate(frame gocv.Mat, res detector.Result) gocv.Mat {
	out := frame.Clone()

	drawRegion(&out, res.Wrenches, colorBlue)
	drawRegion(&out, res.Valve, colorBlue)
	drawRegion(&out, res.Panel, colorRed)
	drawRegion(&out, res.Tool, colorMagenta)

	for _, c := range res.Candidates {
		if c.SizeLabel == "" {
			continue
		}
		b := c.Descriptor.Bounds
		gocv.PutText(&out, c.SizeLabel, image.Pt(b.X-15, b.Y+b.Height+25),
			gocv.FontHersheySimplex, 0.5, colorRed, 2)
	}

	if res.Pose != nil {
		p := res.Pose.Position
		gocv.PutText(&out, fmt.Sprintf("X=%.4f", p.X), image.Pt(30, 60), gocv.FontHersheySimplex, 0.5, colorRed, 1)
		gocv.PutText(&out, fmt.Sprintf("Y=%.4f", p.Y), image.Pt(30, 90), gocv.FontHersheySimplex, 0.5, colorRed, 1)
		gocv.PutText(&out, fmt.Sprintf("Z=%.4f", p.Z), image.Pt(30, 120), gocv.FontHersheySimplex, 0.5, colorRed, 1)
		gocv.Circle(&out, image.Pt(res.Pose.Pixel[0], res.Pose.Pixel[1]), 3, colorRed, -1)

		w, h := out.Cols(), out.Rows()
		gocv.Line(&out, image.Pt(w/2, 0), image.Pt(w/2, h), colorRed, 1)
		gocv.Line(&out, image.Pt(0, h/2), image.Pt(w, h/2), colorRed, 1)
	}
	return out
}

func drawRegion(img *gocv.Mat, r *geometry.RectInt, c color.RGBA) {
	if r == nil {
		return
	}
	gocv.Rectangle(img, r.Rectangle(), c, 2)
}

// WriteAnnotated renders res over frame and writes it to path.
func WriteAnnotated(path string, frame gocv.Mat, res detector.Result) error {
	out := Annotate(frame, res)
	defer out.Close()
	if ok := gocv.IMWrite(path, out); !ok {
		return errors.Errorf("failed to write annotated frame %s", path)
	}
	return nil
}
