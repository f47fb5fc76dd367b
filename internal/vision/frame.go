package vision

import (
	"bytes"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"os"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

// DecodeFrame decodes an encoded image into a BGR Mat. The caller owns the Mat.
func DecodeFrame(data []byte) (gocv.Mat, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return gocv.Mat{}, "", errors.Wrap(err, "failed to decode frame")
	}
	mat, err := ImageToMat(img)
	if err != nil {
		return gocv.Mat{}, "", err
	}
	return mat, format, nil
}

// ReadFrame reads and decodes an image file.
func ReadFrame(path string) (gocv.Mat, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return gocv.Mat{}, errors.Wrap(err, "failed to read frame")
	}
	mat, _, err := DecodeFrame(data)
	if err != nil {
		return gocv.Mat{}, errors.Wrapf(err, "frame %s", path)
	}
	return mat, nil
}

// ImageToMat converts a Go image into a BGR Mat.
func ImageToMat(img image.Image) (gocv.Mat, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return gocv.Mat{}, errors.New("image has no pixels")
	}

	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)

	// horizontal stripes, one per worker
	numWorkers := runtime.NumCPU()
	rowsPerWorker := (height + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		startY := w * rowsPerWorker
		if startY >= height {
			break
		}
		endY := startY + rowsPerWorker
		if endY > height {
			endY = height
		}

		wg.Add(1)
		go func(yStart, yEnd int) {
			defer wg.Done()
			for y := yStart; y < yEnd; y++ {
				for x := 0; x < width; x++ {
					r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
					mat.SetUCharAt(y, x*3+0, uint8(b>>8))
					mat.SetUCharAt(y, x*3+1, uint8(g>>8))
					mat.SetUCharAt(y, x*3+2, uint8(r>>8))
				}
			}
		}(startY, endY)
	}
	wg.Wait()

	return mat, nil
}

// MatToImage converts a BGR Mat into an RGBA image.
func MatToImage(mat gocv.Mat) *image.RGBA {
	h := mat.Rows()
	w := mat.Cols()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := y * img.Stride
		for x := 0; x < w; x++ {
			off := row + x*4
			img.Pix[off+0] = mat.GetUCharAt(y, x*3+2)
			img.Pix[off+1] = mat.GetUCharAt(y, x*3+1)
			img.Pix[off+2] = mat.GetUCharAt(y, x*3+0)
			img.Pix[off+3] = 255
		}
	}
	return img
}
