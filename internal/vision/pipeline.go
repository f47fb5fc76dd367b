package vision

import (
	"image"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"panel-locator/internal/detector"
	"panel-locator/internal/pose"
)

// Pipeline reads a frame file, extracts its contours and runs the detector.
type Pipeline struct {
	det         *detector.Detector
	edges       EdgeParams
	annotateDir string
}

// NewPipeline creates a pipeline. An empty annotateDir disables debug images.
func NewPipeline(det *detector.Detector, edges EdgeParams, annotateDir string) *Pipeline {
	return &Pipeline{det: det, edges: edges, annotateDir: annotateDir}
}

// Analyze processes the frame at path.
func (p *Pipeline) Analyze(path, toolSize string, cam *pose.CameraModel) (detector.Result, error) {
	frame, err := ReadFrame(path)
	if err != nil {
		return detector.Result{}, err
	}
	defer frame.Close()

	contours, err := Contours(frame, p.edges)
	if err != nil {
		return detector.Result{}, errors.Wrapf(err, "frame %s", path)
	}

	res, err := p.det.Process(detector.Frame{
		Contours: contours,
		Bounds:   image.Rect(0, 0, frame.Cols(), frame.Rows()),
		Camera:   cam,
		ToolSize: toolSize,
	})
	if err != nil {
		return detector.Result{}, err
	}

	if p.annotateDir != "" {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + "_annotated.png"
		if err := WriteAnnotated(filepath.Join(p.annotateDir, name), frame, res); err != nil {
			return res, err
		}
	}
	return res, nil
}
