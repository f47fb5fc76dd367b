// Package detector runs the per-frame panel pipeline: describe every contour,
// classify it, aggregate the candidates and, when the panel is found,
// estimate its pose.
package detector

import (
	"image"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"panel-locator/internal/classify"
	"panel-locator/internal/panel"
	"panel-locator/internal/pose"
	"panel-locator/internal/shape"
)

// Extractor computes the shape descriptor of one contour.
type Extractor interface {
	Describe(c shape.Contour) (shape.Descriptor, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(c shape.Contour) (shape.Descriptor, error)

// Describe calls f(c).
func (f ExtractorFunc) Describe(c shape.Contour) (shape.Descriptor, error) {
	return f(c)
}

// Config holds the detector's tunables.
type Config struct {
	Thresholds  classify.Thresholds
	Aggregation panel.Params
	PanelHeight float64 // meters
}

// DefaultConfig returns the default detector settings.
func DefaultConfig() Config {
	return Config{
		Thresholds:  classify.DefaultThresholds(),
		Aggregation: panel.DefaultParams(),
		PanelHeight: pose.DefaultPanelHeight,
	}
}

// Frame is the input for one image.
type Frame struct {
	// Contours in left-to-right order; the last matching tool wins.
	Contours []shape.Contour
	Bounds   image.Rectangle

	// Camera is nil until intrinsics have been received.
	Camera *pose.CameraModel

	// ToolSize is the requested tool label; empty disables the tool search.
	ToolSize string
}

// Result is the output for one image.
type Result struct {
	panel.Result

	// Pose is set only when the panel was found and intrinsics were available.
	Pose *pose.Pose `json:"pose,omitempty"`

	Candidates []panel.Candidate `json:"-"`
}

// Detector is safe for concurrent use; it holds no per-frame state.
type Detector struct {
	extractor  Extractor
	classifier *classify.Classifier
	params     panel.Params
	estimator  *pose.Estimator
	logger     golog.Logger
}

// New creates a detector.
func New(extractor Extractor, cfg Config, logger golog.Logger) (*Detector, error) {
	if extractor == nil {
		return nil, errors.New("detector requires an extractor")
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid classifier thresholds")
	}
	est, err := pose.NewEstimator(cfg.PanelHeight)
	if err != nil {
		return nil, err
	}
	return &Detector{
		extractor:  extractor,
		classifier: classify.NewClassifier(cfg.Thresholds),
		params:     cfg.Aggregation,
		estimator:  est,
		logger:     logger,
	}, nil
}

// Classify describes and tags every contour of the frame.
func (d *Detector) Classify(contours []shape.Contour, bounds image.Rectangle) []panel.Candidate {
	frameArea := float64(bounds.Dx() * bounds.Dy())
	candidates := make([]panel.Candidate, 0, len(contours))
	for i, c := range contours {
		desc, err := d.extractor.Describe(c)
		if err != nil {
			d.logger.Debugw("skipping contour", "index", i, "error", err)
			continue
		}
		cand := panel.Candidate{
			Contour:    c,
			Descriptor: desc,
			Tag:        d.classifier.Classify(desc, frameArea),
		}
		if cand.Tag.IsWrench() {
			cand.SizeLabel = classify.Label(desc.Bounds.Width, desc.Bounds.Height)
		}
		if cand.Tag != classify.TagIgnore {
			d.logger.Debugw("candidate",
				"index", i,
				"tag", cand.Tag.String(),
				"area", desc.Area,
				"aspect", desc.AspectRatio,
				"similarity", desc.Similarity,
				"size", cand.SizeLabel)
		}
		candidates = append(candidates, cand)
	}
	return candidates
}

// Process runs the full pipeline on one frame.
func (d *Detector) Process(frame Frame) (Result, error) {
	if frame.Bounds.Empty() {
		return Result{}, errors.New("frame has empty bounds")
	}

	candidates := d.Classify(frame.Contours, frame.Bounds)
	res := Result{
		Result: panel.Aggregate(panel.Frame{
			Candidates:    candidates,
			Bounds:        frame.Bounds,
			RequestedSize: frame.ToolSize,
		}, d.params),
		Candidates: candidates,
	}

	if !res.PanelFound {
		return res, nil
	}

	if frame.Camera == nil {
		d.logger.Debug("panel found before camera intrinsics were received")
		return res, nil
	}
	p, err := d.estimator.Estimate(*res.Panel, *frame.Camera)
	if err != nil {
		d.logger.Debugw("pose estimation failed", "error", err)
		return res, nil
	}
	res.Pose = &p
	d.logger.Infow("found panel",
		"x", p.Position.X,
		"y", p.Position.Y,
		"z", p.Position.Z,
		"wrenches", res.WrenchCount)
	return res, nil
}
