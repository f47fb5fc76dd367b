package classify

import "github.com/pkg/errors"

// Band is an open interval (Min, Max). A zero-width or inverted band accepts nothing.
type Band struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether Min < v < Max.
func (b Band) Contains(v float64) bool {
	return v > b.Min && v < b.Max
}

// Thresholds holds the classifier's tunable constants.
// See DefaultThresholds for the values the panel detector was tuned with.
type Thresholds struct {
	// Area filter
	MinArea         float64 `json:"min_area"`          // px²; smaller contours are noise
	MaxAreaFraction float64 `json:"max_area_fraction"` // of frame area; larger contours are spurious

	// Wrench: long thin shape resembling the reference moment signature
	WrenchAspect      Band    `json:"wrench_aspect"`
	WrenchSimilarity1 Band    `json:"wrench_similarity1"`
	WrenchSimilarity2 float64 `json:"wrench_similarity2_min"`
	WrenchSimilarity3 float64 `json:"wrench_similarity3_min"`

	// Circle: near-square box, area close to its enclosing circle
	CircleMinApproxPoints int  `json:"circle_min_approx_points"` // exclusive
	CircleAspect          Band `json:"circle_aspect"`
	CircleEnclosingRatio  Band `json:"circle_enclosing_ratio"`
}

// DefaultThresholds returns the classifier thresholds the detector was tuned with.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinArea:         80,
		MaxAreaFraction: 0.1,

		WrenchAspect:      Band{Min: 0.1, Max: 0.3},
		WrenchSimilarity1: Band{Min: 10, Max: 18},
		WrenchSimilarity2: 0.8,
		WrenchSimilarity3: 0.9,

		CircleMinApproxPoints: 8,
		CircleAspect:          Band{Min: 0.8, Max: 1.2},
		CircleEnclosingRatio:  Band{Min: 1.0, Max: 1.3},
	}
}

// WithWrenchAspect returns a copy of the thresholds with a custom wrench aspect band.
func (t Thresholds) WithWrenchAspect(min, max float64) Thresholds {
	t.WrenchAspect = Band{Min: min, Max: max}
	return t
}

// WithAreaLimits returns a copy of the thresholds with custom area limits.
func (t Thresholds) WithAreaLimits(minArea, maxFraction float64) Thresholds {
	t.MinArea = minArea
	t.MaxAreaFraction = maxFraction
	return t
}

// Validate rejects thresholds that can never accept anything.
func (t Thresholds) Validate() error {
	if t.MinArea < 0 {
		return errors.Errorf("min_area must be non-negative, got %v", t.MinArea)
	}
	if t.MaxAreaFraction <= 0 || t.MaxAreaFraction > 1 {
		return errors.Errorf("max_area_fraction must be in (0, 1], got %v", t.MaxAreaFraction)
	}
	bands := map[string]Band{
		"wrench_aspect":          t.WrenchAspect,
		"wrench_similarity1":     t.WrenchSimilarity1,
		"circle_aspect":          t.CircleAspect,
		"circle_enclosing_ratio": t.CircleEnclosingRatio,
	}
	for name, b := range bands {
		if b.Min >= b.Max {
			return errors.Errorf("%s band is empty: (%v, %v)", name, b.Min, b.Max)
		}
	}
	return nil
}
