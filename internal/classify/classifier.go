// Package classify tags contours as wrench or circle candidates and labels
// wrench candidates with the nearest known tool size.
package classify

import (
	"strings"

	"panel-locator/internal/shape"
)

// Tag is the set of candidate categories a contour belongs to.
type Tag uint8

const (
	// TagIgnore marks a contour that matches no category or failed the area filter.
	TagIgnore Tag = 0
	// TagWrench marks a wrench candidate.
	TagWrench Tag = 1
	// TagCircle marks a circle (valve) candidate.
	TagCircle Tag = 2
	// TagBoth marks a contour that satisfies both predicates.
	TagBoth = TagWrench | TagCircle
)

// IsWrench reports whether the wrench bit is set.
func (t Tag) IsWrench() bool { return t&TagWrench != 0 }

// IsCircle reports whether the circle bit is set.
func (t Tag) IsCircle() bool { return t&TagCircle != 0 }

func (t Tag) String() string {
	if t == TagIgnore {
		return "ignore"
	}
	var parts []string
	if t.IsWrench() {
		parts = append(parts, "wrench")
	}
	if t.IsCircle() {
		parts = append(parts, "circle")
	}
	return strings.Join(parts, "+")
}

// Classifier applies Thresholds to shape descriptors. It holds no state
// beyond its thresholds and is safe for concurrent use.
type Classifier struct {
	th Thresholds
}

// NewClassifier creates a classifier with the given thresholds.
func NewClassifier(th Thresholds) *Classifier {
	return &Classifier{th: th}
}

// Thresholds returns the thresholds in use.
func (c *Classifier) Thresholds() Thresholds {
	return c.th
}

// Classify tags a contour from its descriptor. frameArea is the width × height
// of the source image.
func (c *Classifier) Classify(d shape.Descriptor, frameArea float64) Tag {
	if !c.passesAreaFilter(d.Area, frameArea) {
		return TagIgnore
	}

	tag := TagIgnore
	if c.isWrench(d) {
		tag |= TagWrench
	}
	if c.isCircle(d) {
		tag |= TagCircle
	}
	return tag
}

func (c *Classifier) passesAreaFilter(area, frameArea float64) bool {
	return area >= c.th.MinArea && area <= c.th.MaxAreaFraction*frameArea
}

func (c *Classifier) isWrench(d shape.Descriptor) bool {
	keepRatio := c.th.WrenchAspect.Contains(d.AspectRatio)
	keepSimilarity := c.th.WrenchSimilarity1.Contains(d.Similarity[0]) &&
		d.Similarity[1] > c.th.WrenchSimilarity2 &&
		d.Similarity[2] > c.th.WrenchSimilarity3
	return keepRatio && keepSimilarity
}

func (c *Classifier) isCircle(d shape.Descriptor) bool {
	return d.ApproxPoints > c.th.CircleMinApproxPoints &&
		c.th.CircleAspect.Contains(d.AspectRatio) &&
		c.th.CircleEnclosingRatio.Contains(d.EnclosingRatio)
}
