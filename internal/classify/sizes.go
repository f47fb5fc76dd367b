package classify

import (
	"math"

	"github.com/pkg/errors"
)

// ErrUnknownToolSize is returned when a requested label is not in the size table.
var ErrUnknownToolSize = errors.New("unknown tool size")

// DefaultToolSize is the size requested at startup.
const DefaultToolSize = "14mm"

// ToolSize is one entry of the size table: the expected raw bounding box of a
// wrench of that size as seen by the panel camera.
type ToolSize struct {
	Label  string  `json:"label"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// toolSizes is ordered; Label breaks ties in favor of the earlier entry.
var toolSizes = [...]ToolSize{
	{Label: "12mm", Width: 14, Height: 82},
	{Label: "13mm", Width: 15, Height: 86},
	{Label: "14mm", Width: 16, Height: 90},
	{Label: "15mm", Width: 17, Height: 94},
	{Label: "18mm", Width: 20, Height: 105},
	{Label: "19mm", Width: 22, Height: 109},
}

// ToolSizes returns a copy of the size table in order.
func ToolSizes() []ToolSize {
	out := make([]ToolSize, len(toolSizes))
	copy(out, toolSizes[:])
	return out
}

// LookupToolSize returns the table entry for label.
func LookupToolSize(label string) (ToolSize, error) {
	for _, ts := range toolSizes {
		if ts.Label == label {
			return ts, nil
		}
	}
	return ToolSize{}, errors.Wrapf(ErrUnknownToolSize, "%q", label)
}

// Label returns the label of the nearest tool size to (width, height) under
// Euclidean distance. Only a strictly smaller distance replaces the current
// best, so equidistant entries resolve to the one listed first.
func Label(width, height int) string {
	best := 0
	bestDist := math.Inf(1)
	for i, ts := range toolSizes {
		// squared distance keeps integer inputs exact
		dx := float64(width) - ts.Width
		dy := float64(height) - ts.Height
		d := dx*dx + dy*dy
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return toolSizes[best].Label
}
