package stream

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"panel-locator/internal/detector"
	"panel-locator/pkg/geometry"
)

// Topics published for every frame.
const (
	TopicWrenches = "wrenches_bb"
	TopicValve    = "valve_bb"
	TopicPanel    = "panel_bb"
	TopicTool     = "tool_bb"
	TopicPose     = "panel_pose"
)

// Point is a camera-frame position in meters.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Event is one published message.
type Event struct {
	Topic  string            `json:"topic"`
	Seq    uint64            `json:"seq"`
	Stamp  time.Time         `json:"stamp"`
	Frame  string            `json:"frame"`
	Region *geometry.RectInt `json:"region,omitempty"`
	Point  *Point            `json:"point,omitempty"`
}

// Publisher writes events as JSON lines. It is safe for concurrent use.
type Publisher struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
	seq atomic.Uint64
	now func() time.Time
}

// NewPublisher creates a publisher writing to w.
func NewPublisher(w io.Writer) *Publisher {
	return &Publisher{w: w, enc: json.NewEncoder(w), now: time.Now}
}

// Publish writes one event, assigning its sequence number and stamp.
func (p *Publisher) Publish(ev Event) error {
	ev.Seq = p.seq.Inc()
	ev.Stamp = p.now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enc.Encode(ev); err != nil {
		return errors.Wrapf(err, "failed to publish %s", ev.Topic)
	}
	return nil
}

// PublishResult publishes every region present in res, then the pose.
func (p *Publisher) PublishResult(frame string, res detector.Result) error {
	regions := []struct {
		topic  string
		region *geometry.RectInt
	}{
		{TopicWrenches, res.Wrenches},
		{TopicValve, res.Valve},
		{TopicPanel, res.Panel},
		{TopicTool, res.Tool},
	}
	for _, r := range regions {
		if r.region == nil {
			continue
		}
		if err := p.Publish(Event{Topic: r.topic, Frame: frame, Region: r.region}); err != nil {
			return err
		}
	}
	if res.Pose != nil {
		pos := res.Pose.Position
		return p.Publish(Event{Topic: TopicPose, Frame: frame, Point: &Point{X: pos.X, Y: pos.Y, Z: pos.Z}})
	}
	return nil
}

// Close closes the underlying writer if it is an io.Closer.
func (p *Publisher) Close() error {
	if c, ok := p.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
