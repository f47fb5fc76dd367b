package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"panel-locator/internal/classify"
	"panel-locator/internal/detector"
	"panel-locator/internal/pose"
	"panel-locator/pkg/geometry"
)

type call struct {
	path     string
	toolSize string
	camera   *pose.CameraModel
}

type fakeAnalyzer struct {
	mu     sync.Mutex
	calls  []call
	result detector.Result
	err    error
	seen   chan string
}

func (f *fakeAnalyzer) Analyze(path, toolSize string, cam *pose.CameraModel) (detector.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{path, toolSize, cam})
	f.mu.Unlock()
	if f.seen != nil {
		f.seen <- path
	}
	return f.result, f.err
}

func (f *fakeAnalyzer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func decodeEvents(t *testing.T, buf *bytes.Buffer) []Event {
	t.Helper()
	var out []Event
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var ev Event
		test.That(t, json.Unmarshal(sc.Bytes(), &ev), test.ShouldBeNil)
		out = append(out, ev)
	}
	return out
}

func fullResult() detector.Result {
	w := geometry.NewRectInt(300, 100, 172, 109)
	v := geometry.NewRectInt(360, 230, 61, 61)
	p := geometry.NewRectInt(300, 100, 172, 191)
	tool := geometry.NewRectInt(360, 100, 16, 90)
	var res detector.Result
	res.Wrenches, res.Valve, res.Panel, res.Tool = &w, &v, &p, &tool
	res.PanelFound, res.ToolIdentified = true, true
	res.Pose = &pose.Pose{Position: r3.Vector{X: -0.1, Y: 0.02, Z: 1.7}}
	return res
}

func TestLatestKeepsOnlyNewest(t *testing.T) {
	l := NewLatest()
	_, ok := l.Take()
	test.That(t, ok, test.ShouldBeFalse)

	l.Put("a")
	l.Put("b")
	l.Put("c")
	v, ok := l.Take()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v, test.ShouldEqual, "c")
	test.That(t, l.Dropped(), test.ShouldEqual, uint64(2))

	_, ok = l.Take()
	test.That(t, ok, test.ShouldBeFalse)

	select {
	case <-l.Ready():
	default:
		t.Fatal("expected ready signal")
	}
}

func TestGate(t *testing.T) {
	var g Gate
	test.That(t, g.Enabled(), test.ShouldBeFalse)
	g.Enable()
	test.That(t, g.Enabled(), test.ShouldBeTrue)
	g.Disable()
	test.That(t, g.Enabled(), test.ShouldBeFalse)
}

func TestPublishResultTopics(t *testing.T) {
	var buf bytes.Buffer
	pub := NewPublisher(&buf)
	test.That(t, pub.PublishResult("frame0001.png", fullResult()), test.ShouldBeNil)

	events := decodeEvents(t, &buf)
	test.That(t, events, test.ShouldHaveLength, 5)
	topics := make([]string, 0, len(events))
	for i, ev := range events {
		topics = append(topics, ev.Topic)
		test.That(t, ev.Seq, test.ShouldEqual, uint64(i+1))
		test.That(t, ev.Frame, test.ShouldEqual, "frame0001.png")
	}
	test.That(t, topics, test.ShouldResemble, []string{TopicWrenches, TopicValve, TopicPanel, TopicTool, TopicPose})
	test.That(t, *events[2].Region, test.ShouldResemble, geometry.NewRectInt(300, 100, 172, 191))
	test.That(t, *events[4].Point, test.ShouldResemble, Point{X: -0.1, Y: 0.02, Z: 1.7})
}

func TestPublishResultEmpty(t *testing.T) {
	var buf bytes.Buffer
	pub := NewPublisher(&buf)
	test.That(t, pub.PublishResult("f.png", detector.Result{}), test.ShouldBeNil)
	test.That(t, buf.Len(), test.ShouldEqual, 0)
}

func TestNodeHonorsGate(t *testing.T) {
	var buf bytes.Buffer
	fa := &fakeAnalyzer{result: fullResult()}
	n := NewNode(fa, NewPublisher(&buf), golog.NewTestLogger(t))

	test.That(t, n.HandleFrame("/frames/a.png"), test.ShouldBeNil)
	test.That(t, fa.callCount(), test.ShouldEqual, 0)

	n.Offer("/frames/a.png")
	_, ok := n.frames.Take()
	test.That(t, ok, test.ShouldBeFalse)

	n.Enable()
	test.That(t, n.HandleFrame("/frames/a.png"), test.ShouldBeNil)
	test.That(t, fa.callCount(), test.ShouldEqual, 1)
	test.That(t, n.Processed(), test.ShouldEqual, uint64(1))
	test.That(t, decodeEvents(t, &buf), test.ShouldHaveLength, 5)
}

func TestNodePassesToolSizeAndCamera(t *testing.T) {
	var buf bytes.Buffer
	fa := &fakeAnalyzer{}
	n := NewNode(fa, NewPublisher(&buf), golog.NewTestLogger(t))
	n.Enable()

	test.That(t, n.ToolSize(), test.ShouldEqual, classify.DefaultToolSize)
	test.That(t, n.HandleFrame("a.png"), test.ShouldBeNil)
	test.That(t, fa.calls[0].toolSize, test.ShouldEqual, "14mm")
	test.That(t, fa.calls[0].camera, test.ShouldBeNil)

	err := n.SetToolSize("11mm")
	test.That(t, errors.Is(err, classify.ErrUnknownToolSize), test.ShouldBeTrue)
	test.That(t, n.SetToolSize("19mm"), test.ShouldBeNil)

	cam := pose.CameraModel{Width: 960, Height: 540, Fx: 1081, Fy: 1081, U0: 269.5, V0: 479.5}
	n.SetCamera(cam)
	test.That(t, n.HandleFrame("b.png"), test.ShouldBeNil)
	test.That(t, fa.calls[1].toolSize, test.ShouldEqual, "19mm")
	test.That(t, *fa.calls[1].camera, test.ShouldResemble, cam)
}

func TestNodeAnalyzerError(t *testing.T) {
	var buf bytes.Buffer
	fa := &fakeAnalyzer{err: errors.New("bad frame")}
	n := NewNode(fa, NewPublisher(&buf), golog.NewTestLogger(t))
	n.Enable()
	test.That(t, n.HandleFrame("a.png"), test.ShouldNotBeNil)
	test.That(t, n.Processed(), test.ShouldEqual, uint64(0))
	test.That(t, buf.Len(), test.ShouldEqual, 0)
}

func TestNodeLoadCameraKeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "camera_info.json")
	test.That(t, os.WriteFile(good, []byte(`{"width": 640, "height": 480, "K": [500, 0, 320, 0, 500, 240, 0, 0, 1]}`), 0o600),
		test.ShouldBeNil)

	n := NewNode(&fakeAnalyzer{}, NewPublisher(&bytes.Buffer{}), golog.NewTestLogger(t))
	test.That(t, n.Camera(), test.ShouldBeNil)
	test.That(t, n.LoadCamera(good), test.ShouldBeNil)
	test.That(t, n.Camera().U0, test.ShouldEqual, 240.0)

	test.That(t, n.LoadCamera(filepath.Join(dir, "missing.json")), test.ShouldNotBeNil)
	test.That(t, n.Camera(), test.ShouldNotBeNil)
}

func TestNodeRunProcessesOfferedFrames(t *testing.T) {
	var buf bytes.Buffer
	fa := &fakeAnalyzer{seen: make(chan string, 4)}
	n := NewNode(fa, NewPublisher(&buf), golog.NewTestLogger(t))
	n.Enable()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	n.Offer("/frames/one.png")
	select {
	case p := <-fa.seen:
		test.That(t, p, test.ShouldEqual, "/frames/one.png")
	case <-time.After(5 * time.Second):
		t.Fatal("frame was not processed")
	}

	cancel()
	test.That(t, <-done, test.ShouldBeNil)
}

func TestIsFrameFile(t *testing.T) {
	test.That(t, IsFrameFile("a.PNG"), test.ShouldBeTrue)
	test.That(t, IsFrameFile("/x/b.tiff"), test.ShouldBeTrue)
	test.That(t, IsFrameFile("c.json"), test.ShouldBeFalse)
	test.That(t, IsFrameFile("noext"), test.ShouldBeFalse)
}

func TestWatcherReportsFramesAndCamera(t *testing.T) {
	dir := t.TempDir()
	camPath := filepath.Join(dir, "camera_info.json")

	w := NewWatcher(dir, camPath, golog.NewTestLogger(t))
	frames := make(chan string, 8)
	cams := make(chan string, 8)
	w.OnFrame(func(p string) { frames <- p })
	w.OnCameraInfo(func(p string) { cams <- p })
	test.That(t, w.Start(), test.ShouldBeNil)
	defer func() {
		test.That(t, w.Stop(), test.ShouldBeNil)
	}()

	test.That(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600), test.ShouldBeNil)
	framePath := filepath.Join(dir, "frame0001.png")
	test.That(t, os.WriteFile(framePath, []byte("x"), 0o600), test.ShouldBeNil)
	test.That(t, os.WriteFile(camPath, []byte("{}"), 0o600), test.ShouldBeNil)

	select {
	case p := <-frames:
		test.That(t, p, test.ShouldEqual, framePath)
	case <-time.After(5 * time.Second):
		t.Fatal("no frame event")
	}
	select {
	case p := <-cams:
		test.That(t, p, test.ShouldEqual, camPath)
	case <-time.After(5 * time.Second):
		t.Fatal("no camera event")
	}
}

func TestWatcherMissingDir(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "nope"), "", golog.NewTestLogger(t))
	test.That(t, w.Start(), test.ShouldNotBeNil)
	test.That(t, w.Stop(), test.ShouldBeNil)
}

type closeRecorder struct{ closed bool }

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestNodeClose(t *testing.T) {
	rec := &closeRecorder{}
	n := NewNode(&fakeAnalyzer{}, NewPublisher(&bytes.Buffer{}), golog.NewTestLogger(t), rec)
	test.That(t, n.Close(), test.ShouldBeNil)
	test.That(t, rec.closed, test.ShouldBeTrue)
}
