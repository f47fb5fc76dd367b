package stream

import (
	"context"
	"io"
	"path/filepath"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"panel-locator/internal/classify"
	"panel-locator/internal/detector"
	"panel-locator/internal/pose"
)

// Analyzer runs the detector on one frame file.
type Analyzer interface {
	Analyze(path, toolSize string, cam *pose.CameraModel) (detector.Result, error)
}

// Node processes the latest frame whenever it is enabled and publishes
// the detected regions.
type Node struct {
	analyzer  Analyzer
	publisher *Publisher
	logger    golog.Logger

	gate     Gate
	frames   *Latest
	toolSize atomic.String

	camMu  sync.Mutex
	camera *pose.CameraModel

	processed atomic.Uint64
	closers   []io.Closer
}

// NewNode creates a disabled node requesting the default tool size.
func NewNode(analyzer Analyzer, publisher *Publisher, logger golog.Logger, closers ...io.Closer) *Node {
	n := &Node{
		analyzer:  analyzer,
		publisher: publisher,
		logger:    logger,
		frames:    NewLatest(),
		closers:   closers,
	}
	n.toolSize.Store(classify.DefaultToolSize)
	return n
}

// Enable starts processing frames.
func (n *Node) Enable() {
	n.gate.Enable()
	n.logger.Info("node enabled")
}

// Disable stops processing frames. Frames offered while disabled are discarded.
func (n *Node) Disable() {
	n.gate.Disable()
	n.logger.Info("node disabled")
}

// Enabled reports whether the node is processing frames.
func (n *Node) Enabled() bool {
	return n.gate.Enabled()
}

// SetToolSize changes the requested tool label.
func (n *Node) SetToolSize(label string) error {
	if _, err := classify.LookupToolSize(label); err != nil {
		return err
	}
	n.toolSize.Store(label)
	return nil
}

// ToolSize returns the requested tool label.
func (n *Node) ToolSize() string {
	return n.toolSize.Load()
}

// SetCamera replaces the cached intrinsics.
func (n *Node) SetCamera(cam pose.CameraModel) {
	n.camMu.Lock()
	defer n.camMu.Unlock()
	n.camera = &cam
}

// Camera returns a copy of the cached intrinsics, or nil if none were received.
func (n *Node) Camera() *pose.CameraModel {
	n.camMu.Lock()
	defer n.camMu.Unlock()
	if n.camera == nil {
		return nil
	}
	cam := *n.camera
	return &cam
}

// LoadCamera reads a camera info file into the cache. A bad file keeps the
// previous intrinsics.
func (n *Node) LoadCamera(path string) error {
	cam, err := pose.LoadCameraInfo(path)
	if err != nil {
		return err
	}
	n.SetCamera(cam)
	n.logger.Debugw("camera intrinsics updated", "path", path, "fx", cam.Fx, "fy", cam.Fy)
	return nil
}

// Offer queues a frame, replacing any frame not yet processed.
func (n *Node) Offer(path string) {
	if !n.gate.Enabled() {
		return
	}
	n.frames.Put(path)
}

// Dropped returns how many frames were replaced before processing.
func (n *Node) Dropped() uint64 {
	return n.frames.Dropped()
}

// Processed returns how many frames were analyzed.
func (n *Node) Processed() uint64 {
	return n.processed.Load()
}

// Run processes queued frames until ctx is done.
func (n *Node) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-n.frames.Ready():
			path, ok := n.frames.Take()
			if !ok {
				continue
			}
			if err := n.HandleFrame(path); err != nil {
				// malformed frames are skipped
				n.logger.Warnw("skipping frame", "frame", path, "error", err)
			}
		}
	}
}

// HandleFrame analyzes one frame and publishes its results. It does nothing
// while the node is disabled.
func (n *Node) HandleFrame(path string) error {
	if !n.gate.Enabled() {
		return nil
	}
	res, err := n.analyzer.Analyze(path, n.ToolSize(), n.Camera())
	if err != nil {
		return err
	}
	n.processed.Inc()
	return n.publisher.PublishResult(filepath.Base(path), res)
}

// Watch wires a watcher to the node.
func (n *Node) Watch(w *Watcher) {
	w.OnFrame(n.Offer)
	w.OnCameraInfo(func(path string) {
		if err := n.LoadCamera(path); err != nil {
			n.logger.Warnw("ignoring camera info", "path", path, "error", err)
		}
	})
}

// Close releases the publisher and any resources handed to NewNode.
func (n *Node) Close() error {
	var err error
	for _, c := range n.closers {
		err = multierr.Combine(err, c.Close())
	}
	return multierr.Combine(err, errors.Wrap(n.publisher.Close(), "publisher"))
}
