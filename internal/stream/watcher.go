package stream

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/edaniels/golog"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

var frameExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
	".bmp":  true,
	".webp": true,
}

// IsFrameFile reports whether path has an image extension the decoder handles.
func IsFrameFile(path string) bool {
	return frameExtensions[strings.ToLower(filepath.Ext(path))]
}

// Watcher reports new frame files in a directory and changes to the camera
// info file.
type Watcher struct {
	frameDir   string
	cameraPath string
	logger     golog.Logger

	fsw      *fsnotify.Watcher
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once

	onFrame  func(path string)
	onCamera func(path string)
}

// NewWatcher creates a watcher on frameDir. cameraPath may be empty.
func NewWatcher(frameDir, cameraPath string, logger golog.Logger) *Watcher {
	return &Watcher{
		frameDir:   frameDir,
		cameraPath: cameraPath,
		logger:     logger,
	}
}

// OnFrame sets the callback for new or rewritten frame files. It is called
// from the watcher goroutine.
func (w *Watcher) OnFrame(callback func(path string)) {
	w.onFrame = callback
}

// OnCameraInfo sets the callback for camera info changes. It is called from
// the watcher goroutine.
func (w *Watcher) OnCameraInfo(callback func(path string)) {
	w.onCamera = callback
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	if err := fsw.Add(w.frameDir); err != nil {
		return multierr.Combine(errors.Wrapf(err, "failed to watch %s", w.frameDir), fsw.Close())
	}
	if w.cameraPath != "" {
		// watch the directory so that atomic replacements are seen
		dir := filepath.Dir(w.cameraPath)
		if filepath.Clean(dir) != filepath.Clean(w.frameDir) {
			if err := fsw.Add(dir); err != nil {
				return multierr.Combine(errors.Wrapf(err, "failed to watch %s", dir), fsw.Close())
			}
		}
	}

	w.fsw = fsw
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	go w.watchLoop()
	return nil
}

// Stop stops the watcher goroutine and releases the file watcher.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		if w.fsw == nil {
			return
		}
		close(w.stopCh)
		err = w.fsw.Close()
		<-w.doneCh
	})
	return err
}

func (w *Watcher) watchLoop() {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	if w.cameraPath != "" && filepath.Clean(ev.Name) == filepath.Clean(w.cameraPath) {
		if w.onCamera != nil {
			w.onCamera(ev.Name)
		}
		return
	}
	if filepath.Clean(filepath.Dir(ev.Name)) != filepath.Clean(w.frameDir) || !IsFrameFile(ev.Name) {
		return
	}
	if w.onFrame != nil {
		w.onFrame(ev.Name)
	}
}
