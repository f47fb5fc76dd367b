// Command paneldetect locates the wrench panel in camera frames and reports
// its regions and camera-frame position as JSON lines.
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"panel-locator/internal/classify"
	"panel-locator/internal/config"
	"panel-locator/internal/detector"
	"panel-locator/internal/pose"
	"panel-locator/internal/stream"
	"panel-locator/internal/version"
	"panel-locator/internal/vision"
)

const (
	flagConfig      = "config"
	flagDebug       = "debug"
	flagQuiet       = "quiet"
	flagToolSize    = "tool-size"
	flagReference   = "reference"
	flagCameraInfo  = "camera-info"
	flagAnnotateDir = "annotate-dir"
	flagOutput      = "output"
	flagDisabled    = "start-disabled"
)

func main() {
	var logger golog.Logger

	app := &cli.App{
		Name:  "paneldetect",
		Usage: "locate the wrench panel and the requested tool in camera frames",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
			&cli.BoolFlag{
				Name:    flagQuiet,
				Aliases: []string{"q"},
				Usage:   "disable logging",
			},
			&cli.StringFlag{
				Name:    flagToolSize,
				Aliases: []string{"t"},
				Usage:   "requested tool size `LABEL` (e.g. 14mm)",
			},
			&cli.StringFlag{
				Name:  flagReference,
				Usage: "wrench template image `FILE`",
			},
			&cli.StringFlag{
				Name:  flagCameraInfo,
				Usage: "camera info JSON `FILE` with width, height and K",
			},
			&cli.StringFlag{
				Name:  flagAnnotateDir,
				Usage: "write annotated frames to `DIR`",
			},
			&cli.StringFlag{
				Name:    flagOutput,
				Aliases: []string{"o"},
				Usage:   "write events to `FILE` instead of stdout",
			},
		},
		Before: func(c *cli.Context) error {
			switch {
			case c.Bool(flagQuiet):
				logger = zap.NewNop().Sugar()
			case c.Bool(flagDebug):
				logger = golog.NewDebugLogger("paneldetect")
			default:
				logger = golog.NewDevelopmentLogger("paneldetect")
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "detect",
				Usage:     "process image files once",
				ArgsUsage: "IMAGE...",
				Action: func(c *cli.Context) error {
					return detectAction(c, logger)
				},
			},
			{
				Name:      "watch",
				Usage:     "process new frames written to a directory; SIGUSR1 enables, SIGUSR2 disables",
				ArgsUsage: "[DIR]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  flagDisabled,
						Usage: "wait for SIGUSR1 before processing frames",
					},
				},
				Action: func(c *cli.Context) error {
					return watchAction(c, logger)
				},
			},
			{
				Name:  "sizes",
				Usage: "list the known tool sizes",
				Action: func(c *cli.Context) error {
					for _, ts := range classify.ToolSizes() {
						fmt.Fprintf(c.App.Writer, "%-5s  width %3.0f px  height %3.0f px\n", ts.Label, ts.Width, ts.Height)
					}
					return nil
				},
			},
			{
				Name:  "version",
				Usage: "print version information",
				Action: func(c *cli.Context) error {
					fmt.Fprintln(c.App.Writer, version.String())
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Read(path); err != nil {
			return nil, err
		}
	}
	if v := c.String(flagToolSize); v != "" {
		cfg.ToolSize = v
	}
	if v := c.String(flagReference); v != "" {
		cfg.ReferencePath = v
	}
	if v := c.String(flagCameraInfo); v != "" {
		cfg.CameraInfoPath = v
	}
	if v := c.String(flagAnnotateDir); v != "" {
		cfg.AnnotateDir = v
	}
	if v := c.String(flagOutput); v != "" {
		cfg.OutputPath = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildPipeline loads the reference template and wires the detector.
func buildPipeline(cfg *config.Config, logger golog.Logger) (*vision.Pipeline, *vision.Reference, error) {
	ref, err := vision.LoadReference(cfg.ReferencePath)
	if err != nil {
		return nil, nil, err
	}
	det, err := detector.New(vision.NewExtractor(ref), cfg.Detector(), logger)
	if err != nil {
		return nil, nil, multiClose(err, ref)
	}
	if cfg.AnnotateDir != "" {
		if err := os.MkdirAll(cfg.AnnotateDir, 0o750); err != nil {
			return nil, nil, multiClose(errors.Wrap(err, "failed to create annotate dir"), ref)
		}
	}
	return vision.NewPipeline(det, cfg.Preprocess, cfg.AnnotateDir), ref, nil
}

func multiClose(err error, c io.Closer) error {
	return multierr.Combine(err, c.Close())
}

func openOutput(cfg *config.Config, c *cli.Context) (io.Writer, error) {
	if cfg.OutputPath == "" {
		return c.App.Writer, nil
	}
	//nolint:gosec
	f, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open output")
	}
	return f, nil
}

func loadCamera(cfg *config.Config, logger golog.Logger) *pose.CameraModel {
	if cfg.CameraInfoPath == "" {
		logger.Warn("no camera info given; poses will not be estimated")
		return nil
	}
	cam, err := pose.LoadCameraInfo(cfg.CameraInfoPath)
	if err != nil {
		logger.Warnw("failed to load camera info; poses will not be estimated", "error", err)
		return nil
	}
	return &cam
}

func detectAction(c *cli.Context, logger golog.Logger) error {
	if c.NArg() == 0 {
		return errors.New("detect requires at least one image")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	pipeline, ref, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}
	out, err := openOutput(cfg, c)
	if err != nil {
		return multiClose(err, ref)
	}
	pub := stream.NewPublisher(out)
	node := stream.NewNode(pipeline, pub, logger, ref)
	defer func() {
		if err := node.Close(); err != nil {
			logger.Warnw("error closing", "error", err)
		}
	}()
	if cam := loadCamera(cfg, logger); cam != nil {
		node.SetCamera(*cam)
	}
	if err := node.SetToolSize(cfg.ToolSize); err != nil {
		return err
	}
	node.Enable()

	var failed int
	for _, path := range c.Args().Slice() {
		if err := node.HandleFrame(path); err != nil {
			logger.Errorw("skipping frame", "frame", path, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return errors.Errorf("%d of %d frames failed", failed, c.NArg())
	}
	return nil
}

func watchAction(c *cli.Context, logger golog.Logger) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.NArg() > 0 {
		cfg.WatchDir = c.Args().First()
	}
	if cfg.WatchDir == "" {
		return errors.New("watch requires a directory argument or watch_dir in the config")
	}

	pipeline, ref, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}
	out, err := openOutput(cfg, c)
	if err != nil {
		return multiClose(err, ref)
	}
	node := stream.NewNode(pipeline, stream.NewPublisher(out), logger, ref)
	defer func() {
		if err := node.Close(); err != nil {
			logger.Warnw("error closing", "error", err)
		}
	}()
	if cam := loadCamera(cfg, logger); cam != nil {
		node.SetCamera(*cam)
	}
	if err := node.SetToolSize(cfg.ToolSize); err != nil {
		return err
	}

	watcher := stream.NewWatcher(cfg.WatchDir, cfg.CameraInfoPath, logger)
	node.Watch(watcher)
	if err := watcher.Start(); err != nil {
		return err
	}
	defer func() {
		if err := watcher.Stop(); err != nil {
			logger.Warnw("error stopping watcher", "error", err)
		}
	}()

	if !c.Bool(flagDisabled) {
		node.Enable()
	}

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	toggles := make(chan os.Signal, 1)
	signal.Notify(toggles, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(toggles)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-toggles:
				if sig == syscall.SIGUSR1 {
					node.Enable()
				} else {
					node.Disable()
				}
			}
		}
	}()

	logger.Infow("watching for frames", "dir", cfg.WatchDir, "tool_size", node.ToolSize())
	err = node.Run(ctx)
	logger.Infow("stopped", "processed", node.Processed(), "dropped", node.Dropped())
	return err
}
