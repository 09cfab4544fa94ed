// Package cli contains the gmmreg command line: fitting mixtures to point clouds and aligning
// two mixtures.
package cli

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"go.viam.com/gmmreg/gmm"
	"go.viam.com/gmmreg/logging"
)

const (
	// Flags.
	debugFlag   = "debug"
	logFileFlag = "log-file"

	fitFlagCloud       = "cloud"
	fitFlagComponents  = "components"
	fitFlagMinVariance = "min-variance"
	fitFlagOut         = "out"

	alignFlagSource       = "source"
	alignFlagTarget       = "target"
	alignFlagConfig       = "config"
	alignFlagTimeBudget   = "time-budget"
	alignFlagWorkers      = "workers"
	alignFlagSkipRotation = "skip-rotation"
	alignFlagTrace        = "trace"
	alignFlagOut          = "out"
)

var (
	// logFile is the rotating log output of the running command, if any.
	logFile *lumberjack.Logger
	// globalLevel is the global log level before --debug raised it.
	globalLevel = zap.InfoLevel
)

var app = &cli.App{
	Name:            "gmmreg",
	Usage:           "globally optimal alignment of gaussian mixtures",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    debugFlag,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.PathFlag{
			Name:  logFileFlag,
			Usage: "also write logs to `FILE`, rotated at 100MB",
		},
	},
	Before: func(c *cli.Context) error {
		globalLevel = logging.GlobalLogLevel.Level()
		if c.Bool(debugFlag) {
			logging.GlobalLogLevel.SetLevel(zap.DebugLevel)
		}
		logging.ReplaceGlobal(newLogger(c))
		return nil
	},
	After: func(c *cli.Context) error {
		logging.GlobalLogLevel.SetLevel(globalLevel)
		err := logging.Global().Sync()
		if logFile != nil {
			err = multierr.Combine(err, logFile.Close())
			logFile = nil
		}
		return err
	},
	Commands: []*cli.Command{
		{
			Name:      "fit",
			Usage:     "fit a gaussian mixture to a point cloud",
			UsageText: "gmmreg fit --cloud <cloud.pcd> --out <model.json> [--components <k>]",
			Flags: []cli.Flag{
				&cli.PathFlag{
					Name:     fitFlagCloud,
					Usage:    "point cloud `FILE` to fit, .pcd or .las",
					Required: true,
				},
				&cli.IntFlag{
					Name:  fitFlagComponents,
					Usage: "number of mixture components",
					Value: gmm.DefaultFitConfig().Components,
				},
				&cli.Float64Flag{
					Name:  fitFlagMinVariance,
					Usage: "variance added to every covariance diagonal",
					Value: gmm.DefaultFitConfig().MinVariance,
				},
				&cli.PathFlag{
					Name:     fitFlagOut,
					Usage:    "write the model JSON to `FILE`",
					Required: true,
				},
			},
			Action: FitAction,
		},
		{
			Name:      "align",
			Usage:     "find the rigid transform taking the source mixture onto the target",
			UsageText: "gmmreg align --source <a.json> --target <b.json> [--config <cfg.json>]",
			Flags: []cli.Flag{
				&cli.PathFlag{
					Name:     alignFlagSource,
					Usage:    "source model `FILE`",
					Required: true,
				},
				&cli.PathFlag{
					Name:     alignFlagTarget,
					Usage:    "target model `FILE`",
					Required: true,
				},
				&cli.PathFlag{
					Name:    alignFlagConfig,
					Aliases: []string{"c"},
					Usage:   "load registration settings from `FILE`",
				},
				&cli.DurationFlag{
					Name:  alignFlagTimeBudget,
					Usage: "wall clock budget for each search stage, overrides the config",
				},
				&cli.IntFlag{
					Name:  alignFlagWorkers,
					Usage: "bound evaluation workers, overrides the config",
				},
				&cli.BoolFlag{
					Name:  alignFlagSkipRotation,
					Usage: "only search translations",
				},
				&cli.BoolFlag{
					Name:  alignFlagTrace,
					Usage: "log every search iteration",
				},
				&cli.PathFlag{
					Name:  alignFlagOut,
					Usage: "write the aligned source model to `FILE`",
				},
			},
			Action: AlignAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

func infof(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, "Info: "+format+"\n", a...)
}

func warningf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, "Warning: "+format+"\n", a...)
}

// newLogger returns a logger writing to the app's error writer and, with --log-file, to a rotating
// file. Info+ unless --debug is set.
func newLogger(c *cli.Context) logging.Logger {
	logger := logging.NewBlankLogger("gmmreg")
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	if path := c.Path(logFileFlag); path != "" {
		logFile = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100,
			MaxBackups: 2,
			Compress:   true,
		}
		logger.AddAppender(logging.NewWriterAppender(logFile))
	}
	if !c.Bool(debugFlag) {
		logger.SetLevel(logging.INFO)
	}
	return logger
}
