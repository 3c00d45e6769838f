package main

import (
	"io"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "detconv",
		Short: "Convert object detection annotations between dataset formats",
		Long: `detconv converts object detection datasets between COCO, PascalVOC, YOLO and
TFRecord (TensorFlow object detection API) annotations.

Every conversion reads the source into a format independent dataset and writes the target
from it, so any source format can be converted to any target format.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			setupLogging(cmd.ErrOrStderr(), verbose)
		},
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	cmd.AddCommand(newConvertCmd())
	cmd.AddCommand(newInfoCmd())

	return cmd
}

// setupLogging installs a text logger writing to w.
func setupLogging(w io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel})))
}
