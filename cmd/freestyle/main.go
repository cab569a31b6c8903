package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/gogpu/gg"
	"github.com/spf13/cobra"
)

const HelpBanner = `
┌─┐┬─┐┌─┐┌─┐┌─┐┌┬┐┬ ┬┬  ┌─┐
├┤ ├┬┘├┤ ├┤ └─┐ │ └┬┘│  ├┤
└  ┴└─└─┘└─┘└─┘ ┴  ┴ ┴─┘└─┘

Stroke based non photorealistic renderer.
    Version: %s

`

// pipeName is the file name that indicates stdin/stdout is being used.
const pipeName = "-"

// Version indicates the current build version.
var Version string

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:          "freestyle",
		Short:        "Render stroke based drawings from scene files",
		Long:         fmt.Sprintf(HelpBanner, Version),
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := log.InfoLevel
			if verbose {
				level = log.DebugLevel
			}
			logger := newLogger(os.Stderr, level)
			if verbose {
				gg.SetLogger(slog.New(logger))
			}
			cmd.SetContext(withLogger(cmd.Context(), logger))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.AddCommand(newRenderCmd())

	return root
}
