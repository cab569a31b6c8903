package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/esimov/freestyle"
	"github.com/esimov/freestyle/backend/raster"
	"github.com/esimov/freestyle/scene"
	"github.com/esimov/freestyle/utils"
)

// maxWorkers sets the maximum number of concurrently running workers.
const maxWorkers = 20

var (
	sceneExtensions  = []string{".toml", ".yaml", ".yml"}
	outputExtensions = []string{".png", ".jpg", ".jpeg", ".bmp"}
)

// renderOpts holds the flags of the render command.
type renderOpts struct {
	scene   string // scene file, directory of scene files or pipe name
	out     string // output image, output directory or pipe name
	format  string // scene format read from stdin
	workers int
}

// result holds the outcome of rendering one scene file.
type result struct {
	path string
	err  error
}

func newRenderCmd() *cobra.Command {
	opts := renderOpts{
		scene:   pipeName,
		out:     pipeName,
		format:  "toml",
		workers: runtime.NumCPU(),
	}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a scene file or a directory of scene files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&opts.scene, "scene", "s", opts.scene, "scene file or directory (- for stdin)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", opts.out, "output image or directory (- for stdout)")
	cmd.Flags().StringVar(&opts.format, "format", opts.format, "scene format read from stdin: toml or yaml")
	cmd.Flags().IntVar(&opts.workers, "conc", opts.workers, "number of scene files to render concurrently")

	return cmd
}

func (op *renderOpts) run(ctx context.Context) error {
	logger := loggerFromContext(ctx)
	utils.NoColor = !term.IsTerminal(int(os.Stderr.Fd()))

	var (
		fs  os.FileInfo
		err error
	)
	// Check if the source is a pipe name or a regular file.
	if op.scene == pipeName {
		fs, err = os.Stdin.Stat()
	} else {
		fs, err = os.Stat(op.scene)
	}
	if err != nil {
		return fmt.Errorf("failed to load the scene: %w", err)
	}

	now := time.Now()

	switch mode := fs.Mode(); {
	case mode.IsDir():
		if err := os.MkdirAll(op.out, 0755); err != nil {
			return fmt.Errorf("unable to create the output directory: %w", err)
		}

		// Limit the concurrently running workers to maxWorkers.
		if op.workers <= 0 || op.workers > maxWorkers {
			op.workers = runtime.NumCPU()
		}

		ch := make(chan result)
		done := make(chan struct{})
		defer close(done)

		paths, errc := walkDir(done, op.scene, sceneExtensions)

		var wg sync.WaitGroup
		wg.Add(op.workers)
		for i := 0; i < op.workers; i++ {
			go func() {
				defer wg.Done()
				op.consumer(ctx, logger, ch, done, paths)
			}()
		}

		// Close the channel after the values are consumed.
		go func() {
			defer close(ch)
			wg.Wait()
		}()

		var failed int
		for res := range ch {
			if res.err != nil {
				failed++
			}
			printStatus(res.path, res.err)
		}
		if err := <-errc; err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d scene(s) failed to render", failed)
		}

	case mode.IsRegular() || mode&os.ModeNamedPipe != 0: // check for regular files or pipe names
		ext := filepath.Ext(op.out)
		if op.out != pipeName && !utils.Contains(outputExtensions, strings.ToLower(ext)) {
			return fmt.Errorf("%v file type not supported", ext)
		}

		spinner := utils.NewSpinner(fmt.Sprintf("%s %s",
			utils.DecorateText("⚡ FREESTYLE", utils.StatusMessage),
			utils.DecorateText("⇢ drawing strokes...", utils.DefaultMessage),
		), time.Millisecond*80, true)
		if !utils.NoColor {
			spinner.Start()
		}

		err := op.process(ctx, logger, op.scene, op.out, true)
		if err != nil {
			spinner.StopMsg = fmt.Sprintf("%s %s",
				utils.DecorateText("⚡ FREESTYLE", utils.StatusMessage),
				utils.DecorateText("rendering failed ✘", utils.ErrorMessage),
			)
		} else {
			spinner.StopMsg = fmt.Sprintf("%s %s",
				utils.DecorateText("⚡ FREESTYLE", utils.StatusMessage),
				utils.DecorateText("the scene has been rendered ✔", utils.SuccessMessage),
			)
		}
		spinner.Stop()

		printStatus(op.out, err)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("%s is neither a file nor a directory", op.scene)
	}

	fmt.Fprintf(os.Stderr, "\nExecution time: %s\n", utils.DecorateText(utils.FormatTime(time.Since(now)), utils.SuccessMessage))
	return nil
}

// consumer renders the scene files received on paths until the channel closes
// or the render is cancelled.
func (op *renderOpts) consumer(
	ctx context.Context,
	logger *log.Logger,
	res chan<- result,
	done <-chan struct{},
	paths <-chan string,
) {
	for src := range paths {
		base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		dst := filepath.Join(op.out, base+".png")

		err := ctx.Err()
		if err == nil {
			err = op.process(ctx, logger.With("scene", filepath.Base(src)), src, dst, false)
		}

		select {
		case <-done:
			return
		case res <- result{
			path: dst,
			err:  err,
		}:
		}
	}
}

// process renders the scene in to the image out. The single canvas of a
// command line run is registered as the active one.
func (op *renderOpts) process(ctx context.Context, logger *log.Logger, in, out string, activate bool) error {
	s, err := op.loadScene(in)
	if err != nil {
		return err
	}

	dev := raster.New(s.Width, s.Height,
		raster.WithBackground(s.BackgroundColor()),
		raster.WithLogger(logger),
	)
	c, err := freestyle.NewCanvas(dev, freestyle.WithLogger(logger))
	if err != nil {
		return err
	}
	defer c.Close()

	if activate {
		c.Activate()
	}
	if err := c.Init(); err != nil {
		return err
	}
	if err := s.Apply(c); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.Draw(); err != nil {
		return err
	}
	if err := c.Update(); err != nil {
		return err
	}
	logger.Debug("scene drawn", "modules", c.Modules().Len(), "strokes", c.StrokeCount())

	return writeFrame(dev, out)
}

// loadScene reads a scene from a file or, for the pipe name, from stdin.
func (op *renderOpts) loadScene(in string) (*scene.Scene, error) {
	if in != pipeName {
		return scene.Load(in)
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, errors.New("`-` should be used with a pipe for stdin")
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("unable to read the scene from stdin: %w", err)
	}
	return scene.Parse(data, "."+op.format)
}

// writeFrame encodes the device frame to a file or, for the pipe name, to stdout.
func writeFrame(dev *raster.Device, out string) error {
	if out == pipeName {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return errors.New("`-` should be used with a pipe for stdout")
		}
		return dev.Encode(os.Stdout, ".png")
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("unable to create the destination file: %w", err)
	}
	if err := dev.Encode(f, filepath.Ext(out)); err != nil {
		f.Close()
		os.Remove(out)
		return err
	}
	return f.Close()
}

// printStatus displays the outcome of rendering a scene.
func printStatus(fname string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s%s",
			utils.DecorateText("\nError rendering the scene", utils.ErrorMessage),
			utils.DecorateText(fmt.Sprintf("\n\tReason: %v\n", err), utils.DefaultMessage),
		)
		return
	}
	if fname != pipeName {
		fmt.Fprintf(os.Stderr, "\nThe drawing has been saved as: %s\n",
			utils.DecorateText(filepath.Base(fname), utils.SuccessMessage),
		)
	}
}

// walkDir starts a new goroutine to walk the specified directory tree
// in recursive manner and sends the path of each scene file to a new channel.
// It finishes in case the done channel is getting closed.
func walkDir(
	done <-chan struct{},
	src string,
	srcExts []string,
) (<-chan string, <-chan error) {
	pathChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		// Close the paths channel after Walk returns.
		defer close(pathChan)

		errChan <- filepath.Walk(src, func(path string, f os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !f.Mode().IsRegular() {
				return nil
			}
			if !utils.Contains(srcExts, strings.ToLower(filepath.Ext(f.Name()))) {
				return nil
			}

			select {
			case <-done:
				return errors.New("directory walk cancelled")
			case pathChan <- path:
			}
			return nil
		})
	}()
	return pathChan, errChan
}
