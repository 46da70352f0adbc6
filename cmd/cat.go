package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wastore/membuf/common"
	"github.com/wastore/membuf/prebuffer"
	"github.com/wastore/membuf/source"
)

var catSynthetic int64
var catShowProgress bool

var catCmd = &cobra.Command{
	Use:   "cat [path]",
	Short: "Stream a file (or a synthetic test stream) through the prebuffer filter to stdout",
	Long: `cat opens path through source.File (or, with --synthetic, a deterministic
source.Constant stream of the given length instead of a path) and streams it
to stdout by way of prebuffer.Open, demonstrating Read, CachedSize, Size and
PrebufferFinished against a real filter instance.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCat,
}

func init() {
	catCmd.Flags().Int64Var(&catSynthetic, "synthetic", 0, "Ignore the path argument and stream this many bytes from a deterministic test source instead.")
	catCmd.Flags().BoolVar(&catShowProgress, "progress", false, "Print cache-fill progress to stderr while streaming.")
	rootCmd.AddCommand(catCmd)
}

func runCat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var src source.Source
	if catSynthetic > 0 {
		src = source.NewConstant(catSynthetic)
	} else {
		if len(args) != 1 {
			return fmt.Errorf("cat: a path is required unless --synthetic is set")
		}
		f, err := source.OpenFile(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}

	var logger common.ILoggerCloser
	if level := parseLogLevel(membufLogLevel); level != common.LogNone {
		logger = common.NewFilterLogger(os.Stderr, level)
	}

	limit := catMaxResidentBytes()
	filter, err := prebuffer.Open(src, prebuffer.Options{
		Enabled:          membufEnable,
		MaxResidentBytes: limit,
		Logger:           logger,
	})
	if err != nil {
		return err
	}
	defer filter.Close()

	if catShowProgress {
		go reportProgress(filter)
	}

	buf := make([]byte, 256*1024)
	for {
		n, err := filter.Read(ctx, buf)
		if n > 0 {
			if _, werr := os.Stdout.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func catMaxResidentBytes() int64 {
	if membufMaxResidentMB <= 0 {
		return 0
	}
	return membufMaxResidentMB * 1024 * 1024
}

func reportProgress(filter *prebuffer.Filter) {
	for {
		cached := filter.CachedSize()
		resident := filter.ResidentBytes()
		fmt.Fprintf(os.Stderr, "\rcached %s / %s (resident %s)",
			common.ByteSizeToString(cached, false), common.ByteSizeToString(filter.Size(), false), common.ByteSizeToString(resident, false))
		if filter.PrebufferFinished() {
			fmt.Fprintln(os.Stderr)
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
}
