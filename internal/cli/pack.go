package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/eunmann/bpack/internal/logctx"
	"github.com/eunmann/bpack/pkg/arrays"
	"github.com/eunmann/bpack/pkg/container"
	"github.com/eunmann/bpack/pkg/fileutil"
	"github.com/eunmann/bpack/pkg/logging"
)

type packFlags struct {
	commonFlags
	codec string
	align bool
	dedup bool
}

func runPack(ctx context.Context, args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("pack", pflag.ContinueOnError)
	var f packFlags
	fs.StringVar(&f.codec, "codec", "", `codec spec such as "zstd:level=5" or "blocked:shuffle=1+gzip" (default gzip, none with --align)`)
	fs.BoolVar(&f.align, "align", false, "page-align buffers")
	fs.BoolVar(&f.dedup, "dedup", false, "store identical files once")
	f.register(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New("pack requires OUT and at least one FILE")
	}

	ctx, err := f.setup(ctx, fs, "pack")
	if err != nil {
		return err
	}
	outPath := fs.Arg(0)
	inputs := fs.Args()[1:]
	ctx = logctx.WithStr(ctx, "out", outPath)
	log := logctx.FromContext(ctx)

	if err := fileutil.CleanupTmpFilesFor(outPath); err != nil {
		return err
	}

	bundle, err := readInputs(ctx, inputs)
	if err != nil {
		return err
	}

	opts := container.WriterOptions{Align: f.align, Deduplicate: f.dedup, Logger: &log}
	switch {
	case fs.Changed("codec"):
		opts.Codecs = []any{f.codec}
	case !f.align:
		opts.Codecs = []any{"gzip"}
	}

	w, err := container.NewWriter(outPath, opts)
	if err != nil {
		return err
	}
	if err := w.Dump(bundle, arrays.Serializer{}); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s: %d files, %d stored buffers\n", outPath, len(inputs), w.Entries())
	return nil
}

func readInputs(ctx context.Context, inputs []string) (*arrays.Bundle, error) {
	progress := logging.NewProgress(logctx.FromContext(ctx), int64(len(inputs)))
	bundle := &arrays.Bundle{Meta: map[string]any{"files": len(inputs)}}
	for _, in := range inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		bundle.Arrays = append(bundle.Arrays, arrays.FromBytes(in, data))
		progress.Step(in, int64(len(data)))
	}
	progress.Complete("inputs_read").Msg("read input files")
	return bundle, nil
}
