// Package cli implements the command-line interface for bpack.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/eunmann/bpack/internal/logctx"
	"github.com/eunmann/bpack/pkg/logging"
)

const usage = `usage: bpack <command> [options]
commands:
  inspect FILE|s3://bucket/key   show header, entries and integrity of a container
  pack OUT FILE...               store files as raw buffers in a new container`

// logFormatEnv selects the log format when --human is not given.
const logFormatEnv = "BPACK_LOG_FORMAT"

// Run executes the CLI with the given arguments.
func Run(args []string) error {
	return run(context.Background(), args, os.Stdout)
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	switch args[0] {
	case "inspect":
		return runInspect(ctx, args[1:], out)
	case "pack":
		return runPack(ctx, args[1:], out)
	case "help", "-h", "--help":
		fmt.Fprintln(out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

// commonFlags are shared by every subcommand.
type commonFlags struct {
	verbose bool
	human   bool
}

func (c *commonFlags) register(fs *pflag.FlagSet) {
	fs.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	fs.BoolVar(&c.human, "human", false, "human-readable log output (default from "+logFormatEnv+")")
}

// setup configures logging and returns a context carrying the command logger.
func (c *commonFlags) setup(ctx context.Context, fs *pflag.FlagSet, command string) (context.Context, error) {
	human := c.human
	if !fs.Changed("human") {
		var err error
		if human, err = humanFromEnv(); err != nil {
			return nil, err
		}
	}
	logging.Init(c.verbose, human)
	return logctx.WithLogger(ctx, logging.With(command)), nil
}

func humanFromEnv() (bool, error) {
	switch v := strings.ToLower(os.Getenv(logFormatEnv)); v {
	case "", "json":
		return false, nil
	case "human", "console", "pretty":
		return true, nil
	default:
		return false, fmt.Errorf("invalid %s %q: want human or json", logFormatEnv, v)
	}
}

func parseFlags(fs *pflag.FlagSet, args []string) error {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%s: %w", fs.Name(), err)
	}
	return nil
}
