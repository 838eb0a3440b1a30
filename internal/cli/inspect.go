package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/eunmann/bpack/internal/logctx"
	"github.com/eunmann/bpack/pkg/container"
	"github.com/eunmann/bpack/pkg/format"
	"github.com/eunmann/bpack/pkg/humanfmt"
	"github.com/eunmann/bpack/pkg/s3fetch"
)

// newDownloader builds the downloader used for s3:// arguments. Tests
// replace it to avoid AWS.
var newDownloader = func(ctx context.Context) (s3fetch.FileDownloader, error) {
	client, err := s3fetch.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return client.Downloader(s3fetch.DefaultDownloaderConfig()), nil
}

// ErrCheckFailed is returned by inspect --check when any buffer fails
// verification.
var ErrCheckFailed = errors.New("integrity check failed")

type inspectFlags struct {
	commonFlags
	list    bool
	check   bool
	primary bool
}

func runInspect(ctx context.Context, args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
	var f inspectFlags
	fs.BoolVarP(&f.list, "list", "l", false, "list buffer entries")
	fs.BoolVarP(&f.check, "check", "c", false, "verify every buffer; exit non-zero on errors")
	fs.BoolVar(&f.primary, "primary", false, "write the primary stream to stdout and exit")
	f.register(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("inspect requires exactly one FILE or s3:// URI")
	}

	ctx, err := f.setup(ctx, fs, "inspect")
	if err != nil {
		return err
	}
	src := fs.Arg(0)
	ctx = logctx.WithStr(ctx, "file", src)

	path := src
	if s3fetch.IsS3URI(src) {
		dl, err := newDownloader(ctx)
		if err != nil {
			return err
		}
		fetcher := s3fetch.NewFetcher(dl, s3fetch.FetchConfig{})
		defer fetcher.Cleanup()
		paths, err := fetcher.Fetch(ctx, []string{src})
		if err != nil {
			return err
		}
		path = paths[0]
	}

	log := logctx.FromContext(ctx)
	r, err := container.Open(path, container.ReaderOptions{Logger: &log})
	if err != nil {
		return err
	}
	defer r.Close()

	if f.primary {
		return writePrimary(out, r)
	}

	printSummary(out, src, r)
	if f.list {
		if err := printEntries(out, r); err != nil {
			return err
		}
	}
	if f.check {
		return checkFile(out, r)
	}
	return nil
}

func writePrimary(out io.Writer, r *container.Reader) error {
	n := r.LogicalLen()
	if n == 0 {
		return format.ErrEmpty
	}
	data, err := r.ReadBytes(n - 1)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

func printSummary(out io.Writer, src string, r *container.Reader) {
	h := r.Header()
	t := r.Trailer()
	var dec, enc int64
	for _, e := range r.Entries() {
		dec += int64(e.DecLength)
		enc += int64(e.EncLength)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "file:\t%s\n", src)
	fmt.Fprintf(tw, "version:\t%d\n", h.Version)
	fmt.Fprintf(tw, "flags:\t%s\n", h.Flags)
	fmt.Fprintf(tw, "length:\t%s (%d bytes)\n", humanfmt.Bytes(h.Length), h.Length)
	fmt.Fprintf(tw, "buffers:\t%s stored, %s logical\n",
		humanfmt.Count(int64(len(r.Entries()))), humanfmt.Count(int64(r.LogicalLen())))
	fmt.Fprintf(tw, "payload:\t%s decoded, %s encoded (%s)\n",
		humanfmt.Bytes(dec), humanfmt.Bytes(enc), humanfmt.Ratio(enc, dec))
	fmt.Fprintf(tw, "index:\t%s at offset %d, %s\n",
		humanfmt.Bytes(int64(t.Length)), t.Offset, t.Hash.Digest())
	tw.Flush()
}

func printEntries(out io.Writer, r *container.Reader) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\toffset\tlength\tenc. length\ttype\tshape\tcodec\tdigest\t")
	for i, e := range r.Entries() {
		codec := "-"
		if !e.Verbatim() {
			codec = format.PrettyCodecs(e.Codecs)
		}
		typ, shape := "-", "-"
		if e.Info != nil {
			typ = e.Info.TypeString()
			shape = e.Info.ShapeString()
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			i, e.Offset,
			strconv.FormatUint(e.DecLength, 10), strconv.FormatUint(e.EncLength, 10),
			typ, shape, codec, e.Hash.Digest().Encoded()[:12])
	}
	return tw.Flush()
}

func checkFile(out io.Writer, r *container.Reader) error {
	problems, err := r.FindErrors()
	if err != nil {
		return err
	}
	for _, p := range problems {
		fmt.Fprintf(out, "error: %s\n", p)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrCheckFailed, pluralErrors(len(problems)))
	}
	fmt.Fprintln(out, "no errors found")
	return nil
}

func pluralErrors(n int) string {
	if n == 1 {
		return "1 error"
	}
	return strconv.Itoa(n) + " errors"
}
