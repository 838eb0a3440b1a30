package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eunmann/bpack/pkg/arrays"
	"github.com/eunmann/bpack/pkg/container"
	"github.com/eunmann/bpack/pkg/format"
	"github.com/eunmann/bpack/pkg/s3fetch"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, &out)
	return out.String(), err
}

func writeFixture(t *testing.T, opts container.DumpOptions) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.bpk")
	bundle := &arrays.Bundle{
		Meta: map[string]any{"name": "fixture"},
		Arrays: []arrays.Array{
			arrays.FromInt32s("ids", []int32{1, 2, 3, 4}),
			arrays.FromFloat64s("weights", []float64{0.5, 1.5}),
		},
	}
	if err := container.Dump(bundle, path, arrays.Serializer{}, opts); err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	return path
}

func TestRunNoArgs(t *testing.T) {
	_, err := runCLI(t)
	if err == nil {
		t.Fatal("expected error with no args")
	}
	if !strings.Contains(err.Error(), "usage") {
		t.Errorf("expected usage message, got: %v", err)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	_, err := runCLI(t, "unknown")
	if err == nil {
		t.Fatal("expected error with unknown command")
	}
	if !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("expected 'unknown command' error, got: %v", err)
	}
}

func TestInspectMissingFile(t *testing.T) {
	_, err := runCLI(t, "inspect")
	if err == nil || !strings.Contains(err.Error(), "exactly one FILE") {
		t.Errorf("expected argument error, got: %v", err)
	}
}

func TestInspectBadFlag(t *testing.T) {
	_, err := runCLI(t, "inspect", "--bogus", "x.bpk")
	if err == nil || !strings.Contains(err.Error(), "bogus") {
		t.Errorf("expected flag error, got: %v", err)
	}
}

func TestInspectSummary(t *testing.T) {
	path := writeFixture(t, container.DumpOptions{Mappable: true})
	out, err := runCLI(t, "inspect", path)
	if err != nil {
		t.Fatalf("inspect error: %v", err)
	}
	for _, want := range []string{"version:", "3", "MAPPABLE", "3 stored, 3 logical"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestInspectList(t *testing.T) {
	path := writeFixture(t, container.DumpOptions{Codecs: []any{"zstd"}})
	out, err := runCLI(t, "inspect", "-l", path)
	if err != nil {
		t.Fatalf("inspect error: %v", err)
	}
	for _, want := range []string{"offset", "codec", "i4", "f8", "zstd(level=3)"} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
}

func TestInspectCheck(t *testing.T) {
	path := writeFixture(t, container.DumpOptions{Mappable: true})
	out, err := runCLI(t, "inspect", "--check", path)
	if err != nil {
		t.Fatalf("inspect --check error: %v", err)
	}
	if !strings.Contains(out, "no errors found") {
		t.Errorf("expected clean check, got:\n%s", out)
	}

	r, err := container.Open(path, container.ReaderOptions{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	off := r.Entries()[0].Offset
	r.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[off] ^= 0xff
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	out, err = runCLI(t, "inspect", "-c", path)
	if !errors.Is(err, ErrCheckFailed) {
		t.Fatalf("expected ErrCheckFailed, got: %v", err)
	}
	if !strings.Contains(out, "hash") {
		t.Errorf("expected hash finding, got:\n%s", out)
	}
}

func TestInspectPrimary(t *testing.T) {
	path := writeFixture(t, container.DumpOptions{})
	out, err := runCLI(t, "inspect", "--primary", path)
	if err != nil {
		t.Fatalf("inspect --primary error: %v", err)
	}
	if !strings.Contains(out, "weights") {
		t.Errorf("primary stream does not name the arrays: %q", out)
	}
}

func TestInspectInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.bpk")
	if err := os.WriteFile(path, []byte("not a container at all, just text bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := runCLI(t, "inspect", path)
	if !errors.Is(err, format.ErrFormat) {
		t.Errorf("expected format error, got: %v", err)
	}
}

type copyDownloader struct {
	src string
}

func (d copyDownloader) DownloadToFile(_ context.Context, _, _, destPath string) (*s3fetch.DownloadResult, error) {
	data, err := os.ReadFile(d.src)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return nil, err
	}
	return &s3fetch.DownloadResult{BytesDownloaded: int64(len(data)), Duration: time.Millisecond}, nil
}

func TestInspectS3(t *testing.T) {
	path := writeFixture(t, container.DumpOptions{Mappable: true})
	orig := newDownloader
	newDownloader = func(context.Context) (s3fetch.FileDownloader, error) {
		return copyDownloader{src: path}, nil
	}
	t.Cleanup(func() { newDownloader = orig })

	out, err := runCLI(t, "inspect", "s3://bucket/fixture.bpk")
	if err != nil {
		t.Fatalf("inspect error: %v", err)
	}
	if !strings.Contains(out, "s3://bucket/fixture.bpk") {
		t.Errorf("summary should name the URI:\n%s", out)
	}
}

func TestPackMissingArgs(t *testing.T) {
	_, err := runCLI(t, "pack", "out.bpk")
	if err == nil || !strings.Contains(err.Error(), "OUT and at least one FILE") {
		t.Errorf("expected argument error, got: %v", err)
	}
}

func TestPackRoundTrip(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	if err := os.WriteFile(a, []byte("same contents"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("same contents"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out.bpk")

	stdout, err := runCLI(t, "pack", "--dedup", "--codec", "zstd:level=1", out, a, b)
	if err != nil {
		t.Fatalf("pack error: %v", err)
	}
	if !strings.Contains(stdout, "2 files, 2 stored buffers") {
		t.Errorf("unexpected pack output: %q", stdout)
	}

	obj, err := container.Load(out, arrays.Serializer{}, container.ReaderOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	bundle := obj.(*arrays.Bundle)
	got, ok := bundle.Get(b)
	if !ok {
		t.Fatalf("bundle missing %s", b)
	}
	if string(got.Data) != "same contents" {
		t.Errorf("data = %q", got.Data)
	}
}

func TestPackAlign(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.bin")
	if err := os.WriteFile(in, bytes.Repeat([]byte{7}, 5000), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out.bpk")
	if _, err := runCLI(t, "pack", "--align", out, in); err != nil {
		t.Fatalf("pack error: %v", err)
	}
	r, err := container.Open(out, container.ReaderOptions{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()
	if !r.IsMappable() {
		t.Error("pack --align without codec should produce a mappable file")
	}
}

func TestPackBadCodec(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.bin")
	if err := os.WriteFile(in, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out.bpk")
	_, err := runCLI(t, "pack", "--codec", "nope", out, in)
	if !errors.Is(err, format.ErrConfiguration) {
		t.Errorf("expected configuration error, got: %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("failed pack left an output file")
	}
}

func TestHumanFromEnv(t *testing.T) {
	t.Setenv(logFormatEnv, "human")
	if h, err := humanFromEnv(); err != nil || !h {
		t.Errorf("humanFromEnv() = %v, %v; want true", h, err)
	}
	t.Setenv(logFormatEnv, "json")
	if h, err := humanFromEnv(); err != nil || h {
		t.Errorf("humanFromEnv() = %v, %v; want false", h, err)
	}
	t.Setenv(logFormatEnv, "xml")
	if _, err := humanFromEnv(); err == nil || !strings.Contains(err.Error(), logFormatEnv) {
		t.Errorf("expected env error, got: %v", err)
	}
}
