package s3fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/eunmann/bpack/internal/logctx"
	"github.com/eunmann/bpack/pkg/fileutil"
	"github.com/eunmann/bpack/pkg/logging"
)

// FileDownloader fetches one object to a local path. *Downloader
// implements it.
type FileDownloader interface {
	DownloadToFile(ctx context.Context, bucket, key, destPath string) (*DownloadResult, error)
}

// FetchConfig configures a Fetcher.
type FetchConfig struct {
	// DownloadDir receives the fetched files. If empty a temporary
	// directory is created and removed by Cleanup.
	DownloadDir string
	// Concurrency is the number of objects fetched in parallel (default 4).
	Concurrency int
	// KeepFiles if true, Cleanup leaves the downloaded files in place.
	KeepFiles bool
}

// Fetcher downloads containers named by S3 URIs.
type Fetcher struct {
	dl      FileDownloader
	cfg     FetchConfig
	tempDir bool

	mu         sync.Mutex
	downloaded []string
}

// NewFetcher creates a fetcher that downloads with dl.
func NewFetcher(dl FileDownloader, cfg FetchConfig) *Fetcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Fetcher{dl: dl, cfg: cfg}
}

// Fetch downloads every URI and returns the local paths in the same order.
// Local paths in uris are returned unchanged.
func (f *Fetcher) Fetch(ctx context.Context, uris []string) ([]string, error) {
	if err := f.ensureDir(); err != nil {
		return nil, err
	}
	log := logctx.FromContext(ctx)

	paths := make([]string, len(uris))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Concurrency)
	for i, uri := range uris {
		if !IsS3URI(uri) {
			paths[i] = uri
			continue
		}
		g.Go(func() error {
			bucket, key, err := ParseS3URI(uri)
			if err != nil {
				return fmt.Errorf("%s: %w", uri, err)
			}
			// Prefix with the position so equal base names do not collide.
			dest := filepath.Join(f.cfg.DownloadDir, strconv.Itoa(i)+"-"+filepath.Base(key))
			res, err := f.dl.DownloadToFile(ctx, bucket, key, dest)
			if err != nil {
				return err
			}
			logging.NewEvent(log, "download_completed", res.Duration).
				Str("uri", uri).
				Bytes("bytes", res.BytesDownloaded).
				Throughput(res.BytesDownloaded).
				Msg("fetched container")
			paths[i] = dest
			f.mu.Lock()
			f.downloaded = append(f.downloaded, dest)
			f.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func (f *Fetcher) ensureDir() error {
	if f.cfg.DownloadDir == "" {
		dir, err := os.MkdirTemp("", "bpack-fetch-")
		if err != nil {
			return fmt.Errorf("create download dir: %w", err)
		}
		f.cfg.DownloadDir = dir
		f.tempDir = true
		return nil
	}
	if err := os.MkdirAll(f.cfg.DownloadDir, 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	return nil
}

// Cleanup removes downloaded files and any partial downloads. A temporary
// download directory is removed entirely.
func (f *Fetcher) Cleanup() error {
	if f.cfg.KeepFiles || f.cfg.DownloadDir == "" {
		return nil
	}
	if f.tempDir {
		return os.RemoveAll(f.cfg.DownloadDir)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.downloaded {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	f.downloaded = nil
	return fileutil.CleanupTmpFiles(f.cfg.DownloadDir)
}
