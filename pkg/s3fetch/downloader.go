package s3fetch

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/eunmann/bpack/pkg/fileutil"
)

// DownloaderConfig sizes the ranged GETs used to fetch one container.
// Zero fields take the values of DefaultDownloaderConfig.
type DownloaderConfig struct {
	Concurrency int   // parallel ranges; NumCPU clamped to [4, 16]
	PartSize    int64 // bytes per range; 16 MiB
}

// DefaultDownloaderConfig returns defaults based on the current machine.
func DefaultDownloaderConfig() DownloaderConfig {
	return DownloaderConfig{
		Concurrency: min(max(runtime.NumCPU(), 4), 16),
		PartSize:    16 * 1024 * 1024,
	}
}

func (cfg DownloaderConfig) withDefaults() DownloaderConfig {
	def := DefaultDownloaderConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.PartSize <= 0 {
		cfg.PartSize = def.PartSize
	}
	return cfg
}

// Downloader fetches whole objects with parallel ranged GETs.
type Downloader struct {
	manager *manager.Downloader
	config  DownloaderConfig
}

// NewDownloader wraps s3Client in a ranged downloader. Each range is
// staged in a pooled part-sized buffer.
func NewDownloader(s3Client *s3.Client, cfg DownloaderConfig) *Downloader {
	cfg = cfg.withDefaults()
	mgr := manager.NewDownloader(s3Client, func(d *manager.Downloader) {
		d.Concurrency = cfg.Concurrency
		d.PartSize = cfg.PartSize
		d.BufferProvider = manager.NewPooledBufferedWriterReadFromProvider(int(cfg.PartSize))
	})
	return &Downloader{manager: mgr, config: cfg}
}

// DownloadResult reports the size and wall time of one download.
type DownloadResult struct {
	BytesDownloaded int64
	Duration        time.Duration
}

// DownloadToFile downloads an object to destPath. The file appears under
// destPath only once the download is complete.
func (d *Downloader) DownloadToFile(ctx context.Context, bucket, key, destPath string) (*DownloadResult, error) {
	start := time.Now()
	var n int64
	err := fileutil.WriteTmpThenMove(destPath, func(f *os.File) error {
		var err error
		n, err = d.manager.Download(ctx, f, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}
	return &DownloadResult{BytesDownloaded: n, Duration: time.Since(start)}, nil
}

// Config returns the effective configuration, defaults applied.
func (d *Downloader) Config() DownloaderConfig {
	return d.config
}
