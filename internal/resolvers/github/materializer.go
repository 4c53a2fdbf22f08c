package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/quantmind-br/ghsnap/internal/domain"
	"github.com/quantmind-br/ghsnap/internal/fetcher"
	"github.com/quantmind-br/ghsnap/internal/utils"
)

const (
	// TempDirPrefix prefixes every materialization work directory
	TempDirPrefix = "ghsnap-archive-"

	defaultArchiveName = "archive"
)

// Materializer downloads archives into fresh temporary directories and hands
// them to a domain.Extractor
type Materializer struct {
	client      *Client
	extractor   domain.Extractor
	tempDir     string
	maxBytes    int64
	progress    bool
	progressOut io.Writer
	logger      *utils.Logger
}

// MaterializerOptions contains options for creating a Materializer
type MaterializerOptions struct {
	Client    *Client
	Extractor domain.Extractor
	// TempDir is the parent of work directories; os.TempDir() when empty
	TempDir string
	// MaxBytes bounds the downloaded archive size. 0 means unlimited.
	MaxBytes       int64
	Progress       bool
	ProgressOutput io.Writer
	Logger         *utils.Logger
}

// NewMaterializer creates a new Materializer
func NewMaterializer(opts MaterializerOptions) *Materializer {
	if opts.Client == nil {
		opts.Client = NewClient(ClientOptions{Logger: opts.Logger})
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewNopLogger()
	}
	if opts.ProgressOutput == nil {
		opts.ProgressOutput = os.Stderr
	}
	return &Materializer{
		client:      opts.Client,
		extractor:   opts.Extractor,
		tempDir:     utils.ExpandPath(opts.TempDir),
		maxBytes:    opts.MaxBytes,
		progress:    opts.Progress,
		progressOut: opts.ProgressOutput,
		logger:      opts.Logger.WithComponent("materializer"),
	}
}

// Materialize downloads archiveURL into a new work directory and extracts it.
//
// 401 and 403 yield auth errors, other non-200 statuses yield errors wrapping
// domain.ErrNotFound. Transport failures are wrapped in domain.RetryableError.
// The work directory is removed on any failure.
func (m *Materializer) Materialize(ctx context.Context, archiveURL string) (result *Materialized, err error) {
	if m.extractor == nil {
		return nil, errors.New("materializer has no extractor")
	}

	name := utils.LastPathSegment(archiveURL)
	if name == "" || name == "." || name == ".." {
		name = defaultArchiveName
	}

	if m.tempDir != "" {
		if err := os.MkdirAll(m.tempDir, 0755); err != nil {
			return nil, fmt.Errorf("create temp dir: %w", err)
		}
	}
	workDir, err := os.MkdirTemp(m.tempDir, TempDirPrefix)
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		if err != nil {
			if rmErr := os.RemoveAll(workDir); rmErr != nil {
				m.logger.Warn().Err(rmErr).Str("dir", workDir).Msg("Failed to remove work dir")
			}
		}
	}()

	archivePath := filepath.Join(workDir, name)
	written, err := m.download(ctx, archiveURL, archivePath)
	if err != nil {
		return nil, err
	}

	m.logger.WithURL(archiveURL).Debug().
		Str("archive", archivePath).
		Int64("bytes", written).
		Msg("Archive downloaded")

	root, err := m.extractor.Extract(ctx, archivePath)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", name, err)
	}

	return &Materialized{
		Root:        root,
		WorkDir:     workDir,
		ArchivePath: archivePath,
		Bytes:       written,
	}, nil
}

func (m *Materializer) download(ctx context.Context, archiveURL, archivePath string) (int64, error) {
	resp, err := m.client.download(ctx, archiveURL)
	if err != nil {
		var apiErr *domain.APIError
		switch {
		case errors.As(err, &apiErr):
			if fetcher.ShouldRetryStatus(apiErr.StatusCode) {
				return 0, &domain.RetryableError{Err: err}
			}
			return 0, err
		case ctx.Err() != nil:
			return 0, ctx.Err()
		default:
			return 0, &domain.RetryableError{Err: fmt.Errorf("download %s: %w", archiveURL, err)}
		}
	}
	defer resp.Body.Close()

	if m.maxBytes > 0 && resp.ContentLength > m.maxBytes {
		return 0, fmt.Errorf("archive is %d bytes, limit %d: %w", resp.ContentLength, m.maxBytes, domain.ErrTooLarge)
	}

	file, err := os.OpenFile(archivePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("create archive file: %w", err)
	}

	var body io.Reader = resp.Body
	if m.maxBytes > 0 {
		body = io.LimitReader(resp.Body, m.maxBytes+1)
	}

	var dst io.Writer = file
	if m.progress {
		bar := utils.NewBytesProgressBar(resp.ContentLength, utils.DescDownloading, m.progressOut)
		defer bar.Close()
		dst = io.MultiWriter(file, bar)
	}

	written, copyErr := io.Copy(dst, body)
	closeErr := file.Close()

	if copyErr != nil {
		if ctx.Err() != nil {
			return written, ctx.Err()
		}
		var pathErr *os.PathError
		if errors.As(copyErr, &pathErr) {
			return written, fmt.Errorf("write archive file: %w", copyErr)
		}
		return written, &domain.RetryableError{Err: fmt.Errorf("download %s: %w", archiveURL, copyErr)}
	}
	if closeErr != nil {
		return written, fmt.Errorf("write archive file: %w", closeErr)
	}
	if m.maxBytes > 0 && written > m.maxBytes {
		return written, fmt.Errorf("archive exceeds %d bytes: %w", m.maxBytes, domain.ErrTooLarge)
	}

	return written, nil
}
