// Package archive unpacks downloaded source archives (zipball and tarball)
// and selects the canonical root directory of the extracted tree.
package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/quantmind-br/ghsnap/internal/domain"
	"github.com/quantmind-br/ghsnap/internal/utils"
	"github.com/schollz/progressbar/v3"
)

// ExtractedDirName is the directory, next to the archive, that receives its contents
const ExtractedDirName = "extracted"

var (
	// ErrUnsupportedFormat indicates the file is neither a zip nor a gzip'd tar
	ErrUnsupportedFormat = errors.New("unsupported archive format")

	// ErrTooLarge indicates the extracted contents exceed the byte budget
	ErrTooLarge = fmt.Errorf("archive contents: %w", domain.ErrTooLarge)
)

// Format identifies an archive container
type Format int

const (
	FormatUnknown Format = iota
	FormatZip
	FormatTarGz
)

func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatTarGz:
		return "tar.gz"
	default:
		return "unknown"
	}
}

var (
	zipMagic      = []byte("PK\x03\x04")
	zipEmptyMagic = []byte("PK\x05\x06")
	gzipMagic     = []byte{0x1f, 0x8b}
)

// DetectFormat sniffs the archive format from the leading bytes of the file
func DetectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()

	head := make([]byte, len(zipMagic))
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return FormatUnknown, err
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, zipMagic), bytes.HasPrefix(head, zipEmptyMagic):
		return FormatZip, nil
	case bytes.HasPrefix(head, gzipMagic):
		return FormatTarGz, nil
	default:
		return FormatUnknown, nil
	}
}

// Extractor unpacks archives next to where they were downloaded
type Extractor struct {
	maxBytes    int64
	progress    bool
	progressOut io.Writer
	logger      *utils.Logger
}

// ExtractorOptions contains options for creating an Extractor
type ExtractorOptions struct {
	// MaxBytes bounds the total uncompressed size. 0 means unlimited.
	MaxBytes int64
	// Progress renders an entry counter on ProgressOutput (stderr by default)
	Progress       bool
	ProgressOutput io.Writer
	Logger         *utils.Logger
}

// NewExtractor creates a new Extractor
func NewExtractor(opts ExtractorOptions) *Extractor {
	if opts.Logger == nil {
		opts.Logger = utils.NewNopLogger()
	}
	if opts.MaxBytes < 0 {
		opts.MaxBytes = 0
	}
	return &Extractor{
		maxBytes:    opts.MaxBytes,
		progress:    opts.Progress,
		progressOut: opts.ProgressOutput,
		logger:      opts.Logger.WithComponent("extractor"),
	}
}

// Extract unpacks archivePath into a sibling "extracted" directory and returns
// the canonical root: the single top-level directory when the archive has exactly
// one, the extraction directory otherwise.
func (e *Extractor) Extract(ctx context.Context, archivePath string) (string, error) {
	format, err := DetectFormat(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to read archive: %w", err)
	}

	destDir := filepath.Join(filepath.Dir(archivePath), ExtractedDirName)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("mkdir failed: %w", err)
	}

	e.logger.Debug().
		Str("archive", archivePath).
		Str("format", format.String()).
		Msg("Extracting archive")

	budget := &byteBudget{limit: e.maxBytes}
	switch format {
	case FormatZip:
		err = e.extractZip(ctx, archivePath, destDir, budget)
	case FormatTarGz:
		err = e.extractTarGz(ctx, archivePath, destDir, budget)
	default:
		return "", fmt.Errorf("%s: %w", filepath.Base(archivePath), ErrUnsupportedFormat)
	}
	if err != nil {
		return "", err
	}

	root := destDir
	if single, ok := utils.SingleSubdirectory(destDir); ok {
		root = single
	}

	e.logger.Debug().
		Str("root", root).
		Int64("bytes", budget.used).
		Msg("Archive extracted")

	return root, nil
}

func (e *Extractor) extractZip(ctx context.Context, archivePath, destDir string, budget *byteBudget) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("zip reader failed: %w", err)
	}
	defer zr.Close()

	tick := e.newTicker(len(zr.File))
	defer tick.close()

	for _, file := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		tick.add()

		targetPath, ok := utils.SafeJoin(destDir, file.Name)
		if !ok {
			e.logger.Warn().Str("entry", file.Name).Msg("Skipping archive entry outside destination")
			continue
		}

		mode := file.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(targetPath, 0755); err != nil {
				return fmt.Errorf("mkdir failed: %w", err)
			}
		case mode.IsRegular():
			rc, err := file.Open()
			if err != nil {
				return fmt.Errorf("open entry %s failed: %w", file.Name, err)
			}
			err = writeFile(targetPath, rc, mode.Perm(), budget)
			rc.Close()
			if err != nil {
				return err
			}
		default:
			e.logger.Debug().Str("entry", file.Name).Msg("Skipping non-regular archive entry")
		}
	}

	return nil
}

func (e *Extractor) extractTarGz(ctx context.Context, archivePath, destDir string, budget *byteBudget) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("gzip reader failed: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)

	tick := e.newTicker(-1)
	defer tick.close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("tar read failed: %w", err)
		}
		tick.add()

		targetPath, ok := utils.SafeJoin(destDir, header.Name)
		if !ok {
			e.logger.Warn().Str("entry", header.Name).Msg("Skipping archive entry outside destination")
			continue
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, 0755); err != nil {
				return fmt.Errorf("mkdir failed: %w", err)
			}
		case tar.TypeReg:
			if err := writeFile(targetPath, tr, os.FileMode(header.Mode).Perm(), budget); err != nil {
				return err
			}
		default:
			// pax headers, symlinks and devices are not materialized
			e.logger.Debug().Str("entry", header.Name).Msg("Skipping non-regular archive entry")
		}
	}

	return nil
}

// ticker counts processed entries on a progress bar when progress is enabled
type ticker struct {
	bar *progressbar.ProgressBar
}

func (e *Extractor) newTicker(total int) ticker {
	if !e.progress {
		return ticker{}
	}
	return ticker{bar: utils.NewProgressBar(total, utils.DescExtracting, e.progressOut)}
}

func (t ticker) add() {
	if t.bar != nil {
		_ = t.bar.Add(1)
	}
}

func (t ticker) close() {
	if t.bar != nil {
		_ = t.bar.Finish()
	}
}

func writeFile(targetPath string, r io.Reader, perm os.FileMode, budget *byteBudget) error {
	if err := utils.EnsureDir(targetPath); err != nil {
		return fmt.Errorf("mkdir failed: %w", err)
	}
	if perm == 0 {
		perm = 0644
	}

	file, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0200)
	if err != nil {
		return fmt.Errorf("create file failed: %w", err)
	}

	if _, err := budget.copy(file, r); err != nil {
		file.Close()
		return fmt.Errorf("copy %s failed: %w", filepath.Base(targetPath), err)
	}
	return file.Close()
}

// byteBudget tracks uncompressed bytes written across all entries
type byteBudget struct {
	limit int64
	used  int64
}

func (b *byteBudget) copy(dst io.Writer, src io.Reader) (int64, error) {
	if b.limit <= 0 {
		n, err := io.Copy(dst, src)
		b.used += n
		return n, err
	}

	remaining := b.limit - b.used
	n, err := io.Copy(dst, io.LimitReader(src, remaining+1))
	b.used += n
	if err != nil {
		return n, err
	}
	if b.used > b.limit {
		return n, ErrTooLarge
	}
	return n, nil
}
