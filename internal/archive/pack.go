package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zip"

	"rezip/internal/faults"
	"rezip/internal/logging"
)

const (
	stagePack = "pack"
	entryMode = 0o644
)

// PackStats summarizes a packed archive.
type PackStats struct {
	Files    int
	Dirs     int
	Excluded int
	Skipped  int
	Bytes    int64
	Duration time.Duration
}

// Packer writes staging directories into canonical zip archives.
type Packer struct {
	logger *slog.Logger
}

// NewPacker returns a Packer. A nil logger discards output.
func NewPacker(logger *slog.Logger) *Packer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Packer{logger: logger}
}

// Pack writes every path of stagingDir accepted by filter into a new zip at
// destination. All records are Stored with mode 0644. The destination must
// not exist; on a failure after creation the partial file is left in place.
func (p *Packer) Pack(ctx context.Context, stagingDir, destination string, filter Filter) (PackStats, error) {
	start := time.Now()
	var stats PackStats
	if filter == nil {
		filter = IncludeAll
	}

	info, err := os.Stat(stagingDir)
	if err != nil || !info.IsDir() {
		if err == nil {
			err = errors.New("not a directory")
		}
		return stats, faults.Wrap(faults.ErrSourceNotFound, stagePack, "stat staging", stagingDir, err)
	}
	if _, err := os.Lstat(destination); err == nil {
		return stats, faults.Wrap(faults.ErrDestinationExists, stagePack, "check destination", destination, nil)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return stats, faults.Wrap(faults.ErrIO, stagePack, "check destination", destination, err)
	}

	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return stats, faults.Wrap(faults.ErrIO, stagePack, "create destination parent", destination, err)
	}
	out, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return stats, faults.Wrap(faults.ErrDestinationExists, stagePack, "create destination", destination, err)
		}
		return stats, faults.Wrap(faults.ErrIO, stagePack, "create destination", destination, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	walkErr := filepath.WalkDir(stagingDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == stagingDir {
			return nil
		}
		rel, err := filepath.Rel(stagingDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		switch {
		case d.IsDir():
			if !filter.Include(rel, true) {
				stats.Excluded++
				return fs.SkipDir
			}
			if err := writeDirRecord(zw, rel, d); err != nil {
				return err
			}
			stats.Dirs++
			return nil
		case d.Type()&fs.ModeSymlink != 0, !d.Type().IsRegular():
			stats.Skipped++
			p.logger.Debug("skipping non-regular staged path", logging.String("path", rel))
			return nil
		}

		if !filter.Include(rel, false) {
			stats.Excluded++
			return nil
		}
		n, err := writeFileRecord(zw, path, rel, d)
		if err != nil {
			return err
		}
		stats.Files++
		stats.Bytes += n
		return nil
	})
	if walkErr != nil {
		_ = zw.Close()
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(walkErr, ctxErr) {
			return stats, walkErr
		}
		return stats, faults.Wrap(faults.ErrIO, stagePack, "write entries", destination, walkErr)
	}

	if err := zw.Close(); err != nil {
		return stats, faults.Wrap(faults.ErrIO, stagePack, "finalize", destination, err)
	}
	if err := out.Close(); err != nil {
		return stats, faults.Wrap(faults.ErrIO, stagePack, "close", destination, err)
	}
	stats.Duration = time.Since(start)
	return stats, nil
}

func writeDirRecord(zw *zip.Writer, rel string, d fs.DirEntry) error {
	header := &zip.FileHeader{
		Name:   rel + "/",
		Method: zip.Store,
	}
	if info, err := d.Info(); err == nil {
		header.Modified = info.ModTime()
	}
	header.SetMode(fs.ModeDir | entryMode)
	if _, err := zw.CreateHeader(header); err != nil {
		return fmt.Errorf("directory record %s: %w", rel, err)
	}
	return nil
}

func writeFileRecord(zw *zip.Writer, path, rel string, d fs.DirEntry) (int64, error) {
	info, err := d.Info()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", rel, err)
	}
	header := &zip.FileHeader{
		Name:     rel,
		Method:   zip.Store,
		Modified: info.ModTime(),
	}
	header.SetMode(entryMode)

	w, err := zw.CreateHeader(header)
	if err != nil {
		return 0, fmt.Errorf("file record %s: %w", rel, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", rel, err)
	}
	defer f.Close()
	n, err := io.Copy(w, f)
	if err != nil {
		return n, fmt.Errorf("copy %s: %w", rel, err)
	}
	return n, nil
}
