package reporter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/rs/zerolog"
)

// OutputWriter stores encoded documents in the output directory. An existing
// file with the same name is removed before the new one is written.
type OutputWriter struct {
	fs billy.Filesystem
}

// NewOutputWriter writes into dir on the local disk, creating it when needed.
func NewOutputWriter(dir string) (*OutputWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", dir, err)
	}
	return NewOutputWriterFS(osfs.New(dir)), nil
}

// NewOutputWriterFS writes into an arbitrary filesystem.
func NewOutputWriterFS(fs billy.Filesystem) *OutputWriter {
	return &OutputWriter{fs: fs}
}

// Write stores data as fileName and returns the full path written.
func (w *OutputWriter) Write(ctx context.Context, fileName string, data []byte) (string, error) {
	logger := zerolog.Ctx(ctx)
	full := w.fs.Join(w.fs.Root(), fileName)

	if _, err := w.fs.Stat(fileName); err == nil {
		logger.Debug().Str("file", full).Msg("removing previous output")
		if err := w.fs.Remove(fileName); err != nil {
			return "", fmt.Errorf("removing %s: %w", full, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("checking %s: %w", full, err)
	}

	if err := util.WriteFile(w.fs, fileName, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", full, err)
	}
	logger.Info().Str("file", full).Int("bytes", len(data)).Msg("wrote bom")
	return full, nil
}
