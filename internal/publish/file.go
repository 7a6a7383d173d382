package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/yegors/birdnest/internal/report"
	"github.com/yegors/birdnest/pkg/logger"
)

// FilePublisher writes the report as JSON to a file. The file is replaced by
// rename so readers never see a partial write.
type FilePublisher struct {
	path   string
	logger *logger.Logger
}

// NewFilePublisher creates a publisher writing to path
func NewFilePublisher(path string, logger *logger.Logger) *FilePublisher {
	return &FilePublisher{
		path:   path,
		logger: logger.Named("file-pub"),
	}
}

// Path returns the output file location
func (p *FilePublisher) Path() string {
	return p.path
}

// Publish implements Publisher
func (p *FilePublisher) Publish(_ context.Context, rep *report.Report) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return &PublishError{Sink: p.path, Err: fmt.Errorf("failed to encode report: %w", err)}
	}
	data = append(data, '\n')

	if err := writeFileAtomic(p.path, data, 0o644); err != nil {
		return &PublishError{Sink: p.path, Err: err}
	}

	p.logger.Debug("Report written",
		logger.String("path", p.path),
		logger.Int("entries", len(rep.Entries)),
		logger.String("size", humanize.Bytes(uint64(len(data)))),
	)
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	// removes the temp file on any failure below; a no-op after a successful rename
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
