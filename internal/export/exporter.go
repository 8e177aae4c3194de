package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/triage-ai/denywatch/internal/job"
)

// ErrUpload aggregates per-file upload failures. Upload failure is
// post-hoc: it never changes job-level success.
var ErrUpload = errors.New("upload failed")

// Exporter writes the integrity manifest next to the exported files and,
// when an upload URL is configured, pushes each file plus the manifest to
// the collaborator endpoint.
type Exporter struct {
	dir       string
	uploadURL string // empty disables upload
	http      *http.Client
	logger    *zap.Logger
}

// New creates an Exporter for the given output directory. uploadURL may be
// empty, in which case only the manifest is produced.
func New(dir, uploadURL string, logger *zap.Logger) *Exporter {
	return &Exporter{
		dir:       dir,
		uploadURL: uploadURL,
		http:      &http.Client{Timeout: 2 * time.Minute},
		logger:    logger,
	}
}

// Export builds and writes the manifest, then uploads. Implements the
// orchestrator's export step.
func (e *Exporter) Export(ctx context.Context, batchID string, start, end time.Time, results []job.Result) error {
	manifest, err := BuildManifest(batchID, start, end, results)
	if err != nil {
		return err
	}

	if manifest.AllEmpty() {
		e.logger.Warn("every export in this batch is empty; check the window and source activity",
			zap.String("batch_id", batchID),
		)
	}

	manifestPath, err := manifest.Write(e.dir)
	if err != nil {
		return err
	}
	e.logger.Info("manifest written",
		zap.String("path", manifestPath),
		zap.Int("files", len(manifest.Files)),
	)

	if e.uploadURL == "" {
		return nil
	}

	paths := make([]string, 0, len(manifest.Files)+1)
	for _, f := range manifest.Files {
		paths = append(paths, filepath.Join(e.dir, f.Name))
	}
	paths = append(paths, manifestPath)

	failed := 0
	for _, path := range paths {
		if err := e.uploadFile(ctx, batchID, path); err != nil {
			failed++
			e.logger.Warn("file upload failed",
				zap.String("file", filepath.Base(path)),
				zap.Error(err),
			)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d files", ErrUpload, failed, len(paths))
	}
	return nil
}

// uploadFile PUTs one file to <uploadURL>/<batchID>/<name>.
func (e *Exporter) uploadFile(ctx context.Context, batchID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s/%s", e.uploadURL, batchID, filepath.Base(path))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, f)
	if err != nil {
		return err
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := e.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload returned %d", resp.StatusCode)
	}
	return nil
}
