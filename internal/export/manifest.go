package export

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/triage-ai/denywatch/internal/job"
)

// FileEntry describes one exported file in the manifest.
type FileEntry struct {
	Name        string `json:"name"`
	Source      string `json:"source"`
	RecordCount int    `json:"recordCount"`
	SHA256      string `json:"sha256"`
	IsEmpty     bool   `json:"isEmpty"`
}

// Manifest is the integrity record written next to the exports. Verifiers
// recompute each file's SHA-256 and compare against the manifest.
type Manifest struct {
	BatchID     string      `json:"batchId"`
	GeneratedAt time.Time   `json:"generatedAt"`
	WindowStart time.Time   `json:"windowStart"`
	WindowEnd   time.Time   `json:"windowEnd"`
	Files       []FileEntry `json:"files"`
}

// BuildManifest hashes every file-backed job output. Results without a
// local file output (failed jobs, non-file sinks) are left out.
func BuildManifest(batchID string, start, end time.Time, results []job.Result) (*Manifest, error) {
	m := &Manifest{
		BatchID:     batchID,
		GeneratedAt: time.Now().UTC(),
		WindowStart: start,
		WindowEnd:   end,
	}

	for _, r := range results {
		if !r.Succeeded || r.OutputLocation == "" {
			continue
		}
		if _, err := os.Stat(r.OutputLocation); err != nil {
			// Non-file location (e.g. a database locator).
			continue
		}
		sum, err := hashFile(r.OutputLocation)
		if err != nil {
			return nil, fmt.Errorf("BuildManifest: %w", err)
		}
		m.Files = append(m.Files, FileEntry{
			Name:        filepath.Base(r.OutputLocation),
			Source:      r.Source.String(),
			RecordCount: r.EventCount,
			SHA256:      sum,
			IsEmpty:     r.EventCount == 0,
		})
	}
	return m, nil
}

// AllEmpty reports whether every manifest file carries zero records.
func (m *Manifest) AllEmpty() bool {
	for _, f := range m.Files {
		if !f.IsEmpty {
			return false
		}
	}
	return len(m.Files) > 0
}

// Write serializes the manifest as manifest.json in dir and returns its path.
func (m *Manifest) Write(dir string) (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("manifest: %w", err)
	}
	path := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("manifest: %w", err)
	}
	return path, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
