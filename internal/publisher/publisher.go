// Package publisher delivers a finished PriceReport, either as the static
// artifact on disk or as an HTTP response body.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"mspro-labs/coffee-prices/internal/models"
)

// Sink receives the report of a successful run.
type Sink interface {
	Publish(ctx context.Context, report models.PriceReport) error
}

// Encode renders a report the way every sink writes it.
func Encode(report models.PriceReport) ([]byte, error) {
	return json.MarshalIndent(report, "", "  ")
}

// FileSink overwrites the static artifact at Path.
type FileSink struct {
	Path string
	Now  func() time.Time
}

// Publish stamps fetchedAt and replaces the file. The new content is written
// to a sibling temp file and renamed into place, so a failed write leaves the
// previous artifact intact.
func (s FileSink) Publish(_ context.Context, report models.PriceReport) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	report.FetchedAt = now().UTC().Format(time.RFC3339)

	data, err := Encode(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".prices-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to set report permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.Path, err)
	}
	return nil
}

// LiveNote marks reports produced on request rather than read from the artifact.
const LiveNote = "Live Data via headless browser"

// ResponseSink answers a single HTTP request with the report.
type ResponseSink struct {
	W http.ResponseWriter
}

// Publish stamps note and answers 200 with the report.
func (s ResponseSink) Publish(_ context.Context, report models.PriceReport) error {
	report.Note = LiveNote
	return writeJSON(s.W, http.StatusOK, report)
}

// WriteError answers with 500 and {"error": msg}.
func WriteError(w http.ResponseWriter, err error) error {
	return writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, err = w.Write(data)
	return err
}
