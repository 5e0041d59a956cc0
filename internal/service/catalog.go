package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/buildstream-io/buildstream/pkg/idx"
	"github.com/buildstream-io/buildstream/pkg/slogx"
)

var (
	// ErrInvalidFileFormat reports an upload that is not a .json file.
	ErrInvalidFileFormat = errors.New("service: catalog file must be a .json file")

	// ErrInvalidJSON reports a catalog file whose contents are not a JSON object.
	ErrInvalidJSON = errors.New("service: catalog file contains invalid JSON")

	// ErrInvalidJobID reports a malformed job identifier.
	ErrInvalidJobID = errors.New("service: invalid job id")
)

// CatalogResult describes a completed parse run.
type CatalogResult struct {
	Message    string
	OutputPath string
}

// CatalogService parses uploaded catalog files for a build job and writes
// the normalized catalog under the job's output directory.
type CatalogService struct {
	OutputDir string
}

// ParseCatalog validates and normalizes an uploaded catalog JSON document.
// The normalized form is written to <OutputDir>/<jobID>/catalog.json.
func (s *CatalogService) ParseCatalog(
	ctx context.Context,
	jobID string,
	filename string,
	contents []byte,
) (CatalogResult, error) {
	l := slogx.FromContext(ctx)

	if _, err := idx.Parse(jobID); err != nil {
		return CatalogResult{}, fmt.Errorf("%w: %s", ErrInvalidJobID, jobID)
	}
	if !strings.EqualFold(filepath.Ext(filename), ".json") {
		return CatalogResult{}, fmt.Errorf("%w: got %q", ErrInvalidFileFormat, filename)
	}

	var catalog map[string]any
	if err := json.Unmarshal(contents, &catalog); err != nil {
		return CatalogResult{}, fmt.Errorf("%w: %s", ErrInvalidJSON, filename)
	}
	if len(catalog) == 0 {
		return CatalogResult{}, fmt.Errorf("%w: catalog is empty", ErrInvalidJSON)
	}

	normalized, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return CatalogResult{}, fmt.Errorf("normalizing catalog: %w", err)
	}

	jobDir := filepath.Join(s.OutputDir, jobID)
	if err := os.MkdirAll(jobDir, 0o750); err != nil {
		return CatalogResult{}, fmt.Errorf("creating job output directory: %w", err)
	}

	outputPath := filepath.Join(jobDir, "catalog.json")
	if err := os.WriteFile(outputPath, normalized, 0o640); err != nil {
		return CatalogResult{}, fmt.Errorf("writing normalized catalog: %w", err)
	}

	l.Info("catalog parsed", "job_id", jobID, "entries", len(catalog), "output_path", outputPath)

	return CatalogResult{
		Message:    fmt.Sprintf("catalog parsed: %d top-level entries", len(catalog)),
		OutputPath: outputPath,
	}, nil
}
