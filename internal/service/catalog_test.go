package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buildstream-io/buildstream/pkg/idx"
)

func TestParseCatalogScenario(t *testing.T) {
	ctx := context.Background()
	svc := &CatalogService{OutputDir: t.TempDir()}
	jobID := idx.New().String()

	raw := []byte(`{"artifacts":[{"name":"core","version":"1.2.0"}],"channel":"stable"}`)
	result, err := svc.ParseCatalog(ctx, jobID, "catalog.json", raw)
	require.NoError(t, err)
	require.Contains(t, result.Message, "2 top-level entries")
	require.Equal(t, filepath.Join(svc.OutputDir, jobID, "catalog.json"), result.OutputPath)

	data, err := os.ReadFile(result.OutputPath)
	require.NoError(t, err)

	var catalog map[string]any
	require.NoError(t, json.Unmarshal(data, &catalog))
	require.Equal(t, "stable", catalog["channel"])
}

func TestParseCatalogRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	svc := &CatalogService{OutputDir: t.TempDir()}
	jobID := idx.New().String()

	t.Run("malformed job id", func(t *testing.T) {
		_, err := svc.ParseCatalog(ctx, "not-a-job-id", "catalog.json", []byte(`{"a":1}`))
		require.ErrorIs(t, err, ErrInvalidJobID)
	})

	t.Run("non json extension", func(t *testing.T) {
		_, err := svc.ParseCatalog(ctx, jobID, "catalog.yaml", []byte(`{"a":1}`))
		require.ErrorIs(t, err, ErrInvalidFileFormat)
	})

	t.Run("invalid json body", func(t *testing.T) {
		_, err := svc.ParseCatalog(ctx, jobID, "catalog.json", []byte(`{"a":`))
		require.ErrorIs(t, err, ErrInvalidJSON)
	})

	t.Run("empty catalog object", func(t *testing.T) {
		_, err := svc.ParseCatalog(ctx, jobID, "catalog.json", []byte(`{}`))
		require.ErrorIs(t, err, ErrInvalidJSON)
	})
}

func TestParseCatalogOverwritesPreviousRun(t *testing.T) {
	ctx := context.Background()
	svc := &CatalogService{OutputDir: t.TempDir()}
	jobID := idx.New().String()

	_, err := svc.ParseCatalog(ctx, jobID, "catalog.json", []byte(`{"rev":1}`))
	require.NoError(t, err)
	result, err := svc.ParseCatalog(ctx, jobID, "catalog.json", []byte(`{"rev":2}`))
	require.NoError(t, err)

	data, err := os.ReadFile(result.OutputPath)
	require.NoError(t, err)
	require.Contains(t, string(data), `"rev": 2`)
}
