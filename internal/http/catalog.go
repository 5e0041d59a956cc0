package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/buildstream-io/buildstream/internal/service"
	"github.com/buildstream-io/buildstream/pkg/httpx"
	"github.com/buildstream-io/buildstream/pkg/slogx"
)

// maxCatalogUploadBytes bounds multipart uploads to parse-catalog.
const maxCatalogUploadBytes = 10 << 20

// ParseCatalogResponse reports the outcome of a parse-catalog stage run.
type ParseCatalogResponse struct {
	JobID      string `json:"job_id"`
	Message    string `json:"message"`
	OutputPath string `json:"output_path"`
}

// CatalogHandler serves POST /jobs/{jobId}/stages/parse-catalog. The catalog
// is uploaded as a multipart form file under the "file" field.
type CatalogHandler struct {
	CatalogService *service.CatalogService
}

func (h *CatalogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	jobID := r.PathValue("jobId")

	r.Body = http.MaxBytesReader(w, r.Body, maxCatalogUploadBytes)
	if err := r.ParseMultipartForm(maxCatalogUploadBytes); err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Expected a multipart form upload with a \"file\" field")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Missing \"file\" field in multipart form")
		return
	}
	defer file.Close()

	contents, err := io.ReadAll(file)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Failed to read uploaded file")
		return
	}

	result, err := h.CatalogService.ParseCatalog(ctx, jobID, header.Filename, contents)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidJobID):
			httpx.WriteError(w, http.StatusBadRequest,
				"invalid_request", "Malformed job id")
		case errors.Is(err, service.ErrInvalidFileFormat):
			httpx.WriteError(w, http.StatusBadRequest,
				"invalid_request", "Catalog must be uploaded as a .json file")
		case errors.Is(err, service.ErrInvalidJSON):
			httpx.WriteError(w, http.StatusBadRequest,
				"invalid_request", "Catalog file does not contain a valid JSON object")
		default:
			log.Error("failed to parse catalog", "error", err, "job_id", jobID)
			httpx.WriteError(w, http.StatusInternalServerError,
				"server_error", "Failed to parse catalog")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, ParseCatalogResponse{
		JobID:      jobID,
		Message:    result.Message,
		OutputPath: result.OutputPath,
	})
}
