package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeto-space/exoclassify/internal/bulk"
	"github.com/zeto-space/exoclassify/internal/export"
	"github.com/zeto-space/exoclassify/internal/models"
	"github.com/zeto-space/exoclassify/internal/schema"
)

func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var (
		records  []schema.Record
		fileName string
		err      error
	)
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		records, fileName, err = h.readMultipart(r)
	} else {
		records, err = bulk.ParseReader(r.Body)
	}
	if err != nil {
		h.writeError(w, err.Error(), uploadStatus(err))
		return
	}

	slog.Info("Bulk upload parsed", "file", fileName, "records", len(records))

	result, err := h.service.AnalyzeBatch(r.Context(), records)
	if err != nil {
		h.writeError(w, "Batch analysis failed: "+err.Error(), errorStatus(err))
		return
	}

	h.writeJSON(w, models.UploadResponse{
		FileName:   fileName,
		Records:    len(records),
		Results:    result.Raw,
		Verdicts:   result.Verdicts,
		Summary:    result.Summary,
		AnalysisID: result.AnalysisID,
		Briefing:   result.Briefing,
		ExportName: export.FileName(export.ResultsPrefix, "csv", h.now()),
	})
}

func (h *Handler) readMultipart(r *http.Request) ([]schema.Record, string, error) {
	file, header, err := r.FormFile("files")
	if err != nil {
		file, header, err = r.FormFile("file")
		if err != nil {
			return nil, "", fmt.Errorf("failed to read file: %w", err)
		}
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".parquet") {
		records, err := bulk.ParseReader(file)
		return records, header.Filename, err
	}

	// Parquet needs random access, so spool it to disk first.
	tmp, err := os.CreateTemp("", "exoclassify-*.parquet")
	if err != nil {
		return nil, header.Filename, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, file); err != nil {
		return nil, header.Filename, fmt.Errorf("spool upload: %w", err)
	}
	records, err := bulk.LoadParquet(tmp.Name())
	return records, header.Filename, err
}

func uploadStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	if code := errorStatus(err); code != http.StatusInternalServerError {
		return code
	}
	return http.StatusBadRequest
}
