package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/zeto-space/exoclassify/internal/export"
)

var exportTypes = map[string]string{
	"csv":  "text/csv",
	"json": "application/json",
	"yaml": "application/yaml",
}

// HandleExport renders posted rows as a downloadable file.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	contentType, ok := exportTypes[format]
	if !ok {
		h.writeError(w, "Unsupported export format: "+format, http.StatusBadRequest)
		return
	}

	var rows []export.Row
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&rows); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case "csv":
		var text string
		text, err = export.ToDelimitedText(rows)
		buf.WriteString(text)
	case "json":
		err = export.WriteJSON(&buf, rows)
	case "yaml":
		err = export.WriteYAML(&buf, rows)
	}
	if errors.Is(err, export.ErrEmptyExport) {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.writeError(w, "Export failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	name := export.FileName(export.ResultsPrefix, format, h.now())
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
