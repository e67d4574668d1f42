package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/turtacn/padel-featurizer/internal/application/featurize"
	"github.com/turtacn/padel-featurizer/internal/featurizer/export"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// DefaultMaxBodySize bounds a featurize request body.
const DefaultMaxBodySize = 8 << 20

// FeaturizeHandler exposes the featurize service.
type FeaturizeHandler struct {
	svc         featurize.Service
	logger      logging.Logger
	maxBodySize int64
}

// NewFeaturizeHandler creates the handler.  maxBodySize <= 0 uses
// DefaultMaxBodySize.
func NewFeaturizeHandler(svc featurize.Service, logger logging.Logger, maxBodySize int64) *FeaturizeHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}
	return &FeaturizeHandler{svc: svc, logger: logger, maxBodySize: maxBodySize}
}

// FeaturizeResponse is the JSON body of POST /api/v1/featurize.  Rows hold
// null where a value is NaN.
type FeaturizeResponse struct {
	Featurizer string       `json:"featurizer"`
	Columns    []string     `json:"columns"`
	Rows       [][]*float64 `json:"rows"`
	Kept       []int        `json:"kept"`
	Failed     []int        `json:"failed,omitempty"`
	DurationMs int64        `json:"duration_ms"`
}

// Featurize handles POST /api/v1/featurize.  The body is
// {"smiles": [...], "ignore_errors": bool}.  ?format=csv|npy|xlsx streams
// the table in that format instead of JSON.
func (h *FeaturizeHandler) Featurize(w http.ResponseWriter, r *http.Request) {
	var req featurize.Request
	body := http.MaxBytesReader(w, r.Body, h.maxBodySize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		if err == io.EOF {
			writeAppError(w, errors.New(errors.ErrCodeBadRequest, "request body is empty"))
			return
		}
		writeAppError(w, errors.Wrap(err, errors.ErrCodeBadRequest, "invalid request body"))
		return
	}

	format := export.Format(strings.ToLower(r.URL.Query().Get("format")))
	var writer export.Writer
	if format != "" && format != export.FormatJSON {
		var err error
		if writer, err = export.WriterFor(format); err != nil {
			writeAppError(w, errors.Wrap(err, errors.ErrCodeBadRequest, "unsupported format"))
			return
		}
	}

	resp, err := h.svc.Featurize(r.Context(), &req)
	if err != nil {
		writeAppError(w, err)
		return
	}

	if writer != nil {
		w.Header().Set("Content-Type", contentType(format))
		w.Header().Set("Content-Disposition", `attachment; filename="features.`+string(format)+`"`)
		if err := writer.Write(w, resp.Table(&req)); err != nil {
			h.logger.Error("failed to stream features", logging.String("format", string(format)), logging.Err(err))
		}
		return
	}

	rows := make([][]*float64, len(resp.Rows))
	for i, row := range resp.Rows {
		rows[i] = export.NullableRow(row)
	}
	writeJSON(w, http.StatusOK, FeaturizeResponse{
		Featurizer: resp.Featurizer,
		Columns:    resp.Columns,
		Rows:       rows,
		Kept:       resp.Kept,
		Failed:     resp.Failed(),
		DurationMs: resp.Duration.Milliseconds(),
	})
}

// Columns handles GET /api/v1/columns.
func (h *FeaturizeHandler) Columns(w http.ResponseWriter, r *http.Request) {
	cols := h.svc.Columns()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"featurizer": h.svc.Name(),
		"count":      len(cols),
		"columns":    cols,
	})
}

// Params handles GET /api/v1/params.
func (h *FeaturizeHandler) Params(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Params())
}

func contentType(f export.Format) string {
	switch f {
	case export.FormatCSV:
		return "text/csv"
	case export.FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}
