package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sheetflow/domain/core"
	"sheetflow/domain/dataset"
	"sheetflow/internal/errors"
)

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	userID := core.ID(r.URL.Query().Get("user_id"))
	if userID.IsEmpty() {
		userID = s.defaultUserID
	}
	out, err := s.datasets.ListDatasets(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"datasets": out})
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	detail, err := s.datasets.GetDataset(r.Context(), core.ID(chi.URLParam(r, "datasetID")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleQueryRows(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := dataset.RowQuery{
		DatasetID:     core.ID(chi.URLParam(r, "datasetID")),
		ImportBatchID: core.ID(params.Get("batch")),
		Role:          dataset.RowRole(params.Get("role")),
		Search:        params.Get("q"),
	}
	var err error
	if q.Limit, err = intParam(params.Get("limit")); err != nil {
		writeError(w, err)
		return
	}
	if q.Offset, err = intParam(params.Get("offset")); err != nil {
		writeError(w, err)
		return
	}

	page, err := s.datasets.QueryRows(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	if err := s.datasets.DeepDelete(r.Context(), core.ID(chi.URLParam(r, "datasetID"))); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.InvalidInput("expected an integer, got " + strconv.Quote(raw))
	}
	return n, nil
}

func wrapSource(err error) error {
	if errors.IsAppError(err) {
		return err
	}
	return errors.ExternalServiceError("sheet source", err)
}
