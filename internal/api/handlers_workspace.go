package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sheetflow/app"
	domaingrouping "sheetflow/domain/grouping"
	"sheetflow/domain/sheet"
	"sheetflow/internal/errors"
)

type workspaceResponse struct {
	ID      string             `json:"id"`
	State   app.State          `json:"state"`
	Quality sheet.QualityStats `json:"quality"`
}

func newWorkspaceResponse(ws *app.Workspace) workspaceResponse {
	state := ws.State()
	return workspaceResponse{ID: ws.ID(), State: state, Quality: state.Quality()}
}

func (s *Server) handleListSpreadsheets(w http.ResponseWriter, r *http.Request) {
	files, err := s.workspaces.Source().ListSpreadsheets(r.Context())
	if err != nil {
		writeError(w, wrapSource(err))
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleListTabs(w http.ResponseWriter, r *http.Request) {
	tabs, err := s.workspaces.Source().ListTabs(r.Context(), chi.URLParam(r, "spreadsheetID"))
	if err != nil {
		writeError(w, wrapSource(err))
		return
	}
	writeJSON(w, http.StatusOK, tabs)
}

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"workspaces": s.workspaces.List()})
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, newWorkspaceResponse(s.workspaces.Create()))
}

// workspace resolves the {workspaceID} path parameter, writing the error itself
func (s *Server) workspace(w http.ResponseWriter, r *http.Request) (*app.Workspace, bool) {
	ws, err := s.workspaces.Get(chi.URLParam(r, "workspaceID"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return ws, true
}

func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newWorkspaceResponse(ws))
}

func (s *Server) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	if err := s.workspaces.Delete(chi.URLParam(r, "workspaceID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req app.PreviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if _, err := ws.LoadPreview(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newWorkspaceResponse(ws))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	if _, err := ws.RefreshFromSheets(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newWorkspaceResponse(ws))
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req app.SaveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.UserID.IsEmpty() {
		req.UserID = s.defaultUserID
	}
	summary, err := ws.SaveToDataset(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	if _, err := ws.Retry(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newWorkspaceResponse(ws))
}

// edit runs a snapshot edit and responds with the new workspace state
func (s *Server) edit(w http.ResponseWriter, r *http.Request, fn func(*app.Workspace) error) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	if err := fn(ws); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newWorkspaceResponse(ws))
}

func (s *Server) handleOverrideType(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type sheet.InferredType `json:"type"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	s.edit(w, r, func(ws *app.Workspace) error {
		_, err := ws.OverrideColumnType(chi.URLParam(r, "column"), body.Type)
		return err
	})
}

func (s *Server) handleSetCell(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Row    int         `json:"row"`
		Column string      `json:"column"`
		Value  sheet.Value `json:"value"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	s.edit(w, r, func(ws *app.Workspace) error {
		_, err := ws.SetCell(body.Row, body.Column, body.Value)
		return err
	})
}

func (s *Server) handleRemoveRows(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rows []int `json:"rows"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	s.edit(w, r, func(ws *app.Workspace) error {
		_, err := ws.RemoveRows(body.Rows)
		return err
	})
}

func (s *Server) handleRemoveColumns(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Columns []string `json:"columns"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	s.edit(w, r, func(ws *app.Workspace) error {
		_, err := ws.RemoveColumns(body.Columns)
		return err
	})
}

// handleSetGrouping takes a grouping config over the defaults; a null body
// turns grouping off
func (s *Server) handleSetGrouping(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := decodeJSON(r, &raw); err != nil {
		writeError(w, err)
		return
	}
	var cfg *domaingrouping.Config
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		defaults := domaingrouping.DefaultConfig()
		if err := json.Unmarshal(trimmed, &defaults); err != nil {
			writeError(w, errors.InvalidInput("invalid grouping config: "+err.Error()))
			return
		}
		cfg = &defaults
	}
	s.edit(w, r, func(ws *app.Workspace) error {
		_, err := ws.SetGrouping(cfg)
		return err
	})
}

func (s *Server) handleCollapse(w http.ResponseWriter, r *http.Request) {
	s.edit(w, r, func(ws *app.Workspace) error {
		_, err := ws.Collapse(chi.URLParam(r, "groupID"))
		return err
	})
}

func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	s.edit(w, r, func(ws *app.Workspace) error {
		_, err := ws.Expand(chi.URLParam(r, "groupID"))
		return err
	})
}
