package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/formsync-dev/formsync/pkg/formdata"
	"github.com/formsync-dev/formsync/pkg/store"
	"github.com/formsync-dev/formsync/pkg/submit"
)

// errUnsupportedMedia is returned when a snapshot body carries a
// Content-Type no decoder handles.
var errUnsupportedMedia = errors.New("server: unsupported content type")

// handleHealthz reports liveness.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSnapshot ingests one client snapshot: decode the body per its
// Content-Type, reconcile against the canonical state, persist when the
// snapshot changed anything, and answer with the diff.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "form")

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)

	snap, err := s.decodeSnapshot(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, errUnsupportedMedia):
			writeError(w, http.StatusUnsupportedMediaType, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	st := s.form(r.Context(), formID)
	diff, err := st.rec.Apply(r.Context(), snap)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if diff.HasDiff {
		if err := s.store.Save(r.Context(), formID, st.rec.Current()); err != nil {
			s.logger.Error("snapshot save failed", "form", formID, "error", err)
			writeError(w, http.StatusInternalServerError, "snapshot not persisted")
			return
		}
	}

	writeJSON(w, http.StatusOK, diff)
}

// decodeSnapshot decodes the request body into a snapshot. JSON bodies
// decode directly; url-encoded and multipart bodies go through the form
// decoder, so their scalars stay strings.
func (s *Server) decodeSnapshot(r *http.Request) (formdata.FormData, error) {
	mediaType := ""
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return nil, fmt.Errorf("server: invalid content type: %w", err)
		}
		mediaType = mt
	}

	switch mediaType {
	case "", "application/json":
		var snap formdata.FormData
		if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
			return nil, fmt.Errorf("server: decode snapshot: %w", err)
		}
		return snap, nil

	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("server: parse form: %w", err)
		}
		return submit.DecodeForm(r.PostForm)

	case "multipart/form-data":
		if err := r.ParseMultipartForm(s.config.MaxBodyBytes); err != nil {
			return nil, fmt.Errorf("server: parse multipart: %w", err)
		}
		return submit.DecodeForm(url.Values(r.MultipartForm.Value))

	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedMedia, mediaType)
	}
}

// handleGet returns the persisted canonical snapshot of a form.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "form")

	snap, err := s.store.Load(r.Context(), formID)
	if err != nil {
		if store.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "form not found: "+formID)
			return
		}
		s.logger.Error("snapshot load failed", "form", formID, "error", err)
		writeError(w, http.StatusInternalServerError, "snapshot load failed")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// handleDelete drops a form's persisted snapshot and resets its live
// state. Watchers stay connected; the next snapshot diffs against empty.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "form")

	if err := s.store.Delete(r.Context(), formID); err != nil {
		s.logger.Error("snapshot delete failed", "form", formID, "error", err)
		writeError(w, http.StatusInternalServerError, "snapshot delete failed")
		return
	}

	s.mu.Lock()
	if st, ok := s.forms[formID]; ok {
		st.rec.Reset(nil)
	}
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// handleList returns the IDs of all persisted forms.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("form list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "form list failed")
		return
	}
	if ids == nil {
		ids = []string{}
	}

	writeJSON(w, http.StatusOK, map[string][]string{"forms": ids})
}

// handleWatch upgrades to a WebSocket and streams the form's diffs.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "form")
	st := s.form(r.Context(), formID)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		s.logger.Error("websocket upgrade failed", "form", formID, "error", err)
		return
	}

	s.serveWatch(st.hub, conn)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
