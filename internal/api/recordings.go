package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/ecgscope/internal/httputil"
)

var errNoStore = errors.New("recording history is disabled")

func (s *Server) listRecordings(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, errNoStore.Error())
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = n
	}
	list, err := s.store.ListRecordings(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"recordings": list})
}

func (s *Server) getRecording(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, errNoStore.Error())
		return
	}
	id := r.PathValue("id")
	rec, err := s.store.GetRecording(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	runs, err := s.store.AnalysisRuns(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cls, err := s.store.Classifications(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"recording":       rec,
		"analysis_runs":   runs,
		"classifications": cls,
	})
}
