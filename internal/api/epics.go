package api

import (
	"net/http"
	"strconv"

	"github.com/pbaille/mandalart/internal/domain"
)

const (
	defaultEpicLimit = 100
	epicNotFound     = "Epic not found"
)

// queryInt reads a non-negative integer query parameter, def when absent
func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (s *Server) listEpics(w http.ResponseWriter, r *http.Request) {
	skip, ok := queryInt(r, "skip", 0)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "skip must be a non-negative integer")
		return
	}
	limit, ok := queryInt(r, "limit", defaultEpicLimit)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "limit must be a non-negative integer")
		return
	}

	epics, err := s.store.ListEpics(skip, limit)
	if err != nil {
		s.storeError(w, r, err, epicNotFound)
		return
	}
	writeJSON(w, http.StatusOK, epics)
}

func (s *Server) getEpic(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid epic id")
		return
	}

	epic, err := s.store.GetEpic(id)
	if err != nil {
		s.storeError(w, r, err, epicNotFound)
		return
	}
	writeJSON(w, http.StatusOK, epic)
}

func (s *Server) listSubEpics(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid epic id")
		return
	}

	subs, err := s.store.ListSubEpics(id)
	if err != nil {
		s.storeError(w, r, err, epicNotFound)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Server) createEpic(w http.ResponseWriter, r *http.Request) {
	var in domain.EpicCreate
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}

	epic, err := s.store.CreateEpic(in)
	if err != nil {
		s.storeError(w, r, err, "Parent epic not found")
		return
	}
	writeJSON(w, http.StatusOK, epic)
}

func (s *Server) updateEpic(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid epic id")
		return
	}

	var u domain.EpicUpdate
	if err := decodeJSON(r, &u); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}

	epic, err := s.store.UpdateEpic(id, u)
	if err != nil {
		s.storeError(w, r, err, epicNotFound)
		return
	}
	writeJSON(w, http.StatusOK, epic)
}

func (s *Server) deleteEpic(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid epic id")
		return
	}

	epic, err := s.store.DeleteEpic(id)
	if err != nil {
		s.storeError(w, r, err, epicNotFound)
		return
	}
	s.logger.Info("Deleted epic", "id", id, "subs", len(epic.Subs))
	writeJSON(w, http.StatusOK, epic)
}

func (s *Server) deleteAllEpics(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.DeleteAllEpics()
	if err != nil {
		s.storeError(w, r, err, epicNotFound)
		return
	}
	s.logger.Info("Deleted all epics", "count", n)
	writeJSON(w, http.StatusOK, domain.Message{Message: "All epics deleted successfully"})
}
