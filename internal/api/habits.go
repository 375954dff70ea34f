package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/pbaille/mandalart/internal/domain"
	"github.com/pbaille/mandalart/internal/store"
	"github.com/robfig/cron/v3"
)

const (
	defaultCommitLimit = 50
	habitNotFound      = "Habit not found"
)

// validSchedule accepts standard five-field cron expressions and descriptors like @daily
func validSchedule(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid schedule %q: %v", expr, err)
	}
	return nil
}

func validStatus(status domain.HabitStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q, expected one of %v", status, domain.HabitStatuses)
	}
	return nil
}

func (s *Server) listHabits(w http.ResponseWriter, r *http.Request) {
	var f store.HabitFilter
	q := r.URL.Query()
	if raw := q.Get("epic_id"); raw != "" {
		epicID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "epic_id must be an integer")
			return
		}
		f.EpicID = &epicID
	}
	if raw := q.Get("status"); raw != "" {
		f.Status = domain.HabitStatus(raw)
		if err := validStatus(f.Status); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	}

	habits, err := s.store.ListHabits(f)
	if err != nil {
		s.storeError(w, r, err, habitNotFound)
		return
	}
	writeJSON(w, http.StatusOK, habits)
}

func (s *Server) getHabit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid habit id")
		return
	}

	habit, err := s.store.GetHabit(id)
	if err != nil {
		s.storeError(w, r, err, habitNotFound)
		return
	}
	writeJSON(w, http.StatusOK, habit)
}

func (s *Server) createHabit(w http.ResponseWriter, r *http.Request) {
	var in domain.HabitCreate
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}
	if in.Schedule != nil {
		if err := validSchedule(*in.Schedule); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	}

	habit, err := s.store.CreateHabit(in)
	if err != nil {
		s.storeError(w, r, err, habitNotFound)
		return
	}
	writeJSON(w, http.StatusOK, habit)
}

func (s *Server) updateHabit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid habit id")
		return
	}

	var u domain.HabitUpdate
	if err := decodeJSON(r, &u); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}
	if u.Schedule.Set && u.Schedule.Value != nil {
		if err := validSchedule(*u.Schedule.Value); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	}
	if u.Status != nil {
		if err := validStatus(*u.Status); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	}

	habit, err := s.store.UpdateHabit(id, u)
	if err != nil {
		s.storeError(w, r, err, habitNotFound)
		return
	}
	writeJSON(w, http.StatusOK, habit)
}

func (s *Server) deleteHabit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid habit id")
		return
	}

	if err := s.store.DeleteHabit(id); err != nil {
		s.storeError(w, r, err, habitNotFound)
		return
	}
	writeJSON(w, http.StatusOK, domain.Message{Message: "Habit deleted successfully"})
}

func (s *Server) updateHabitStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid habit id")
		return
	}

	status := domain.HabitStatus(r.URL.Query().Get("status"))
	if status == "" {
		writeError(w, http.StatusUnprocessableEntity, "status query parameter is required")
		return
	}
	if err := validStatus(status); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	habit, err := s.store.UpdateHabitStatus(id, status)
	if err != nil {
		s.storeError(w, r, err, habitNotFound)
		return
	}
	writeJSON(w, http.StatusOK, habit)
}

func (s *Server) createCommit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid habit id")
		return
	}

	var in domain.HabitCommitCreate
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}
	// the path wins over whatever habit_id the body carries
	in.HabitID = id
	if in.Effort < domain.MinEffort || in.Effort > domain.MaxEffort {
		writeError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("effort must be between %d and %d", domain.MinEffort, domain.MaxEffort))
		return
	}

	commit, err := s.store.CreateCommit(in)
	if err != nil {
		s.storeError(w, r, err, habitNotFound)
		return
	}
	writeJSON(w, http.StatusOK, commit)
}

func (s *Server) listCommits(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid habit id")
		return
	}
	limit, ok := queryInt(r, "limit", defaultCommitLimit)
	if !ok || limit < 1 {
		writeError(w, http.StatusUnprocessableEntity, "limit must be a positive integer")
		return
	}

	commits, err := s.store.ListCommits(id, limit)
	if err != nil {
		s.storeError(w, r, err, habitNotFound)
		return
	}
	writeJSON(w, http.StatusOK, commits)
}
