package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pbaille/mandalart/internal/domain"
)

// DefaultCommitLimit is sent when ListCommits is given no positive limit
const DefaultCommitLimit = 50

// HabitFilter selects habits; both fields are optional and combine with AND.
// Ids start at 1, so an EpicID of 0 is treated as unset.
type HabitFilter struct {
	EpicID *int64
	Status domain.HabitStatus
}

// HabitService covers /api/habit, its status transition and commit log
type HabitService struct {
	client *Client
}

func habitPath(id int64) string {
	return "/api/habit/" + strconv.FormatInt(id, 10)
}

// List returns the habits matching f
func (s *HabitService) List(ctx context.Context, f HabitFilter) ([]domain.Habit, error) {
	query := url.Values{}
	if f.EpicID != nil && *f.EpicID != 0 {
		query.Set("epic_id", strconv.FormatInt(*f.EpicID, 10))
	}
	if f.Status != "" {
		query.Set("status", string(f.Status))
	}

	var habits []domain.Habit
	if err := s.client.call(ctx, "fetching habits", "", http.MethodGet, "/api/habit", query, nil, &habits); err != nil {
		return nil, err
	}
	return habits, nil
}

// Get returns one habit
func (s *HabitService) Get(ctx context.Context, id int64) (*domain.Habit, error) {
	var habit domain.Habit
	if err := s.client.call(ctx, "fetching habit", idString(id), http.MethodGet, habitPath(id), nil, nil, &habit); err != nil {
		return nil, err
	}
	return &habit, nil
}

// Create posts a new habit. The trailing slash on the collection path is part of the contract.
func (s *HabitService) Create(ctx context.Context, in domain.HabitCreate) (*domain.Habit, error) {
	var habit domain.Habit
	if err := s.client.call(ctx, "creating habit", "", http.MethodPost, "/api/habit/", nil, in, &habit); err != nil {
		return nil, err
	}
	return &habit, nil
}

// Update sends only the fields set in u
func (s *HabitService) Update(ctx context.Context, id int64, u domain.HabitUpdate) (*domain.Habit, error) {
	var habit domain.Habit
	if err := s.client.call(ctx, "updating habit", idString(id), http.MethodPut, habitPath(id), nil, u, &habit); err != nil {
		return nil, err
	}
	return &habit, nil
}

// Delete removes a habit. Unlike epic deletion nothing is returned.
func (s *HabitService) Delete(ctx context.Context, id int64) error {
	return s.client.call(ctx, "deleting habit", idString(id), http.MethodDelete, habitPath(id), nil, nil, nil)
}

// UpdateStatus moves a habit to status. Which transitions are legal is up to
// the server; a rejection comes back as an error.
func (s *HabitService) UpdateStatus(ctx context.Context, id int64, status domain.HabitStatus) (*domain.Habit, error) {
	query := url.Values{"status": {string(status)}}
	var habit domain.Habit
	if err := s.client.call(ctx, "updating habit status", idString(id), http.MethodPatch, habitPath(id)+"/status", query, nil, &habit); err != nil {
		return nil, err
	}
	return &habit, nil
}

// CreateCommit logs effort against a habit. Effort is meant to be 1-5 but is
// not checked here.
func (s *HabitService) CreateCommit(ctx context.Context, habitID int64, in domain.CommitCreate) (*domain.HabitCommit, error) {
	body := domain.HabitCommitCreate{
		HabitID:     habitID,
		Description: in.Description,
		Effort:      in.Effort,
	}
	var commit domain.HabitCommit
	if err := s.client.call(ctx, "creating habit commit for habit", idString(habitID), http.MethodPost, habitPath(habitID)+"/commit", nil, body, &commit); err != nil {
		return nil, err
	}
	return &commit, nil
}

// ListCommits returns up to limit commits of a habit, newest first.
// A limit of zero or less means DefaultCommitLimit; the limit is always sent.
func (s *HabitService) ListCommits(ctx context.Context, habitID int64, limit int) ([]domain.HabitCommit, error) {
	if limit <= 0 {
		limit = DefaultCommitLimit
	}
	query := url.Values{"limit": {strconv.Itoa(limit)}}

	var commits []domain.HabitCommit
	if err := s.client.call(ctx, "fetching habit commits for habit", idString(habitID), http.MethodGet, habitPath(habitID)+"/commits", query, nil, &commits); err != nil {
		return nil, err
	}
	return commits, nil
}

// CreateForEpic creates a habit attached to an epic with the default policy:
// one completion per period, every day at 9am.
func (s *HabitService) CreateForEpic(ctx context.Context, epicID int64, title string, description *string) (*domain.Habit, error) {
	return s.Create(ctx, domain.HabitCreate{
		Title:       title,
		Description: description,
		EpicID:      &epicID,
		TargetCount: domain.Ptr(1),
		Schedule:    domain.Ptr(domain.DefaultSchedule),
	})
}
