package client

import (
	"context"
	"net/http"
	"strconv"

	"github.com/pbaille/mandalart/internal/domain"
)

// EpicService is the CRUD facade over /api/epic
type EpicService struct {
	client *Client
}

func epicPath(id int64) string {
	return "/api/epic/" + strconv.FormatInt(id, 10)
}

// List returns every epic the server reports, each with its subtree
func (s *EpicService) List(ctx context.Context) ([]domain.Epic, error) {
	var epics []domain.Epic
	if err := s.client.call(ctx, "fetching epics", "", http.MethodGet, "/api/epic", nil, nil, &epics); err != nil {
		return nil, err
	}
	return epics, nil
}

// Get returns one epic including its subs
func (s *EpicService) Get(ctx context.Context, id int64) (*domain.Epic, error) {
	var epic domain.Epic
	if err := s.client.call(ctx, "fetching epic", idString(id), http.MethodGet, epicPath(id), nil, nil, &epic); err != nil {
		return nil, err
	}
	return &epic, nil
}

// Create asks the server to build an epic; id and timestamps come back assigned
func (s *EpicService) Create(ctx context.Context, in domain.EpicCreate) (*domain.Epic, error) {
	var epic domain.Epic
	if err := s.client.call(ctx, "creating epic", "", http.MethodPost, "/api/epic", nil, in, &epic); err != nil {
		return nil, err
	}
	return &epic, nil
}

// Update sends only the fields set in u and returns the updated epic
func (s *EpicService) Update(ctx context.Context, id int64, u domain.EpicUpdate) (*domain.Epic, error) {
	var epic domain.Epic
	if err := s.client.call(ctx, "updating epic", idString(id), http.MethodPut, epicPath(id), nil, u, &epic); err != nil {
		return nil, err
	}
	return &epic, nil
}

// Delete removes one epic and returns the deleted record
func (s *EpicService) Delete(ctx context.Context, id int64) (*domain.Epic, error) {
	var epic domain.Epic
	if err := s.client.call(ctx, "deleting epic", idString(id), http.MethodDelete, epicPath(id), nil, nil, &epic); err != nil {
		return nil, err
	}
	return &epic, nil
}

// DeleteAll removes every epic and returns the server's confirmation
func (s *EpicService) DeleteAll(ctx context.Context) (*domain.Message, error) {
	var msg domain.Message
	if err := s.client.call(ctx, "deleting all epics", "", http.MethodDelete, "/api/epic", nil, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Subs returns the direct children of an epic
func (s *EpicService) Subs(ctx context.Context, id int64) ([]domain.Epic, error) {
	var subs []domain.Epic
	if err := s.client.call(ctx, "fetching sub epics", idString(id), http.MethodGet, epicPath(id)+"/subs", nil, nil, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}
