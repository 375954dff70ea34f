package store

import (
	"testing"
	"time"

	"github.com/pbaille/mandalart/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustEpic(t *testing.T, s *Store, title string, parent *int64, pos *domain.Position) *domain.Epic {
	t.Helper()
	e, err := s.CreateEpic(domain.EpicCreate{Title: title, Status: "todo", CoreEpicID: parent, Position: pos})
	require.NoError(t, err)
	return e
}

func TestCreateEpicDerivesDepth(t *testing.T) {
	s := newTestStore(t)

	root := mustEpic(t, s, "Become healthy", nil, domain.Ptr(domain.GridIndex(0)))
	assert.NotZero(t, root.ID)
	assert.Equal(t, 0, root.Depth)
	assert.Nil(t, root.UpdatedAt)
	assert.Nil(t, root.CoreEpicID)
	assert.NotEmpty(t, root.CreatedAt)

	child := mustEpic(t, s, "Sleep", &root.ID, domain.Ptr(domain.GridIndex(2)))
	assert.Equal(t, 1, child.Depth)

	grandchild := mustEpic(t, s, "No screens after 10pm", &child.ID, nil)
	assert.Equal(t, 2, grandchild.Depth)

	got, err := s.GetEpic(root.ID)
	require.NoError(t, err)
	require.Len(t, got.Subs, 1)
	assert.Equal(t, "Sleep", got.Subs[0].Title)
	require.Len(t, got.Subs[0].Subs, 1)
	assert.Equal(t, "No screens after 10pm", got.Subs[0].Subs[0].Title)
}

func TestCreateEpicRejectsUnknownParent(t *testing.T) {
	s := newTestStore(t)
	missing := int64(42)
	_, err := s.CreateEpic(domain.EpicCreate{Title: "Orphan", CoreEpicID: &missing})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestCreateEpicRejectsBadPosition(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateEpic(domain.EpicCreate{Title: "Off grid", Position: domain.Ptr(domain.GridIndex(9))})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestEpicPositionVariantsPersist(t *testing.T) {
	s := newTestStore(t)
	grid := mustEpic(t, s, "grid", nil, domain.Ptr(domain.GridIndex(5)))
	coord := mustEpic(t, s, "coord", nil, domain.Ptr(domain.CoordinateKey(7, 1)))

	got, err := s.GetEpic(grid.ID)
	require.NoError(t, err)
	idx, ok := got.Position.Index()
	require.True(t, ok)
	assert.Equal(t, 5, idx)

	got, err = s.GetEpic(coord.ID)
	require.NoError(t, err)
	assert.Equal(t, "7,1", got.Position.String())
}

func TestLegacyPositionIsNormalized(t *testing.T) {
	s := newTestStore(t)
	e := mustEpic(t, s, "legacy", nil, nil)
	_, err := s.db.Exec("UPDATE epics SET position = '(1, 4)' WHERE id = ?", e.ID)
	require.NoError(t, err)

	got, err := s.GetEpic(e.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Position)
	assert.Equal(t, "1,4", got.Position.String())
}

func TestUnparsedPositionDoesNotBreakLoads(t *testing.T) {
	s := newTestStore(t)
	good := mustEpic(t, s, "good", nil, nil)
	odd := mustEpic(t, s, "odd", nil, nil)
	_, err := s.db.Exec("UPDATE epics SET position = '(4, 4)' WHERE id = ?", good.ID)
	require.NoError(t, err)
	_, err = s.db.Exec("UPDATE epics SET position = 'A1' WHERE id = ?", odd.ID)
	require.NoError(t, err)

	got, err := s.GetEpic(good.ID)
	require.NoError(t, err)
	assert.Equal(t, "4,4", got.Position.String())

	epics, err := s.ListEpics(0, 100)
	require.NoError(t, err)
	assert.Len(t, epics, 2)

	got, err = s.GetEpic(odd.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Position)
	assert.Equal(t, "A1", got.Position.String())

	// the raw value is kept but cannot be written back
	bad := *got.Position
	_, err = s.UpdateEpic(odd.ID, domain.EpicUpdate{Position: &bad})
	assert.ErrorIs(t, err, ErrInvalid)

	title := "renamed"
	_, err = s.UpdateEpic(odd.ID, domain.EpicUpdate{Title: &title})
	require.NoError(t, err)
}

func TestUpdateEpicIsPartial(t *testing.T) {
	s := newTestStore(t)
	e, err := s.CreateEpic(domain.EpicCreate{Title: "Read", Description: "books", Status: "todo"})
	require.NoError(t, err)

	updated, err := s.UpdateEpic(e.ID, domain.EpicUpdate{Title: domain.Ptr("Read more")})
	require.NoError(t, err)
	assert.Equal(t, "Read more", updated.Title)
	assert.Equal(t, "books", updated.Description)
	assert.Equal(t, "todo", updated.Status)
	assert.Equal(t, e.CreatedAt, updated.CreatedAt)
	assert.NotNil(t, updated.UpdatedAt)
}

func TestUpdateEpicReparentRecomputesDepth(t *testing.T) {
	s := newTestStore(t)
	a := mustEpic(t, s, "a", nil, nil)
	b := mustEpic(t, s, "b", nil, nil)
	c := mustEpic(t, s, "c", &b.ID, nil)

	moved, err := s.UpdateEpic(b.ID, domain.EpicUpdate{CoreEpicID: domain.Some(a.ID)})
	require.NoError(t, err)
	assert.Equal(t, 1, moved.Depth)
	require.Len(t, moved.Subs, 1)
	assert.Equal(t, 2, moved.Subs[0].Depth)

	detached, err := s.UpdateEpic(c.ID, domain.EpicUpdate{CoreEpicID: domain.Null[int64]()})
	require.NoError(t, err)
	assert.Equal(t, 0, detached.Depth)
	assert.Nil(t, detached.CoreEpicID)
}

func TestUpdateEpicRejectsCycles(t *testing.T) {
	s := newTestStore(t)
	a := mustEpic(t, s, "a", nil, nil)
	b := mustEpic(t, s, "b", &a.ID, nil)
	c := mustEpic(t, s, "c", &b.ID, nil)

	_, err := s.UpdateEpic(a.ID, domain.EpicUpdate{CoreEpicID: domain.Some(c.ID)})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = s.UpdateEpic(a.ID, domain.EpicUpdate{CoreEpicID: domain.Some(a.ID)})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = s.UpdateEpic(b.ID, domain.EpicUpdate{Depth: domain.Ptr(5)})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestUpdateEpicNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.UpdateEpic(99, domain.EpicUpdate{Title: domain.Ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteEpicRemovesSubtreeAndDetachesHabits(t *testing.T) {
	s := newTestStore(t)
	root := mustEpic(t, s, "root", nil, nil)
	child := mustEpic(t, s, "child", &root.ID, nil)
	h, err := s.CreateHabit(domain.HabitCreate{Title: "walk", EpicID: &child.ID})
	require.NoError(t, err)

	deleted, err := s.DeleteEpic(root.ID)
	require.NoError(t, err)
	assert.Equal(t, root.ID, deleted.ID)
	require.Len(t, deleted.Subs, 1)

	_, err = s.GetEpic(root.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetEpic(child.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	habit, err := s.GetHabit(h.ID)
	require.NoError(t, err)
	assert.Nil(t, habit.EpicID)

	_, err = s.DeleteEpic(root.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteAllEpics(t *testing.T) {
	s := newTestStore(t)
	mustEpic(t, s, "a", nil, nil)
	mustEpic(t, s, "b", nil, nil)

	n, err := s.DeleteAllEpics()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	epics, err := s.ListEpics(0, 100)
	require.NoError(t, err)
	assert.Empty(t, epics)
}

func TestListEpicsPaging(t *testing.T) {
	s := newTestStore(t)
	for _, title := range []string{"one", "two", "three"} {
		mustEpic(t, s, title, nil, nil)
	}

	page, err := s.ListEpics(1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "two", page[0].Title)
}

func TestListHabitsFilters(t *testing.T) {
	s := newTestStore(t)
	e1 := mustEpic(t, s, "e1", nil, nil)
	e2 := mustEpic(t, s, "e2", nil, nil)

	_, err := s.CreateHabit(domain.HabitCreate{Title: "a", EpicID: &e1.ID})
	require.NoError(t, err)
	b, err := s.CreateHabit(domain.HabitCreate{Title: "b", EpicID: &e1.ID})
	require.NoError(t, err)
	_, err = s.CreateHabit(domain.HabitCreate{Title: "c", EpicID: &e2.ID})
	require.NoError(t, err)
	_, err = s.CreateHabit(domain.HabitCreate{Title: "d"})
	require.NoError(t, err)

	_, err = s.UpdateHabitStatus(b.ID, domain.HabitPaused)
	require.NoError(t, err)

	all, err := s.ListHabits(HabitFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	byEpic, err := s.ListHabits(HabitFilter{EpicID: &e1.ID})
	require.NoError(t, err)
	assert.Len(t, byEpic, 2)

	both, err := s.ListHabits(HabitFilter{EpicID: &e1.ID, Status: domain.HabitPaused})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "b", both[0].Title)
}

func TestCreateHabitDefaults(t *testing.T) {
	s := newTestStore(t)
	h, err := s.CreateHabit(domain.HabitCreate{Title: "stretch"})
	require.NoError(t, err)
	assert.Equal(t, domain.HabitActive, h.Status)
	assert.Equal(t, 1, h.TargetCount)
	assert.Zero(t, h.CurrentCombo)
	assert.Zero(t, h.BestCombo)
	assert.Zero(t, h.TotalCompletions)
	assert.Nil(t, h.UpdatedAt)

	missing := int64(7)
	_, err = s.CreateHabit(domain.HabitCreate{Title: "x", EpicID: &missing})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = s.CreateHabit(domain.HabitCreate{Title: "  "})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestUpdateHabitClearsNullableFields(t *testing.T) {
	s := newTestStore(t)
	h, err := s.CreateHabit(domain.HabitCreate{
		Title:       "meditate",
		Description: domain.Ptr("10 minutes"),
		Schedule:    domain.Ptr(domain.DefaultSchedule),
	})
	require.NoError(t, err)

	updated, err := s.UpdateHabit(h.ID, domain.HabitUpdate{Schedule: domain.Null[string]()})
	require.NoError(t, err)
	assert.Nil(t, updated.Schedule)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "10 minutes", *updated.Description)

	_, err = s.UpdateHabit(h.ID, domain.HabitUpdate{Status: domain.Ptr(domain.HabitStatus("gone"))})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestDeleteHabitCascadesCommits(t *testing.T) {
	s := newTestStore(t)
	h, err := s.CreateHabit(domain.HabitCreate{Title: "run"})
	require.NoError(t, err)
	_, err = s.CreateCommit(domain.HabitCommitCreate{HabitID: h.ID, Effort: 3})
	require.NoError(t, err)

	require.NoError(t, s.DeleteHabit(h.ID))

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM habit_commits").Scan(&n))
	assert.Zero(t, n)

	assert.ErrorIs(t, s.DeleteHabit(h.ID), ErrNotFound)
}

func TestCreateCommitUpdatesCounters(t *testing.T) {
	s := newTestStore(t)
	day := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return day }

	h, err := s.CreateHabit(domain.HabitCreate{Title: "journal"})
	require.NoError(t, err)

	commit := func(at time.Time) {
		s.now = func() time.Time { return at }
		_, err := s.CreateCommit(domain.HabitCommitCreate{HabitID: h.ID, Effort: 4})
		require.NoError(t, err)
	}

	commit(day)
	commit(day.Add(2 * time.Hour))
	commit(day.AddDate(0, 0, 1))
	commit(day.AddDate(0, 0, 2))

	got, err := s.GetHabit(h.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.TotalCompletions)
	assert.Equal(t, 3, got.CurrentCombo)
	assert.Equal(t, 3, got.BestCombo)

	commit(day.AddDate(0, 0, 5))
	got, err = s.GetHabit(h.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentCombo)
	assert.Equal(t, 3, got.BestCombo)
}

func TestCreateCommitValidation(t *testing.T) {
	s := newTestStore(t)
	h, err := s.CreateHabit(domain.HabitCreate{Title: "swim"})
	require.NoError(t, err)

	_, err = s.CreateCommit(domain.HabitCommitCreate{HabitID: h.ID, Effort: 0})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = s.CreateCommit(domain.HabitCommitCreate{HabitID: h.ID, Effort: 6})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = s.CreateCommit(domain.HabitCommitCreate{HabitID: 999, Effort: 3})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListCommitsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	h, err := s.CreateHabit(domain.HabitCreate{Title: "code"})
	require.NoError(t, err)

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return at }
		_, err := s.CreateCommit(domain.HabitCommitCreate{HabitID: h.ID, Effort: i})
		require.NoError(t, err)
	}

	commits, err := s.ListCommits(h.ID, 2)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, 3, commits[0].Effort)
	assert.Equal(t, 2, commits[1].Effort)

	_, err = s.ListCommits(404, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestComboFromDays(t *testing.T) {
	tests := []struct {
		name        string
		days        []string
		wantCurrent int
		wantLongest int
	}{
		{"empty", nil, 0, 0},
		{"single", []string{"2026-01-10"}, 1, 1},
		{"run of three", []string{"2026-01-10", "2026-01-09", "2026-01-08"}, 3, 3},
		{"broken recent run", []string{"2026-01-10", "2026-01-05", "2026-01-04", "2026-01-03"}, 1, 3},
		{"month boundary", []string{"2026-03-01", "2026-02-28"}, 2, 2},
		{"bad entry skipped", []string{"2026-01-10", "garbage", "2026-01-09"}, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current, longest := comboFromDays(tt.days)
			assert.Equal(t, tt.wantCurrent, current)
			assert.Equal(t, tt.wantLongest, longest)
		})
	}
}
