package store

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/mandalart/internal/domain"
)

var errDisk = errors.New("disk I/O error")

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := NewWithDB(db)
	require.NoError(t, err)
	return s, mock
}

func TestNewWithDBSchemaFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(".*").WillReturnError(errDisk)
	_, err = NewWithDB(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init schema")
	assert.ErrorIs(t, err, errDisk)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryErrorsAreWrapped(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id FROM epics").WillReturnError(errDisk)
	_, err := s.ListEpics(0, 10)
	assert.ErrorIs(t, err, errDisk)
	assert.Contains(t, err.Error(), "list epics")

	mock.ExpectQuery("SELECT .* FROM habits").WillReturnError(errDisk)
	_, err = s.ListHabits(HabitFilter{})
	assert.ErrorIs(t, err, errDisk)
	assert.Contains(t, err.Error(), "list habits")

	mock.ExpectQuery("SELECT .* FROM habits WHERE id").WithArgs(7).WillReturnError(errDisk)
	_, err = s.GetHabit(7)
	assert.ErrorIs(t, err, errDisk)
	assert.NotErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBeginFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin().WillReturnError(errDisk)
	_, err := s.CreateEpic(domain.EpicCreate{Title: "Life", Status: "active"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteHabitRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	cols := []string{"id", "epic_id", "title", "description", "schedule", "target_count", "status",
		"current_combo", "best_combo", "total_completions", "created_at", "updated_at"}
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM habits WHERE id").WithArgs(3).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(3, nil, "Read", nil, nil, 1, "active", 0, 0, 0, "2026-01-01T00:00:00.000000Z", nil))
	mock.ExpectExec("DELETE FROM habit_commits").WithArgs(3).WillReturnError(errDisk)
	mock.ExpectRollback()

	err := s.DeleteHabit(3)
	assert.ErrorIs(t, err, errDisk)
	assert.Contains(t, err.Error(), "delete habit commits")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE habits SET epic_id = NULL").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM epics").WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit().WillReturnError(errDisk)

	_, err := s.DeleteAllEpics()
	assert.ErrorIs(t, err, errDisk)
	assert.Contains(t, err.Error(), "commit tx")
	assert.NoError(t, mock.ExpectationsWereMet())
}
