package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pbaille/mandalart/internal/domain"
)

// HabitFilter narrows ListHabits; unset fields do not filter
type HabitFilter struct {
	EpicID *int64
	Status domain.HabitStatus
}

const habitColumns = `id, epic_id, title, description, schedule, target_count, status,
	current_combo, best_combo, total_completions, created_at, updated_at`

func scanHabit(row scanner) (domain.Habit, error) {
	var (
		h           domain.Habit
		epicID      sql.NullInt64
		description sql.NullString
		schedule    sql.NullString
		status      string
		updatedAt   sql.NullString
	)
	err := row.Scan(&h.ID, &epicID, &h.Title, &description, &schedule, &h.TargetCount, &status,
		&h.CurrentCombo, &h.BestCombo, &h.TotalCompletions, &h.CreatedAt, &updatedAt)
	if err != nil {
		return h, err
	}
	h.EpicID = int64Ptr(epicID)
	h.Description = stringPtr(description)
	h.Schedule = stringPtr(schedule)
	h.Status = domain.HabitStatus(status)
	h.UpdatedAt = stringPtr(updatedAt)
	return h, nil
}

func getHabit(q queryer, id int64) (*domain.Habit, error) {
	h, err := scanHabit(q.QueryRow("SELECT "+habitColumns+" FROM habits WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("habit %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return &h, nil
}

func epicExists(q queryer, id int64) error {
	var n int
	if err := q.QueryRow("SELECT COUNT(*) FROM epics WHERE id = ?", id).Scan(&n); err != nil {
		return fmt.Errorf("check epic: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: epic with id %d not found", ErrInvalid, id)
	}
	return nil
}

// ListHabits returns habits matching every set filter field
func (s *Store) ListHabits(f HabitFilter) ([]domain.Habit, error) {
	var (
		where []string
		args  []any
	)
	if f.EpicID != nil {
		where = append(where, "epic_id = ?")
		args = append(args, *f.EpicID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}

	query := "SELECT " + habitColumns + " FROM habits"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()

	habits := []domain.Habit{}
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan habit: %w", err)
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

// GetHabit retrieves a habit by ID
func (s *Store) GetHabit(id int64) (*domain.Habit, error) {
	return getHabit(s.db, id)
}

// CreateHabit inserts an active habit with zeroed counters
func (s *Store) CreateHabit(in domain.HabitCreate) (*domain.Habit, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalid)
	}
	target := 1
	if in.TargetCount != nil {
		target = *in.TargetCount
	}
	if target < 1 {
		return nil, fmt.Errorf("%w: target_count must be at least 1", ErrInvalid)
	}

	var id int64
	err := s.withTx(func(tx *sql.Tx) error {
		if in.EpicID != nil {
			if err := epicExists(tx, *in.EpicID); err != nil {
				return err
			}
		}
		res, err := tx.Exec(
			`INSERT INTO habits (epic_id, title, description, schedule, target_count, status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			nullInt64(in.EpicID), in.Title, nullString(in.Description), nullString(in.Schedule),
			target, string(domain.HabitActive), s.timestamp(),
		)
		if err != nil {
			return fmt.Errorf("insert habit: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetHabit(id)
}

// UpdateHabit applies the fields set in u
func (s *Store) UpdateHabit(id int64, u domain.HabitUpdate) (*domain.Habit, error) {
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", ErrInvalid)
	}
	if u.TargetCount != nil && *u.TargetCount < 1 {
		return nil, fmt.Errorf("%w: target_count must be at least 1", ErrInvalid)
	}
	if u.Status != nil && !u.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown habit status %q", ErrInvalid, *u.Status)
	}

	err := s.withTx(func(tx *sql.Tx) error {
		h, err := getHabit(tx, id)
		if err != nil {
			return err
		}
		if u.EpicID.Set && u.EpicID.Value != nil {
			if err := epicExists(tx, *u.EpicID.Value); err != nil {
				return err
			}
		}

		if u.Title != nil {
			h.Title = *u.Title
		}
		if u.Description.Set {
			h.Description = u.Description.Value
		}
		if u.Schedule.Set {
			h.Schedule = u.Schedule.Value
		}
		if u.TargetCount != nil {
			h.TargetCount = *u.TargetCount
		}
		if u.Status != nil {
			h.Status = *u.Status
		}
		if u.EpicID.Set {
			h.EpicID = u.EpicID.Value
		}

		_, err = tx.Exec(
			`UPDATE habits SET epic_id = ?, title = ?, description = ?, schedule = ?, target_count = ?,
			 status = ?, updated_at = ? WHERE id = ?`,
			nullInt64(h.EpicID), h.Title, nullString(h.Description), nullString(h.Schedule),
			h.TargetCount, string(h.Status), s.timestamp(), id,
		)
		if err != nil {
			return fmt.Errorf("update habit: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetHabit(id)
}

// UpdateHabitStatus moves a habit to another status
func (s *Store) UpdateHabitStatus(id int64, status domain.HabitStatus) (*domain.Habit, error) {
	return s.UpdateHabit(id, domain.HabitUpdate{Status: &status})
}

// DeleteHabit removes a habit together with its commits
func (s *Store) DeleteHabit(id int64) error {
	return s.withTx(func(tx *sql.Tx) error {
		if _, err := getHabit(tx, id); err != nil {
			return err
		}
		if _, err := tx.Exec("DELETE FROM habit_commits WHERE habit_id = ?", id); err != nil {
			return fmt.Errorf("delete habit commits: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM habits WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete habit: %w", err)
		}
		return nil
	})
}

// CreateCommit logs effort against a habit and refreshes its counters
func (s *Store) CreateCommit(in domain.HabitCommitCreate) (*domain.HabitCommit, error) {
	if in.Effort < domain.MinEffort || in.Effort > domain.MaxEffort {
		return nil, fmt.Errorf("%w: effort %d outside [%d,%d]", ErrInvalid, in.Effort, domain.MinEffort, domain.MaxEffort)
	}

	var commit domain.HabitCommit
	err := s.withTx(func(tx *sql.Tx) error {
		h, err := getHabit(tx, in.HabitID)
		if err != nil {
			return err
		}

		now := s.timestamp()
		res, err := tx.Exec(
			"INSERT INTO habit_commits (habit_id, description, effort, created_at) VALUES (?, ?, ?, ?)",
			in.HabitID, nullString(in.Description), in.Effort, now,
		)
		if err != nil {
			return fmt.Errorf("insert habit commit: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert habit commit id: %w", err)
		}
		commit = domain.HabitCommit{
			ID:          id,
			HabitID:     in.HabitID,
			Description: in.Description,
			Effort:      in.Effort,
			CreatedAt:   now,
		}

		days, err := commitDays(tx, in.HabitID)
		if err != nil {
			return err
		}
		current, longest := comboFromDays(days)
		best := max(h.BestCombo, longest)

		_, err = tx.Exec(
			`UPDATE habits SET total_completions = total_completions + 1, current_combo = ?, best_combo = ?
			 WHERE id = ?`,
			current, best, in.HabitID,
		)
		if err != nil {
			return fmt.Errorf("update habit counters: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &commit, nil
}

// ListCommits returns a habit's commits, newest first
func (s *Store) ListCommits(habitID int64, limit int) ([]domain.HabitCommit, error) {
	if _, err := s.GetHabit(habitID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT id, habit_id, description, effort, created_at, updated_at FROM habit_commits
		 WHERE habit_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		habitID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list habit commits: %w", err)
	}
	defer rows.Close()

	commits := []domain.HabitCommit{}
	for rows.Next() {
		var (
			c           domain.HabitCommit
			description sql.NullString
			updatedAt   sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.HabitID, &description, &c.Effort, &c.CreatedAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan habit commit: %w", err)
		}
		c.Description = stringPtr(description)
		c.UpdatedAt = stringPtr(updatedAt)
		commits = append(commits, c)
	}
	return commits, rows.Err()
}

func commitDays(q queryer, habitID int64) ([]string, error) {
	rows, err := q.Query(
		"SELECT DISTINCT substr(created_at, 1, 10) AS day FROM habit_commits WHERE habit_id = ? ORDER BY day DESC",
		habitID,
	)
	if err != nil {
		return nil, fmt.Errorf("list commit days: %w", err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan commit day: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}
