package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pbaille/mandalart/internal/domain"
)

const epicColumns = "id, title, description, status, depth, position, core_epic_id, created_at, updated_at"

func scanEpic(row scanner) (domain.Epic, error) {
	var (
		e         domain.Epic
		position  sql.NullString
		coreID    sql.NullInt64
		updatedAt sql.NullString
	)
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Status, &e.Depth,
		&position, &coreID, &e.CreatedAt, &updatedAt)
	if err != nil {
		return e, err
	}
	if position.Valid {
		if p, ok := domain.ReadPosition(position.String); ok {
			e.Position = &p
		}
	}
	e.CoreEpicID = int64Ptr(coreID)
	e.UpdatedAt = stringPtr(updatedAt)
	e.Subs = []domain.Epic{}
	return e, nil
}

// epicForest indexes every epic by id and by parent so subtrees can be assembled
type epicForest struct {
	byID     map[int64]domain.Epic
	children map[int64][]int64
}

func loadForest(q queryer) (*epicForest, error) {
	rows, err := q.Query("SELECT " + epicColumns + " FROM epics ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("load epics: %w", err)
	}
	defer rows.Close()

	f := &epicForest{
		byID:     make(map[int64]domain.Epic),
		children: make(map[int64][]int64),
	}
	for rows.Next() {
		e, err := scanEpic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan epic: %w", err)
		}
		f.byID[e.ID] = e
		if e.CoreEpicID != nil {
			f.children[*e.CoreEpicID] = append(f.children[*e.CoreEpicID], e.ID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load epics: %w", err)
	}
	return f, nil
}

// tree returns the epic with its subs populated. visited guards against
// cycles in rows written outside this store.
func (f *epicForest) tree(id int64, visited map[int64]bool) domain.Epic {
	e := f.byID[id]
	visited[id] = true
	e.Subs = []domain.Epic{}
	for _, childID := range f.children[id] {
		if visited[childID] {
			continue
		}
		e.Subs = append(e.Subs, f.tree(childID, visited))
	}
	return e
}

// descendants returns the ids of every epic below id
func (f *epicForest) descendants(id int64) []int64 {
	var out []int64
	stack := append([]int64(nil), f.children[id]...)
	seen := map[int64]bool{id: true}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
		stack = append(stack, f.children[n]...)
	}
	return out
}

// ListEpics returns epics ordered by id with their subtrees
func (s *Store) ListEpics(skip, limit int) ([]domain.Epic, error) {
	rows, err := s.db.Query("SELECT id FROM epics ORDER BY id LIMIT ? OFFSET ?", limit, skip)
	if err != nil {
		return nil, fmt.Errorf("list epics: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan epic id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list epics: %w", err)
	}
	rows.Close()

	f, err := loadForest(s.db)
	if err != nil {
		return nil, err
	}

	epics := make([]domain.Epic, 0, len(ids))
	for _, id := range ids {
		epics = append(epics, f.tree(id, map[int64]bool{}))
	}
	return epics, nil
}

// GetEpic retrieves an epic by ID with its subtree
func (s *Store) GetEpic(id int64) (*domain.Epic, error) {
	f, err := loadForest(s.db)
	if err != nil {
		return nil, err
	}
	if _, ok := f.byID[id]; !ok {
		return nil, fmt.Errorf("epic %d: %w", id, ErrNotFound)
	}
	e := f.tree(id, map[int64]bool{})
	return &e, nil
}

// ListSubEpics returns the direct children of an epic
func (s *Store) ListSubEpics(id int64) ([]domain.Epic, error) {
	e, err := s.GetEpic(id)
	if err != nil {
		return nil, err
	}
	return e.Subs, nil
}

func epicDepth(q queryer, id int64) (int, error) {
	var depth int
	err := q.QueryRow("SELECT depth FROM epics WHERE id = ?", id).Scan(&depth)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: core epic %d does not exist", ErrInvalid, id)
	}
	if err != nil {
		return 0, fmt.Errorf("get epic depth: %w", err)
	}
	return depth, nil
}

// CreateEpic inserts an epic; depth follows from the parent
func (s *Store) CreateEpic(in domain.EpicCreate) (*domain.Epic, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if in.Position != nil {
		if err := in.Position.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}

	var id int64
	err := s.withTx(func(tx *sql.Tx) error {
		depth := 0
		if in.CoreEpicID != nil {
			parentDepth, err := epicDepth(tx, *in.CoreEpicID)
			if err != nil {
				return err
			}
			depth = parentDepth + 1
		}

		res, err := tx.Exec(
			`INSERT INTO epics (title, description, status, depth, position, core_epic_id, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			in.Title, in.Description, in.Status, depth, positionValue(in.Position),
			nullInt64(in.CoreEpicID), s.timestamp(),
		)
		if err != nil {
			return fmt.Errorf("insert epic: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert epic id: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetEpic(id)
}

func positionValue(p *domain.Position) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: p.String(), Valid: true}
}

// UpdateEpic applies the fields set in u; reparenting recomputes subtree depths
func (s *Store) UpdateEpic(id int64, u domain.EpicUpdate) (*domain.Epic, error) {
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", ErrInvalid)
	}
	if u.Position != nil {
		if err := u.Position.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}

	err := s.withTx(func(tx *sql.Tx) error {
		f, err := loadForest(tx)
		if err != nil {
			return err
		}
		current, ok := f.byID[id]
		if !ok {
			return fmt.Errorf("epic %d: %w", id, ErrNotFound)
		}

		newDepth := current.Depth
		parent := current.CoreEpicID
		if u.CoreEpicID.Set {
			parent = u.CoreEpicID.Value
			newDepth = 0
			if parent != nil {
				p, ok := f.byID[*parent]
				if !ok {
					return fmt.Errorf("%w: core epic %d does not exist", ErrInvalid, *parent)
				}
				if *parent == id {
					return fmt.Errorf("%w: epic %d cannot be its own parent", ErrInvalid, id)
				}
				for _, d := range f.descendants(id) {
					if d == *parent {
						return fmt.Errorf("%w: epic %d is below epic %d, reparenting would create a cycle", ErrInvalid, *parent, id)
					}
				}
				newDepth = p.Depth + 1
			}
		}
		if u.Depth != nil && *u.Depth != newDepth {
			return fmt.Errorf("%w: depth %d does not match hierarchy depth %d", ErrInvalid, *u.Depth, newDepth)
		}

		next := current
		if u.Title != nil {
			next.Title = *u.Title
		}
		if u.Description != nil {
			next.Description = *u.Description
		}
		if u.Status != nil {
			next.Status = *u.Status
		}
		if u.Position != nil {
			next.Position = u.Position
		}

		_, err = tx.Exec(
			`UPDATE epics SET title = ?, description = ?, status = ?, depth = ?, position = ?,
			 core_epic_id = ?, updated_at = ? WHERE id = ?`,
			next.Title, next.Description, next.Status, newDepth, positionValue(next.Position),
			nullInt64(parent), s.timestamp(), id,
		)
		if err != nil {
			return fmt.Errorf("update epic: %w", err)
		}

		if delta := newDepth - current.Depth; delta != 0 {
			for _, d := range f.descendants(id) {
				if _, err := tx.Exec("UPDATE epics SET depth = depth + ? WHERE id = ?", delta, d); err != nil {
					return fmt.Errorf("update sub epic depth: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetEpic(id)
}

// DeleteEpic removes an epic and its subtree, detaching their habits.
// The deleted record is returned as it was before removal.
func (s *Store) DeleteEpic(id int64) (*domain.Epic, error) {
	var deleted domain.Epic
	err := s.withTx(func(tx *sql.Tx) error {
		f, err := loadForest(tx)
		if err != nil {
			return err
		}
		if _, ok := f.byID[id]; !ok {
			return fmt.Errorf("epic %d: %w", id, ErrNotFound)
		}
		deleted = f.tree(id, map[int64]bool{})

		ids := append([]int64{id}, f.descendants(id)...)
		for _, eid := range ids {
			if _, err := tx.Exec("UPDATE habits SET epic_id = NULL WHERE epic_id = ?", eid); err != nil {
				return fmt.Errorf("detach habits: %w", err)
			}
		}
		// children first so a parent row is never deleted while referenced
		for i := len(ids) - 1; i >= 0; i-- {
			if _, err := tx.Exec("DELETE FROM epics WHERE id = ?", ids[i]); err != nil {
				return fmt.Errorf("delete epic: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}

// DeleteAllEpics removes every epic and returns how many were deleted
func (s *Store) DeleteAllEpics() (int64, error) {
	var n int64
	err := s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("UPDATE habits SET epic_id = NULL WHERE epic_id IS NOT NULL"); err != nil {
			return fmt.Errorf("detach habits: %w", err)
		}
		res, err := tx.Exec("DELETE FROM epics")
		if err != nil {
			return fmt.Errorf("delete epics: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
