package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/your-org/facecommand/internal/models"
)

const faceColumns = `id, name, image, autostart, created_at`

func (s *SQLStore) CreateFace(ctx context.Context, f *models.Face) error {
	f.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	id, err := s.insert(ctx, s.db,
		`INSERT INTO faces (name, image, autostart, created_at) VALUES (?, ?, ?, ?)`,
		f.Name, f.Image, f.Autostart, toMillis(f.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create face %q: %w", f.Name, ErrDuplicate)
		}
		return fmt.Errorf("create face: %w", err)
	}
	f.ID = id
	return nil
}

func (s *SQLStore) GetFace(ctx context.Context, id int64) (*models.Face, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+faceColumns+` FROM faces WHERE id = ?`), id)
	f, err := scanFace(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get face: %w", err)
	}
	return f, nil
}

// GetFacesByIDs returns the existing faces among ids, ordered by id.
func (s *SQLStore) GetFacesByIDs(ctx context.Context, ids []int64) ([]models.Face, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.queryFaces(ctx,
		`SELECT `+faceColumns+` FROM faces WHERE id IN (`+placeholders(len(ids))+`) ORDER BY id`,
		int64Args(ids)...)
}

func (s *SQLStore) ListFaces(ctx context.Context) ([]models.Face, error) {
	return s.queryFaces(ctx, `SELECT `+faceColumns+` FROM faces ORDER BY id`)
}

// ListAutostartFaces returns the faces loaded automatically when detection starts.
func (s *SQLStore) ListAutostartFaces(ctx context.Context) ([]models.Face, error) {
	return s.queryFaces(ctx, `SELECT `+faceColumns+` FROM faces WHERE autostart = ? ORDER BY id`, true)
}

func (s *SQLStore) UpdateFace(ctx context.Context, f *models.Face) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE faces SET name = ?, image = ?, autostart = ? WHERE id = ?`),
		f.Name, f.Image, f.Autostart, f.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update face %q: %w", f.Name, ErrDuplicate)
		}
		return fmt.Errorf("update face: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("update face %d: %w", f.ID, err)
	}
	return nil
}

// DeleteFace removes a face and every status or run condition link to it.
func (s *SQLStore) DeleteFace(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM status_faces WHERE face_id = ?`), id); err != nil {
			return fmt.Errorf("delete status faces: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM run_condition_faces WHERE face_id = ?`), id); err != nil {
			return fmt.Errorf("delete run condition faces: %w", err)
		}
		res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM faces WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete face: %w", err)
		}
		if err := checkAffected(res); err != nil {
			return fmt.Errorf("delete face %d: %w", id, err)
		}
		return nil
	})
}

func (s *SQLStore) queryFaces(ctx context.Context, query string, args ...any) ([]models.Face, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list faces: %w", err)
	}
	defer rows.Close()

	var faces []models.Face
	for rows.Next() {
		f, err := scanFace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		faces = append(faces, *f)
	}
	return faces, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFace(sc scanner) (*models.Face, error) {
	var (
		f         models.Face
		createdAt int64
	)
	if err := sc.Scan(&f.ID, &f.Name, &f.Image, &f.Autostart, &createdAt); err != nil {
		return nil, err
	}
	f.CreatedAt = fromMillis(createdAt)
	return &f, nil
}

// loadFaceRefs resolves the faces linked to owner rows through a join table.
// Faces are returned without image data, grouped by owner id in link order.
func (s *SQLStore) loadFaceRefs(ctx context.Context, q querier, table, ownerColumn, orderColumn string, ownerIDs []int64) (map[int64][]models.Face, error) {
	refs := make(map[int64][]models.Face, len(ownerIDs))
	if len(ownerIDs) == 0 {
		return refs, nil
	}
	query := fmt.Sprintf(
		`SELECT l.%[2]s, f.id, f.name, f.autostart, f.created_at
		 FROM %[1]s l JOIN faces f ON f.id = l.face_id
		 WHERE l.%[2]s IN (%[3]s) ORDER BY l.%[2]s, l.%[4]s`,
		table, ownerColumn, placeholders(len(ownerIDs)), orderColumn)
	rows, err := q.QueryContext(ctx, s.rebind(query), int64Args(ownerIDs)...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ownerID   int64
			f         models.Face
			createdAt int64
		)
		if err := rows.Scan(&ownerID, &f.ID, &f.Name, &f.Autostart, &createdAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		f.CreatedAt = fromMillis(createdAt)
		refs[ownerID] = append(refs[ownerID], f)
	}
	return refs, rows.Err()
}
