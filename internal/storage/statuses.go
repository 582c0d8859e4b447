package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/your-org/facecommand/internal/models"
)

const statusColumns = `id, status_type, observed_at, brightness, snapshot_key`

// CreateStatus inserts a status and its recognized faces in one transaction.
// Faces deleted in the meantime are not linked and are removed from
// st.RecognizedFaces.
func (s *SQLStore) CreateStatus(ctx context.Context, st *models.Status) error {
	var linked []models.Face
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		linked = linked[:0]
		id, err := s.insert(ctx, tx,
			`INSERT INTO statuses (status_type, observed_at, brightness, snapshot_key) VALUES (?, ?, ?, ?)`,
			string(st.Type), toMillis(st.Time), st.Brightness, st.SnapshotKey)
		if err != nil {
			return fmt.Errorf("create status: %w", err)
		}
		for _, f := range st.RecognizedFaces {
			res, err := tx.ExecContext(ctx,
				s.rebind(`INSERT INTO status_faces (status_id, face_id, position)
					SELECT CAST(? AS BIGINT), id, CAST(? AS INTEGER) FROM faces WHERE id = ?`),
				id, len(linked), f.ID)
			if err != nil {
				return fmt.Errorf("link status face %d: %w", f.ID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("link status face %d: %w", f.ID, err)
			}
			if n == 0 {
				continue
			}
			linked = append(linked, f)
		}
		st.ID = id
		return nil
	})
	if err != nil {
		return err
	}
	st.RecognizedFaces = linked
	return nil
}

func (s *SQLStore) GetStatus(ctx context.Context, id int64) (*models.Status, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+statusColumns+` FROM statuses WHERE id = ?`), id)
	st, err := scanStatus(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get status: %w", err)
	}
	refs, err := s.loadFaceRefs(ctx, s.db, "status_faces", "status_id", "position", []int64{st.ID})
	if err != nil {
		return nil, err
	}
	st.RecognizedFaces = refs[st.ID]
	return st, nil
}

// ListStatuses returns statuses within the filter's range, newest first.
func (s *SQLStore) ListStatuses(ctx context.Context, filter StatusFilter) ([]models.Status, error) {
	query := `SELECT ` + statusColumns + ` FROM statuses WHERE 1 = 1`
	var args []any
	if filter.From != nil {
		query += ` AND observed_at >= ?`
		args = append(args, toMillis(*filter.From))
	}
	if filter.To != nil {
		query += ` AND observed_at <= ?`
		args = append(args, toMillis(*filter.To))
	}
	query += ` ORDER BY observed_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	var (
		statuses []models.Status
		ids      []int64
	)
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan status: %w", err)
		}
		statuses = append(statuses, *st)
		ids = append(ids, st.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}

	refs, err := s.loadFaceRefs(ctx, s.db, "status_faces", "status_id", "position", ids)
	if err != nil {
		return nil, err
	}
	for i := range statuses {
		statuses[i].RecognizedFaces = refs[statuses[i].ID]
	}
	return statuses, nil
}

func scanStatus(sc scanner) (*models.Status, error) {
	var (
		st         models.Status
		statusType string
		observedAt int64
	)
	if err := sc.Scan(&st.ID, &statusType, &observedAt, &st.Brightness, &st.SnapshotKey); err != nil {
		return nil, err
	}
	st.Type = models.StatusType(statusType)
	st.Time = fromMillis(observedAt)
	return &st, nil
}
