package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/your-org/facecommand/internal/models"
)

const commandColumns = `id, name, type, data, created_at`

// CreateCommand inserts a command and its run conditions in one transaction,
// so a failed condition never leaves an orphaned command behind.
func (s *SQLStore) CreateCommand(ctx context.Context, c *models.Command) error {
	c.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	return s.inTx(ctx, func(tx *sql.Tx) error {
		id, err := s.insert(ctx, tx,
			`INSERT INTO commands (name, type, data, created_at) VALUES (?, ?, ?, ?)`,
			c.Name, c.Type, string(c.Data), toMillis(c.CreatedAt))
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("create command %q: %w", c.Name, ErrDuplicate)
			}
			return fmt.Errorf("create command: %w", err)
		}
		for i := range c.RunConditions {
			if err := s.insertRunCondition(ctx, tx, id, &c.RunConditions[i]); err != nil {
				return err
			}
		}
		c.ID = id
		return nil
	})
}

func (s *SQLStore) GetCommand(ctx context.Context, id int64) (*models.Command, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+commandColumns+` FROM commands WHERE id = ?`), id)
	c, err := scanCommand(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get command: %w", err)
	}
	conditions, err := s.queryRunConditions(ctx, s.db, `command_id = ?`, c.ID)
	if err != nil {
		return nil, err
	}
	c.RunConditions = conditions
	return c, nil
}

func (s *SQLStore) ListCommands(ctx context.Context) ([]models.Command, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+commandColumns+` FROM commands ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	var commands []models.Command
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan command: %w", err)
		}
		commands = append(commands, *c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	if len(commands) == 0 {
		return commands, nil
	}

	conditions, err := s.queryRunConditions(ctx, s.db, `1 = 1`)
	if err != nil {
		return nil, err
	}
	byCommand := make(map[int64][]models.RunCondition)
	for _, rc := range conditions {
		byCommand[rc.CommandID] = append(byCommand[rc.CommandID], rc)
	}
	for i := range commands {
		commands[i].RunConditions = byCommand[commands[i].ID]
	}
	return commands, nil
}

// UpdateCommand updates the command's fields and reconciles its run
// conditions: removeIDs are deleted and add are inserted, atomically.
// Inserted conditions get their ids assigned in place.
func (s *SQLStore) UpdateCommand(ctx context.Context, c *models.Command, add []models.RunCondition, removeIDs []int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			s.rebind(`UPDATE commands SET name = ?, type = ?, data = ? WHERE id = ?`),
			c.Name, c.Type, string(c.Data), c.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("update command %q: %w", c.Name, ErrDuplicate)
			}
			return fmt.Errorf("update command: %w", err)
		}
		if err := checkAffected(res); err != nil {
			return fmt.Errorf("update command %d: %w", c.ID, err)
		}

		if len(removeIDs) > 0 {
			args := int64Args(removeIDs)
			if _, err := tx.ExecContext(ctx,
				s.rebind(`DELETE FROM run_condition_faces WHERE run_condition_id IN (`+placeholders(len(removeIDs))+`)`),
				args...); err != nil {
				return fmt.Errorf("delete run condition faces: %w", err)
			}
			args = append(args, c.ID)
			if _, err := tx.ExecContext(ctx,
				s.rebind(`DELETE FROM run_conditions WHERE id IN (`+placeholders(len(removeIDs))+`) AND command_id = ?`),
				args...); err != nil {
				return fmt.Errorf("delete run conditions: %w", err)
			}
		}
		for i := range add {
			if err := s.insertRunCondition(ctx, tx, c.ID, &add[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteCommand removes a command with its run conditions and their face links.
func (s *SQLStore) DeleteCommand(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.rebind(
			`DELETE FROM run_condition_faces WHERE run_condition_id IN (SELECT id FROM run_conditions WHERE command_id = ?)`),
			id); err != nil {
			return fmt.Errorf("delete run condition faces: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM run_conditions WHERE command_id = ?`), id); err != nil {
			return fmt.Errorf("delete run conditions: %w", err)
		}
		res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM commands WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete command: %w", err)
		}
		if err := checkAffected(res); err != nil {
			return fmt.Errorf("delete command %d: %w", id, err)
		}
		return nil
	})
}

// ListRunConditionsByType returns every run condition of the given types, ordered by id.
func (s *SQLStore) ListRunConditionsByType(ctx context.Context, types []models.RunConditionType) ([]models.RunCondition, error) {
	if len(types) == 0 {
		return nil, nil
	}
	args := make([]any, len(types))
	for i, t := range types {
		args[i] = string(t)
	}
	return s.queryRunConditions(ctx, s.db, `run_condition_type IN (`+placeholders(len(types))+`)`, args...)
}

func (s *SQLStore) insertRunCondition(ctx context.Context, tx *sql.Tx, commandID int64, rc *models.RunCondition) error {
	id, err := s.insert(ctx, tx,
		`INSERT INTO run_conditions (command_id, run_condition_type) VALUES (?, ?)`,
		commandID, string(rc.Type))
	if err != nil {
		return fmt.Errorf("create run condition: %w", err)
	}
	for _, f := range rc.FacesToRecognize {
		if _, err := tx.ExecContext(ctx,
			s.rebind(`INSERT INTO run_condition_faces (run_condition_id, face_id) VALUES (?, ?)`),
			id, f.ID); err != nil {
			return fmt.Errorf("link run condition face %d: %w", f.ID, err)
		}
	}
	rc.ID = id
	rc.CommandID = commandID
	return nil
}

func (s *SQLStore) queryRunConditions(ctx context.Context, q querier, where string, args ...any) ([]models.RunCondition, error) {
	rows, err := q.QueryContext(ctx, s.rebind(
		`SELECT id, command_id, run_condition_type FROM run_conditions WHERE `+where+` ORDER BY id`), args...)
	if err != nil {
		return nil, fmt.Errorf("list run conditions: %w", err)
	}
	var (
		conditions []models.RunCondition
		ids        []int64
	)
	for rows.Next() {
		var (
			rc     models.RunCondition
			rcType string
		)
		if err := rows.Scan(&rc.ID, &rc.CommandID, &rcType); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run condition: %w", err)
		}
		rc.Type = models.RunConditionType(rcType)
		conditions = append(conditions, rc)
		ids = append(ids, rc.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list run conditions: %w", err)
	}

	refs, err := s.loadFaceRefs(ctx, q, "run_condition_faces", "run_condition_id", "face_id", ids)
	if err != nil {
		return nil, err
	}
	for i := range conditions {
		conditions[i].FacesToRecognize = refs[conditions[i].ID]
	}
	return conditions, nil
}

func scanCommand(sc scanner) (*models.Command, error) {
	var (
		c         models.Command
		data      string
		createdAt int64
	)
	if err := sc.Scan(&c.ID, &c.Name, &c.Type, &data, &createdAt); err != nil {
		return nil, err
	}
	if data != "" {
		c.Data = []byte(data)
	}
	c.CreatedAt = fromMillis(createdAt)
	return &c, nil
}
