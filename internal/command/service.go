package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/your-org/facecommand/internal/models"
	"github.com/your-org/facecommand/internal/storage"
)

// AddCommand validates and persists a new command with its run conditions.
// Run conditions only need the ids of their faces.
func (e *Engine) AddCommand(ctx context.Context, typeName, name string, conditions []models.RunCondition, data json.RawMessage) (*models.Command, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidCommand)
	}
	if _, err := e.registry.Resolve(typeName); err != nil {
		return nil, err
	}
	resolved, err := e.resolveConditions(ctx, conditions)
	if err != nil {
		return nil, err
	}

	cmd := &models.Command{Name: name, Type: typeName, RunConditions: resolved, Data: data}
	if err := e.store.CreateCommand(ctx, cmd); err != nil {
		return nil, fmt.Errorf("add command: %w", err)
	}
	e.logger.Info("command added", "command_id", cmd.ID, "command", cmd.Name, "type", cmd.Type)
	return cmd, nil
}

func (e *Engine) GetCommand(ctx context.Context, id int64) (*models.Command, error) {
	cmd, err := e.store.GetCommand(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get command: %w", err)
	}
	if cmd == nil {
		return nil, fmt.Errorf("%w: %d", ErrCommandNotFound, id)
	}
	return cmd, nil
}

func (e *Engine) GetCommands(ctx context.Context) ([]models.Command, error) {
	cmds, err := e.store.ListCommands(ctx)
	if err != nil {
		return nil, fmt.Errorf("get commands: %w", err)
	}
	return cmds, nil
}

// UpdateCommand replaces the name, type and data of an existing command and
// keeps the stored value of any of them left empty in delta. It
// reconciles the run conditions with delta.RunConditions: conditions not in
// the delta are removed, new ones are added and changed ones are replaced.
func (e *Engine) UpdateCommand(ctx context.Context, delta *models.Command) (*models.Command, error) {
	existing, err := e.GetCommand(ctx, delta.ID)
	if err != nil {
		return nil, err
	}

	updated := *delta
	updated.Name = strings.TrimSpace(updated.Name)
	if updated.Name == "" {
		updated.Name = existing.Name
	}
	if updated.Type == "" {
		updated.Type = existing.Type
	}
	if updated.Data == nil {
		updated.Data = existing.Data
	}
	if _, err := e.registry.Resolve(updated.Type); err != nil {
		return nil, err
	}
	desired, err := e.resolveConditions(ctx, delta.RunConditions)
	if err != nil {
		return nil, err
	}

	add, remove := diffRunConditions(existing.RunConditions, desired)
	if err := e.store.UpdateCommand(ctx, &updated, add, remove); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrCommandNotFound, delta.ID)
		}
		return nil, fmt.Errorf("update command: %w", err)
	}
	e.logger.Info("command updated", "command_id", updated.ID, "added_conditions", len(add), "removed_conditions", len(remove))
	return e.GetCommand(ctx, delta.ID)
}

// RemoveCommand deletes a command together with its run conditions.
func (e *Engine) RemoveCommand(ctx context.Context, id int64) error {
	if err := e.store.DeleteCommand(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrCommandNotFound, id)
		}
		return fmt.Errorf("remove command: %w", err)
	}
	e.logger.Info("command removed", "command_id", id)
	return nil
}

// GetCommandTypeNames lists the command types that can be used.
func (e *Engine) GetCommandTypeNames() []string {
	return e.registry.Names()
}

// resolveConditions validates conditions and replaces their face ids by the
// stored faces. Faces on non-specific conditions are dropped.
func (e *Engine) resolveConditions(ctx context.Context, conditions []models.RunCondition) ([]models.RunCondition, error) {
	var ids []int64
	for _, rc := range conditions {
		if !rc.Type.Valid() {
			return nil, fmt.Errorf("%w: unknown run condition type %q", ErrInvalidCommand, rc.Type)
		}
		if rc.Type.IsSpecific() {
			if len(rc.FacesToRecognize) == 0 {
				return nil, fmt.Errorf("%w: %s", ErrFacesRequired, rc.Type)
			}
			ids = append(ids, models.FaceIDs(rc.FacesToRecognize)...)
		}
	}

	byID := make(map[int64]models.Face)
	if len(ids) > 0 {
		faces, err := e.store.GetFacesByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("load faces: %w", err)
		}
		for _, f := range faces {
			f.Image = nil
			byID[f.ID] = f
		}
	}

	out := make([]models.RunCondition, 0, len(conditions))
	for _, rc := range conditions {
		resolved := models.RunCondition{ID: rc.ID, Type: rc.Type}
		if rc.Type.IsSpecific() {
			seen := make(map[int64]struct{})
			for _, f := range rc.FacesToRecognize {
				face, ok := byID[f.ID]
				if !ok {
					return nil, fmt.Errorf("%w: %d", ErrFaceNotFound, f.ID)
				}
				if _, dup := seen[f.ID]; dup {
					continue
				}
				seen[f.ID] = struct{}{}
				resolved.FacesToRecognize = append(resolved.FacesToRecognize, face)
			}
		}
		out = append(out, resolved)
	}
	return out, nil
}

// diffRunConditions computes which conditions to insert and which ids to
// delete so that existing becomes desired. A desired condition keeps its
// row only when its id exists and its type and faces are unchanged.
func diffRunConditions(existing, desired []models.RunCondition) (add []models.RunCondition, remove []int64) {
	byID := make(map[int64]models.RunCondition, len(existing))
	for _, rc := range existing {
		byID[rc.ID] = rc
	}

	kept := make(map[int64]bool)
	for _, rc := range desired {
		if ex, ok := byID[rc.ID]; ok && rc.ID != 0 && !kept[rc.ID] && sameCondition(ex, rc) {
			kept[rc.ID] = true
			continue
		}
		rc.ID = 0
		add = append(add, rc)
	}
	for _, rc := range existing {
		if !kept[rc.ID] {
			remove = append(remove, rc.ID)
		}
	}
	return add, remove
}

func sameCondition(a, b models.RunCondition) bool {
	return a.Type == b.Type && models.SameFaces(a.FacesToRecognize, b.FacesToRecognize)
}
