package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/your-org/facecommand/internal/events"
	"github.com/your-org/facecommand/internal/models"
	"github.com/your-org/facecommand/internal/observability"
	"github.com/your-org/facecommand/internal/storage"
)

// Store is the persistence the engine needs.
type Store interface {
	storage.CommandStore
	GetFacesByIDs(ctx context.Context, ids []int64) ([]models.Face, error)
}

// Engine matches status transitions against run conditions and executes
// the matching commands.
type Engine struct {
	store    Store
	registry *Registry
	logger   *slog.Logger
}

func NewEngine(store Store, registry *Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, registry: registry, logger: logger}
}

// Subscribe attaches the engine to the bus. Status changes are dispatched
// one at a time in publish order and none is skipped while a slow command
// runs.
func (e *Engine) Subscribe(bus *events.Bus) error {
	return bus.SubscribeQueued("commands", func(ctx context.Context, ev events.Event) {
		if ev.Type != events.TypeStatusChanged || ev.Status == nil {
			return
		}
		if err := e.OnStatusChange(ctx, ev.Status, ev.Previous); err != nil {
			e.logger.Error("dispatch status change", "status_type", ev.Status.Type, "error", err)
		}
	})
}

// candidateTypes returns the run condition types a status can trigger.
func candidateTypes(status *models.Status) []models.RunConditionType {
	switch status.Type {
	case models.StatusFacesDetected:
		return []models.RunConditionType{models.RunOnFaceDetected}
	case models.StatusFacesNoLongerDetected, models.StatusBrightnessTooLow:
		return []models.RunConditionType{
			models.RunOnFacesNoLongerDetected,
			models.RunOnSpecificFacesNoLongerRecognized,
			models.RunOnAnyFaceNoLongerRecognized,
		}
	case models.StatusFacesNoLongerRecognized:
		return []models.RunConditionType{
			models.RunOnSpecificFacesNoLongerRecognized,
			models.RunOnAnyFaceNoLongerRecognized,
		}
	case models.StatusFacesRecognized:
		if len(status.RecognizedFaces) > 0 {
			return []models.RunConditionType{
				models.RunOnFaceDetected,
				models.RunOnSpecificFacesRecognized,
				models.RunOnAnyFaceRecognized,
			}
		}
		return []models.RunConditionType{models.RunOnFaceDetected, models.RunOnAnyFaceRecognized}
	case models.StatusNoFacesDetected:
		return []models.RunConditionType{models.RunOnNoFacesDetected}
	default:
		return nil
	}
}

func conditionMatches(rc models.RunCondition, gained, lost []models.Face) bool {
	switch rc.Type {
	case models.RunOnSpecificFacesRecognized:
		return models.IntersectsFaces(rc.FacesToRecognize, gained)
	case models.RunOnSpecificFacesNoLongerRecognized:
		return models.IntersectsFaces(rc.FacesToRecognize, lost)
	default:
		return true
	}
}

// OnStatusChange runs every command with a run condition matching the
// transition from previous to status, each at most once. A failing command
// never prevents the others from running. Only failures to load the run
// conditions are returned.
func (e *Engine) OnStatusChange(ctx context.Context, status, previous *models.Status) error {
	if status == nil {
		return nil
	}
	gained := models.DiffFaces(status.RecognizedFaces, models.FacesOf(previous))
	lost := models.DiffFaces(models.FacesOf(previous), status.RecognizedFaces)

	types := candidateTypes(status)
	if len(lost) > 0 && !containsType(types, models.RunOnSpecificFacesNoLongerRecognized) {
		types = append(types, models.RunOnSpecificFacesNoLongerRecognized)
	}

	conditions, err := e.store.ListRunConditionsByType(ctx, types)
	if err != nil {
		return fmt.Errorf("load run conditions: %w", err)
	}

	seen := make(map[int64]struct{})
	var commandIDs []int64
	for _, rc := range conditions {
		if !conditionMatches(rc, gained, lost) {
			continue
		}
		if _, ok := seen[rc.CommandID]; ok {
			continue
		}
		seen[rc.CommandID] = struct{}{}
		commandIDs = append(commandIDs, rc.CommandID)
	}

	for _, id := range commandIDs {
		cmd, err := e.store.GetCommand(ctx, id)
		if err != nil {
			e.logger.Error("load command", "command_id", id, "error", err)
			continue
		}
		if cmd == nil {
			continue
		}
		if _, err := e.RunCommand(ctx, cmd, status); err != nil {
			e.logger.Error("command failed", "command", cmd.Name, "type", cmd.Type, "status_type", status.Type, "error", err)
		}
	}
	return nil
}

// RunCommand executes cmd with its handler. Handler errors and panics are
// returned as *ExecutionError; an unregistered type yields ErrCommandTypeNotFound.
func (e *Engine) RunCommand(ctx context.Context, cmd *models.Command, status *models.Status) (any, error) {
	h, err := e.registry.Resolve(cmd.Type)
	if err != nil {
		observability.CommandsExecuted.WithLabelValues(cmd.Type, "unknown_type").Inc()
		return nil, fmt.Errorf("run command %q: %w", cmd.Name, err)
	}

	start := time.Now()
	result, err := invoke(ctx, h, Options{Command: *cmd, Status: status, Data: cmd.Data})
	observability.CommandDuration.WithLabelValues(cmd.Type).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.CommandsExecuted.WithLabelValues(cmd.Type, "error").Inc()
		return nil, newExecutionError(cmd.Name, err)
	}

	observability.CommandsExecuted.WithLabelValues(cmd.Type, "success").Inc()
	e.logger.Info("command executed", "command", cmd.Name, "type", cmd.Type)
	return result, nil
}

// RunCommandByID loads and executes a command outside of any transition.
func (e *Engine) RunCommandByID(ctx context.Context, id int64, status *models.Status) (any, error) {
	cmd, err := e.GetCommand(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.RunCommand(ctx, cmd, status)
}

func invoke(ctx context.Context, h Handler, opts Options) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ExecutionError{Command: opts.Command.Name, Name: "panic", Message: fmt.Sprint(r)}
		}
	}()
	return h.Run(ctx, opts)
}

func containsType(types []models.RunConditionType, t models.RunConditionType) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}
