package storage

import (
	"context"
	"errors"
	"time"

	"github.com/your-org/facecommand/internal/models"
)

var (
	// ErrNotFound is returned by updates and deletes that matched no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique name is already taken.
	ErrDuplicate = errors.New("already exists")
)

// FaceStore persists reference faces. Lookups return (nil, nil) when the
// face does not exist.
type FaceStore interface {
	CreateFace(ctx context.Context, f *models.Face) error
	GetFace(ctx context.Context, id int64) (*models.Face, error)
	GetFacesByIDs(ctx context.Context, ids []int64) ([]models.Face, error)
	ListFaces(ctx context.Context) ([]models.Face, error)
	ListAutostartFaces(ctx context.Context) ([]models.Face, error)
	UpdateFace(ctx context.Context, f *models.Face) error
	DeleteFace(ctx context.Context, id int64) error
}

// StatusFilter bounds a status history query. Zero values mean unbounded.
type StatusFilter struct {
	From  *time.Time
	To    *time.Time
	Limit int
}

// StatusStore persists detection statuses.
type StatusStore interface {
	CreateStatus(ctx context.Context, st *models.Status) error
	GetStatus(ctx context.Context, id int64) (*models.Status, error)
	ListStatuses(ctx context.Context, filter StatusFilter) ([]models.Status, error)
}

// CommandStore persists commands together with their run conditions.
type CommandStore interface {
	CreateCommand(ctx context.Context, c *models.Command) error
	GetCommand(ctx context.Context, id int64) (*models.Command, error)
	ListCommands(ctx context.Context) ([]models.Command, error)
	UpdateCommand(ctx context.Context, c *models.Command, add []models.RunCondition, removeIDs []int64) error
	DeleteCommand(ctx context.Context, id int64) error
	ListRunConditionsByType(ctx context.Context, types []models.RunConditionType) ([]models.RunCondition, error)
}

type Store interface {
	FaceStore
	StatusStore
	CommandStore
	Ping(ctx context.Context) error
	Close() error
}

var _ Store = (*SQLStore)(nil)
