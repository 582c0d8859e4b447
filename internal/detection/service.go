// Package detection runs the polling loop that turns camera observations
// into deduplicated status changes.
package detection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/facecommand/internal/events"
	"github.com/your-org/facecommand/internal/models"
	"github.com/your-org/facecommand/internal/observability"
	"github.com/your-org/facecommand/internal/storage"
)

// Store is the persistence the loop needs.
type Store interface {
	storage.StatusStore
	GetFacesByIDs(ctx context.Context, ids []int64) ([]models.Face, error)
	ListAutostartFaces(ctx context.Context) ([]models.Face, error)
}

// Publisher receives loop notifications. *events.Bus implements it.
type Publisher interface {
	Publish(ev events.Event)
}

// SnapshotStore keeps the frames of emitted statuses.
type SnapshotStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

type Config struct {
	MinimumBrightness float64
	StopOnError       bool
	// EmitOnIdentityChange also emits when the set of recognized faces
	// changes while the status type stays FacesRecognized.
	EmitOnIdentityChange bool
	DefaultThreshold     float64
}

// Options configures one run of the loop.
type Options struct {
	Frequency time.Duration
	// Faces are identified by id and reloaded from the store each cycle.
	Faces []models.Face
	// AutostartFaces adds every stored face flagged autostart, reloaded each cycle.
	AutostartFaces bool
	Recognizer     RecognizerOptions
}

func (o Options) validate() error {
	if o.Frequency <= 0 {
		return fmt.Errorf("%w: frequency must be positive, got %v", ErrInvalidOptions, o.Frequency)
	}
	if o.Recognizer.Threshold < 0 {
		return fmt.Errorf("%w: negative recognizer threshold", ErrInvalidOptions)
	}
	return nil
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithSnapshotStore(ss SnapshotStore) Option {
	return func(s *Service) { s.snapshots = ss }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// cycleState is carried from one cycle to the next. It is only touched
// while cycleMu is held.
type cycleState struct {
	classifier      Classifier
	faceKey         string
	brightnessAlert bool
}

type Service struct {
	cfg       Config
	capture   Capture
	store     Store
	bus       Publisher
	snapshots SnapshotStore
	logger    *slog.Logger
	now       func() time.Time

	cycleMu sync.Mutex
	state   cycleState

	mu      sync.Mutex
	last    *models.Status
	running bool
	cancel  context.CancelFunc
	gen     uint64
	wg      sync.WaitGroup
}

func NewService(cfg Config, capture Capture, store Store, bus Publisher, opts ...Option) *Service {
	s := &Service{
		cfg:     cfg,
		capture: capture,
		store:   store,
		bus:     bus,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartDetection starts polling every opts.Frequency. A running loop is
// stopped first.
func (s *Service) StartDetection(opts Options) error {
	if err := opts.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	s.gen++
	gen := s.gen
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(ctx, gen, opts)

	observability.DetectionRunning.Set(1)
	s.bus.Publish(events.DetectionRunning(true))
	s.logger.Info("detection started",
		"frequency", opts.Frequency,
		"faces", len(opts.Faces),
		"autostart_faces", opts.AutostartFaces)
	return nil
}

// StopDetection stops the loop. It is a no-op when nothing is running. A
// cycle already in progress completes.
func (s *Service) StopDetection() {
	s.stop(0)
}

// stop stops the loop of generation gen, or the current one when gen is 0.
func (s *Service) stop(gen uint64) {
	s.mu.Lock()
	if !s.running || (gen != 0 && gen != s.gen) {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.cancel = nil
	s.running = false
	s.mu.Unlock()

	observability.DetectionRunning.Set(0)
	s.bus.Publish(events.DetectionRunning(false))
	s.logger.Info("detection stopped")
}

// Close stops the loop and waits for its goroutine to return.
func (s *Service) Close() {
	s.StopDetection()
	s.wg.Wait()
}

func (s *Service) IsDetectionRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// GetLastStatus returns the most recently emitted status, or nil.
func (s *Service) GetLastStatus() *models.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Service) run(ctx context.Context, gen uint64, opts Options) {
	defer s.wg.Done()

	ticker := time.NewTicker(opts.Frequency)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, gen, opts)
		}
	}
}

// tick runs one cycle unless the previous one is still in progress.
func (s *Service) tick(ctx context.Context, gen uint64, opts Options) {
	if !s.cycleMu.TryLock() {
		observability.DetectionCycles.WithLabelValues("skipped").Inc()
		s.logger.Debug("previous detection cycle still running, skipping tick")
		return
	}
	defer s.cycleMu.Unlock()

	if ctx.Err() != nil {
		return
	}
	if _, err := s.detectChanges(context.WithoutCancel(ctx), opts); err != nil {
		s.logger.Error("detection cycle failed", "error", err)
		if s.cfg.StopOnError {
			s.logger.Warn("stopping detection after error")
			s.stop(gen)
		}
	}
}

// AddStatus persists a status, makes it the last status and publishes it.
func (s *Service) AddStatus(ctx context.Context, t models.StatusType, at time.Time, brightness float64, faces []models.Face) (*models.Status, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("add status: unknown status type %q", t)
	}
	st := &models.Status{
		Type:            t,
		Time:            at.UTC().Truncate(time.Millisecond),
		Brightness:      brightness,
		RecognizedFaces: faceRefs(faces),
	}
	if err := s.addStatus(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) addStatus(ctx context.Context, st *models.Status) error {
	if err := s.store.CreateStatus(ctx, st); err != nil {
		return fmt.Errorf("persist status: %w", err)
	}

	s.mu.Lock()
	prev := s.last
	s.last = st
	s.mu.Unlock()

	observability.StatusesEmitted.WithLabelValues(string(st.Type)).Inc()
	attrs := []any{"status_id", st.ID, "status_type", st.Type, "brightness", st.Brightness}
	if prev != nil {
		attrs = append(attrs, "previous", prev.Type)
	}
	if len(st.RecognizedFaces) > 0 {
		attrs = append(attrs, "faces", faceNames(st.RecognizedFaces))
	}
	s.logger.Info("status changed", attrs...)

	s.bus.Publish(events.StatusChanged(st, prev))
	return nil
}

func (s *Service) GetStatus(ctx context.Context, id int64) (*models.Status, error) {
	st, err := s.store.GetStatus(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	if st == nil {
		return nil, fmt.Errorf("%w: %d", ErrStatusNotFound, id)
	}
	return st, nil
}

// StatusHistory returns the statuses between from and to, newest first.
// A nil bound is open.
func (s *Service) StatusHistory(ctx context.Context, from, to *time.Time, limit int) ([]models.Status, error) {
	statuses, err := s.store.ListStatuses(ctx, storage.StatusFilter{From: from, To: to, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("status history: %w", err)
	}
	return statuses, nil
}

// faceRefs copies faces without their image data.
func faceRefs(faces []models.Face) []models.Face {
	if len(faces) == 0 {
		return nil
	}
	out := make([]models.Face, len(faces))
	for i, f := range faces {
		f.Image = nil
		out[i] = f
	}
	return out
}

func faceNames(faces []models.Face) []string {
	names := make([]string, len(faces))
	for i, f := range faces {
		names[i] = f.Name
	}
	return names
}
