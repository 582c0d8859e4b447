package detection

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/your-org/facecommand/internal/events"
	"github.com/your-org/facecommand/internal/models"
	"github.com/your-org/facecommand/internal/storage"
)

// observation scripts what the fake capture sees in one cycle.
type observation struct {
	brightness float64
	// labels holds the predicted label of each detected region.
	labels []int64
}

func dark() observation                  { return observation{brightness: 0.1} }
func empty() observation                 { return observation{brightness: 0.9} }
func people(labels ...int64) observation { return observation{brightness: 0.9, labels: labels} }
func strangers(n int) observation {
	labels := make([]int64, n)
	for i := range labels {
		labels[i] = UnknownLabel
	}
	return people(labels...)
}

// fakeCapture replays observations; the last one repeats forever.
type fakeCapture struct {
	mu         sync.Mutex
	script     []observation
	current    observation
	acquired   int
	trainCalls int
	trainedOn  [][]int64

	acquireErr error
	predictErr error
}

func (c *fakeCapture) AcquireFrame(context.Context) (*image.Gray, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.acquireErr != nil {
		return nil, c.acquireErr
	}
	idx := c.acquired
	if idx >= len(c.script) {
		idx = len(c.script) - 1
	}
	c.current = c.script[idx]
	c.acquired++
	return image.NewGray(image.Rect(0, 0, 4, 4)), nil
}

func (c *fakeCapture) MeasureBrightness(*image.Gray) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.brightness
}

func (c *fakeCapture) NormalizeContrast(img *image.Gray) *image.Gray { return img }

func (c *fakeCapture) DetectRegions(context.Context, *image.Gray) ([]image.Rectangle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	regions := make([]image.Rectangle, len(c.current.labels))
	for i := range regions {
		regions[i] = image.Rect(i, 0, i+1, 1)
	}
	return regions, nil
}

// ResizeRegion encodes the region index in the returned image.
func (c *fakeCapture) ResizeRegion(_ *image.Gray, region image.Rectangle) *image.Gray {
	return image.NewGray(image.Rect(0, 0, region.Min.X+1, 1))
}

func (c *fakeCapture) Train(_ context.Context, faces []models.Face, _ RecognizerOptions) (Classifier, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trainCalls++
	c.trainedOn = append(c.trainedOn, models.FaceIDs(faces))
	return fakeClassifier{c}, nil
}

type fakeClassifier struct{ c *fakeCapture }

func (f fakeClassifier) Predict(_ context.Context, region *image.Gray) (Prediction, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	if f.c.predictErr != nil {
		return Prediction{}, f.c.predictErr
	}
	idx := region.Bounds().Dx() - 1
	return Prediction{Label: f.c.current.labels[idx], Confidence: 0.9}, nil
}

func (c *fakeCapture) counts() (acquired, trained int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquired, c.trainCalls
}

// memStore is an in-memory Store with error injection.
type memStore struct {
	mu        sync.Mutex
	statuses  []models.Status
	faces     []models.Face
	autostart []models.Face
	createErr error
}

func (m *memStore) GetFacesByIDs(_ context.Context, ids []int64) ([]models.Face, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Face
	for _, f := range m.faces {
		if slices.Contains(ids, f.ID) {
			out = append(out, f)
		}
	}
	return out, nil
}

// setFaces replaces the stored faces.
func (m *memStore) setFaces(faces ...models.Face) {
	m.mu.Lock()
	m.faces = faces
	m.mu.Unlock()
}

func (m *memStore) CreateStatus(_ context.Context, st *models.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	st.ID = int64(len(m.statuses) + 1)
	m.statuses = append(m.statuses, *st)
	return nil
}

func (m *memStore) GetStatus(_ context.Context, id int64) (*models.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.statuses {
		if st.ID == id {
			st := st
			return &st, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListStatuses(_ context.Context, _ storage.StatusFilter) ([]models.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Status, 0, len(m.statuses))
	for i := len(m.statuses) - 1; i >= 0; i-- {
		out = append(out, m.statuses[i])
	}
	return out, nil
}

func (m *memStore) ListAutostartFaces(context.Context) ([]models.Face, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.autostart, nil
}

func (m *memStore) types() []models.StatusType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.StatusType, len(m.statuses))
	for i, st := range m.statuses {
		out[i] = st.Type
	}
	return out
}

// eventRecorder is a Publisher keeping every event.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) Publish(ev events.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) ofType(t events.Type) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// logRecorder is a slog.Handler counting records per level and message.
type logRecorder struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *logRecorder) Enabled(context.Context, slog.Level) bool { return true }
func (h *logRecorder) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	h.records = append(h.records, r)
	h.mu.Unlock()
	return nil
}
func (h *logRecorder) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *logRecorder) WithGroup(string) slog.Handler      { return h }

func (h *logRecorder) count(level slog.Level, msg string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Level == level && r.Message == msg {
			n++
		}
	}
	return n
}

type harness struct {
	svc     *Service
	capture *fakeCapture
	store   *memStore
	events  *eventRecorder
	logs    *logRecorder
}

func newHarness(t *testing.T, cfg Config, script ...observation) *harness {
	t.Helper()
	if cfg.MinimumBrightness == 0 {
		cfg.MinimumBrightness = 0.5
	}
	h := &harness{
		capture: &fakeCapture{script: script},
		store:   &memStore{faces: []models.Face{alice, bob}},
		events:  &eventRecorder{},
		logs:    &logRecorder{},
	}
	h.svc = NewService(cfg, h.capture, h.store, h.events, WithLogger(slog.New(h.logs)))
	t.Cleanup(h.svc.Close)
	return h
}

func (h *harness) cycles(t *testing.T, n int, opts Options) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := h.svc.DetectChanges(context.Background(), opts); err != nil {
			t.Fatalf("cycle %d: %v", i+1, err)
		}
	}
}

func assertTypes(t *testing.T, got []models.StatusType, want ...models.StatusType) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected statuses %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected statuses %v, got %v", want, got)
		}
	}
}

var (
	alice = models.Face{ID: 1, Name: "alice", Image: []byte("a")}
	bob   = models.Face{ID: 2, Name: "bob", Image: []byte("b")}
)

func TestIdenticalObservationsEmitOnce(t *testing.T) {
	h := newHarness(t, Config{}, strangers(1))
	h.cycles(t, 5, Options{})

	assertTypes(t, h.store.types(), models.StatusFacesDetected)
	if n := len(h.events.ofType(events.TypeStatusChanged)); n != 1 {
		t.Errorf("expected 1 status event, got %d", n)
	}
}

func TestNoLongerDetectedOnlyAfterFaces(t *testing.T) {
	h := newHarness(t, Config{}, empty(), strangers(1), empty(), empty())
	h.cycles(t, 4, Options{})

	assertTypes(t, h.store.types(),
		models.StatusNoFacesDetected,
		models.StatusFacesDetected,
		models.StatusFacesNoLongerDetected,
		models.StatusNoFacesDetected,
	)
}

func TestFirstEmptyCycleIsNoFacesDetected(t *testing.T) {
	h := newHarness(t, Config{}, empty())
	st, err := h.svc.DetectChanges(context.Background(), Options{})
	if err != nil {
		t.Fatalf("DetectChanges: %v", err)
	}
	if st == nil || st.Type != models.StatusNoFacesDetected {
		t.Fatalf("expected NoFacesDetected, got %+v", st)
	}
	if last := h.svc.GetLastStatus(); last == nil || last.ID != st.ID {
		t.Errorf("expected last status to be the emitted one, got %+v", last)
	}
}

func TestBrightnessAlertIsEdgeTriggered(t *testing.T) {
	h := newHarness(t, Config{MinimumBrightness: 0.5}, dark(), dark(), dark(), empty(), dark())
	h.cycles(t, 5, Options{})

	const warnMsg, debugMsg = "brightness too low for detection", "brightness still too low"
	if n := h.logs.count(slog.LevelWarn, warnMsg); n != 2 {
		t.Errorf("expected 2 warnings (first cycle and after recovery), got %d", n)
	}
	if n := h.logs.count(slog.LevelDebug, debugMsg); n != 2 {
		t.Errorf("expected 2 debug records while still dark, got %d", n)
	}
	assertTypes(t, h.store.types(),
		models.StatusBrightnessTooLow,
		models.StatusNoFacesDetected,
		models.StatusBrightnessTooLow,
	)
	if st := h.store.statuses[0]; st.Brightness != 0.1 {
		t.Errorf("expected brightness to be recorded, got %v", st.Brightness)
	}
}

func TestFacesDetectedWithoutReferenceFaces(t *testing.T) {
	h := newHarness(t, Config{}, strangers(2))
	st, err := h.svc.DetectChanges(context.Background(), Options{})
	if err != nil {
		t.Fatalf("DetectChanges: %v", err)
	}
	if st.Type != models.StatusFacesDetected {
		t.Errorf("expected FacesDetected, got %s", st.Type)
	}
	if _, trained := h.capture.counts(); trained != 0 {
		t.Errorf("expected no training without faces, got %d", trained)
	}
}

func TestRecognizedFacesAreDistinctAndOrdered(t *testing.T) {
	h := newHarness(t, Config{}, people(2, UnknownLabel, 1, 2, 99))
	st, err := h.svc.DetectChanges(context.Background(), Options{Faces: []models.Face{alice, bob}})
	if err != nil {
		t.Fatalf("DetectChanges: %v", err)
	}
	if st.Type != models.StatusFacesRecognized {
		t.Fatalf("expected FacesRecognized, got %s", st.Type)
	}
	ids := models.FaceIDs(st.RecognizedFaces)
	if len(ids) != 2 || ids[0] != bob.ID || ids[1] != alice.ID {
		t.Errorf("expected [bob alice], got %v", ids)
	}
	for _, f := range st.RecognizedFaces {
		if f.Image != nil {
			t.Error("expected recognized faces without image data")
		}
	}
}

func TestClassifierIsReusedUntilFacesChange(t *testing.T) {
	h := newHarness(t, Config{}, people(1))
	opts := Options{Faces: []models.Face{alice}}
	h.cycles(t, 3, opts)
	if _, trained := h.capture.counts(); trained != 1 {
		t.Fatalf("expected one training for the same faces, got %d", trained)
	}

	h.cycles(t, 2, Options{Faces: []models.Face{alice, bob}})
	if _, trained := h.capture.counts(); trained != 2 {
		t.Fatalf("expected retraining after the face set changed, got %d", trained)
	}

	// Options keep the face as it was when detection started; the stored
	// image is what counts.
	rescanned := alice
	rescanned.Image = []byte("new image")
	h.store.setFaces(rescanned, bob)
	h.cycles(t, 1, Options{Faces: []models.Face{alice, bob}})
	if _, trained := h.capture.counts(); trained != 3 {
		t.Errorf("expected retraining after a reference image changed, got %d", trained)
	}
	if got := h.capture.trainedOn[2]; len(got) != 2 || got[0] != alice.ID {
		t.Errorf("expected training on [alice bob], got %v", got)
	}
}

func TestDeletedReferenceFaceIsDropped(t *testing.T) {
	h := newHarness(t, Config{}, people(1), people(1))
	opts := Options{Faces: []models.Face{alice, bob}}
	h.cycles(t, 1, opts)

	h.store.setFaces(bob)
	h.cycles(t, 1, opts)

	if got := h.capture.trainedOn[len(h.capture.trainedOn)-1]; len(got) != 1 || got[0] != bob.ID {
		t.Errorf("expected retraining on [bob], got %v", got)
	}
	assertTypes(t, h.store.types(), models.StatusFacesRecognized, models.StatusFacesNoLongerRecognized)
}

func TestDeletedFaceWithSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "detection.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	face := &models.Face{Name: "alice", Image: []byte("a")}
	if err := store.CreateFace(ctx, face); err != nil {
		t.Fatalf("CreateFace: %v", err)
	}

	capture := &fakeCapture{script: []observation{people(face.ID)}}
	svc := NewService(Config{MinimumBrightness: 0.5}, capture, store, &eventRecorder{},
		WithLogger(slog.New(&logRecorder{})))
	t.Cleanup(svc.Close)
	opts := Options{Faces: []models.Face{*face}}

	if err := store.DeleteFace(ctx, face.ID); err != nil {
		t.Fatalf("DeleteFace: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := svc.DetectChanges(ctx, opts); err != nil {
			t.Fatalf("cycle %d: %v", i+1, err)
		}
	}
	last := svc.GetLastStatus()
	if last == nil || last.Type != models.StatusFacesDetected || len(last.RecognizedFaces) != 0 {
		t.Errorf("expected FacesDetected without the deleted face, got %+v", last)
	}
}

func TestAutostartFacesAreMerged(t *testing.T) {
	h := newHarness(t, Config{}, people(2))
	h.store.autostart = []models.Face{alice, bob}

	st, err := h.svc.DetectChanges(context.Background(), Options{Faces: []models.Face{alice}, AutostartFaces: true})
	if err != nil {
		t.Fatalf("DetectChanges: %v", err)
	}
	if st.Type != models.StatusFacesRecognized || st.RecognizedFaces[0].ID != bob.ID {
		t.Errorf("expected bob recognized from autostart faces, got %+v", st)
	}
	if got := h.capture.trainedOn[0]; len(got) != 2 || got[0] != alice.ID || got[1] != bob.ID {
		t.Errorf("expected training on [alice bob], got %v", got)
	}
}

func TestEmptyAfterNoLongerRecognized(t *testing.T) {
	h := newHarness(t, Config{}, people(1), strangers(1), empty())
	h.cycles(t, 3, Options{Faces: []models.Face{alice}})

	assertTypes(t, h.store.types(),
		models.StatusFacesRecognized,
		models.StatusFacesNoLongerRecognized,
		models.StatusNoFacesDetected,
	)
}

func TestFacesNoLongerRecognized(t *testing.T) {
	h := newHarness(t, Config{}, people(1), strangers(1), strangers(1), empty())
	h.cycles(t, 4, Options{Faces: []models.Face{alice}})

	assertTypes(t, h.store.types(),
		models.StatusFacesRecognized,
		models.StatusFacesNoLongerRecognized,
		models.StatusFacesDetected,
		models.StatusFacesNoLongerDetected,
	)
}

func TestIdentityChangeOption(t *testing.T) {
	script := []observation{people(1, 2), people(2), people(2)}
	opts := Options{Faces: []models.Face{alice, bob}}

	strict := newHarness(t, Config{}, script...)
	strict.cycles(t, 3, opts)
	assertTypes(t, strict.store.types(), models.StatusFacesRecognized)

	loose := newHarness(t, Config{EmitOnIdentityChange: true}, script...)
	loose.cycles(t, 3, opts)
	assertTypes(t, loose.store.types(), models.StatusFacesRecognized, models.StatusFacesRecognized)

	changes := loose.events.ofType(events.TypeStatusChanged)
	second := changes[1]
	if second.Previous == nil || len(second.Previous.RecognizedFaces) != 2 || len(second.Status.RecognizedFaces) != 1 {
		t.Errorf("expected transition from [alice bob] to [bob], got %+v -> %+v", second.Previous, second.Status)
	}
}

func TestPersistenceFailureLeavesLastStatus(t *testing.T) {
	h := newHarness(t, Config{}, strangers(1))
	h.store.createErr = errors.New("disk full")

	if _, err := h.svc.DetectChanges(context.Background(), Options{}); !errors.Is(err, h.store.createErr) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if h.svc.GetLastStatus() != nil {
		t.Fatal("expected no last status after failed persistence")
	}
	if n := len(h.events.ofType(events.TypeStatusChanged)); n != 0 {
		t.Errorf("expected no event for an unpersisted status, got %d", n)
	}

	h.store.createErr = nil
	st, err := h.svc.DetectChanges(context.Background(), Options{})
	if err != nil {
		t.Fatalf("DetectChanges: %v", err)
	}
	if st == nil || st.Type != models.StatusFacesDetected {
		t.Errorf("expected FacesDetected on retry, got %+v", st)
	}
}

func TestCaptureAndRecognitionErrors(t *testing.T) {
	h := newHarness(t, Config{}, people(1))
	h.capture.acquireErr = errors.New("camera unplugged")
	if _, err := h.svc.DetectChanges(context.Background(), Options{}); !errors.Is(err, h.capture.acquireErr) {
		t.Errorf("expected capture error, got %v", err)
	}

	h.capture.acquireErr = nil
	h.capture.predictErr = errors.New("model crashed")
	if _, err := h.svc.DetectChanges(context.Background(), Options{Faces: []models.Face{alice}}); !errors.Is(err, h.capture.predictErr) {
		t.Errorf("expected prediction error, got %v", err)
	}
	if len(h.store.types()) != 0 {
		t.Errorf("expected nothing persisted, got %v", h.store.types())
	}
}

func TestStartStopDetection(t *testing.T) {
	h := newHarness(t, Config{}, strangers(1))

	if err := h.svc.StartDetection(Options{}); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("expected ErrInvalidOptions for zero frequency, got %v", err)
	}

	if err := h.svc.StartDetection(Options{Frequency: 5 * time.Millisecond}); err != nil {
		t.Fatalf("StartDetection: %v", err)
	}
	if !h.svc.IsDetectionRunning() {
		t.Fatal("expected detection to be running")
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.svc.GetLastStatus() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if st := h.svc.GetLastStatus(); st == nil || st.Type != models.StatusFacesDetected {
		t.Fatalf("expected the loop to emit FacesDetected, got %+v", st)
	}

	h.svc.StopDetection()
	h.svc.StopDetection()
	if h.svc.IsDetectionRunning() {
		t.Error("expected detection to be stopped")
	}

	running := h.events.ofType(events.TypeDetectionRunning)
	if len(running) != 2 || !running[0].Running || running[1].Running {
		t.Errorf("expected one start and one stop event, got %+v", running)
	}
}

func TestStopOnError(t *testing.T) {
	h := newHarness(t, Config{StopOnError: true}, empty())
	h.capture.acquireErr = errors.New("camera unplugged")

	if err := h.svc.StartDetection(Options{Frequency: 5 * time.Millisecond}); err != nil {
		t.Fatalf("StartDetection: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for h.svc.IsDetectionRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if h.svc.IsDetectionRunning() {
		t.Fatal("expected the loop to stop after an error")
	}
	h.svc.Close()
	if acquired, _ := h.capture.counts(); acquired != 0 {
		t.Errorf("expected failing acquisitions not to be counted, got %d", acquired)
	}
}

func TestTickSkipsWhileCycleInProgress(t *testing.T) {
	h := newHarness(t, Config{}, strangers(1))

	h.svc.cycleMu.Lock()
	h.svc.tick(context.Background(), 0, Options{Frequency: time.Second})
	h.svc.cycleMu.Unlock()

	if acquired, _ := h.capture.counts(); acquired != 0 {
		t.Errorf("expected the overlapping tick to be skipped, got %d acquisitions", acquired)
	}

	h.svc.tick(context.Background(), 0, Options{Frequency: time.Second})
	if acquired, _ := h.capture.counts(); acquired != 1 {
		t.Errorf("expected the next tick to run, got %d acquisitions", acquired)
	}
}

type fakeSnapshots struct {
	keys []string
	err  error
}

func (f *fakeSnapshots) PutObject(_ context.Context, key string, data []byte, contentType string) error {
	if f.err != nil {
		return f.err
	}
	if len(data) == 0 || contentType != "image/jpeg" {
		return errors.New("bad snapshot")
	}
	f.keys = append(f.keys, key)
	return nil
}

func TestSnapshots(t *testing.T) {
	snaps := &fakeSnapshots{}
	h := newHarness(t, Config{}, strangers(1), empty())
	WithSnapshotStore(snaps)(h.svc)

	h.cycles(t, 1, Options{})
	if len(snaps.keys) != 1 || h.store.statuses[0].SnapshotKey != snaps.keys[0] {
		t.Fatalf("expected snapshot key on status, got %v / %+v", snaps.keys, h.store.statuses)
	}

	snaps.err = errors.New("bucket gone")
	h.cycles(t, 1, Options{})
	if got := h.store.types(); len(got) != 2 {
		t.Fatalf("expected snapshot failure not to block emission, got %v", got)
	}
	if h.store.statuses[1].SnapshotKey != "" {
		t.Errorf("expected empty snapshot key, got %q", h.store.statuses[1].SnapshotKey)
	}
}

func TestAddStatusAndHistory(t *testing.T) {
	h := newHarness(t, Config{}, empty())
	ctx := context.Background()

	st, err := h.svc.AddStatus(ctx, models.StatusFacesRecognized, time.Now(), 0.8, []models.Face{alice})
	if err != nil {
		t.Fatalf("AddStatus: %v", err)
	}
	if st.RecognizedFaces[0].Image != nil {
		t.Error("expected face references without images")
	}
	if _, err := h.svc.AddStatus(ctx, "bogus", time.Now(), 0.8, nil); err == nil {
		t.Error("expected error for unknown status type")
	}

	got, err := h.svc.GetStatus(ctx, st.ID)
	if err != nil || got.ID != st.ID {
		t.Errorf("expected status %d, got %+v, %v", st.ID, got, err)
	}
	if _, err := h.svc.GetStatus(ctx, 999); !errors.Is(err, ErrStatusNotFound) {
		t.Errorf("expected ErrStatusNotFound, got %v", err)
	}
	history, err := h.svc.StatusHistory(ctx, nil, nil, 0)
	if err != nil || len(history) != 1 {
		t.Errorf("expected 1 status in history, got %d, %v", len(history), err)
	}
}

func TestClassify(t *testing.T) {
	recognizedPrev := &models.Status{Type: models.StatusFacesRecognized}
	detectedPrev := &models.Status{Type: models.StatusFacesDetected}
	noFacesPrev := &models.Status{Type: models.StatusNoFacesDetected}
	noLongerRecognizedPrev := &models.Status{Type: models.StatusFacesNoLongerRecognized}

	tests := []struct {
		name                string
		regions, recognized int
		hasRefs             bool
		prev                *models.Status
		want                models.StatusType
	}{
		{"nothing, no history", 0, 0, false, nil, models.StatusNoFacesDetected},
		{"nothing after faces", 0, 0, false, detectedPrev, models.StatusFacesNoLongerDetected},
		{"nothing after recognized", 0, 0, true, recognizedPrev, models.StatusFacesNoLongerDetected},
		{"nothing after no-longer-recognized", 0, 0, true, noLongerRecognizedPrev, models.StatusNoFacesDetected},
		{"nothing after nothing", 0, 0, false, noFacesPrev, models.StatusNoFacesDetected},
		{"strangers", 2, 0, false, nil, models.StatusFacesDetected},
		{"strangers after recognized without refs", 1, 0, false, recognizedPrev, models.StatusFacesDetected},
		{"strangers after recognized", 1, 0, true, recognizedPrev, models.StatusFacesNoLongerRecognized},
		{"known", 2, 1, true, detectedPrev, models.StatusFacesRecognized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.regions, tt.recognized, tt.hasRefs, tt.prev); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
