package command

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/your-org/facecommand/internal/models"
	"github.com/your-org/facecommand/internal/storage"
)

func newSQLiteEngine(t *testing.T) (*Engine, *storage.SQLStore) {
	t.Helper()
	store, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "commands.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	engine, _ := newTestEngine(t, store)
	return engine, store
}

func storeFace(t *testing.T, s *storage.SQLStore, name string) models.Face {
	t.Helper()
	f := &models.Face{Name: name, Image: []byte{1}}
	if err := s.CreateFace(context.Background(), f); err != nil {
		t.Fatalf("create face: %v", err)
	}
	return *f
}

func TestAddAndGetCommand(t *testing.T) {
	ctx := context.Background()
	engine, store := newSQLiteEngine(t)
	alice := storeFace(t, store, "alice")

	cmd, err := engine.AddCommand(ctx, "record", "greet", []models.RunCondition{
		{Type: models.RunOnSpecificFacesRecognized, FacesToRecognize: []models.Face{{ID: alice.ID}, {ID: alice.ID}}},
		{Type: models.RunOnFaceDetected, FacesToRecognize: []models.Face{{ID: alice.ID}}},
	}, json.RawMessage(`{"k":1}`))
	if err != nil {
		t.Fatalf("AddCommand: %v", err)
	}

	got, err := engine.GetCommand(ctx, cmd.ID)
	if err != nil {
		t.Fatalf("GetCommand: %v", err)
	}
	if len(got.RunConditions) != 2 {
		t.Fatalf("expected 2 run conditions, got %d", len(got.RunConditions))
	}
	if faces := got.RunConditions[0].FacesToRecognize; len(faces) != 1 || faces[0].Name != "alice" {
		t.Errorf("expected deduplicated alice, got %+v", faces)
	}
	if faces := got.RunConditions[1].FacesToRecognize; len(faces) != 0 {
		t.Errorf("expected faces dropped from non-specific condition, got %+v", faces)
	}

	cmds, err := engine.GetCommands(ctx)
	if err != nil {
		t.Fatalf("GetCommands: %v", err)
	}
	if len(cmds) != 1 || len(cmds[0].RunConditions) != 2 {
		t.Errorf("unexpected commands %+v", cmds)
	}

	if _, err := engine.GetCommand(ctx, 999); !errors.Is(err, ErrCommandNotFound) {
		t.Errorf("expected ErrCommandNotFound, got %v", err)
	}
}

func TestAddCommandValidation(t *testing.T) {
	ctx := context.Background()
	engine, store := newSQLiteEngine(t)

	tests := []struct {
		name       string
		typeName   string
		cmdName    string
		conditions []models.RunCondition
		want       error
	}{
		{"unknown type", "bogus", "x", nil, ErrCommandTypeNotFound},
		{"empty name", "record", " ", nil, ErrInvalidCommand},
		{"specific without faces", "record", "x",
			[]models.RunCondition{{Type: models.RunOnSpecificFacesRecognized}}, ErrFacesRequired},
		{"missing face", "record", "x",
			[]models.RunCondition{{Type: models.RunOnSpecificFacesNoLongerRecognized, FacesToRecognize: []models.Face{{ID: 42}}}}, ErrFaceNotFound},
		{"bad condition type", "record", "x",
			[]models.RunCondition{{Type: "run_on_full_moon"}}, ErrInvalidCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := engine.AddCommand(ctx, tt.typeName, tt.cmdName, tt.conditions, nil); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	cmds, err := store.ListCommands(ctx)
	if err != nil {
		t.Fatalf("ListCommands: %v", err)
	}
	if len(cmds) != 0 {
		t.Errorf("expected nothing persisted, got %+v", cmds)
	}
}

func TestUpdateCommandReconcilesConditions(t *testing.T) {
	ctx := context.Background()
	engine, store := newSQLiteEngine(t)
	alice := storeFace(t, store, "alice")
	bob := storeFace(t, store, "bob")

	cmd, err := engine.AddCommand(ctx, "record", "door", []models.RunCondition{
		{Type: models.RunOnFaceDetected},
		{Type: models.RunOnNoFacesDetected},
		{Type: models.RunOnSpecificFacesRecognized, FacesToRecognize: []models.Face{alice}},
	}, nil)
	if err != nil {
		t.Fatalf("AddCommand: %v", err)
	}
	keep := cmd.RunConditions[0]
	changed := cmd.RunConditions[2]
	changed.FacesToRecognize = []models.Face{{ID: bob.ID}}

	updated, err := engine.UpdateCommand(ctx, &models.Command{
		ID:   cmd.ID,
		Name: "front door",
		RunConditions: []models.RunCondition{
			keep,
			changed,
			{Type: models.RunOnAnyFaceRecognized},
		},
	})
	if err != nil {
		t.Fatalf("UpdateCommand: %v", err)
	}
	if updated.Name != "front door" || updated.Type != "record" {
		t.Errorf("unexpected command %+v", updated)
	}
	if len(updated.RunConditions) != 3 {
		t.Fatalf("expected 3 run conditions, got %+v", updated.RunConditions)
	}
	if updated.RunConditions[0].ID != keep.ID {
		t.Errorf("expected unchanged condition to keep id %d, got %d", keep.ID, updated.RunConditions[0].ID)
	}
	var specific *models.RunCondition
	for i, rc := range updated.RunConditions {
		if rc.Type == models.RunOnNoFacesDetected {
			t.Error("expected removed condition to be gone")
		}
		if rc.Type == models.RunOnSpecificFacesRecognized {
			specific = &updated.RunConditions[i]
		}
	}
	if specific == nil || len(specific.FacesToRecognize) != 1 || specific.FacesToRecognize[0].ID != bob.ID {
		t.Errorf("expected specific condition to target bob, got %+v", specific)
	}

	if _, err := engine.UpdateCommand(ctx, &models.Command{ID: 999}); !errors.Is(err, ErrCommandNotFound) {
		t.Errorf("expected ErrCommandNotFound, got %v", err)
	}
	if _, err := engine.UpdateCommand(ctx, &models.Command{ID: cmd.ID, Type: "bogus"}); !errors.Is(err, ErrCommandTypeNotFound) {
		t.Errorf("expected ErrCommandTypeNotFound, got %v", err)
	}
}

func TestUpdateCommandKeepsData(t *testing.T) {
	ctx := context.Background()
	engine, _ := newSQLiteEngine(t)

	cmd, err := engine.AddCommand(ctx, "record", "greet", nil, json.RawMessage(`{"k":1}`))
	if err != nil {
		t.Fatalf("AddCommand: %v", err)
	}

	renamed, err := engine.UpdateCommand(ctx, &models.Command{ID: cmd.ID, Name: "hello"})
	if err != nil {
		t.Fatalf("UpdateCommand: %v", err)
	}
	if renamed.Name != "hello" || string(renamed.Data) != `{"k":1}` {
		t.Errorf("expected renamed command to keep its data, got %+v", renamed)
	}

	changed, err := engine.UpdateCommand(ctx, &models.Command{ID: cmd.ID, Data: json.RawMessage(`{"k":2}`)})
	if err != nil {
		t.Fatalf("UpdateCommand: %v", err)
	}
	if changed.Name != "hello" || string(changed.Data) != `{"k":2}` {
		t.Errorf("expected new data with kept name, got %+v", changed)
	}
}

func TestRemoveCommand(t *testing.T) {
	ctx := context.Background()
	engine, store := newSQLiteEngine(t)

	cmd, err := engine.AddCommand(ctx, "record", "bye", []models.RunCondition{{Type: models.RunOnNoFacesDetected}}, nil)
	if err != nil {
		t.Fatalf("AddCommand: %v", err)
	}
	if err := engine.RemoveCommand(ctx, cmd.ID); err != nil {
		t.Fatalf("RemoveCommand: %v", err)
	}
	if err := engine.RemoveCommand(ctx, cmd.ID); !errors.Is(err, ErrCommandNotFound) {
		t.Errorf("expected ErrCommandNotFound, got %v", err)
	}
	left, err := store.ListRunConditionsByType(ctx, []models.RunConditionType{models.RunOnNoFacesDetected})
	if err != nil {
		t.Fatalf("ListRunConditionsByType: %v", err)
	}
	if len(left) != 0 {
		t.Errorf("expected cascade, got %+v", left)
	}
}

func TestDispatchAgainstSQLiteStore(t *testing.T) {
	ctx := context.Background()
	engine, store := newSQLiteEngine(t)
	alice := storeFace(t, store, "alice")

	rec := &recorder{}
	_ = engine.registry.Register("track", HandlerFunc(func(_ context.Context, opts Options) (any, error) {
		rec.record(opts.Command.Name)
		return nil, nil
	}))
	if _, err := engine.AddCommand(ctx, "track", "hello-alice", []models.RunCondition{
		{Type: models.RunOnSpecificFacesRecognized, FacesToRecognize: []models.Face{alice}},
		{Type: models.RunOnAnyFaceRecognized},
	}, nil); err != nil {
		t.Fatalf("AddCommand: %v", err)
	}

	if err := engine.OnStatusChange(ctx, recognized(alice), nil); err != nil {
		t.Fatalf("OnStatusChange: %v", err)
	}
	if ran := rec.names(); len(ran) != 1 || ran[0] != "hello-alice" {
		t.Errorf("expected hello-alice once, got %v", ran)
	}
}

func TestDiffRunConditions(t *testing.T) {
	existing := []models.RunCondition{
		{ID: 1, Type: models.RunOnFaceDetected},
		{ID: 2, Type: models.RunOnSpecificFacesRecognized, FacesToRecognize: []models.Face{{ID: 10}}},
		{ID: 3, Type: models.RunOnNoFacesDetected},
	}
	desired := []models.RunCondition{
		{ID: 1, Type: models.RunOnFaceDetected},
		{ID: 2, Type: models.RunOnSpecificFacesRecognized, FacesToRecognize: []models.Face{{ID: 11}}},
		{ID: 77, Type: models.RunOnAnyFaceRecognized},
	}
	add, remove := diffRunConditions(existing, desired)
	if len(remove) != 2 || remove[0] != 2 || remove[1] != 3 {
		t.Errorf("expected to remove [2 3], got %v", remove)
	}
	if len(add) != 2 || add[0].ID != 0 || add[1].Type != models.RunOnAnyFaceRecognized {
		t.Errorf("unexpected additions %+v", add)
	}

	add, remove = diffRunConditions(existing, existing)
	if len(add) != 0 || len(remove) != 0 {
		t.Errorf("expected no changes, got add=%v remove=%v", add, remove)
	}
}
