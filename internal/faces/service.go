// Package faces manages the reference faces the recognizer is trained on.
package faces

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/your-org/facecommand/internal/models"
	"github.com/your-org/facecommand/internal/storage"
	"github.com/your-org/facecommand/internal/vision"
)

var (
	ErrFaceNotFound    = errors.New("face not found")
	ErrDuplicateFace   = errors.New("face name already exists")
	ErrInvalidFace     = errors.New("invalid face")
	ErrNoFacesDetected = errors.New("no faces detected in image")
	ErrTooManyFaces    = errors.New("more than one face detected in image")
	ErrNoCamera        = errors.New("camera not available")
)

// Camera is the part of the capture adapter faces are extracted with.
// *vision.Camera implements it.
type Camera interface {
	AcquireFrame(ctx context.Context) (*image.Gray, error)
	DetectRegions(ctx context.Context, img *image.Gray) ([]image.Rectangle, error)
}

type Service struct {
	store  storage.FaceStore
	camera Camera
	width  int
	height int
	logger *slog.Logger
}

// NewService returns a face service storing width×height references.
// camera may be nil, in which case face detection and camera captures fail
// with ErrNoCamera.
func NewService(store storage.FaceStore, camera Camera, width, height int, logger *slog.Logger) *Service {
	return &Service{store: store, camera: camera, width: width, height: height, logger: logger}
}

// AddFace stores a reference face built from an encoded image. With detect,
// the image must contain exactly one face, which becomes the reference.
func (s *Service) AddFace(ctx context.Context, data []byte, name string, autostart, detect bool) (*models.Face, error) {
	img, err := vision.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFace, err)
	}
	return s.create(ctx, vision.ToGray(img), name, autostart, detect)
}

// AddFaceFromCamera stores the single face visible in the current frame.
func (s *Service) AddFaceFromCamera(ctx context.Context, name string, autostart bool) (*models.Face, error) {
	frame, err := s.grab(ctx)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, frame, name, autostart, true)
}

func (s *Service) create(ctx context.Context, img *image.Gray, name string, autostart, detect bool) (*models.Face, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidFace)
	}
	ref, err := s.reference(ctx, img, detect)
	if err != nil {
		return nil, err
	}

	f := &models.Face{Name: name, Image: ref, Autostart: autostart}
	if err := s.store.CreateFace(ctx, f); err != nil {
		return nil, mapStoreError(err)
	}
	s.logger.Info("face added", "face_id", f.ID, "name", f.Name, "autostart", f.Autostart)
	return f, nil
}

func (s *Service) GetFace(ctx context.Context, id int64) (*models.Face, error) {
	f, err := s.store.GetFace(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get face: %w", err)
	}
	if f == nil {
		return nil, fmt.Errorf("%w: %d", ErrFaceNotFound, id)
	}
	return f, nil
}

func (s *Service) GetFaces(ctx context.Context) ([]models.Face, error) {
	faces, err := s.store.ListFaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("list faces: %w", err)
	}
	return faces, nil
}

// FacesByIDs returns the faces with the given ids and fails with
// ErrFaceNotFound when one is missing.
func (s *Service) FacesByIDs(ctx context.Context, ids []int64) ([]models.Face, error) {
	faces, err := s.store.GetFacesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get faces: %w", err)
	}
	if missing := missingIDs(ids, faces); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrFaceNotFound, missing)
	}
	return faces, nil
}

// FaceUpdate describes the changes of UpdateFace. Nil fields are unchanged.
type FaceUpdate struct {
	Name      *string
	Autostart *bool
	// Rescan rebuilds the reference from the face detected in the stored image.
	Rescan bool
	// FromCamera replaces the reference with the face in the current frame.
	FromCamera bool
}

func (s *Service) UpdateFace(ctx context.Context, id int64, upd FaceUpdate) (*models.Face, error) {
	f, err := s.GetFace(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidFace)
		}
		f.Name = name
	}
	if upd.Autostart != nil {
		f.Autostart = *upd.Autostart
	}

	switch {
	case upd.FromCamera:
		frame, err := s.grab(ctx)
		if err != nil {
			return nil, err
		}
		if f.Image, err = s.reference(ctx, frame, true); err != nil {
			return nil, err
		}
	case upd.Rescan:
		img, err := vision.DecodeImage(f.Image)
		if err != nil {
			return nil, fmt.Errorf("stored image of face %d: %w", id, err)
		}
		if f.Image, err = s.reference(ctx, vision.ToGray(img), true); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateFace(ctx, f); err != nil {
		return nil, mapStoreError(err)
	}
	s.logger.Info("face updated", "face_id", f.ID, "name", f.Name)
	return f, nil
}

// RemoveFace deletes a face. Statuses and run conditions stop listing it.
func (s *Service) RemoveFace(ctx context.Context, id int64) error {
	if err := s.store.DeleteFace(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrFaceNotFound, id)
		}
		return fmt.Errorf("remove face: %w", err)
	}
	s.logger.Info("face removed", "face_id", id)
	return nil
}

// reference scales img, or the single face found in it, to the reference
// size and encodes it as PNG.
func (s *Service) reference(ctx context.Context, img *image.Gray, detect bool) ([]byte, error) {
	region := img.Bounds()
	if detect {
		if s.camera == nil {
			return nil, ErrNoCamera
		}
		regions, err := s.camera.DetectRegions(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("detect faces: %w", err)
		}
		switch len(regions) {
		case 0:
			return nil, ErrNoFacesDetected
		case 1:
			region = regions[0]
		default:
			return nil, fmt.Errorf("%w: found %d", ErrTooManyFaces, len(regions))
		}
	}
	return vision.EncodePNG(vision.Resize(img, region, s.width, s.height))
}

func (s *Service) grab(ctx context.Context) (*image.Gray, error) {
	if s.camera == nil {
		return nil, ErrNoCamera
	}
	frame, err := s.camera.AcquireFrame(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire frame: %w", err)
	}
	return frame, nil
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrDuplicateFace, err)
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrFaceNotFound, err)
	default:
		return err
	}
}

func missingIDs(ids []int64, faces []models.Face) []int64 {
	found := make(map[int64]struct{}, len(faces))
	for _, f := range faces {
		found[f.ID] = struct{}{}
	}
	var missing []int64
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
