package detection

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"image"
	"image/jpeg"
	"math"
	"strconv"
	"time"

	"github.com/your-org/facecommand/internal/models"
	"github.com/your-org/facecommand/internal/observability"
	"github.com/your-org/facecommand/internal/storage"
)

// DetectChanges runs one detection cycle and returns the emitted status, or
// nil when the observation matches the last status. It waits for any cycle
// in progress.
func (s *Service) DetectChanges(ctx context.Context, opts Options) (*models.Status, error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	return s.detectChanges(ctx, opts)
}

func (s *Service) detectChanges(ctx context.Context, opts Options) (status *models.Status, err error) {
	start := time.Now()
	defer func() {
		observability.DetectionCycleDuration.Observe(time.Since(start).Seconds())
		switch {
		case err != nil:
			observability.DetectionCycles.WithLabelValues("error").Inc()
		case status != nil:
			observability.DetectionCycles.WithLabelValues("changed").Inc()
		default:
			observability.DetectionCycles.WithLabelValues("unchanged").Inc()
		}
	}()

	frame, err := s.capture.AcquireFrame(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire frame: %w", err)
	}
	brightness := s.capture.MeasureBrightness(frame)
	observability.Brightness.Set(brightness)

	prev := s.GetLastStatus()

	var (
		statusType models.StatusType
		recognized []models.Face
	)
	if brightness < s.cfg.MinimumBrightness {
		statusType = models.StatusBrightnessTooLow
		if !s.state.brightnessAlert {
			s.state.brightnessAlert = true
			s.logger.Warn("brightness too low for detection",
				"brightness", brightness, "minimum", s.cfg.MinimumBrightness)
		} else {
			s.logger.Debug("brightness still too low",
				"brightness", brightness, "minimum", s.cfg.MinimumBrightness)
		}
	} else {
		if s.state.brightnessAlert {
			s.state.brightnessAlert = false
			s.logger.Info("brightness recovered", "brightness", brightness)
		}

		faces, err := s.referenceFaces(ctx, opts)
		if err != nil {
			return nil, err
		}
		classifier, err := s.classifierFor(ctx, faces, opts.Recognizer)
		if err != nil {
			return nil, err
		}

		normalized := s.capture.NormalizeContrast(frame)
		regions, err := s.capture.DetectRegions(ctx, normalized)
		if err != nil {
			return nil, fmt.Errorf("detect regions: %w", err)
		}
		recognized, err = s.recognize(ctx, classifier, faces, normalized, regions)
		if err != nil {
			return nil, err
		}
		statusType = classify(len(regions), len(recognized), len(faces) > 0, prev)
	}

	if !s.changed(prev, statusType, recognized) {
		return nil, nil
	}

	st := &models.Status{
		Type:            statusType,
		Time:            s.now().UTC().Truncate(time.Millisecond),
		Brightness:      brightness,
		RecognizedFaces: faceRefs(recognized),
	}
	if s.snapshots != nil {
		st.SnapshotKey = s.storeSnapshot(ctx, frame, st.Time)
	}
	if err := s.addStatus(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// classify maps the observation of a cycle to a status type.
func classify(regions, recognized int, hasReferences bool, prev *models.Status) models.StatusType {
	switch {
	case regions == 0:
		if prev != nil && facesPresent(prev.Type) {
			return models.StatusFacesNoLongerDetected
		}
		return models.StatusNoFacesDetected
	case recognized > 0:
		return models.StatusFacesRecognized
	case hasReferences && prev != nil && prev.Type == models.StatusFacesRecognized:
		return models.StatusFacesNoLongerRecognized
	default:
		return models.StatusFacesDetected
	}
}

// facesPresent reports whether t may be followed by FacesNoLongerDetected.
func facesPresent(t models.StatusType) bool {
	return t == models.StatusFacesDetected || t == models.StatusFacesRecognized
}

func (s *Service) changed(prev *models.Status, t models.StatusType, recognized []models.Face) bool {
	if prev == nil || prev.Type != t {
		return true
	}
	return s.cfg.EmitOnIdentityChange &&
		t == models.StatusFacesRecognized &&
		!models.SameFaces(prev.RecognizedFaces, recognized)
}

// referenceFaces reloads the explicit faces by id and merges the autostart
// faces. Faces deleted since the options were built are left out.
func (s *Service) referenceFaces(ctx context.Context, opts Options) ([]models.Face, error) {
	var faces []models.Face
	if len(opts.Faces) > 0 {
		stored, err := s.store.GetFacesByIDs(ctx, models.FaceIDs(opts.Faces))
		if err != nil {
			return nil, fmt.Errorf("load reference faces: %w", err)
		}
		byID := make(map[int64]models.Face, len(stored))
		for _, f := range stored {
			byID[f.ID] = f
		}
		for _, f := range opts.Faces {
			current, ok := byID[f.ID]
			if !ok {
				s.logger.Debug("reference face no longer exists", "face_id", f.ID)
				continue
			}
			faces = append(faces, current)
		}
	}
	if !opts.AutostartFaces {
		return faces, nil
	}
	autostart, err := s.store.ListAutostartFaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("load autostart faces: %w", err)
	}
	return append(faces, models.DiffFaces(autostart, faces)...), nil
}

// classifierFor returns the cached classifier, training a new one when the
// reference faces or the threshold changed. It returns nil without faces.
func (s *Service) classifierFor(ctx context.Context, faces []models.Face, opts RecognizerOptions) (Classifier, error) {
	if len(faces) == 0 {
		s.state.classifier, s.state.faceKey = nil, ""
		return nil, nil
	}
	if opts.Threshold == 0 {
		opts.Threshold = s.cfg.DefaultThreshold
	}
	key := fingerprint(faces, opts)
	if s.state.classifier != nil && s.state.faceKey == key {
		return s.state.classifier, nil
	}

	classifier, err := s.capture.Train(ctx, faces, opts)
	if err != nil {
		return nil, fmt.Errorf("train recognizer: %w", err)
	}
	s.state.classifier, s.state.faceKey = classifier, key
	s.logger.Info("recognizer trained", "faces", len(faces), "threshold", opts.Threshold)
	return classifier, nil
}

// recognize returns the distinct faces matched by the regions, in region order.
func (s *Service) recognize(ctx context.Context, classifier Classifier, faces []models.Face, img *image.Gray, regions []image.Rectangle) ([]models.Face, error) {
	if classifier == nil || len(regions) == 0 {
		return nil, nil
	}
	byID := make(map[int64]models.Face, len(faces))
	for _, f := range faces {
		byID[f.ID] = f
	}

	seen := make(map[int64]struct{})
	var out []models.Face
	for _, region := range regions {
		pred, err := classifier.Predict(ctx, s.capture.ResizeRegion(img, region))
		if err != nil {
			return nil, fmt.Errorf("predict region: %w", err)
		}
		if pred.Label == UnknownLabel {
			continue
		}
		face, ok := byID[pred.Label]
		if !ok {
			continue
		}
		if _, dup := seen[face.ID]; dup {
			continue
		}
		seen[face.ID] = struct{}{}
		out = append(out, face)
		s.logger.Debug("face recognized", "face", face.Name, "confidence", pred.Confidence)
	}
	return out, nil
}

// storeSnapshot saves frame and returns its key, or "" when saving failed.
func (s *Service) storeSnapshot(ctx context.Context, frame *image.Gray, at time.Time) string {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: 85}); err != nil {
		s.logger.Warn("encode snapshot", "error", err)
		return ""
	}
	key := storage.SnapshotKey(at)
	if err := s.snapshots.PutObject(ctx, key, buf.Bytes(), "image/jpeg"); err != nil {
		s.logger.Warn("store snapshot", "key", key, "error", err)
		return ""
	}
	return key
}

// fingerprint identifies a set of reference faces and recognizer options.
func fingerprint(faces []models.Face, opts RecognizerOptions) string {
	h := fnv.New64a()
	var buf [8]byte
	for _, f := range faces {
		binary.LittleEndian.PutUint64(buf[:], uint64(f.ID))
		h.Write(buf[:])
		h.Write(f.Image)
	}
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(opts.Threshold))
	h.Write(buf[:])
	return strconv.FormatUint(h.Sum64(), 16)
}
