// Package vision implements frame capture and face recognition on top of
// ffmpeg and ONNX Runtime.
package vision

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/facecommand/internal/config"
	"github.com/your-org/facecommand/internal/detection"
	"github.com/your-org/facecommand/internal/models"
)

// FrameGrabber returns one encoded frame per call. *FFmpegGrabber implements it.
type FrameGrabber interface {
	Grab(ctx context.Context) ([]byte, error)
}

// FaceDetector finds face regions. *Detector implements it.
type FaceDetector interface {
	Detect(img image.Image) ([]image.Rectangle, error)
}

// Camera is the capture adapter of the detection loop.
type Camera struct {
	grabber  FrameGrabber
	detector FaceDetector
	embedder FaceEmbedder
	width    int
	height   int
}

var _ detection.Capture = (*Camera)(nil)

// NewCamera returns a Camera scaling face regions to width×height.
func NewCamera(grabber FrameGrabber, detector FaceDetector, embedder FaceEmbedder, width, height int) *Camera {
	return &Camera{
		grabber:  grabber,
		detector: detector,
		embedder: embedder,
		width:    width,
		height:   height,
	}
}

func (c *Camera) AcquireFrame(ctx context.Context) (*image.Gray, error) {
	data, err := c.grabber.Grab(ctx)
	if err != nil {
		return nil, err
	}
	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	return ToGray(img), nil
}

func (c *Camera) MeasureBrightness(img *image.Gray) float64 {
	return Brightness(img)
}

func (c *Camera) NormalizeContrast(img *image.Gray) *image.Gray {
	return Equalize(img)
}

func (c *Camera) DetectRegions(ctx context.Context, img *image.Gray) ([]image.Rectangle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.detector.Detect(img)
}

func (c *Camera) ResizeRegion(img *image.Gray, region image.Rectangle) *image.Gray {
	return Resize(img, region, c.width, c.height)
}

func (c *Camera) Train(ctx context.Context, faces []models.Face, opts detection.RecognizerOptions) (detection.Classifier, error) {
	classifier, err := Train(ctx, c.embedder, faces, opts.Threshold)
	if err != nil {
		return nil, err
	}
	return classifier, nil
}

// Models holds the loaded ONNX sessions.
type Models struct {
	Detector *Detector
	Embedder *Embedder
}

// LoadModels initializes ONNX Runtime and loads the detection and embedding
// models from cfg.ModelsDir.
func LoadModels(cfg config.VisionConfig) (*Models, error) {
	libPath := cfg.ONNXLibPath
	if libPath == "" {
		libPath = defaultONNXLibPath()
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("init onnx runtime: %w", err)
	}

	detPath := filepath.Join(cfg.ModelsDir, "det_10g.onnx")
	embPath := filepath.Join(cfg.ModelsDir, "w600k_r50.onnx")

	slog.Info("loading detection model", "path", detPath)
	det, err := NewDetector(detPath, float32(cfg.DetectionThreshold), nil)
	if err != nil {
		_ = ort.DestroyEnvironment()
		return nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading embedding model", "path", embPath)
	emb, err := NewEmbedder(embPath)
	if err != nil {
		det.Close()
		_ = ort.DestroyEnvironment()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	return &Models{Detector: det, Embedder: emb}, nil
}

// Close releases all ONNX sessions and the runtime.
func (m *Models) Close() {
	m.Detector.Close()
	m.Embedder.Close()
	_ = ort.DestroyEnvironment()
}

// defaultONNXLibPath returns the ONNX Runtime shared library name
// based on the operating system.
func defaultONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}
