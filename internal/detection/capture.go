package detection

import (
	"context"
	"image"

	"github.com/your-org/facecommand/internal/models"
)

// UnknownLabel is the prediction label for a region matching no reference face.
const UnknownLabel int64 = -1

// Capture acquires frames and runs the vision steps of a detection cycle.
type Capture interface {
	// AcquireFrame returns the current frame as a single-channel image.
	AcquireFrame(ctx context.Context) (*image.Gray, error)
	// MeasureBrightness returns the mean intensity of img within [0,1].
	MeasureBrightness(img *image.Gray) float64
	NormalizeContrast(img *image.Gray) *image.Gray
	DetectRegions(ctx context.Context, img *image.Gray) ([]image.Rectangle, error)
	// ResizeRegion crops region out of img and scales it to the reference size.
	ResizeRegion(img *image.Gray, region image.Rectangle) *image.Gray
	// Train builds a classifier whose labels are the ids of faces.
	Train(ctx context.Context, faces []models.Face, opts RecognizerOptions) (Classifier, error)
}

type Classifier interface {
	Predict(ctx context.Context, region *image.Gray) (Prediction, error)
}

// Prediction is a classifier result. Label is a face id or UnknownLabel.
type Prediction struct {
	Label      int64
	Confidence float64
}

type RecognizerOptions struct {
	// Threshold is the minimum similarity for a region to match a face.
	Threshold float64
}
