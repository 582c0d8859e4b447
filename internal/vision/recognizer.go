package vision

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/your-org/facecommand/internal/detection"
	"github.com/your-org/facecommand/internal/models"
)

// FaceEmbedder maps a face crop to a normalized embedding. *Embedder
// implements it.
type FaceEmbedder interface {
	Embed(face image.Image) ([]float32, error)
}

type reference struct {
	faceID    int64
	embedding []float32
}

// Classifier matches regions against the embeddings of reference faces.
type Classifier struct {
	embedder   FaceEmbedder
	references []reference
	threshold  float32
}

// Train embeds the reference image of every face.
func Train(ctx context.Context, embedder FaceEmbedder, faces []models.Face, threshold float64) (*Classifier, error) {
	c := &Classifier{
		embedder:   embedder,
		references: make([]reference, 0, len(faces)),
		threshold:  float32(threshold),
	}
	for _, f := range faces {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := DecodeImage(f.Image)
		if err != nil {
			return nil, fmt.Errorf("face %d: %w", f.ID, err)
		}
		emb, err := embedder.Embed(img)
		if err != nil {
			return nil, fmt.Errorf("embed face %d: %w", f.ID, err)
		}
		c.references = append(c.references, reference{faceID: f.ID, embedding: emb})
	}
	return c, nil
}

// Predict returns the closest reference face, or detection.UnknownLabel when
// no reference reaches the threshold.
func (c *Classifier) Predict(ctx context.Context, region *image.Gray) (detection.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return detection.Prediction{}, err
	}
	emb, err := c.embedder.Embed(region)
	if err != nil {
		return detection.Prediction{}, fmt.Errorf("embed region: %w", err)
	}

	best := detection.Prediction{Label: detection.UnknownLabel}
	var bestScore float32 = -1
	for _, ref := range c.references {
		if score := CosineSimilarity(emb, ref.embedding); score > bestScore {
			bestScore = score
			best.Label = ref.faceID
		}
	}
	if bestScore < c.threshold {
		return detection.Prediction{Label: detection.UnknownLabel, Confidence: float64(max(bestScore, 0))}, nil
	}
	best.Confidence = float64(bestScore)
	return best, nil
}

// CosineSimilarity computes cosine similarity between two normalized vectors.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(math.Min(1.0, math.Max(-1.0, dot)))
}
