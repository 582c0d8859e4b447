package vision

import (
	"cmp"
	"fmt"
	"image"
	"math"
	"slices"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	detectorInputSize = 640
	anchorsPerCell    = 2
	overlapThreshold  = 0.4
)

// detectorStrides are the feature map strides of the det_10g model. Output
// names are listed per stride as score tensor then box tensor.
var detectorStrides = []struct {
	stride      int
	score, bbox string
}{
	{8, "448", "451"},
	{16, "471", "474"},
	{32, "494", "497"},
}

// candidate is a face region in source image coordinates.
type candidate struct {
	rect  image.Rectangle
	score float32
}

// Detector finds face regions with a RetinaFace ONNX model. Runs are
// serialized over the shared tensors.
type Detector struct {
	mu        sync.Mutex
	session   *ort.AdvancedSession
	input     *ort.Tensor[float32]
	scores    []*ort.Tensor[float32]
	boxes     []*ort.Tensor[float32]
	threshold float32
}

// NewDetector loads the model at modelPath. Regions scoring below threshold
// are discarded. opts may be nil.
func NewDetector(modelPath string, threshold float32, opts *ort.SessionOptions) (*Detector, error) {
	d := &Detector{threshold: threshold}

	var err error
	d.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, detectorInputSize, detectorInputSize))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	var (
		names  []string
		values []ort.Value
	)
	for _, s := range detectorStrides {
		anchors := int64(cellsPerSide(s.stride) * cellsPerSide(s.stride) * anchorsPerCell)
		score, err := ort.NewEmptyTensor[float32](ort.NewShape(anchors, 1))
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("create score tensor %s: %w", s.score, err)
		}
		d.scores = append(d.scores, score)
		box, err := ort.NewEmptyTensor[float32](ort.NewShape(anchors, 4))
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("create box tensor %s: %w", s.bbox, err)
		}
		d.boxes = append(d.boxes, box)
		names = append(names, s.score, s.bbox)
		values = append(values, score, box)
	}

	d.session, err = ort.NewAdvancedSession(modelPath, []string{"input.1"}, names, []ort.Value{d.input}, values, opts)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("create detector session: %w", err)
	}
	return d, nil
}

func cellsPerSide(stride int) int { return detectorInputSize / stride }

// Detect returns the face regions of img, most confident first.
func (d *Detector) Detect(img image.Image) ([]image.Rectangle, error) {
	b := img.Bounds()
	data := imageToFloat32CHW(img, detectorInputSize, detectorInputSize, 127.5, 128)

	d.mu.Lock()
	copy(d.input.GetData(), data)
	if err := d.session.Run(); err != nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("run detection: %w", err)
	}
	var found []candidate
	for i, s := range detectorStrides {
		found = append(found, decodeStride(d.scores[i].GetData(), d.boxes[i].GetData(), s.stride, d.threshold, b)...)
	}
	d.mu.Unlock()

	kept := suppressOverlaps(found, overlapThreshold)
	regions := make([]image.Rectangle, len(kept))
	for i, c := range kept {
		regions[i] = c.rect
	}
	return regions, nil
}

// decodeStride turns one stride's anchor outputs into regions of bounds.
// Box values are distances from the anchor center to each edge in stride
// units of the square model input.
func decodeStride(scores, boxes []float32, stride int, threshold float32, bounds image.Rectangle) []candidate {
	cells := cellsPerSide(stride)
	sx := float64(bounds.Dx()) / detectorInputSize
	sy := float64(bounds.Dy()) / detectorInputSize
	st := float64(stride)

	var out []candidate
	for idx, score := range scores {
		if score < threshold || idx*4+3 >= len(boxes) {
			continue
		}
		cell := idx / anchorsPerCell
		ax := float64(cell%cells) * st
		ay := float64(cell/cells) * st
		box := boxes[idx*4 : idx*4+4]

		r := image.Rect(
			int(math.Round((ax-float64(box[0])*st)*sx)),
			int(math.Round((ay-float64(box[1])*st)*sy)),
			int(math.Round((ax+float64(box[2])*st)*sx)),
			int(math.Round((ay+float64(box[3])*st)*sy)),
		).Add(bounds.Min).Intersect(bounds)
		if r.Empty() {
			continue
		}
		out = append(out, candidate{rect: r, score: score})
	}
	return out
}

// suppressOverlaps keeps the most confident of any regions overlapping by
// more than limit intersection over union.
func suppressOverlaps(found []candidate, limit float64) []candidate {
	slices.SortStableFunc(found, func(a, b candidate) int { return cmp.Compare(b.score, a.score) })

	var kept []candidate
	for _, c := range found {
		if !slices.ContainsFunc(kept, func(k candidate) bool { return overlap(k.rect, c.rect) > limit }) {
			kept = append(kept, c)
		}
	}
	return kept
}

func overlap(a, b image.Rectangle) float64 {
	inter := area(a.Intersect(b))
	union := area(a) + area(b) - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func area(r image.Rectangle) int {
	if r.Empty() {
		return 0
	}
	return r.Dx() * r.Dy()
}

func (d *Detector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.input != nil {
		d.input.Destroy()
	}
	for _, t := range d.scores {
		t.Destroy()
	}
	for _, t := range d.boxes {
		t.Destroy()
	}
}
