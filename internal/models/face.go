package models

import "time"

// Face is a named reference image used to train the recognizer.
// Image holds the preprocessed grayscale PNG. Faces loaded as references
// of a status or run condition carry no image.
type Face struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Image     []byte    `json:"-" db:"image"`
	Autostart bool      `json:"autostart" db:"autostart"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// FaceIDs returns the ids of faces in order.
func FaceIDs(faces []Face) []int64 {
	ids := make([]int64, len(faces))
	for i, f := range faces {
		ids[i] = f.ID
	}
	return ids
}

// DiffFaces returns the faces of a whose id is not present in b, keeping a's order.
func DiffFaces(a, b []Face) []Face {
	seen := make(map[int64]struct{}, len(b))
	for _, f := range b {
		seen[f.ID] = struct{}{}
	}
	var out []Face
	for _, f := range a {
		if _, ok := seen[f.ID]; !ok {
			out = append(out, f)
		}
	}
	return out
}

// SameFaces reports whether a and b hold the same set of face ids.
func SameFaces(a, b []Face) bool {
	if len(a) != len(b) {
		return false
	}
	return len(DiffFaces(a, b)) == 0 && len(DiffFaces(b, a)) == 0
}

// IntersectsFaces reports whether any id in a is also in b.
func IntersectsFaces(a, b []Face) bool {
	return len(a) > 0 && len(b) > 0 && len(DiffFaces(a, b)) < len(a)
}
