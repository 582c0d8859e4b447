package dto

import (
	"strconv"
	"time"

	"github.com/your-org/facecommand/internal/models"
)

// FaceRef identifies a face without its image.
type FaceRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type StatusResponse struct {
	ID              int64     `json:"id"`
	StatusType      string    `json:"status_type"`
	Time            string    `json:"time"`
	Brightness      float64   `json:"brightness"`
	RecognizedFaces []FaceRef `json:"recognized_faces"`
	SnapshotURL     string    `json:"snapshot_url,omitempty"`
}

type StatusListResponse struct {
	Statuses []StatusResponse `json:"statuses"`
	Total    int              `json:"total"`
}

type StatusQuery struct {
	From  string `form:"from"`
	To    string `form:"to"`
	Limit int    `form:"limit"`
}

func FaceRefs(faces []models.Face) []FaceRef {
	refs := make([]FaceRef, 0, len(faces))
	for _, f := range faces {
		refs = append(refs, FaceRef{ID: f.ID, Name: f.Name})
	}
	return refs
}

// NewStatusResponse converts st; it returns nil for a nil status.
func NewStatusResponse(st *models.Status) *StatusResponse {
	if st == nil {
		return nil
	}
	r := &StatusResponse{
		ID:              st.ID,
		StatusType:      string(st.Type),
		Time:            st.Time.UTC().Format(time.RFC3339Nano),
		Brightness:      st.Brightness,
		RecognizedFaces: FaceRefs(st.RecognizedFaces),
	}
	if st.SnapshotKey != "" {
		r.SnapshotURL = "/v1/statuses/" + strconv.FormatInt(st.ID, 10) + "/snapshot"
	}
	return r
}
