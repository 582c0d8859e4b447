package dto

import (
	"strconv"
	"time"

	"github.com/your-org/facecommand/internal/models"
)

type FaceResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Autostart bool   `json:"autostart"`
	ImageURL  string `json:"image_url"`
	CreatedAt string `json:"created_at"`
}

// CaptureFaceRequest adds a face from the current camera frame.
type CaptureFaceRequest struct {
	Name      string `json:"name" binding:"required"`
	Autostart bool   `json:"autostart"`
}

// UpdateFaceRequest leaves a field unchanged when it is omitted.
type UpdateFaceRequest struct {
	Name      *string `json:"name"`
	Autostart *bool   `json:"autostart"`
	// Rescan replaces the reference image with the face found in it.
	Rescan     bool `json:"rescan"`
	FromCamera bool `json:"from_camera"`
}

func NewFaceResponse(f *models.Face) FaceResponse {
	return FaceResponse{
		ID:        f.ID,
		Name:      f.Name,
		Autostart: f.Autostart,
		ImageURL:  "/v1/faces/" + strconv.FormatInt(f.ID, 10) + "/image",
		CreatedAt: f.CreatedAt.UTC().Format(time.RFC3339),
	}
}
