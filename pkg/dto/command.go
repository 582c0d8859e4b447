package dto

import (
	"encoding/json"
	"time"

	"github.com/your-org/facecommand/internal/models"
)

type RunConditionRequest struct {
	ID    int64   `json:"id,omitempty"`
	Type  string  `json:"type" binding:"required"`
	Faces []int64 `json:"faces,omitempty"`
}

type CommandRequest struct {
	Name          string                `json:"name" binding:"required"`
	Type          string                `json:"type" binding:"required"`
	RunConditions []RunConditionRequest `json:"run_conditions"`
	Data          json.RawMessage       `json:"data,omitempty"`
}

// UpdateCommandRequest leaves name, type and data unchanged when omitted and
// replaces the run conditions when they are present.
type UpdateCommandRequest struct {
	Name          string                 `json:"name"`
	Type          string                 `json:"type"`
	RunConditions *[]RunConditionRequest `json:"run_conditions"`
	Data          json.RawMessage        `json:"data,omitempty"`
}

type RunConditionResponse struct {
	ID    int64     `json:"id"`
	Type  string    `json:"type"`
	Faces []FaceRef `json:"faces"`
}

type CommandResponse struct {
	ID            int64                  `json:"id"`
	Name          string                 `json:"name"`
	Type          string                 `json:"type"`
	RunConditions []RunConditionResponse `json:"run_conditions"`
	Data          json.RawMessage        `json:"data,omitempty"`
	CreatedAt     string                 `json:"created_at"`
}

type RunCommandResponse struct {
	Command string `json:"command"`
	Result  any    `json:"result,omitempty"`
}

// RunConditions converts requests to models; face ids become face references.
func RunConditions(reqs []RunConditionRequest) []models.RunCondition {
	out := make([]models.RunCondition, 0, len(reqs))
	for _, r := range reqs {
		rc := models.RunCondition{ID: r.ID, Type: models.RunConditionType(r.Type)}
		for _, id := range r.Faces {
			rc.FacesToRecognize = append(rc.FacesToRecognize, models.Face{ID: id})
		}
		out = append(out, rc)
	}
	return out
}

func NewCommandResponse(c *models.Command) CommandResponse {
	conds := make([]RunConditionResponse, 0, len(c.RunConditions))
	for _, rc := range c.RunConditions {
		conds = append(conds, RunConditionResponse{
			ID:    rc.ID,
			Type:  string(rc.Type),
			Faces: FaceRefs(rc.FacesToRecognize),
		})
	}
	return CommandResponse{
		ID:            c.ID,
		Name:          c.Name,
		Type:          c.Type,
		RunConditions: conds,
		Data:          c.Data,
		CreatedAt:     c.CreatedAt.UTC().Format(time.RFC3339),
	}
}
