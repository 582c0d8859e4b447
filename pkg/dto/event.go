package dto

import (
	"time"

	"github.com/your-org/facecommand/internal/events"
)

type StartDetectionRequest struct {
	FrequencyMS    int64   `json:"frequency_ms"`
	FaceIDs        []int64 `json:"face_ids"`
	AutostartFaces bool    `json:"autostart_faces"`
	Threshold      float64 `json:"threshold"`
}

type DetectionResponse struct {
	Running    bool            `json:"running"`
	LastStatus *StatusResponse `json:"last_status"`
}

// Event is the WebSocket and NATS message for bus events.
type Event struct {
	Type     string          `json:"type"` // status_changed, detection_running
	Time     string          `json:"time"`
	Status   *StatusResponse `json:"status,omitempty"`
	Previous *StatusResponse `json:"previous,omitempty"`
	Running  *bool           `json:"running,omitempty"`
}

func NewEvent(ev events.Event) Event {
	out := Event{
		Type:     string(ev.Type),
		Time:     ev.Time.UTC().Format(time.RFC3339Nano),
		Status:   NewStatusResponse(ev.Status),
		Previous: NewStatusResponse(ev.Previous),
	}
	if ev.Type == events.TypeDetectionRunning {
		running := ev.Running
		out.Running = &running
	}
	return out
}
