package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facecommand/internal/detection"
	"github.com/your-org/facecommand/pkg/dto"
)

const defaultStatusLimit = 100

// SnapshotReader loads stored snapshots. *storage.MinIOStore implements it.
type SnapshotReader interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
}

type StatusHandler struct {
	detection *detection.Service
	snapshots SnapshotReader
}

// NewStatusHandler returns a status handler; snapshots may be nil.
func NewStatusHandler(det *detection.Service, snapshots SnapshotReader) *StatusHandler {
	return &StatusHandler{detection: det, snapshots: snapshots}
}

// List returns the status history, newest first.
func (h *StatusHandler) List(c *gin.Context) {
	var q dto.StatusQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	from, err := parseTime(q.From)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from: " + err.Error()})
		return
	}
	to, err := parseTime(q.To)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to: " + err.Error()})
		return
	}
	if q.Limit <= 0 {
		q.Limit = defaultStatusLimit
	}

	statuses, err := h.detection.StatusHistory(c.Request.Context(), from, to, q.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]dto.StatusResponse, 0, len(statuses))
	for i := range statuses {
		resp = append(resp, *dto.NewStatusResponse(&statuses[i]))
	}
	c.JSON(http.StatusOK, dto.StatusListResponse{Statuses: resp, Total: len(resp)})
}

func (h *StatusHandler) Last(c *gin.Context) {
	st := h.detection.GetLastStatus()
	if st == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no status yet"})
		return
	}
	c.JSON(http.StatusOK, dto.NewStatusResponse(st))
}

func (h *StatusHandler) Get(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	st, err := h.detection.GetStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewStatusResponse(st))
}

// Snapshot proxies the frame of a status from MinIO.
func (h *StatusHandler) Snapshot(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	st, err := h.detection.GetStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if h.snapshots == nil || st.SnapshotKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
		return
	}

	data, err := h.snapshots.GetObject(c.Request.Context(), st.SnapshotKey)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
