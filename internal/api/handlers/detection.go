package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facecommand/internal/detection"
	"github.com/your-org/facecommand/internal/faces"
	"github.com/your-org/facecommand/pkg/dto"
)

type DetectionHandler struct {
	detection        *detection.Service
	faces            *faces.Service
	defaultFrequency time.Duration
}

func NewDetectionHandler(det *detection.Service, faceSvc *faces.Service, defaultFrequency time.Duration) *DetectionHandler {
	return &DetectionHandler{detection: det, faces: faceSvc, defaultFrequency: defaultFrequency}
}

func (h *DetectionHandler) State(c *gin.Context) {
	c.JSON(http.StatusOK, dto.DetectionResponse{
		Running:    h.detection.IsDetectionRunning(),
		LastStatus: dto.NewStatusResponse(h.detection.GetLastStatus()),
	})
}

// Start (re)starts the loop. An empty body uses the default frequency and
// the autostart faces.
func (h *DetectionHandler) Start(c *gin.Context) {
	opts, ok := h.options(c)
	if !ok {
		return
	}
	if err := h.detection.StartDetection(opts); err != nil {
		respondError(c, err)
		return
	}
	h.State(c)
}

func (h *DetectionHandler) Stop(c *gin.Context) {
	h.detection.StopDetection()
	h.State(c)
}

// Detect runs one cycle now and returns the emitted status, if any.
func (h *DetectionHandler) Detect(c *gin.Context) {
	opts, ok := h.options(c)
	if !ok {
		return
	}
	st, err := h.detection.DetectChanges(c.Request.Context(), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"changed": st != nil,
		"status":  dto.NewStatusResponse(st),
	})
}

func (h *DetectionHandler) options(c *gin.Context) (detection.Options, bool) {
	req := dto.StartDetectionRequest{AutostartFaces: true}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return detection.Options{}, false
	}

	opts := detection.Options{
		Frequency:      h.defaultFrequency,
		AutostartFaces: req.AutostartFaces,
		Recognizer:     detection.RecognizerOptions{Threshold: req.Threshold},
	}
	if req.FrequencyMS != 0 {
		opts.Frequency = time.Duration(req.FrequencyMS) * time.Millisecond
	}
	if len(req.FaceIDs) > 0 {
		found, err := h.faces.FacesByIDs(c.Request.Context(), req.FaceIDs)
		if err != nil {
			respondError(c, err)
			return detection.Options{}, false
		}
		opts.Faces = found
	}
	return opts, true
}
