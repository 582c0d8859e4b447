package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facecommand/internal/faces"
	"github.com/your-org/facecommand/pkg/dto"
)

const maxImageSize = 10 << 20

type FaceHandler struct {
	faces *faces.Service
}

func NewFaceHandler(svc *faces.Service) *FaceHandler {
	return &FaceHandler{faces: svc}
}

// Create accepts a multipart image upload with name, autostart and detect fields.
func (h *FaceHandler) Create(c *gin.Context) {
	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(io.LimitReader(file, maxImageSize))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return
	}

	autostart, _ := strconv.ParseBool(c.PostForm("autostart"))
	detect, err := strconv.ParseBool(c.DefaultPostForm("detect", "true"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid detect flag"})
		return
	}

	f, err := h.faces.AddFace(c.Request.Context(), imageData, c.PostForm("name"), autostart, detect)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewFaceResponse(f))
}

// Capture adds a face from the current camera frame.
func (h *FaceHandler) Capture(c *gin.Context) {
	var req dto.CaptureFaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, err := h.faces.AddFaceFromCamera(c.Request.Context(), req.Name, req.Autostart)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewFaceResponse(f))
}

func (h *FaceHandler) List(c *gin.Context) {
	all, err := h.faces.GetFaces(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]dto.FaceResponse, 0, len(all))
	for i := range all {
		resp = append(resp, dto.NewFaceResponse(&all[i]))
	}
	c.JSON(http.StatusOK, gin.H{"faces": resp, "total": len(resp)})
}

func (h *FaceHandler) Get(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	f, err := h.faces.GetFace(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewFaceResponse(f))
}

// Image serves the reference image of a face.
func (h *FaceHandler) Image(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	f, err := h.faces.GetFace(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", f.Image)
}

func (h *FaceHandler) Update(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req dto.UpdateFaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, err := h.faces.UpdateFace(c.Request.Context(), id, faces.FaceUpdate{
		Name:       req.Name,
		Autostart:  req.Autostart,
		Rescan:     req.Rescan,
		FromCamera: req.FromCamera,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewFaceResponse(f))
}

func (h *FaceHandler) Delete(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.faces.RemoveFace(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
