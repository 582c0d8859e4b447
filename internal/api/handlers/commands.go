package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facecommand/internal/command"
	"github.com/your-org/facecommand/internal/models"
	"github.com/your-org/facecommand/pkg/dto"
)

// LastStatusFunc returns the status commands run against outside a transition.
type LastStatusFunc func() *models.Status

type CommandHandler struct {
	engine     *command.Engine
	lastStatus LastStatusFunc
}

func NewCommandHandler(engine *command.Engine, lastStatus LastStatusFunc) *CommandHandler {
	return &CommandHandler{engine: engine, lastStatus: lastStatus}
}

func (h *CommandHandler) Types(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"command_types": h.engine.GetCommandTypeNames()})
}

func (h *CommandHandler) Create(c *gin.Context) {
	var req dto.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd, err := h.engine.AddCommand(c.Request.Context(), req.Type, req.Name, dto.RunConditions(req.RunConditions), req.Data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewCommandResponse(cmd))
}

func (h *CommandHandler) List(c *gin.Context) {
	cmds, err := h.engine.GetCommands(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]dto.CommandResponse, 0, len(cmds))
	for i := range cmds {
		resp = append(resp, dto.NewCommandResponse(&cmds[i]))
	}
	c.JSON(http.StatusOK, gin.H{"commands": resp, "total": len(resp)})
}

func (h *CommandHandler) Get(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	cmd, err := h.engine.GetCommand(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewCommandResponse(cmd))
}

func (h *CommandHandler) Update(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req dto.UpdateCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing, err := h.engine.GetCommand(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	delta := &models.Command{
		ID:            id,
		Name:          req.Name,
		Type:          req.Type,
		RunConditions: existing.RunConditions,
		Data:          existing.Data,
	}
	if req.RunConditions != nil {
		delta.RunConditions = dto.RunConditions(*req.RunConditions)
	}
	if req.Data != nil {
		delta.Data = req.Data
	}

	cmd, err := h.engine.UpdateCommand(c.Request.Context(), delta)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewCommandResponse(cmd))
}

func (h *CommandHandler) Delete(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.engine.RemoveCommand(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Run executes a command against the last status.
func (h *CommandHandler) Run(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	cmd, err := h.engine.GetCommand(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := h.engine.RunCommand(c.Request.Context(), cmd, h.lastStatus())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.RunCommandResponse{Command: cmd.Name, Result: result})
}
