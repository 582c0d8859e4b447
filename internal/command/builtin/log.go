package builtin

import (
	"context"
	"log/slog"

	"github.com/your-org/facecommand/internal/command"
)

// LogHandler writes the triggering status to the log.
type LogHandler struct {
	Logger *slog.Logger
}

type logData struct {
	Message string `json:"message"`
}

func (h *LogHandler) Run(ctx context.Context, opts command.Options) (any, error) {
	var d logData
	if err := decodeData(opts.Data, &d); err != nil {
		return nil, err
	}
	if d.Message == "" {
		d.Message = "command triggered"
	}
	attrs := []any{"command", opts.Command.Name}
	if opts.Status != nil {
		attrs = append(attrs, "status_type", opts.Status.Type, "status_id", opts.Status.ID)
	}
	h.Logger.InfoContext(ctx, d.Message, attrs...)
	return d.Message, nil
}
