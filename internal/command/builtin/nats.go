package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/your-org/facecommand/internal/command"
)

// NATSHandler publishes the triggering status to a subject.
type NATSHandler struct {
	Publisher Publisher
}

type natsData struct {
	Subject string `json:"subject"`
}

func (h *NATSHandler) Run(ctx context.Context, opts command.Options) (any, error) {
	var d natsData
	if err := decodeData(opts.Data, &d); err != nil {
		return nil, err
	}
	if d.Subject == "" {
		return nil, fmt.Errorf("nats: subject is required")
	}
	payload, err := json.Marshal(newPayload(opts))
	if err != nil {
		return nil, fmt.Errorf("nats: marshal payload: %w", err)
	}
	if err := h.Publisher.Publish(d.Subject, payload); err != nil {
		return nil, fmt.Errorf("nats: publish %s: %w", d.Subject, err)
	}
	return d.Subject, nil
}
