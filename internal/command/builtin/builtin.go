// Package builtin provides the command types shipped with the service.
package builtin

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/your-org/facecommand/internal/command"
	"github.com/your-org/facecommand/internal/config"
	"github.com/your-org/facecommand/internal/models"
)

const (
	TypeLog        = "log"
	TypeExec       = "exec"
	TypeWebhook    = "webhook"
	TypeNATS       = "nats"
	TypeLockScreen = "lock_screen"
)

// Publisher sends raw messages to a subject.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Register adds the enabled built-in types to r. All types are enabled when
// cfg.EnabledTypes is empty; the nats type needs a publisher.
func Register(r *command.Registry, cfg config.CommandsConfig, pub Publisher) error {
	all := map[string]command.Handler{
		TypeLog:        &LogHandler{Logger: slog.Default()},
		TypeExec:       &ExecHandler{Timeout: cfg.ExecTimeout},
		TypeWebhook:    NewWebhookHandler(cfg.ExecTimeout),
		TypeLockScreen: &LockScreenHandler{Timeout: cfg.ExecTimeout},
	}
	if pub != nil {
		all[TypeNATS] = &NATSHandler{Publisher: pub}
	}

	enabled := cfg.EnabledTypes
	if len(enabled) == 0 {
		for name := range all {
			enabled = append(enabled, name)
		}
	}
	for _, name := range enabled {
		h, ok := all[name]
		if !ok {
			if name == TypeNATS {
				slog.Warn("nats command type enabled without nats connection, skipping")
				continue
			}
			return fmt.Errorf("unknown built-in command type %q", name)
		}
		if err := r.Register(name, h); err != nil {
			return err
		}
	}
	return nil
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode command data: %w", err)
	}
	return nil
}

// Payload is the JSON document sent by the webhook and nats types.
type Payload struct {
	Command string         `json:"command"`
	Status  *models.Status `json:"status,omitempty"`
	Time    time.Time      `json:"time"`
}

func newPayload(opts command.Options) Payload {
	return Payload{Command: opts.Command.Name, Status: opts.Status, Time: time.Now().UTC()}
}

// statusEnv describes the triggering status as environment variables.
func statusEnv(opts command.Options) []string {
	env := []string{"FACECOMMAND_COMMAND=" + opts.Command.Name}
	if st := opts.Status; st != nil {
		names := make([]string, len(st.RecognizedFaces))
		for i, f := range st.RecognizedFaces {
			names[i] = f.Name
		}
		env = append(env,
			"FACECOMMAND_STATUS_ID="+strconv.FormatInt(st.ID, 10),
			"FACECOMMAND_STATUS_TYPE="+string(st.Type),
			"FACECOMMAND_BRIGHTNESS="+strconv.FormatFloat(st.Brightness, 'f', 3, 64),
			"FACECOMMAND_FACES="+strings.Join(names, ","),
		)
	}
	return env
}
