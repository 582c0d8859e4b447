package builtin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/your-org/facecommand/internal/command"
)

// ExecHandler runs a program. The triggering status is passed through
// FACECOMMAND_* environment variables.
type ExecHandler struct {
	Timeout time.Duration
}

type execData struct {
	Path    string   `json:"path"`
	Args    []string `json:"args"`
	Dir     string   `json:"dir"`
	Timeout string   `json:"timeout"`
}

var errPathRequired = errors.New("exec: path is required")

func (h *ExecHandler) Run(ctx context.Context, opts command.Options) (any, error) {
	var d execData
	if err := decodeData(opts.Data, &d); err != nil {
		return nil, err
	}
	if d.Path == "" {
		return nil, errPathRequired
	}

	timeout := h.Timeout
	if d.Timeout != "" {
		parsed, err := time.ParseDuration(d.Timeout)
		if err != nil {
			return nil, fmt.Errorf("exec: parse timeout: %w", err)
		}
		timeout = parsed
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, d.Path, d.Args...)
	cmd.Dir = d.Dir
	cmd.Env = append(os.Environ(), statusEnv(opts)...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("exec %s: %w", d.Path, err)
	}
	return string(out), nil
}
