package builtin

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/your-org/facecommand/internal/command"
)

// LockScreenHandler locks the current desktop session.
type LockScreenHandler struct {
	Timeout time.Duration
	// run executes the lock program; nil uses os/exec.
	run func(ctx context.Context, name string, args ...string) error
}

func lockCommand(goos string) (string, []string, error) {
	switch goos {
	case "linux":
		return "loginctl", []string{"lock-session"}, nil
	case "darwin":
		return "pmset", []string{"displaysleepnow"}, nil
	case "windows":
		return "rundll32.exe", []string{"user32.dll,LockWorkStation"}, nil
	default:
		return "", nil, fmt.Errorf("lock screen: unsupported platform %s", goos)
	}
}

func (h *LockScreenHandler) Run(ctx context.Context, _ command.Options) (any, error) {
	name, args, err := lockCommand(runtime.GOOS)
	if err != nil {
		return nil, err
	}
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}
	run := h.run
	if run == nil {
		run = func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		}
	}
	if err := run(ctx, name, args...); err != nil {
		return nil, fmt.Errorf("lock screen: %w", err)
	}
	return nil, nil
}
