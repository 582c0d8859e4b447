package vision

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/your-org/facecommand/internal/config"
)

const maxFrameSize = 10 * 1024 * 1024

var errNoFrame = errors.New("no frame received from ffmpeg")

// FFmpegGrabber reads single JPEG frames from a camera device or stream URL.
type FFmpegGrabber struct {
	path    string
	source  string
	format  string
	width   int
	timeout time.Duration
}

func NewFFmpegGrabber(cfg config.CaptureConfig) *FFmpegGrabber {
	return &FFmpegGrabber{
		path:    cfg.FFmpegPath,
		source:  cfg.Source,
		format:  cfg.Format,
		width:   cfg.Width,
		timeout: cfg.Timeout,
	}
}

// Grab returns one JPEG frame.
func (g *FFmpegGrabber) Grab(ctx context.Context) ([]byte, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.path, g.args()...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffmpeg %s: %w", g.source, ctx.Err())
		}
		return nil, fmt.Errorf("ffmpeg %s: %w: %s", g.source, err, strings.TrimSpace(stderr.String()))
	}

	frame, err := readJPEGFrame(bufio.NewReader(bytes.NewReader(out)))
	if err != nil {
		return nil, fmt.Errorf("ffmpeg %s: %w", g.source, err)
	}
	return frame, nil
}

func (g *FFmpegGrabber) args() []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
	}

	// Add protocol-specific timeout args
	switch {
	case strings.HasPrefix(g.source, "rtsp://") || strings.HasPrefix(g.source, "rtsps://"):
		args = append(args,
			"-rtsp_transport", "tcp",
			"-timeout", "5000000", // 5s socket timeout (microseconds)
		)
	case strings.HasPrefix(g.source, "http://") || strings.HasPrefix(g.source, "https://"):
		args = append(args,
			"-timeout", "10000000", // 10s (microseconds)
		)
	}
	if g.format != "" {
		args = append(args, "-f", g.format)
	}

	args = append(args, "-i", g.source, "-frames:v", "1")
	if g.width > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:-1", g.width))
	}
	return append(args,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "3",
		"pipe:1",
	)
}

// readJPEGFrame returns the first JPEG image found in r.
func readJPEGFrame(r *bufio.Reader) ([]byte, error) {
	if err := findJPEGStart(r); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errNoFrame
		}
		return nil, err
	}
	frame, err := readUntilJPEGEnd(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("truncated jpeg frame: %w", errNoFrame)
		}
		return nil, err
	}
	return frame, nil
}

func findJPEGStart(r *bufio.Reader) error {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b != 0xFF {
			continue
		}
		b, err = r.ReadByte()
		if err != nil {
			return err
		}
		if b == 0xD8 {
			return nil
		}
	}
}

func readUntilJPEGEnd(r *bufio.Reader) ([]byte, error) {
	// Start with JPEG header
	data := []byte{0xFF, 0xD8}

	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		data = append(data, b)

		if b == 0xFF {
			next, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			data = append(data, next)
			if next == 0xD9 {
				return data, nil
			}
		}

		if len(data) > maxFrameSize {
			return nil, fmt.Errorf("jpeg frame too large: %s bytes", strconv.Itoa(len(data)))
		}
	}
}
