package ocr

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Runner lets tests stub the external binaries.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// stderrCap bounds how much subprocess stderr lands in a log record.
const stderrCap = 8 << 10

type execRunner struct {
	log *slog.Logger
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	if err != nil {
		r.log.Error("ocr.exec.failed",
			"bin", name,
			"args", strings.Join(args, " "),
			"elapsed_ms", time.Since(start).Milliseconds(),
			"error", err,
			"stderr", clipStderr(stderr.String()),
		)
		return stdout.Bytes(), stderr.Bytes(), err
	}

	r.log.Debug("ocr.exec.ok",
		"bin", name,
		"args", strings.Join(args, " "),
		"elapsed_ms", time.Since(start).Milliseconds(),
		"stdout_bytes", stdout.Len(),
		"stderr_bytes", stderr.Len(),
	)
	return stdout.Bytes(), stderr.Bytes(), nil
}

func clipStderr(s string) string {
	if len(s) <= stderrCap {
		return s
	}
	return s[:stderrCap] + "...(truncated)"
}
