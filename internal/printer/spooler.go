package printer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Spooler local print capability; content is base64 encoded
type Spooler interface {
	Submit(ctx context.Context, printerName string, content string) error
}

// CommandSpooler pipes the decoded document to a CUPS style command (lp -d <printer>)
type CommandSpooler struct {
	command string
	timeout time.Duration
}

// NewCommandSpooler creates a spooler running command
func NewCommandSpooler(command string, timeout time.Duration) *CommandSpooler {
	return &CommandSpooler{command: command, timeout: timeout}
}

func (s *CommandSpooler) Submit(ctx context.Context, printerName string, content string) error {
	data, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return fmt.Errorf("failed to decode label: %w", err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, s.command, "-d", printerName)
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s -d %s: %w: %s", s.command, printerName, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
