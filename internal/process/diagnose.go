package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// helpPreviewRunes is how much of the --help output goes to the app log.
const helpPreviewRunes = 200

// Diagnose runs the default binary with --help to check that it executes.
// Cancelling ctx kills the diagnostic run.
func (s *Supervisor) Diagnose(ctx context.Context) (string, error) {
	s.appLog("Starting RustFS binary diagnosis...")

	binary, err := s.resolveBinary("")
	if err != nil {
		return "", err
	}
	if err := s.inspector.Inspect(binary, s.appLog); err != nil {
		return "", err
	}

	s.appLog("Testing binary with --help: " + binary)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, "--help") //nolint:gosec // Binary comes from the bundled binaries dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrBinaryExecution, err)
	}
	runErr := cmd.Wait()

	s.appLog("Binary --help stdout (first 200 chars): " + firstRunes(stdout.String(), helpPreviewRunes))

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			s.logger.Debug("diagnostic run failed", "stderr", firstRunes(stderr.String(), helpPreviewRunes))
			return "", fmt.Errorf("%w: %s", ErrBinaryFailed, exitErr.ProcessState.String())
		}
		return "", fmt.Errorf("%w: %w", ErrBinaryExecution, runErr)
	}

	return "RustFS binary appears to be working", nil
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
