// Package merge combines downloaded testimony into one PDF and one text file using the
// poppler command-line tools.
package merge

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// runFunc executes an external command and returns its combined output.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	// #nosec G204 -- binary comes from configuration, arguments are store paths.
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return out, nil
}
