package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNoVersion means the converter ran but printed no version.
var ErrNoVersion = errors.New("converter printed no version")

// ConverterVersion runs binary --version and returns the first line it
// prints, e.g. "wkhtmltopdf 0.12.6 (with patched qt)". It starts a
// separate process and never touches the pool.
func ConverterVersion(ctx context.Context, binary string) (string, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSpawn, err)
	}

	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("%s --version: %w", path, err)
	}

	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return "", ErrNoVersion
	}
	return line, nil
}
