package api

import (
	"regexp"

	"github.com/smazurov/pdfnode/internal/converter"
)

const requestIDHeader = "X-Request-Id"

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// requestIDFrom keeps a caller-supplied request id when it is safe to log
// and echo back, and generates one otherwise.
func requestIDFrom(header string) string {
	if requestIDPattern.MatchString(header) {
		return header
	}
	return converter.NewRequestID()
}
