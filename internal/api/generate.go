package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/pdfnode/internal/converter"
	"github.com/smazurov/pdfnode/internal/logging"
	"github.com/smazurov/pdfnode/internal/process"
	"github.com/smazurov/pdfnode/internal/wkhtmltopdf"
)

const copyBufferSize = 32 * 1024

// handleGenerate streams an HTML request body through the converter and
// the PDF back to the client.
//
// The response status is committed only once the first PDF byte is ready,
// so errors before that point get a proper JSON error. A failure after that
// aborts the connection; the client then sees a truncated transfer instead
// of a PDF that looks complete.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := requestIDFrom(r.Header.Get(requestIDHeader))
	logger := s.logger.With("request_id", requestID)
	w.Header().Set(requestIDHeader, requestID)

	if s.authEnabled() {
		username, password, err := credentialsFromRequest(r.Header.Get("Authorization"), "")
		if err != nil || !s.checkCredentials(username, password) {
			w.Header().Set("WWW-Authenticate", authRealm)
			writeProblem(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
	}

	if s.limiter != nil && !s.limiter.Allow() {
		logger.Warn("Rate limit exceeded", "remote_addr", r.RemoteAddr)
		writeProblem(w, http.StatusTooManyRequests, "Too many conversion requests")
		return
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "text/") {
		writeProblem(w, http.StatusUnsupportedMediaType, "Request body must be text/html")
		return
	}

	overrides, err := wkhtmltopdf.ParseOverrides(r.URL.Query())
	if err != nil {
		writeProblem(w, http.StatusBadRequest, err.Error())
		return
	}

	var body io.Reader = r.Body
	if s.options.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.options.MaxBodyBytes)
	}

	// The request body is still being uploaded while the PDF streams back
	rc := http.NewResponseController(w)
	if err := rc.EnableFullDuplex(); err != nil {
		logger.Debug("Full duplex not supported", "error", err)
	}

	ctx := logging.WithLogger(converter.WithRequestID(r.Context(), requestID), logger)
	stream, err := s.converter.Convert(ctx, body, overrides)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, process.ErrPoolClosed) {
			status = http.StatusServiceUnavailable
		}
		writeProblem(w, status, "Failed to start conversion")
		return
	}
	defer stream.Close()

	buf := make([]byte, copyBufferSize)
	n, err := readSome(stream, buf)
	if n == 0 {
		logger.Error("Conversion failed before output", "error", err)
		writeProblem(w, conversionStatus(err), "Failed to generate PDF")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)

	if _, werr := w.Write(buf[:n]); werr != nil {
		logAborted(logger, werr, start)
		panic(http.ErrAbortHandler)
	}
	if err == nil {
		_, err = io.CopyBuffer(w, onlyReader{stream}, buf)
	} else if errors.Is(err, io.EOF) {
		err = nil
	}
	if err != nil {
		logAborted(logger, err, start)
		panic(http.ErrAbortHandler)
	}
}

// readSome reads until it gets at least one byte or an error.
func readSome(r io.Reader, buf []byte) (int, error) {
	for {
		n, err := r.Read(buf)
		if n > 0 || err != nil {
			return n, err
		}
	}
}

// onlyReader hides WriterTo so io.CopyBuffer uses the given buffer.
type onlyReader struct {
	io.Reader
}

func conversionStatus(err error) int {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, process.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func logAborted(logger *slog.Logger, err error, start time.Time) {
	logger.Error("PDF stream aborted", "error", err, "duration", time.Since(start))
}

// writeProblem writes a huma-style application/problem+json error.
func writeProblem(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(huma.NewError(status, msg))
}
