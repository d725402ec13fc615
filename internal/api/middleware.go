package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/pdfnode/internal/logging"
)

// HTTPLoggingMiddleware tags every huma request with an X-Request-Id and
// logs it once it completes, at a level that follows the status code.
func HTTPLoggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	logger := logging.GetLogger("http")

	requestID := requestIDFrom(ctx.Header(requestIDHeader))
	ctx.SetHeader(requestIDHeader, requestID)

	attrs := []slog.Attr{
		slog.String("request_id", requestID),
		slog.String("method", ctx.Method()),
		slog.String("path", ctx.URL().Path),
		slog.String("remote_addr", ctx.RemoteAddr()),
	}
	if query := ctx.URL().RawQuery; query != "" {
		attrs = append(attrs, slog.String("query", query))
	}
	if userAgent := ctx.Header("User-Agent"); userAgent != "" {
		attrs = append(attrs, slog.String("user_agent", userAgent))
	}

	next(ctx)

	status := ctx.Status()
	attrs = append(attrs,
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
	)
	logger.LogAttrs(ctx.Context(), requestLogLevel(ctx.Method(), status), "HTTP request completed", attrs...)
}

// requestLogLevel keeps CORS preflights at debug and raises client and
// server errors to warn and error.
func requestLogLevel(method string, status int) slog.Level {
	switch {
	case method == http.MethodOptions:
		return slog.LevelDebug
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
