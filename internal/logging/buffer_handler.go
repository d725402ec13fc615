package logging

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"
)

// LogCallback is called when a new log entry is written.
// Used to publish log events without creating import cycles.
type LogCallback func(entry LogEntry)

// BufferHandler is a slog.Handler that writes to the process-wide ring
// buffer and calls the registered LogCallback for each entry. The buffer
// and callback are resolved per record, so handlers created before
// Initialize or SetLogCallback pick them up later.
//
// Attributes are flattened into dot-separated keys when they are attached,
// so an attribute only carries the groups opened before it.
type BufferHandler struct {
	level  slog.Leveler
	module string
	attrs  map[string]any
	groups []string
}

// NewBufferHandler creates a handler that writes to the log ring buffer.
func NewBufferHandler(level slog.Leveler) *BufferHandler {
	return &BufferHandler{level: level, module: "app"}
}

// Enabled implements slog.Handler.
func (h *BufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *BufferHandler) Handle(_ context.Context, r slog.Record) error {
	mutex.RLock()
	buffer, callback := logBuffer, logCallback
	mutex.RUnlock()

	if buffer == nil && callback == nil {
		return nil
	}

	attrs := maps.Clone(h.attrs)
	if attrs == nil {
		attrs = make(map[string]any, r.NumAttrs())
	}
	module := h.module
	r.Attrs(func(a slog.Attr) bool {
		module = h.addAttr(attrs, module, a)
		return true
	})

	entry := LogEntry{
		Timestamp:  r.Time,
		Level:      levelToString(r.Level),
		Module:     module,
		Message:    r.Message,
		Attributes: attrs,
	}

	if buffer != nil {
		entry = buffer.Write(entry)
	}
	if callback != nil {
		callback(entry)
	}
	return nil
}

// addAttr flattens a into attrs and returns the module, which a top-level
// "module" attribute replaces instead of being stored.
func (h *BufferHandler) addAttr(attrs map[string]any, module string, a slog.Attr) string {
	if a.Key == "module" && len(h.groups) == 0 {
		return a.Value.String()
	}
	flattenAttr(attrs, h.groups, a)
	return module
}

// flattenAttr extracts a slog.Attr into a flat map with dot-notation keys for groups.
func flattenAttr(attrs map[string]any, groups []string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		nested := groups
		if a.Key != "" {
			nested = append(slices.Clone(groups), a.Key)
		}
		for _, ga := range a.Value.Group() {
			flattenAttr(attrs, nested, ga)
		}
		return
	}

	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}

	switch a.Value.Kind() {
	case slog.KindTime:
		attrs[key] = a.Value.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		attrs[key] = a.Value.Duration().String()
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			attrs[key] = err.Error()
		} else {
			attrs[key] = a.Value.Any()
		}
	default:
		attrs[key] = a.Value.Any()
	}
}

// WithAttrs implements slog.Handler.
func (h *BufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	derived := *h
	derived.attrs = maps.Clone(h.attrs)
	if derived.attrs == nil {
		derived.attrs = make(map[string]any, len(attrs))
	}
	for _, a := range attrs {
		derived.module = h.addAttr(derived.attrs, derived.module, a)
	}
	return &derived
}

// WithGroup implements slog.Handler.
func (h *BufferHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	derived := *h
	derived.groups = append(slices.Clone(h.groups), name)
	return &derived
}

// levelToString converts slog.Level to a lowercase string.
func levelToString(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
