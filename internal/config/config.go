package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/smazurov/pdfnode/internal/logging"
)

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "PDFNODE_"

var durationType = reflect.TypeFor[time.Duration]()

// LoadConfig loads configuration with proper precedence: CLI args > env vars > config file.
// If cmd is provided, flags explicitly set via CLI will not be overwritten.
//
// A value that does not fit its field leaves the field unchanged. All such
// values are reported together, each named by its TOML key or env var, so
// one typo does not hide the next.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()

	// Build set of flags explicitly changed via CLI
	changedFlags := make(map[string]bool)
	if cmd != nil {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				changedFlags[f.Name] = true
			}
		})
	}

	file, err := readConfigFile(v)
	if err != nil {
		return err
	}

	var errs []error
	for i := range t.NumField() {
		field := v.Field(i)
		fieldType := t.Field(i)

		if changedFlags[fieldNameToFlag(fieldType.Name)] {
			continue
		}

		if tomlPath := fieldType.Tag.Get("toml"); tomlPath != "" && file != nil {
			if value := getNestedValue(file, tomlPath); value != nil {
				if err := setFieldValue(field, value); err != nil {
					errs = append(errs, fmt.Errorf("config key %s: %w", tomlPath, err))
				}
			}
		}

		if envKey := fieldType.Tag.Get("env"); envKey != "" {
			if envValue := os.Getenv(EnvPrefix + envKey); envValue != "" {
				if err := setFieldValueFromString(field, envValue); err != nil {
					errs = append(errs, fmt.Errorf("env %s%s: %w", EnvPrefix, envKey, err))
				}
			}
		}
	}

	return errors.Join(errs...)
}

// readConfigFile parses the file named by the Config field. A missing
// file yields nil without an error.
func readConfigFile(v reflect.Value) (map[string]any, error) {
	field := v.FieldByName("Config")
	if !field.IsValid() || field.Kind() != reflect.String || field.String() == "" {
		return nil, nil
	}

	data, err := os.ReadFile(field.String())
	if err != nil {
		return nil, nil
	}

	var file map[string]any
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	return file, nil
}

// fieldNameToFlag converts a struct field name to the kebab-case flag name
// humacli registers for it. Acronyms stay together.
// Example: "LoggingLevel" -> "logging-level", "LoggingHTTP" -> "logging-http".
func fieldNameToFlag(fieldName string) string {
	runes := []rune(fieldName)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (unicode.IsUpper(runes[i-1]) && nextLower) {
				b.WriteByte('-')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// getNestedValue retrieves a value from nested map using dot notation.
func getNestedValue(data map[string]any, path string) any {
	parts := strings.Split(path, ".")
	current := data

	for i, part := range parts {
		if i == len(parts)-1 {
			return current[part]
		}
		if next, ok := current[part].(map[string]any); ok {
			current = next
		} else {
			return nil
		}
	}
	return nil
}

// errInvalidValue reports a value that does not fit its field.
var errInvalidValue = errors.New("invalid value")

// setFieldValue sets a field from a decoded TOML value.
func setFieldValue(field reflect.Value, value any) error {
	if !field.CanSet() {
		return nil
	}

	ok := false
	switch field.Kind() {
	case reflect.String:
		var s string
		if s, ok = value.(string); ok {
			field.SetString(s)
		}
	case reflect.Bool:
		var b bool
		if b, ok = value.(bool); ok {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int64:
		var n int64
		if field.Type() == durationType {
			var d time.Duration
			d, ok = toDuration(value)
			n = int64(d)
		} else {
			n, ok = toInt64(value)
		}
		if ok {
			field.SetInt(n)
		}
	case reflect.Float64:
		switch f := value.(type) {
		case float64:
			field.SetFloat(f)
			ok = true
		case int64:
			field.SetFloat(float64(f))
			ok = true
		}
	case reflect.Slice:
		var arr []any
		if arr, ok = value.([]any); ok && field.Type().Elem().Kind() == reflect.String {
			slice := make([]string, 0, len(arr))
			for _, item := range arr {
				s, isString := item.(string)
				if !isString {
					return fmt.Errorf("%w: %v is not a string", errInvalidValue, item)
				}
				slice = append(slice, s)
			}
			field.Set(reflect.ValueOf(slice))
		}
	default:
		return fmt.Errorf("%w: unsupported field type %s", errInvalidValue, field.Type())
	}

	if !ok {
		return fmt.Errorf("%w: %v for %s field", errInvalidValue, value, field.Type())
	}
	return nil
}

// setFieldValueFromString sets a field from an env var.
func setFieldValueFromString(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %q is not a bool", errInvalidValue, value)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		if field.Type() == durationType {
			d, ok := toDuration(value)
			if !ok {
				return fmt.Errorf("%w: %q is not a duration", errInvalidValue, value)
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %q is not an integer", errInvalidValue, value)
		}
		field.SetInt(i)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: %q is not a number", errInvalidValue, value)
		}
		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("%w: unsupported field type %s", errInvalidValue, field.Type())
		}
		// Comma-separated for env vars
		parts := strings.Split(value, ",")
		slice := make([]string, len(parts))
		for i, part := range parts {
			slice[i] = strings.TrimSpace(part)
		}
		field.Set(reflect.ValueOf(slice))
	default:
		return fmt.Errorf("%w: unsupported field type %s", errInvalidValue, field.Type())
	}
	return nil
}

func toInt64(value any) (int64, bool) {
	switch n := value.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

// toDuration accepts "1.5s" style strings and bare integers as milliseconds.
func toDuration(value any) (time.Duration, bool) {
	switch v := value.(type) {
	case string:
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Duration(ms) * time.Millisecond, true
		}
		d, err := time.ParseDuration(v)
		return d, err == nil
	case int64:
		return time.Duration(v) * time.Millisecond, true
	case int:
		return time.Duration(v) * time.Millisecond, true
	default:
		return 0, false
	}
}

// LoadLoggingConfig loads logging configuration from a TOML config file.
// Returns default config if file doesn't exist or can't be parsed.
func LoadLoggingConfig(configPath string) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}

	if configPath == "" {
		return cfg
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg
	}

	var rawConfig struct {
		Logging map[string]string `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &rawConfig); err != nil {
		return cfg
	}

	if rawConfig.Logging == nil {
		return cfg
	}

	// Extract level and format, rest are module-specific levels
	for key, value := range rawConfig.Logging {
		switch key {
		case "level":
			cfg.Level = value
		case "format":
			cfg.Format = value
		default:
			cfg.Modules[key] = value
		}
	}

	return cfg
}
