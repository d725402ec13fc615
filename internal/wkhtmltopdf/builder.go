package wkhtmltopdf

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
)

// Placeholders appended to every control line: read the document from
// stdin and write the PDF to stdout.
const (
	stdinPlaceholder  = "-"
	stdoutPlaceholder = "-"
)

// BuildArgs encodes options as command-line tokens in insertion order.
//
// A one-letter key becomes "-k", longer keys become "--param-case". False
// booleans are dropped, true booleans are bare switches, strings are quoted
// and numbers are written as-is.
func BuildArgs(opts Options) []string {
	args := make([]string, 0, 2*opts.Len())

	for key, value := range opts.All() {
		flag := FlagName(key)

		v := reflect.ValueOf(value)
		switch v.Kind() {
		case reflect.Bool:
			if v.Bool() {
				args = append(args, flag)
			}
		case reflect.String:
			args = append(args, flag, quote(v.String()))
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			args = append(args, flag, strconv.FormatInt(v.Int(), 10))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			args = append(args, flag, strconv.FormatUint(v.Uint(), 10))
		case reflect.Float32, reflect.Float64:
			args = append(args, flag, strconv.FormatFloat(v.Float(), 'f', -1, 64))
		}
	}

	return args
}

// ControlLine builds the single newline-terminated line sent to a worker
// before the document bytes.
func ControlLine(opts Options) string {
	args := append(BuildArgs(opts), stdinPlaceholder, stdoutPlaceholder)
	return strings.Join(args, " ") + "\n"
}

// FlagName turns an option key into its command-line flag.
func FlagName(key string) string {
	if len([]rune(key)) == 1 {
		return "-" + key
	}
	return "--" + paramCase(key)
}

// paramCase rewrites camelCase, PascalCase, snake_case and spaced keys as
// lowercase hyphen-separated words, e.g. "pageSize" -> "page-size" and
// "imageDPI" -> "image-dpi".
func paramCase(s string) string {
	return strcase.ToKebab(s)
}

// quote wraps a value in double quotes using JSON string escaping.
func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return strconv.Quote(s)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
