package wkhtmltopdf

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// ValueType is the kind of value a converter flag takes.
type ValueType string

// Value types.
const (
	TypeBool   ValueType = "bool"
	TypeString ValueType = "string"
	TypeNumber ValueType = "number"
)

// OptionCategory groups flags for documentation.
type OptionCategory string

// Option categories.
const (
	CategoryPage     OptionCategory = "Page"
	CategoryQuality  OptionCategory = "Quality"
	CategoryContent  OptionCategory = "Content"
	CategorySecurity OptionCategory = "Security"
)

// OptionInfo describes a converter flag the service knows about.
type OptionInfo struct {
	Key         string         `json:"key"`
	Flag        string         `json:"flag"`
	Type        ValueType      `json:"type"`
	Description string         `json:"description"`
	Category    OptionCategory `json:"category"`
	Choices     []string       `json:"choices,omitempty"`
	// Locked flags are fixed by the service and cannot be overridden per request.
	Locked bool `json:"locked"`
}

// AllOptions lists the flags accepted from API callers, with metadata.
// See https://wkhtmltopdf.org/usage/wkhtmltopdf.txt for the full converter list.
var AllOptions = []OptionInfo{
	{Key: "collate", Type: TypeBool, Category: CategoryPage, Description: "Collate when printing multiple copies"},
	{Key: "noCollate", Type: TypeBool, Category: CategoryPage, Description: "Do not collate when printing multiple copies"},
	{Key: "dpi", Type: TypeNumber, Category: CategoryQuality, Description: "Change the dpi explicitly"},
	{Key: "grayscale", Type: TypeBool, Category: CategoryQuality, Description: "PDF will be generated in grayscale"},
	{Key: "imageDpi", Type: TypeNumber, Category: CategoryQuality, Description: "When embedding images scale them down to this dpi"},
	{Key: "imageQuality", Type: TypeNumber, Category: CategoryQuality, Description: "When jpeg compressing images use this quality"},
	{Key: "lowquality", Type: TypeBool, Category: CategoryQuality, Description: "Generates lower quality pdf/ps, useful to shrink the result document space"},
	{Key: "margin-bottom", Type: TypeNumber, Category: CategoryPage, Description: "Set the page bottom margin"},
	{Key: "margin-left", Type: TypeNumber, Category: CategoryPage, Description: "Set the page left margin"},
	{Key: "margin-right", Type: TypeNumber, Category: CategoryPage, Description: "Set the page right margin"},
	{Key: "margin-top", Type: TypeNumber, Category: CategoryPage, Description: "Set the page top margin"},
	{Key: "defaultHeader", Type: TypeBool, Category: CategoryContent, Description: "Add a default header, with the name of the page to the left, and the page number to the right"},
	{Key: "orientation", Type: TypeString, Category: CategoryPage, Description: "Page orientation", Choices: []string{"Landscape", "Portrait"}},
	{Key: "pageSize", Type: TypeString, Category: CategoryPage, Description: "Page size, e.g. A4 or Letter"},
	{Key: "disableJavascript", Type: TypeBool, Category: CategorySecurity, Description: "Do not allow web pages to run javascript", Locked: true},
	{Key: "disableExternalLinks", Type: TypeBool, Category: CategoryContent, Description: "Do not make links to remote web pages"},
	{Key: "enableForms", Type: TypeBool, Category: CategoryContent, Description: "Turn HTML form fields into pdf form fields"},
	{Key: "printMediaType", Type: TypeBool, Category: CategoryContent, Description: "Use print media-type instead of screen"},
	{Key: "enableTocBackLinks", Type: TypeBool, Category: CategoryContent, Description: "Link from section header to toc"},
	{Key: "javascriptDelay", Type: TypeNumber, Category: CategoryContent, Description: "Wait some milliseconds for javascript to finish"},
	{Key: "disableLocalFileAccess", Type: TypeBool, Category: CategorySecurity, Description: "Do not allow conversion of a local file to read in other local files", Locked: true},
	{Key: "allow", Type: TypeString, Category: CategorySecurity, Description: "Allow the file or files from the specified folder to be loaded", Locked: true},
}

func init() {
	for i := range AllOptions {
		AllOptions[i].Flag = FlagName(AllOptions[i].Key)
	}
}

// DefaultOptions returns the flags applied to every conversion.
func DefaultOptions() Options {
	return NewOptions(
		Option{Key: "pageSize", Value: "A4"},
		Option{Key: "disableJavascript", Value: true},
		Option{Key: "javascriptDelay", Value: 0},
		Option{Key: "allow", Value: "fonts"},
		Option{Key: "disableLocalFileAccess", Value: true},
	)
}

// LookupOption finds a known flag by key ("pageSize"), flag name
// ("page-size") or query style name ("page_size").
func LookupOption(name string) (OptionInfo, bool) {
	name = strings.TrimLeft(name, "-")
	if name == "" {
		return OptionInfo{}, false
	}
	flag := "--" + paramCase(name)
	for _, info := range AllOptions {
		if info.Key == name || info.Flag == flag {
			return info, true
		}
	}
	return OptionInfo{}, false
}

// ParseValue converts a raw string into the value type the flag expects.
func (info OptionInfo) ParseValue(raw string) (any, error) {
	switch info.Type {
	case TypeBool:
		if raw == "" {
			return true, nil
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("option %s expects a boolean: %w", info.Key, err)
		}
		return b, nil
	case TypeNumber:
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("option %s expects a number: %w", info.Key, err)
		}
		return f, nil
	default:
		if len(info.Choices) > 0 {
			for _, choice := range info.Choices {
				if strings.EqualFold(choice, raw) {
					return choice, nil
				}
			}
			return nil, fmt.Errorf("option %s must be one of %s", info.Key, strings.Join(info.Choices, ", "))
		}
		return raw, nil
	}
}

// ParseOverrides turns request parameters into options, rejecting unknown
// and locked flags. Parameters are applied in name order so the resulting
// control line is stable.
func ParseOverrides(params map[string][]string) (Options, error) {
	var opts Options
	for _, name := range slices.Sorted(maps.Keys(params)) {
		values := params[name]
		info, ok := LookupOption(name)
		if !ok {
			return Options{}, fmt.Errorf("unknown option %q", name)
		}
		if info.Locked {
			return Options{}, fmt.Errorf("option %q cannot be overridden", info.Key)
		}
		raw := ""
		if len(values) > 0 {
			raw = values[len(values)-1]
		}
		value, err := info.ParseValue(raw)
		if err != nil {
			return Options{}, err
		}
		opts.Set(info.Key, value)
	}
	return opts, nil
}
