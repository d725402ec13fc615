package wkhtmltopdf

import (
	"fmt"
	"iter"
	"reflect"
)

// Option is a single converter flag and its value.
type Option struct {
	Key   string
	Value any
}

// Options is an ordered set of converter flags.
// Keys are unique and keep the position of their first insertion.
// The zero value is an empty set ready to use.
type Options struct {
	items []Option
	index map[string]int
}

// NewOptions creates an option set from key/value pairs in the given order.
func NewOptions(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		o.Set(opt.Key, opt.Value)
	}
	return o
}

// Set adds or replaces a flag. Replacing keeps the original position.
// Value must be a bool, a string or a number; anything else panics.
func (o *Options) Set(key string, value any) {
	if !isSupportedValue(value) {
		panic(fmt.Sprintf("wkhtmltopdf: unsupported value %T for option %q", value, key))
	}
	if o.index == nil {
		o.index = make(map[string]int)
	}
	if i, exists := o.index[key]; exists {
		o.items[i].Value = value
		return
	}
	o.index[key] = len(o.items)
	o.items = append(o.items, Option{Key: key, Value: value})
}

// Get returns the value stored for key.
func (o Options) Get(key string) (any, bool) {
	i, exists := o.index[key]
	if !exists {
		return nil, false
	}
	return o.items[i].Value, true
}

// Len returns the number of flags.
func (o Options) Len() int {
	return len(o.items)
}

// All iterates the flags in insertion order.
func (o Options) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, opt := range o.items {
			if !yield(opt.Key, opt.Value) {
				return
			}
		}
	}
}

// Clone returns an independent copy.
func (o Options) Clone() Options {
	var c Options
	for _, opt := range o.items {
		c.Set(opt.Key, opt.Value)
	}
	return c
}

// Merge returns a copy of o with every flag of overrides applied on top.
func (o Options) Merge(overrides Options) Options {
	merged := o.Clone()
	for key, value := range overrides.All() {
		merged.Set(key, value)
	}
	return merged
}

func isSupportedValue(value any) bool {
	if value == nil {
		return false
	}
	switch reflect.TypeOf(value).Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
