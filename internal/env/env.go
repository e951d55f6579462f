// Package env fills configuration structs from DAYPLAN_* environment
// variables. Fields name their variable with an `env` tag; untagged struct
// fields are descended into. Unset variables leave the field untouched, so
// callers apply defaults after loading.
package env

import (
	"fmt"
	"iter"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Validator is implemented by config sections that check themselves once
// loaded.
type Validator interface {
	Validate() error
}

// ErrInvalidValue reports a variable whose text does not parse into its field.
type ErrInvalidValue struct {
	Field  string
	EnvVar string
	Value  string
	Err    error
}

func (e ErrInvalidValue) Error() string {
	return fmt.Sprintf("%s: cannot use %q for %s: %v", e.EnvVar, e.Value, e.Field, e.Err)
}

func (e ErrInvalidValue) Unwrap() error { return e.Err }

// ErrNotStructPointer is returned when Load is given anything but *struct.
type ErrNotStructPointer struct {
	Type string
}

func (e ErrNotStructPointer) Error() string {
	return "env: want pointer to struct, got " + e.Type
}

// ErrUnsupportedType is returned for a tagged field no decoder handles.
type ErrUnsupportedType struct {
	Kind string
}

func (e ErrUnsupportedType) Error() string {
	return "env: no decoder for " + e.Kind
}

// decoder parses raw variable text into dst.
type decoder func(dst reflect.Value, raw string) error

var (
	durationType = reflect.TypeFor[time.Duration]()
	timeType     = reflect.TypeFor[time.Time]()
)

// byType wins over byKind, so time.Duration is not read as a plain int64.
var byType = map[reflect.Type]decoder{
	durationType: func(dst reflect.Value, raw string) error {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		dst.SetInt(int64(d))
		return nil
	},
}

var byKind = map[reflect.Kind]decoder{
	reflect.String: func(dst reflect.Value, raw string) error {
		dst.SetString(raw)
		return nil
	},
	reflect.Bool: func(dst reflect.Value, raw string) error {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		dst.SetBool(b)
		return nil
	},
	reflect.Int:   decodeInt,
	reflect.Int8:  decodeInt,
	reflect.Int16: decodeInt,
	reflect.Int32: decodeInt,
	reflect.Int64: decodeInt,
	reflect.Slice: decodeList,
}

func decodeInt(dst reflect.Value, raw string) error {
	n, err := strconv.ParseInt(raw, 10, dst.Type().Bits())
	if err != nil {
		return err
	}
	dst.SetInt(n)
	return nil
}

// decodeList splits on commas and drops blank entries, so
// DAYPLAN_PUSH_SEGMENTS="All, Active Users," yields two segments.
func decodeList(dst reflect.Value, raw string) error {
	if dst.Type().Elem().Kind() != reflect.String {
		return ErrUnsupportedType{Kind: dst.Type().String()}
	}
	var items []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	dst.Set(reflect.ValueOf(items).Convert(dst.Type()))
	return nil
}

func decoderFor(t reflect.Type) (decoder, bool) {
	if d, ok := byType[t]; ok {
		return d, true
	}
	d, ok := byKind[t.Kind()]
	return d, ok
}

// Load fills the struct v points to, then runs Validate on every nested
// section and finally on v itself when they implement Validator.
func Load(v any) error {
	root := reflect.ValueOf(v)
	if root.Kind() != reflect.Pointer || root.Elem().Kind() != reflect.Struct {
		return ErrNotStructPointer{Type: fmt.Sprintf("%T", v)}
	}
	if err := load(root.Elem()); err != nil {
		return err
	}
	return validate(root)
}

func load(section reflect.Value) error {
	for field, dst := range settable(section) {
		if dst.Kind() == reflect.Struct && dst.Type() != timeType {
			if err := load(dst); err != nil {
				return err
			}
			if err := validate(dst.Addr()); err != nil {
				return err
			}
			continue
		}

		name := field.Tag.Get("env")
		if name == "" {
			continue
		}
		raw, ok := os.LookupEnv(name)
		if !ok {
			continue
		}

		decode, ok := decoderFor(dst.Type())
		if !ok {
			return ErrUnsupportedType{Kind: dst.Kind().String()}
		}
		if err := decode(dst, raw); err != nil {
			if _, unsupported := err.(ErrUnsupportedType); unsupported {
				return err
			}
			return ErrInvalidValue{Field: field.Name, EnvVar: name, Value: raw, Err: err}
		}
	}
	return nil
}

// settable yields the exported fields of section.
func settable(section reflect.Value) iter.Seq2[reflect.StructField, reflect.Value] {
	return func(yield func(reflect.StructField, reflect.Value) bool) {
		t := section.Type()
		for i := range t.NumField() {
			dst := section.Field(i)
			if !dst.CanSet() {
				continue
			}
			if !yield(t.Field(i), dst) {
				return
			}
		}
	}
}

func validate(ptr reflect.Value) error {
	if v, ok := ptr.Interface().(Validator); ok {
		return v.Validate()
	}
	return nil
}
