package binder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"
)

// MaxBodySize caps JSON and form bodies.
const MaxBodySize = 1 << 20

// Func binds request data into v, which must be a pointer to a struct.
type Func func(r *http.Request, v any) error

// Form binds an application/x-www-form-urlencoded body. Query string values
// are not considered.
func Form() Func {
	return func(r *http.Request, v any) error {
		if err := requireMediaType(r, "application/x-www-form-urlencoded"); err != nil {
			return err
		}
		r.Body = http.MaxBytesReader(nil, r.Body, MaxBodySize)
		if err := r.ParseForm(); err != nil {
			return fmt.Errorf("%w: %v", ErrFailedToParseForm, err)
		}
		return bind(v, "form", r.PostForm, ErrFailedToParseForm)
	}
}

func Query() Func {
	return func(r *http.Request, v any) error {
		return bind(v, "query", r.URL.Query(), ErrFailedToParseQuery)
	}
}

// JSON decodes exactly one JSON object and rejects unknown fields.
func JSON() Func {
	return func(r *http.Request, v any) error {
		if err := requireMediaType(r, "application/json"); err != nil {
			return err
		}

		dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodySize))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: empty body", ErrFailedToParseJSON)
			}
			return fmt.Errorf("%w: %v", ErrFailedToParseJSON, err)
		}
		if dec.More() {
			return fmt.Errorf("%w: unexpected data after JSON object", ErrFailedToParseJSON)
		}
		return nil
	}
}

func requireMediaType(r *http.Request, want string) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return fmt.Errorf("%w: expected %s", ErrMissingContentType, want)
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil || mediaType != want {
		return fmt.Errorf("%w: got %q, expected %s", ErrUnsupportedMediaType, ct, want)
	}
	return nil
}

func bind(v any, tag string, values map[string][]string, bindErr error) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: target must be a non-nil pointer to struct", bindErr)
	}
	rv = rv.Elem()
	rt := rv.Type()

	for i := range rv.NumField() {
		field := rv.Field(i)
		if !field.CanSet() {
			continue
		}

		name := rt.Field(i).Tag.Get(tag)
		switch {
		case name == "-":
			continue
		case name == "":
			name = strings.ToLower(rt.Field(i).Name)
		default:
			name, _, _ = strings.Cut(name, ",")
		}

		vals := values[name]
		if len(vals) == 0 {
			continue
		}
		if err := setField(field, vals); err != nil {
			return fmt.Errorf("%w: field %s: %v", bindErr, name, err)
		}
	}
	return nil
}

func setField(field reflect.Value, vals []string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(vals[0])
	case reflect.Bool:
		switch strings.ToLower(vals[0]) {
		case "on", "yes":
			field.SetBool(true)
			return nil
		case "off", "no", "":
			field.SetBool(false)
			return nil
		}
		b, err := strconv.ParseBool(vals[0])
		if err != nil {
			return fmt.Errorf("invalid bool value %q", vals[0])
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(vals[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid int value %q", vals[0])
		}
		field.SetInt(n)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		field.Set(reflect.ValueOf(append([]string(nil), vals...)))
	default:
		return fmt.Errorf("unsupported type %s", field.Kind())
	}
	return nil
}
