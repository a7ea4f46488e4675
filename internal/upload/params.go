package upload

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

// ParamLocation is where a projected parameter is attached to the
// initialization request.
type ParamLocation int

const (
	// ParamQuery attaches the parameter to the request's query string.
	ParamQuery ParamLocation = iota
	// ParamPath substitutes the parameter into a "{name}" placeholder in the path.
	ParamPath
)

// Param is one declared parameter binding, resolved once at
// initialization-request construction. Value may be any type; it is
// stringified with an invariant (locale-independent) conversion.
type Param struct {
	Name     string
	Location ParamLocation
	Value    any
}

// stringify converts a parameter value to its wire string using an
// invariant, locale-independent conversion for numeric types — never
// fmt.Sprintf("%v") directly on floats, which is locale-stable in Go but we
// spell it out explicitly since other runtimes in this protocol family are
// not.
func stringify(v any) (string, bool) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return "", false
	}

	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return "", false
		}

		return stringify(rv.Elem().Interface())
	case reflect.String:
		return rv.String(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), true
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	default:
		return fmt.Sprintf("%v", v), true
	}
}

// projectParams applies each bound Param with a non-nil Value to the
// given path (substituting "{name}" placeholders) and query values.
// Unrecognized path placeholders are left as-is; callers own providing one
// Param per placeholder they use.
func projectParams(path string, params []Param) (string, url.Values) {
	query := url.Values{}

	for _, p := range params {
		s, ok := stringify(p.Value)
		if !ok {
			continue
		}

		switch p.Location {
		case ParamPath:
			path = strings.ReplaceAll(path, "{"+p.Name+"}", url.PathEscape(s))
		case ParamQuery:
			query.Set(p.Name, s)
		}
	}

	return path, query
}

// structTagParams enumerates declarative parameter bindings on a
// pointer-to-struct metadata value via `resumeup:"query,name=foo"` /
// `resumeup:"path,name=foo"` struct tags, mirroring the registration-builder
// path above for callers who prefer declarative binding. A bare
// `resumeup:"query"` (no explicit name=) lowercases the Go field name.
func structTagParams(metadata any) []Param {
	if metadata == nil {
		return nil
	}

	v := reflect.ValueOf(metadata)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}

		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return nil
	}

	t := v.Type()

	var params []Param

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		tag, ok := field.Tag.Lookup("resumeup")
		if !ok {
			continue
		}

		parts := strings.Split(tag, ",")
		if len(parts) == 0 {
			continue
		}

		loc := ParamQuery
		if parts[0] == "path" {
			loc = ParamPath
		}

		name := strings.ToLower(field.Name)

		for _, opt := range parts[1:] {
			if n, found := strings.CutPrefix(opt, "name="); found {
				name = n
			}
		}

		fv := v.Field(i)
		if !fv.CanInterface() {
			continue
		}

		params = append(params, Param{Name: name, Location: loc, Value: fv.Interface()})
	}

	return params
}
