// internal/models/document.go
package models

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// Document is a schemaless snapshot of a stored record, keyed by field name.
type Document map[string]interface{}

// Value returns the raw field value. A field holding nil counts as absent.
func (d Document) Value(field string) (interface{}, bool) {
	if d == nil {
		return nil, false
	}
	v, ok := d[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Text returns the stringified field when it is truthy and "" otherwise.
// Falsy values are: absent, nil, false, empty string and numeric zero.
func (d Document) Text(field string) string {
	v, ok := d.Value(field)
	if !ok || !truthy(v) {
		return ""
	}
	return Stringify(v)
}

// Stringify renders a document value the way it must travel in a push data payload.
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case interface{ Hex() string }:
		return t.Hex()
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// SameValue compares two field values with strict-equality semantics:
// both absent is equal, absent vs present is not, numbers compare by value
// regardless of their width.
func SameValue(a interface{}, aok bool, b interface{}, bok bool) bool {
	if !aok || !bok {
		return aok == bok
	}
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum || bNum {
		return aNum && bNum && af == bf
	}
	return reflect.DeepEqual(a, b)
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	}
	if f, ok := toFloat(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return true
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}
