package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type hexID string

func (h hexID) Hex() string { return string(h) }

func TestDocumentText(t *testing.T) {
	doc := Document{
		"material": "gravel",
		"empty":    "",
		"zero":     0,
		"zeroF":    0.0,
		"falsy":    false,
		"truthy":   true,
		"quantity": 20,
		"ratio":    2.5,
		"null":     nil,
		"id":       hexID("65f0c0ffee"),
	}

	tests := []struct {
		field string
		want  string
	}{
		{"material", "gravel"},
		{"empty", ""},
		{"zero", ""},
		{"zeroF", ""},
		{"falsy", ""},
		{"truthy", "true"},
		{"quantity", "20"},
		{"ratio", "2.5"},
		{"null", ""},
		{"missing", ""},
		{"id", "65f0c0ffee"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, doc.Text(tt.field))
		})
	}
}

func TestDocumentValue_NilDocument(t *testing.T) {
	var doc Document
	v, ok := doc.Value("status")
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "false", Stringify(false))
	assert.Equal(t, "42", Stringify(int32(42)))
	assert.Equal(t, "42", Stringify(int64(42)))
	assert.Equal(t, "0.5", Stringify(float32(0.5)))
	assert.Equal(t, "[a b]", Stringify([]string{"a", "b"}))
}

func TestSameValue(t *testing.T) {
	tests := []struct {
		name string
		a    interface{}
		aok  bool
		b    interface{}
		bok  bool
		want bool
	}{
		{"both absent", nil, false, nil, false, true},
		{"absent vs present", nil, false, "pending", true, false},
		{"equal strings", "loaded", true, "loaded", true, true},
		{"different strings", "loaded", true, "inTransit", true, false},
		{"numbers across widths", int32(3), true, float64(3), true, true},
		{"number vs string", 3, true, "3", true, false},
		{"bools", true, true, true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SameValue(tt.a, tt.aok, tt.b, tt.bok))
		})
	}
}
