package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name   string
		person Person
		want   string
	}{
		{"first and last", Person{FirstName: "Ann", LastName: "Lee"}, "Ann Lee"},
		{"first only", Person{FirstName: "Ann"}, "Ann"},
		{"last only", Person{LastName: "Lee"}, "Lee"},
		{"legacy fallback", Person{Name: "Old Name"}, "Old Name"},
		{"legacy ignored when first set", Person{FirstName: "Ann", Name: "Old"}, "Ann"},
		{"nothing", Person{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.person))
		})
	}
}

func TestSearchText(t *testing.T) {
	assert.Equal(t, "Ann Lee Nan", SearchText(Person{FirstName: "Ann", LastName: "Lee", Name: "Nan"}))
	assert.Equal(t, "Nan", SearchText(Person{Name: "Nan"}))
}

func TestFormatDisplayDates(t *testing.T) {
	tests := []struct {
		name         string
		birth, death string
		want         string
	}{
		{"both", "1980-01-15", "2020-12-31", "1980 — 2020"},
		{"birth only", "1980-01-15", "", "1980"},
		{"death only", "", "2020-12-31", "† 2020"},
		{"neither", "", "", ""},
		{"year only input", "1901", "", "1901"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDisplayDates(tt.birth, tt.death))
		})
	}
}
