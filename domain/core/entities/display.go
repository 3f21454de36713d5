package entities

import (
	"strings"
)

// DisplayName joins the non-empty first and last names, falling back to the
// legacy name.
func DisplayName(p Person) string {
	if joined := joinNonEmpty(p.FirstName, p.LastName); joined != "" {
		return joined
	}
	return p.Name
}

// SearchText is the string matched by person search: first, last and legacy
// name joined by spaces.
func SearchText(p Person) string {
	return joinNonEmpty(p.FirstName, p.LastName, p.Name)
}

// FormatDisplayDates renders the life span shown under a node, using only the
// year part of each date.
func FormatDisplayDates(birthISO, deathISO string) string {
	if birthISO == "" && deathISO == "" {
		return ""
	}
	birthYear := yearOf(birthISO)
	deathYear := yearOf(deathISO)

	switch {
	case birthYear != "" && deathYear != "":
		return birthYear + " — " + deathYear
	case birthYear != "":
		return birthYear
	default:
		return "† " + deathYear
	}
}

func yearOf(iso string) string {
	year, _, _ := strings.Cut(iso, "-")
	return year
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, part := range parts {
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, " ")
}
