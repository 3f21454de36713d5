package entities

import (
	"time"
)

// MaxParents is the number of parents a person can record.
const MaxParents = 2

// Normalize repairs a raw record into a valid Person using the current time
// for a missing creation timestamp. It never fails.
func Normalize(raw PartialPerson) Person {
	return NormalizeAt(raw, time.Now())
}

// NormalizeAt is Normalize with an explicit clock.
func NormalizeAt(raw PartialPerson, now time.Time) Person {
	p := Person{
		ID:           raw.ID,
		LastName:     raw.LastName,
		Name:         raw.Name,
		BirthDateISO: raw.BirthDateISO,
		DeathDateISO: raw.DeathDateISO,
		Comment:      raw.Comment,
		PhotoURI:     raw.PhotoURI,
	}

	switch {
	case raw.FirstName != nil:
		p.FirstName = *raw.FirstName
	default:
		p.FirstName = raw.Name
	}

	p.ParentIDs = append([]string{}, raw.ParentIDs...)
	if len(p.ParentIDs) > MaxParents {
		p.ParentIDs = p.ParentIDs[:MaxParents]
	}
	p.SpouseIDs = dedupeIDs(raw.SpouseIDs)

	if raw.CreatedAt != nil {
		p.CreatedAt = *raw.CreatedAt
	} else {
		p.CreatedAt = now.UnixMilli()
	}

	return p
}

func dedupeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
