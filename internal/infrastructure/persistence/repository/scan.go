package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/tutoring-backoffice/internal/domain/entity"
)

// Calendar dates are stored as YYYY-MM-DD text so that equality lookups do not
// depend on the driver's timestamp formatting.
const dateLayout = time.DateOnly

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func nullableDate(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatDate(*t)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

func parseNullableDate(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullableFloat(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, entity.ErrNotFound)
}
