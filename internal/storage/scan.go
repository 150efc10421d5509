package storage

import (
	"fmt"
	"time"

	"pennywise/internal/core"
)

// dbTime scans a timestamp stored either natively (Postgres) or as RFC 3339
// text (SQLite).
type dbTime struct {
	Time time.Time
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("scan timestamp: unsupported type %T", src)
	}
}

func (t *dbTime) parse(s string) error {
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("scan timestamp: %w", err)
	}
	t.Time = parsed.UTC()
	return nil
}

// dbDate scans a calendar day. Valid is false for NULL.
type dbDate struct {
	Date  core.Date
	Valid bool
}

func (d *dbDate) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Date, d.Valid = core.Date{}, false
		return nil
	case time.Time:
		d.Date, d.Valid = core.NewDate(v.Year(), int(v.Month()), v.Day()), true
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("scan date: unsupported type %T", src)
	}
}

func (d *dbDate) parse(s string) error {
	parsed, err := core.ParseDate(s)
	if err != nil {
		return fmt.Errorf("scan date: %w", err)
	}
	d.Date, d.Valid = parsed, true
	return nil
}

// ptr returns nil for a NULL date.
func (d dbDate) ptr() *core.Date {
	if !d.Valid {
		return nil
	}
	day := d.Date
	return &day
}
