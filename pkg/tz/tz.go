package tz

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// Layout is the wall-clock format admins use for opening times.
const Layout = "2006-01-02 15:04"

// Amsterdam is the Europe/Amsterdam location (CET/CEST with automatic DST).
var Amsterdam *time.Location

func init() {
	var err error
	Amsterdam, err = time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		panic("tz: load Europe/Amsterdam: " + err.Error())
	}
}

// Load returns the named location, falling back to Amsterdam for "".
func Load(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return Amsterdam, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("tz: load %s: %w", name, err)
	}
	return loc, nil
}

// ParseLocal parses a "YYYY-MM-DD HH:MM" wall-clock time in loc.
func ParseLocal(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = Amsterdam
	}
	t, err := time.ParseInLocation(Layout, strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date/time %q, expected YYYY-MM-DD HH:MM", value)
	}
	return t, nil
}

// Format renders t as "DD-MM HH:MM" in loc.
func Format(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = Amsterdam
	}
	return t.In(loc).Format("02-01 15:04")
}
