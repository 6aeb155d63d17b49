package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// BusinessZone is the fixed UTC-03:00 offset the gym operates in.
// Calendar days (for the one-check-in-per-day rule) and the wall-clock
// times shown to members are both taken in this zone.
var BusinessZone = time.FixedZone("UTC-3", -3*60*60)

// DateTimeLayout is the wire format for activity and check-in times:
// dd-MM-yyyy HH:mm.
const DateTimeLayout = "02-01-2006 15:04"

// DateLayout is the wire format for calendar dates such as a birth date.
const DateLayout = "2006-01-02"

// inputLayouts are tried in order when decoding a DateTime. Layouts without
// a zone are read in BusinessZone.
var inputLayouts = []string{
	DateTimeLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// DateTime is a point in time that travels over JSON as "dd-MM-yyyy HH:mm".
//
// EMBEDDING time.Time:
// Embedding gives DateTime all of time.Time's methods (Before, After,
// IsZero, ...) for free. We only override the JSON methods.
type DateTime struct {
	time.Time
}

// NewDateTime wraps t.
func NewDateTime(t time.Time) DateTime {
	return DateTime{Time: t}
}

// ParseDateTime parses any of the accepted input layouts.
func ParseDateTime(s string) (DateTime, error) {
	s = strings.TrimSpace(s)
	for _, layout := range inputLayouts {
		if t, err := time.ParseInLocation(layout, s, BusinessZone); err == nil {
			return DateTime{Time: t}, nil
		}
	}
	return DateTime{}, fmt.Errorf("invalid date-time %q: expected format dd-MM-yyyy HH:mm", s)
}

// MarshalJSON renders the time in BusinessZone. A zero value becomes null.
func (d DateTime) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.In(BusinessZone).Format(DateTimeLayout))
}

// UnmarshalJSON accepts null, "" or any of the input layouts.
func (d *DateTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = DateTime{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date-time must be a string: %w", err)
	}
	if s == "" {
		*d = DateTime{}
		return nil
	}
	parsed, err := ParseDateTime(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Date is a calendar date with no time of day, encoded as "yyyy-MM-dd".
type Date struct {
	time.Time
}

// ParseDate parses a "yyyy-MM-dd" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected format yyyy-MM-dd", s)
	}
	return Date{Time: t}, nil
}

// String formats the date as "yyyy-MM-dd".
func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// StartOfDay returns midnight of t's calendar day in BusinessZone.
func StartOfDay(t time.Time) time.Time {
	y, m, day := t.In(BusinessZone).Date()
	return time.Date(y, m, day, 0, 0, 0, 0, BusinessZone)
}
