// Package zonedtime converts between absolute instants and wall-clock
// (date, time-of-day) pairs in an IANA time zone.
//
// Conversions from wall clock to instant follow a fixed daylight-saving
// policy: a wall time that occurs twice resolves to the earlier instant, and
// a wall time skipped by a spring-forward transition is moved forward by the
// length of the gap.
package zonedtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidTimeOfDay = errors.New("invalid time of day")
	ErrInvalidDay       = errors.New("invalid day of week")
	ErrInvalidZone      = errors.New("invalid time zone")
	ErrInvalidDate      = errors.New("invalid date")
)

// DayOfWeek is a lower-case English weekday name.
type DayOfWeek string

const (
	Monday    DayOfWeek = "monday"
	Tuesday   DayOfWeek = "tuesday"
	Wednesday DayOfWeek = "wednesday"
	Thursday  DayOfWeek = "thursday"
	Friday    DayOfWeek = "friday"
	Saturday  DayOfWeek = "saturday"
	Sunday    DayOfWeek = "sunday"
)

// DaysInOrder lists the week starting on Monday.
var DaysInOrder = []DayOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var fromWeekday = map[time.Weekday]DayOfWeek{
	time.Monday:    Monday,
	time.Tuesday:   Tuesday,
	time.Wednesday: Wednesday,
	time.Thursday:  Thursday,
	time.Friday:    Friday,
	time.Saturday:  Saturday,
	time.Sunday:    Sunday,
}

// DayOf maps a time.Weekday to its DayOfWeek.
func DayOf(w time.Weekday) DayOfWeek {
	return fromWeekday[w]
}

// ParseDay accepts any capitalisation of an English weekday name.
func ParseDay(s string) (DayOfWeek, error) {
	d := DayOfWeek(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidDay, s)
	}
	return d, nil
}

func (d DayOfWeek) Valid() bool {
	return d.Index() >= 0
}

// Index returns the position of d in DaysInOrder, or -1.
func (d DayOfWeek) Index() int {
	for i, day := range DaysInOrder {
		if day == d {
			return i
		}
	}
	return -1
}

// TimeOfDay is a wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// EndOfDay is midnight at the close of a day. It is only meaningful as the
// end of a range.
var EndOfDay = TimeOfDay{Hour: 24}

// ParseTimeOfDay parses "H:MM" or "HH:MM" in 24-hour form. "24:00" parses
// as EndOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(h) < 1 || len(h) > 2 || len(m) != 2 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	t := TimeOfDay{Hour: hour, Minute: minute}
	if !t.Valid() && !t.IsEndOfDay() {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	return t, nil
}

// MustParseTimeOfDay is ParseTimeOfDay for literals; it panics on error.
func MustParseTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// FromMinutes is the inverse of TimeOfDay.Minutes.
func FromMinutes(m int) TimeOfDay {
	return TimeOfDay{Hour: m / 60, Minute: m % 60}
}

// Valid reports whether t is a time within a day, 00:00 through 23:59.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

func (t TimeOfDay) IsEndOfDay() bool {
	return t == EndOfDay
}

// ValidEnd is Valid extended to accept EndOfDay.
func (t TimeOfDay) ValidEnd() bool {
	return t.Valid() || t.IsEndOfDay()
}

// Minutes returns the number of minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) Before(o TimeOfDay) bool {
	return t.Minutes() < o.Minutes()
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Date is a calendar date without a zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	t := time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// WallClock is a date plus time of day with no zone attached.
type WallClock struct {
	Date Date
	Time TimeOfDay
}

// WallClockLayout is the wire layout accepted by ParseWallClock.
const WallClockLayout = "2006-01-02T15:04"

// ParseWallClock parses "YYYY-MM-DDTHH:MM". Seconds and a zone suffix are
// rejected: the zone is always supplied separately.
func ParseWallClock(s string) (WallClock, error) {
	t, err := time.Parse(WallClockLayout, s)
	if err != nil {
		return WallClock{}, fmt.Errorf("invalid wall clock %q: %w", s, err)
	}
	return WallClock{
		Date: Date{Year: t.Year(), Month: t.Month(), Day: t.Day()},
		Time: TimeOfDay{Hour: t.Hour(), Minute: t.Minute()},
	}, nil
}

func (w WallClock) String() string {
	return w.Date.String() + "T" + w.Time.String()
}

// LoadLocation resolves an IANA zone name. The empty name and "Local" are
// rejected so results never depend on the host's zone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidZone, name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidZone, name, err)
	}
	return loc, nil
}

// Localize returns the weekday, time of day and calendar date of instant as
// observed in loc. Seconds are truncated.
func Localize(instant time.Time, loc *time.Location) (DayOfWeek, TimeOfDay, Date) {
	local := instant.In(loc)
	return DayOf(local.Weekday()),
		TimeOfDay{Hour: local.Hour(), Minute: local.Minute()},
		Date{Year: local.Year(), Month: local.Month(), Day: local.Day()}
}

// ToInstant returns the instant at which the wall clock in loc reads
// (date, tod).
//
// A repeated wall time resolves to the earlier of its two instants. A skipped
// wall time is interpreted with the offset in force before the transition,
// which lands it gap-length later on the wall clock (02:30 becomes 03:30 on a
// one-hour spring-forward). EndOfDay resolves to midnight of the next date.
func ToInstant(date Date, tod TimeOfDay, loc *time.Location) time.Time {
	// The wall clock read as if it were UTC; subtracting an offset yields a
	// candidate instant.
	naive := time.Date(date.Year, date.Month, date.Day, tod.Hour, tod.Minute, 0, 0, time.UTC)

	before := offsetAt(naive.Add(-24*time.Hour), loc)
	after := offsetAt(naive.Add(24*time.Hour), loc)

	var valid []time.Time
	for _, off := range uniqueOffsets(before, after) {
		inst := naive.Add(-time.Duration(off) * time.Second)
		if offsetAt(inst, loc) == off {
			valid = append(valid, inst)
		}
	}

	switch len(valid) {
	case 0:
		return naive.Add(-time.Duration(before) * time.Second).In(loc)
	case 1:
		return valid[0].In(loc)
	default:
		earliest := valid[0]
		for _, v := range valid[1:] {
			if v.Before(earliest) {
				earliest = v
			}
		}
		return earliest.In(loc)
	}
}

// InstantOf is ToInstant for a WallClock.
func InstantOf(w WallClock, loc *time.Location) time.Time {
	return ToInstant(w.Date, w.Time, loc)
}

func offsetAt(t time.Time, loc *time.Location) int {
	_, off := t.In(loc).Zone()
	return off
}

func uniqueOffsets(a, b int) []int {
	if a == b {
		return []int{a}
	}
	return []int{a, b}
}
