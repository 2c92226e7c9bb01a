package zonedtime

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := LoadLocation(name)
	if err != nil {
		t.Fatalf("load %s: %v", name, err)
	}
	return loc
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"9:00", TimeOfDay{9, 0}, false},
		{"09:00", TimeOfDay{9, 0}, false},
		{"23:59", TimeOfDay{23, 59}, false},
		{"0:05", TimeOfDay{0, 5}, false},
		{"24:00", EndOfDay, false},
		{"24:01", TimeOfDay{}, true},
		{"12:60", TimeOfDay{}, true},
		{"9", TimeOfDay{}, true},
		{"9:0", TimeOfDay{}, true},
		{"ab:cd", TimeOfDay{}, true},
		{"", TimeOfDay{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTimeOfDay) {
					t.Fatalf("expected ErrInvalidTimeOfDay, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestTimeOfDay_JSON(t *testing.T) {
	var tod TimeOfDay
	if err := json.Unmarshal([]byte(`"9:30"`), &tod); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	b, err := json.Marshal(tod)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"09:30"` {
		t.Errorf("expected \"09:30\", got %s", b)
	}
	if err := json.Unmarshal([]byte(`"25:00"`), &tod); err == nil {
		t.Error("expected error for 25:00")
	}
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("Monday")
	if err != nil || d != Monday {
		t.Fatalf("expected monday, got %q (%v)", d, err)
	}
	if _, err := ParseDay("funday"); !errors.Is(err, ErrInvalidDay) {
		t.Errorf("expected ErrInvalidDay, got %v", err)
	}
	if Sunday.Index() != 6 || Monday.Index() != 0 {
		t.Error("unexpected day ordering")
	}
}

func TestLoadLocation_RejectsHostZone(t *testing.T) {
	for _, name := range []string{"", "Local", "Mars/Olympus"} {
		if _, err := LoadLocation(name); !errors.Is(err, ErrInvalidZone) {
			t.Errorf("%q: expected ErrInvalidZone, got %v", name, err)
		}
	}
}

func TestLocalize_UsesZoneNotUTC(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	// Tuesday 03:30 UTC is still Monday evening in New York.
	instant := time.Date(2024, 3, 12, 3, 30, 0, 0, time.UTC)

	day, tod, date := Localize(instant, ny)
	if day != Monday {
		t.Errorf("expected monday, got %s", day)
	}
	if tod != (TimeOfDay{23, 30}) {
		t.Errorf("expected 23:30, got %s", tod)
	}
	if date != (Date{2024, time.March, 11}) {
		t.Errorf("expected 2024-03-11, got %s", date)
	}
}

func TestToInstant_Regular(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	got := ToInstant(Date{2024, time.March, 11}, TimeOfDay{9, 0}, ny)
	want := time.Date(2024, 3, 11, 13, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got.UTC())
	}
}

func TestToInstant_EndOfDay(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	got := ToInstant(Date{2024, time.March, 11}, EndOfDay, ny)
	want := time.Date(2024, 3, 12, 4, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got.UTC())
	}
	if EndOfDay.Valid() {
		t.Error("24:00 is not a time within a day")
	}
	if !EndOfDay.ValidEnd() || EndOfDay.Minutes() != 1440 {
		t.Errorf("expected 24:00 to be a valid end at minute 1440, got %d", EndOfDay.Minutes())
	}
	if FromMinutes(1440) != EndOfDay {
		t.Errorf("expected FromMinutes(1440) to be 24:00, got %s", FromMinutes(1440))
	}
}

func TestToInstant_AmbiguousPicksEarlier(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	// 01:30 happens twice on 2024-11-03: first at EDT (-4), then at EST (-5).
	got := ToInstant(Date{2024, time.November, 3}, TimeOfDay{1, 30}, ny)
	want := time.Date(2024, 11, 3, 5, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got.UTC())
	}
}

func TestToInstant_NonexistentSkipsForward(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	// 02:30 does not exist on 2024-03-10.
	got := ToInstant(Date{2024, time.March, 10}, TimeOfDay{2, 30}, ny)
	want := time.Date(2024, 3, 10, 7, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got.UTC())
	}
	_, tod, _ := Localize(got, ny)
	if tod != (TimeOfDay{3, 30}) {
		t.Errorf("expected local 03:30, got %s", tod)
	}
}

func TestToInstant_AroundTransitions(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	tests := []struct {
		name string
		date Date
		tod  TimeOfDay
		want time.Time
	}{
		{"before spring gap", Date{2024, time.March, 10}, TimeOfDay{1, 59}, time.Date(2024, 3, 10, 6, 59, 0, 0, time.UTC)},
		{"after spring gap", Date{2024, time.March, 10}, TimeOfDay{3, 0}, time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC)},
		{"day after spring", Date{2024, time.March, 11}, TimeOfDay{1, 0}, time.Date(2024, 3, 11, 5, 0, 0, 0, time.UTC)},
		{"after fall overlap", Date{2024, time.November, 3}, TimeOfDay{2, 0}, time.Date(2024, 11, 3, 7, 0, 0, 0, time.UTC)},
		{"before fall overlap", Date{2024, time.November, 3}, TimeOfDay{0, 59}, time.Date(2024, 11, 3, 4, 59, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToInstant(tt.date, tt.tod, ny)
			if !got.Equal(tt.want) {
				t.Errorf("expected %s, got %s", tt.want, got.UTC())
			}
		})
	}
}

func TestToInstant_RoundTrip(t *testing.T) {
	zones := []string{"America/New_York", "Europe/London", "Asia/Kolkata", "Australia/Lord_Howe", "Pacific/Chatham", "UTC"}
	start := Date{2024, time.January, 1}
	for _, name := range zones {
		loc := mustLoad(t, name)
		for i := 0; i < 366; i += 7 {
			d := start.AddDays(i)
			for _, tod := range []TimeOfDay{{0, 0}, {9, 15}, {12, 0}, {17, 45}, {23, 59}} {
				inst := ToInstant(d, tod, loc)
				_, gotTod, gotDate := Localize(inst, loc)
				if gotDate != d || gotTod != tod {
					t.Errorf("%s %s %s: round trip gave %s %s", name, d, tod, gotDate, gotTod)
				}
			}
		}
	}
}

func TestParseWallClock(t *testing.T) {
	w, err := ParseWallClock("2024-03-11T09:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Date != (Date{2024, time.March, 11}) || w.Time != (TimeOfDay{9, 30}) {
		t.Errorf("unexpected wall clock %s", w)
	}
	if w.String() != "2024-03-11T09:30" {
		t.Errorf("unexpected string %s", w.String())
	}
	for _, bad := range []string{"2024-03-11", "2024-03-11T09:30:00Z", "11/03/2024 09:30"} {
		if _, err := ParseWallClock(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

func TestDate_AddDays(t *testing.T) {
	d := Date{2024, time.February, 28}.AddDays(2)
	if d != (Date{2024, time.March, 1}) {
		t.Errorf("expected 2024-03-01, got %s", d)
	}
	if _, err := ParseDate("2024-02-30"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
}
