package booking

import (
	"time"

	"github.com/Jereck/tarot-time/internal/domain/schedule"
	"github.com/Jereck/tarot-time/internal/platform/calendar"
	"github.com/Jereck/tarot-time/internal/platform/zonedtime"
)

type window struct {
	start, end time.Time
}

func (w window) contains(start, end time.Time) bool {
	return !start.Before(w.start) && !end.After(w.end)
}

// Resolve returns the candidates at which a session of duration fits inside
// one of the schedule's windows without overlapping any busy interval.
//
// Weekday and calendar date are taken in loc, the owner's zone, and each
// block is converted to absolute instants on that date. Windows are a union:
// a candidate must fit wholly inside one of them. Busy intervals are
// half-open, so a session may end exactly when one starts.
//
// A nil schedule yields no candidates. The result is never nil and preserves
// the input order.
func Resolve(candidates []time.Time, duration time.Duration, sched *schedule.Schedule, loc *time.Location, busy []calendar.BusyInterval) []time.Time {
	out := make([]time.Time, 0, len(candidates))
	if sched == nil || loc == nil || duration <= 0 {
		return out
	}

	windows := make(map[zonedtime.Date][]window)
	for _, t := range candidates {
		end := t.Add(duration)

		day, _, date := zonedtime.Localize(t, loc)
		ws, ok := windows[date]
		if !ok {
			ws = windowsOn(sched, day, date, loc)
			windows[date] = ws
		}

		if fits(t, end, ws) && free(t, end, busy) {
			out = append(out, t)
		}
	}
	return out
}

func windowsOn(sched *schedule.Schedule, day zonedtime.DayOfWeek, date zonedtime.Date, loc *time.Location) []window {
	blocks := sched.BlocksFor(day)
	ws := make([]window, 0, len(blocks))
	for _, b := range blocks {
		ws = append(ws, window{
			start: zonedtime.ToInstant(date, b.StartTime, loc),
			end:   zonedtime.ToInstant(date, b.EndTime, loc),
		})
	}
	return ws
}

func fits(start, end time.Time, ws []window) bool {
	for _, w := range ws {
		if w.contains(start, end) {
			return true
		}
	}
	return false
}

func free(start, end time.Time, busy []calendar.BusyInterval) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return false
		}
	}
	return true
}

// span returns [min(candidates), max(candidates)+duration), the single range
// that covers every candidate's session.
func span(candidates []time.Time, duration time.Duration) (time.Time, time.Time) {
	lo, hi := candidates[0], candidates[0]
	for _, t := range candidates[1:] {
		if t.Before(lo) {
			lo = t
		}
		if t.After(hi) {
			hi = t
		}
	}
	return lo, hi.Add(duration)
}

// Candidates lists the instants on a step grid in [from, to). The first is
// from rounded up to the grid.
func Candidates(from, to time.Time, step time.Duration) []time.Time {
	if step <= 0 || !to.After(from) {
		return nil
	}
	t := from.Truncate(step)
	if t.Before(from) {
		t = t.Add(step)
	}
	var out []time.Time
	for ; t.Before(to) && len(out) < MaxCandidates; t = t.Add(step) {
		out = append(out, t.UTC())
	}
	return out
}
