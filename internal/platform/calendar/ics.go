package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/rs/zerolog"
	"github.com/teambition/rrule-go"
)

const maxOccurrencesPerEvent = 5000

// ICS derives busy time from published iCalendar feeds. Each owner may have
// several feed URLs. Feeds are fetched with conditional GETs and the last
// good body is reused on 304.
type ICS struct {
	feeds     map[string][]string
	allDayLoc *time.Location
	client    *http.Client
	logger    zerolog.Logger

	mu    sync.Mutex
	cache map[string]feedCache
}

type feedCache struct {
	etag         string
	lastModified string
	body         []byte
}

// NewICS builds the provider. All-day events are busy for the whole day in
// allDayLoc (UTC when nil).
func NewICS(feeds map[string][]string, allDayLoc *time.Location, client *http.Client, logger zerolog.Logger) *ICS {
	if allDayLoc == nil {
		allDayLoc = time.UTC
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &ICS{
		feeds:     feeds,
		allDayLoc: allDayLoc,
		client:    client,
		logger:    logger,
		cache:     make(map[string]feedCache),
	}
}

// ParseFeeds reads a whitespace or comma separated list of owner=url pairs.
// An owner may appear more than once.
func ParseFeeds(s string) (map[string][]string, error) {
	feeds := make(map[string][]string)
	for _, pair := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	}) {
		owner, url, ok := strings.Cut(pair, "=")
		if !ok || owner == "" || url == "" {
			return nil, fmt.Errorf("invalid feed entry %q: want owner=url", pair)
		}
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return nil, fmt.Errorf("invalid feed entry %q: url must be http(s)", pair)
		}
		feeds[owner] = append(feeds[owner], url)
	}
	return feeds, nil
}

func (p *ICS) BusyIntervals(ctx context.Context, ownerID string, start, end time.Time) ([]BusyInterval, error) {
	if !end.After(start) {
		return nil, ErrInvalidSpan
	}
	var out []BusyInterval
	for _, url := range p.feeds[ownerID] {
		body, err := p.fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		events, err := parseFeed(body, p.allDayLoc)
		if err != nil {
			return nil, fmt.Errorf("parse feed %s: %w", redactURL(url), err)
		}
		out = append(out, expandBusy(events, start, end)...)
	}
	return out, nil
}

func (p *ICS) fetch(ctx context.Context, url string) ([]byte, error) {
	p.mu.Lock()
	cached, hasCache := p.cache[url]
	p.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar")
	if hasCache {
		if cached.etag != "" {
			req.Header.Set("If-None-Match", cached.etag)
		}
		if cached.lastModified != "" {
			req.Header.Set("If-Modified-Since", cached.lastModified)
		}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", redactURL(url), err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read feed %s: %w", redactURL(url), err)
		}
		p.mu.Lock()
		p.cache[url] = feedCache{
			etag:         resp.Header.Get("ETag"),
			lastModified: resp.Header.Get("Last-Modified"),
			body:         body,
		}
		p.mu.Unlock()
		return body, nil
	case http.StatusNotModified:
		if !hasCache {
			return nil, fmt.Errorf("fetch feed %s: 304 without cached body", redactURL(url))
		}
		p.logger.Debug().Str("url", redactURL(url)).Msg("ics feed not modified")
		return cached.body, nil
	default:
		return nil, fmt.Errorf("fetch feed %s: unexpected status %d", redactURL(url), resp.StatusCode)
	}
}

type feedEvent struct {
	uid        string
	start      time.Time
	end        time.Time
	allDay     bool
	rrule      string
	exdates    []time.Time
	recurrence *time.Time
	cancelled  bool
}

func parseFeed(body []byte, allDayLoc *time.Location) ([]feedEvent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty ICS body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var out []feedEvent
	for _, ve := range cal.Events() {
		ev, ok := parseVEvent(ve, allDayLoc)
		if ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

// parseVEvent returns false for events that never block time.
func parseVEvent(ve *ical.VEvent, allDayLoc *time.Location) (feedEvent, bool) {
	var ev feedEvent
	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		ev.uid = p.Value
	}
	if p := ve.GetProperty("TRANSP"); p != nil && strings.EqualFold(p.Value, "TRANSPARENT") {
		return ev, false
	}
	if p := ve.GetProperty("STATUS"); p != nil && strings.EqualFold(p.Value, "CANCELLED") {
		ev.cancelled = true
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return ev, false
	}
	ev.allDay = isDateValue(dtStart)

	if ev.allDay {
		start, err := parseICSTime(dtStart.Value, "", allDayLoc)
		if err != nil {
			return ev, false
		}
		ev.start = start
		ev.end = start.AddDate(0, 0, 1)
		if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
			if end, err := parseICSTime(dtEnd.Value, "", allDayLoc); err == nil && end.After(start) {
				ev.end = end
			}
		}
	} else {
		start, err := ve.GetStartAt()
		if err != nil {
			return ev, false
		}
		ev.start = start
		ev.end = start
		if end, err := ve.GetEndAt(); err == nil && end.After(start) {
			ev.end = end
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		ev.rrule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		tzid := paramValue(p.ICalParameters, "TZID")
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, tzid, ev.start.Location()); err == nil {
				ev.exdates = append(ev.exdates, t)
			}
		}
	}

	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if t, err := parseICSTime(p.Value, paramValue(p.ICalParameters, "TZID"), ev.start.Location()); err == nil {
			ev.recurrence = &t
		}
	}

	if ev.cancelled && ev.recurrence == nil {
		return ev, false
	}
	return ev, true
}

// expandBusy turns parsed events into busy intervals intersecting
// [start, end). Overrides (RECURRENCE-ID) replace the instance they name and
// cancelled overrides remove it.
func expandBusy(events []feedEvent, start, end time.Time) []BusyInterval {
	overridden := make(map[string]map[int64]bool)
	var out []BusyInterval

	for _, ev := range events {
		if ev.recurrence == nil {
			continue
		}
		if overridden[ev.uid] == nil {
			overridden[ev.uid] = make(map[int64]bool)
		}
		overridden[ev.uid][ev.recurrence.Unix()] = true
		if !ev.cancelled {
			appendIfOverlaps(&out, ev.start, ev.end, start, end)
		}
	}

	for _, ev := range events {
		if ev.recurrence != nil {
			continue
		}
		if ev.rrule == "" {
			appendIfOverlaps(&out, ev.start, ev.end, start, end)
			continue
		}

		r, err := rrule.StrToRRule(ev.rrule)
		if err != nil {
			// An unparseable rule still blocks its first instance.
			appendIfOverlaps(&out, ev.start, ev.end, start, end)
			continue
		}
		r.DTStart(ev.start)

		var set rrule.Set
		set.RRule(r)
		for _, ex := range ev.exdates {
			set.ExDate(ex.In(ev.start.Location()))
		}

		dur := ev.end.Sub(ev.start)
		// Instances that began before the window can still run into it.
		occs := set.Between(start.Add(-dur).In(ev.start.Location()), end.In(ev.start.Location()), true)
		if len(occs) > maxOccurrencesPerEvent {
			occs = occs[:maxOccurrencesPerEvent]
		}
		for _, occ := range occs {
			if overridden[ev.uid][occ.Unix()] {
				continue
			}
			occEnd := occ.Add(dur)
			if ev.allDay {
				occEnd = occ.AddDate(0, 0, int(dur.Hours()/24+0.5))
			}
			appendIfOverlaps(&out, occ, occEnd, start, end)
		}
	}
	return out
}

func appendIfOverlaps(out *[]BusyInterval, s, e, rangeStart, rangeEnd time.Time) {
	b := BusyInterval{Start: s, End: e}
	if e.After(s) && b.Overlaps(rangeStart, rangeEnd) {
		*out = append(*out, b)
	}
}

func isDateValue(p *ical.IANAProperty) bool {
	if strings.EqualFold(paramValue(p.ICalParameters, "VALUE"), "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func paramValue(params map[string][]string, key string) string {
	if vs, ok := params[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// parseICSTime parses DATE, floating DATE-TIME and UTC DATE-TIME values.
// Floating values are read in tzid when given, else in fallback.
func parseICSTime(v, tzid string, fallback *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	loc := fallback
	if tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	switch {
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}

// redactURL drops the query string, which often carries a private token.
func redactURL(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i] + "?…"
	}
	return u
}
