package schedule

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Jereck/tarot-time/internal/platform/zonedtime"
)

// Availability is one recurring weekly window, in the owner's zone.
type Availability struct {
	DayOfWeek zonedtime.DayOfWeek `json:"day_of_week"`
	StartTime zonedtime.TimeOfDay `json:"start_time"`
	EndTime   zonedtime.TimeOfDay `json:"end_time"`
}

// Schedule is an owner's weekly availability profile. There is at most one
// per owner.
type Schedule struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	OwnerID        string         `db:"owner_id" json:"owner_id"`
	Timezone       string         `db:"timezone" json:"timezone"`
	Availabilities []Availability `json:"availabilities"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// Location loads the schedule's IANA zone.
func (s *Schedule) Location() (*time.Location, error) {
	return zonedtime.LoadLocation(s.Timezone)
}

// BlocksFor returns the windows for one weekday.
func (s *Schedule) BlocksFor(day zonedtime.DayOfWeek) []Availability {
	var out []Availability
	for _, a := range s.Availabilities {
		if a.DayOfWeek == day {
			out = append(out, a)
		}
	}
	return out
}

// SortAvailabilities orders blocks by weekday (Monday first) then start.
func SortAvailabilities(blocks []Availability) {
	sort.SliceStable(blocks, func(i, j int) bool {
		di, dj := blocks[i].DayOfWeek.Index(), blocks[j].DayOfWeek.Index()
		if di != dj {
			return di < dj
		}
		if blocks[i].StartTime != blocks[j].StartTime {
			return blocks[i].StartTime.Before(blocks[j].StartTime)
		}
		return blocks[i].EndTime.Before(blocks[j].EndTime)
	})
}
