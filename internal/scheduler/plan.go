// Package scheduler runs one serialized worker per account and decides when
// each worker pulls its next job.
//
// A schedule is a list of times of day in a time zone. In fixed mode every
// configured time is a slot. In randomized mode the slots of a day are a
// reproducible pseudorandom pick of the configured times, seeded by the
// account name and the calendar date, so restarts on the same day plan the
// same slots.
package scheduler

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"studiocast/internal/config"
)

const searchDays = 8

// TimeOfDay is an hour and minute.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay parses HH:MM.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: want HH:MM", value)
	}
	return TimeOfDay{Hour: parsed.Hour(), Minute: parsed.Minute()}, nil
}

// Schedule is the daily slot plan of one account.
type Schedule struct {
	Times        []TimeOfDay
	Randomize    bool
	DailyUploads int
	Location     *time.Location
}

// FromConfig converts a config schedule.
func FromConfig(s config.Schedule) (Schedule, error) {
	out := Schedule{
		Randomize:    s.Randomize,
		DailyUploads: s.DailyUploads,
		Location:     s.Location(),
	}
	for _, raw := range s.Times {
		tod, err := ParseTimeOfDay(raw)
		if err != nil {
			return Schedule{}, err
		}
		out.Times = append(out.Times, tod)
	}
	sort.Slice(out.Times, func(i, j int) bool { return out.Times[i].less(out.Times[j]) })
	return out, nil
}

func (t TimeOfDay) less(o TimeOfDay) bool {
	if t.Hour != o.Hour {
		return t.Hour < o.Hour
	}
	return t.Minute < o.Minute
}

func (s Schedule) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// Plan returns the slots of the calendar day containing date, in order.
func (s Schedule) Plan(account string, date time.Time) []time.Time {
	if len(s.Times) == 0 {
		return nil
	}
	loc := s.location()
	local := date.In(loc)
	y, m, d := local.Date()

	times := s.Times
	if s.Randomize {
		times = s.pick(account, local)
	}
	slots := make([]time.Time, 0, len(times))
	for _, tod := range times {
		slots = append(slots, time.Date(y, m, d, tod.Hour, tod.Minute, 0, 0, loc))
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })
	return slots
}

// pick permutes the configured times with a generator seeded by account and
// day and keeps DailyUploads of them (all when zero).
func (s Schedule) pick(account string, day time.Time) []TimeOfDay {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(account)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(day.Format("2006-01-02")))
	seed := h.Sum64()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	n := len(s.Times)
	if s.DailyUploads > 0 && s.DailyUploads < n {
		n = s.DailyUploads
	}
	out := make([]TimeOfDay, 0, n)
	for _, idx := range rng.Perm(len(s.Times))[:n] {
		out = append(out, s.Times[idx])
	}
	return out
}

// Next returns the earliest slot strictly after after. The boolean is false
// when the schedule has no slots.
func (s Schedule) Next(account string, after time.Time) (time.Time, bool) {
	if len(s.Times) == 0 {
		return time.Time{}, false
	}
	local := after.In(s.location())
	y, m, d := local.Date()
	for offset := 0; offset < searchDays; offset++ {
		day := time.Date(y, m, d+offset, 12, 0, 0, 0, s.location())
		for _, slot := range s.Plan(account, day) {
			if slot.After(after) {
				return slot, true
			}
		}
	}
	return time.Time{}, false
}
