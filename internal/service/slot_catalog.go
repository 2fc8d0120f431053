package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/tutor-api/internal/models"
	"github.com/noah-isme/tutor-api/pkg/config"
)

// SlotCatalog knows the daily slot grid and what "today" means for bookings.
type SlotCatalog struct {
	slots []string
	index map[string]int
	loc   *time.Location
	now   func() time.Time
}

// NewSlotCatalog validates the configured grid and timezone.
func NewSlotCatalog(cfg config.BookingConfig) (*SlotCatalog, error) {
	slots := cfg.TimeSlots
	if len(slots) == 0 {
		slots = config.DefaultTimeSlots
	}
	index := make(map[string]int, len(slots))
	for i, s := range slots {
		if _, err := time.Parse("15:04", s); err != nil {
			return nil, fmt.Errorf("invalid time slot %q: %w", s, err)
		}
		if _, dup := index[s]; dup {
			return nil, fmt.Errorf("duplicate time slot %q", s)
		}
		index[s] = i
	}
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
		}
		loc = l
	}
	return &SlotCatalog{slots: append([]string(nil), slots...), index: index, loc: loc, now: time.Now}, nil
}

// Slots returns a copy of the grid in display order.
func (c *SlotCatalog) Slots() []string {
	return append([]string(nil), c.slots...)
}

// Valid reports whether slot belongs to the grid.
func (c *SlotCatalog) Valid(slot string) bool {
	_, ok := c.index[slot]
	return ok
}

// Today returns the current date in the booking timezone.
func (c *SlotCatalog) Today() string {
	return c.now().In(c.loc).Format(models.DateLayout)
}

// ParseDate checks the YYYY-MM-DD layout.
func (c *SlotCatalog) ParseDate(raw string) (time.Time, error) {
	return time.ParseInLocation(models.DateLayout, raw, c.loc)
}

// IsPast reports whether date lies before today. Dates compare lexically in
// the fixed layout.
func (c *SlotCatalog) IsPast(date string) bool {
	return date < c.Today()
}

// AddDays shifts a date by n days.
func (c *SlotCatalog) AddDays(date string, n int) string {
	t, err := c.ParseDate(date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, n).Format(models.DateLayout)
}

// Sort orders slots by the grid position.
func (c *SlotCatalog) Sort(slots []string) {
	sort.SliceStable(slots, func(i, j int) bool { return c.index[slots[i]] < c.index[slots[j]] })
}
