// Package slot holds the hour-slot arithmetic shared by the ground catalog and
// the booking calendar: parsing wall-clock times, subdividing availability
// windows into bookable hours, and calendar-day handling.
package slot

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/apperror"
)

const (
	// ClockLayout is the 24-hour wall-clock format used for windows and slots.
	ClockLayout = "15:04"
	// DateLayout is the calendar-day format used for bookings.
	DateLayout = "2006-01-02"
	// Minutes is the length of every bookable slot.
	Minutes = 60

	endOfDay = 24 * 60
)

var (
	ErrInvalidAvailability = apperror.New(http.StatusUnprocessableEntity, "INVALID_AVAILABILITY", "availability window start must be before its end")
	ErrOverlappingWindows  = apperror.New(http.StatusUnprocessableEntity, "INVALID_AVAILABILITY", "availability windows must not overlap")
	ErrInvalidSlot         = apperror.New(http.StatusBadRequest, "INVALID_SLOT", "invalid slot")
	ErrInvalidDate         = apperror.New(http.StatusBadRequest, "INVALID_DATE", "invalid date")
)

// Window is one availability interval of a ground, e.g. {"06:00", "12:00"}.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Slot is one bookable hour. Two slots are equal iff Start and End match.
type Slot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (s Slot) String() string {
	return s.Start + "-" + s.End
}

// ParseClock converts "HH:mm" into minutes since midnight. "24:00" is accepted
// as a closing time.
func ParseClock(v string) (int, error) {
	if len(v) != 5 || v[2] != ':' {
		return 0, fmt.Errorf("malformed time %q", v)
	}
	h, err := strconv.Atoi(v[:2])
	if err != nil {
		return 0, fmt.Errorf("malformed time %q", v)
	}
	m, err := strconv.Atoi(v[3:])
	if err != nil {
		return 0, fmt.Errorf("malformed time %q", v)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("time out of range %q", v)
	}
	return h*60 + m, nil
}

// FormatClock is the inverse of ParseClock.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Normalize validates s as a well-formed one-hour slot and returns it in
// canonical form.
func Normalize(s Slot) (Slot, error) {
	start, err := ParseClock(s.Start)
	if err != nil {
		return Slot{}, ErrInvalidSlot
	}
	end, err := ParseClock(s.End)
	if err != nil {
		return Slot{}, ErrInvalidSlot
	}
	if end-start != Minutes {
		return Slot{}, ErrInvalidSlot
	}
	return Slot{Start: FormatClock(start), End: FormatClock(end)}, nil
}

// DeriveSlots walks every window in 60-minute steps and returns the resulting
// slots ordered by start time. A trailing partial hour is dropped, never
// rounded. Duplicate slots from overlapping windows appear once.
func DeriveSlots(windows []Window) ([]Slot, error) {
	seen := make(map[int]struct{})
	var starts []int

	for _, w := range windows {
		start, end, err := parseWindow(w)
		if err != nil {
			return nil, err
		}
		for t := start; t+Minutes <= end; t += Minutes {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			starts = append(starts, t)
		}
	}

	sort.Ints(starts)
	slots := make([]Slot, 0, len(starts))
	for _, t := range starts {
		slots = append(slots, Slot{Start: FormatClock(t), End: FormatClock(t + Minutes)})
	}
	return slots, nil
}

// ValidateWindows applies the catalog rules to an availability template:
// every window is well formed with start < end, and no two windows overlap.
func ValidateWindows(windows []Window) error {
	type span struct{ start, end int }
	spans := make([]span, 0, len(windows))
	for _, w := range windows {
		start, end, err := parseWindow(w)
		if err != nil {
			return err
		}
		spans = append(spans, span{start, end})
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	for i := 1; i < len(spans); i++ {
		if spans[i].start < spans[i-1].end {
			return ErrOverlappingWindows
		}
	}
	return nil
}

func parseWindow(w Window) (int, int, error) {
	start, err := ParseClock(w.Start)
	if err != nil {
		return 0, 0, ErrInvalidAvailability.WithMessage("malformed availability window "+w.Start+"-"+w.End, err)
	}
	end, err := ParseClock(w.End)
	if err != nil {
		return 0, 0, ErrInvalidAvailability.WithMessage("malformed availability window "+w.Start+"-"+w.End, err)
	}
	if start >= end {
		return 0, 0, ErrInvalidAvailability
	}
	return start, end, nil
}

// Contains reports whether s is an element of set.
func Contains(set []Slot, s Slot) bool {
	for _, x := range set {
		if x == s {
			return true
		}
	}
	return false
}

// Intersect returns the elements of a that also appear in b, in a's order.
func Intersect(a, b []Slot) []Slot {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	index := make(map[Slot]struct{}, len(b))
	for _, s := range b {
		index[s] = struct{}{}
	}
	var out []Slot
	for _, s := range a {
		if _, ok := index[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Sort orders slots by start time in place.
func Sort(slots []Slot) {
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start < slots[j].Start })
}

// ParseDate parses a YYYY-MM-DD calendar day into a UTC midnight value.
func ParseDate(v string) (time.Time, error) {
	d, err := time.Parse(DateLayout, v)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// FormatDate renders a calendar day as YYYY-MM-DD.
func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

// Today returns the calendar day of now in loc as a UTC midnight value,
// comparable with values returned by ParseDate.
func Today(now time.Time, loc *time.Location) time.Time {
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StartsAt returns the instant s begins on the given day in loc.
func StartsAt(day time.Time, s Slot, loc *time.Location) (time.Time, error) {
	start, err := ParseClock(s.Start)
	if err != nil {
		return time.Time{}, ErrInvalidSlot
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).Add(time.Duration(start) * time.Minute), nil
}
