// Package recurrence parses repeat rules (a subset of RFC 5545 RRULE) and computes
// the start of a recurring task's next instance.
package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Type says what the next instance is measured from.
type Type string

const (
	// Scheduled follows the rule's calendar, anchored at the task's start (or due) date.
	Scheduled Type = "scheduled"
	// AfterCompletion counts the interval from the moment the task was completed.
	AfterCompletion Type = "after_completion"
)

var ErrInvalidRule = errors.New("invalid repeat rule")

// ParseType accepts "scheduled" and "after_completion" (or "after-completion").
// An empty string means Scheduled.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "scheduled":
		return Scheduled, nil
	case "after_completion", "after-completion", "aftercompletion":
		return AfterCompletion, nil
	}
	return "", fmt.Errorf("%w: unknown repeat type %q", ErrInvalidRule, s)
}

type Frequency string

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Yearly  Frequency = "YEARLY"
)

func (f Frequency) unit(n int) string {
	var u string
	switch f {
	case Daily:
		u = "day"
	case Weekly:
		u = "week"
	case Monthly:
		u = "month"
	default:
		u = "year"
	}
	if n == 1 {
		return u
	}
	return u + "s"
}

type Rule struct {
	Freq     Frequency
	Interval int
	// ByDay applies to weekly rules, Monday first.
	ByDay      []time.Weekday
	ByMonthDay *int
	ByMonth    *int
	ByHour     *int
	ByMinute   *int
}

var dayCodes = []struct {
	code string
	day  time.Weekday
}{
	{"MO", time.Monday}, {"TU", time.Tuesday}, {"WE", time.Wednesday}, {"TH", time.Thursday},
	{"FR", time.Friday}, {"SA", time.Saturday}, {"SU", time.Sunday},
}

func dayCode(d time.Weekday) string {
	for _, c := range dayCodes {
		if c.day == d {
			return c.code
		}
	}
	return ""
}

// mondayFirst maps Sunday to 6 so weekdays sort Monday..Sunday.
func mondayFirst(d time.Weekday) int { return (int(d) + 6) % 7 }

// Parse reads "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE" style rules. An "RRULE:" prefix
// is allowed, keys are case-insensitive and unknown keys are ignored. The bare words
// daily, weekly, monthly and yearly are shorthand for FREQ with interval 1.
func Parse(s string) (Rule, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "RRULE:"), "rrule:")
	if s == "" {
		return Rule{}, fmt.Errorf("%w: empty", ErrInvalidRule)
	}
	if !strings.Contains(s, "=") {
		s = "FREQ=" + s
	}

	r := Rule{Interval: 1}
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return Rule{}, fmt.Errorf("%w: %q is not KEY=VALUE", ErrInvalidRule, part)
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		val = strings.ToUpper(strings.TrimSpace(val))
		var err error
		switch key {
		case "FREQ":
			switch f := Frequency(val); f {
			case Daily, Weekly, Monthly, Yearly:
				r.Freq = f
			default:
				return Rule{}, fmt.Errorf("%w: unsupported FREQ %q", ErrInvalidRule, val)
			}
		case "INTERVAL":
			r.Interval, err = number(key, val, 1, 999)
		case "BYDAY":
			r.ByDay, err = parseDays(val)
		case "BYMONTHDAY":
			r.ByMonthDay, err = optNumber(key, val, 1, 31)
		case "BYMONTH":
			r.ByMonth, err = optNumber(key, val, 1, 12)
		case "BYHOUR":
			r.ByHour, err = optNumber(key, val, 0, 23)
		case "BYMINUTE":
			r.ByMinute, err = optNumber(key, val, 0, 59)
		}
		if err != nil {
			return Rule{}, err
		}
	}
	if r.Freq == "" {
		return Rule{}, fmt.Errorf("%w: FREQ is required", ErrInvalidRule)
	}
	return r, nil
}

func number(key, val string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(val)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("%w: %s must be between %d and %d, got %q", ErrInvalidRule, key, lo, hi, val)
	}
	return n, nil
}

func optNumber(key, val string, lo, hi int) (*int, error) {
	n, err := number(key, val, lo, hi)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func parseDays(val string) ([]time.Weekday, error) {
	seen := map[time.Weekday]bool{}
	var out []time.Weekday
	for _, code := range strings.Split(val, ",") {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		found := false
		for _, c := range dayCodes {
			if c.code == code {
				found = true
				if !seen[c.day] {
					seen[c.day] = true
					out = append(out, c.day)
				}
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: unknown BYDAY %q", ErrInvalidRule, code)
		}
	}
	sort.Slice(out, func(i, j int) bool { return mondayFirst(out[i]) < mondayFirst(out[j]) })
	return out, nil
}

// String renders the canonical form stored on tasks. Parts that do not apply to the
// frequency are left out.
func (r Rule) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "FREQ=%s;INTERVAL=%d", r.Freq, r.interval())
	if r.Freq == Weekly && len(r.ByDay) > 0 {
		codes := make([]string, 0, len(r.ByDay))
		for _, d := range r.ByDay {
			codes = append(codes, dayCode(d))
		}
		b.WriteString(";BYDAY=" + strings.Join(codes, ","))
	}
	if (r.Freq == Monthly || r.Freq == Yearly) && r.ByMonthDay != nil {
		fmt.Fprintf(&b, ";BYMONTHDAY=%d", *r.ByMonthDay)
	}
	if r.Freq == Yearly && r.ByMonth != nil {
		fmt.Fprintf(&b, ";BYMONTH=%d", *r.ByMonth)
	}
	if r.ByHour != nil {
		fmt.Fprintf(&b, ";BYHOUR=%d;BYMINUTE=%d", *r.ByHour, r.minute())
	}
	return b.String()
}

func (r Rule) interval() int {
	if r.Interval < 1 {
		return 1
	}
	return r.Interval
}

func (r Rule) minute() int {
	if r.ByMinute == nil {
		return 0
	}
	return *r.ByMinute
}

// Summary describes the rule in words, e.g. "Every 2 weeks (MO,WE) at 9 AM".
func (r Rule) Summary() string {
	n := r.interval()
	out := "Every " + r.Freq.unit(1)
	if n != 1 {
		out = fmt.Sprintf("Every %d %s", n, r.Freq.unit(n))
	}
	if r.Freq == Weekly && len(r.ByDay) > 0 {
		codes := make([]string, 0, len(r.ByDay))
		for _, d := range r.ByDay {
			codes = append(codes, dayCode(d))
		}
		out += " (" + strings.Join(codes, ",") + ")"
	}
	switch {
	case r.Freq == Yearly && r.ByMonth != nil:
		month := time.Month(*r.ByMonth).String()[:3]
		if r.ByMonthDay != nil {
			out += fmt.Sprintf(" on %s %d", month, *r.ByMonthDay)
		} else {
			out += " in " + month
		}
	case (r.Freq == Yearly || r.Freq == Monthly) && r.ByMonthDay != nil:
		out += " on the " + ordinal(*r.ByMonthDay)
	}
	if r.ByHour != nil {
		out += " at " + clock(*r.ByHour, r.minute())
	}
	return out
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%10 == 1 && n%100 != 11:
		suffix = "st"
	case n%10 == 2 && n%100 != 12:
		suffix = "nd"
	case n%10 == 3 && n%100 != 13:
		suffix = "rd"
	}
	return strconv.Itoa(n) + suffix
}

func clock(h, m int) string {
	ampm := "AM"
	if h >= 12 {
		ampm = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	if m == 0 {
		return fmt.Sprintf("%d %s", h12, ampm)
	}
	return fmt.Sprintf("%d:%02d %s", h12, m, ampm)
}

// Next returns the start of the instance that follows one completed at now.
//
// Scheduled rules are anchored at start, else due, else now, in now's location, and
// yield the first occurrence strictly after now. AfterCompletion rules add the
// interval to now, counting a month as 30 days and a year as 365.
func Next(typ Type, r Rule, start, due *time.Time, now time.Time) (time.Time, error) {
	n := r.interval()
	switch typ {
	case AfterCompletion:
		switch r.Freq {
		case Daily:
			return now.AddDate(0, 0, n), nil
		case Weekly:
			return now.AddDate(0, 0, 7*n), nil
		case Monthly:
			return now.AddDate(0, 0, 30*n), nil
		default:
			return now.AddDate(0, 0, 365*n), nil
		}
	case Scheduled, "":
	default:
		return time.Time{}, fmt.Errorf("%w: unknown repeat type %q", ErrInvalidRule, typ)
	}

	anchor := now
	switch {
	case start != nil:
		anchor = *start
	case due != nil:
		anchor = *due
	}
	opt, err := r.option(anchor.In(now.Location()))
	if err != nil {
		return time.Time{}, err
	}
	rr, err := rrule.NewRRule(opt)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	next := rr.After(now, false)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("%w: %s has no occurrence after %s", ErrInvalidRule, r, now.Format(time.RFC3339))
	}
	return next, nil
}

func (r Rule) option(dtstart time.Time) (rrule.ROption, error) {
	opt := rrule.ROption{Dtstart: dtstart, Interval: r.interval()}
	switch r.Freq {
	case Daily:
		opt.Freq = rrule.DAILY
	case Weekly:
		opt.Freq = rrule.WEEKLY
	case Monthly:
		opt.Freq = rrule.MONTHLY
	case Yearly:
		opt.Freq = rrule.YEARLY
	default:
		return opt, fmt.Errorf("%w: unsupported FREQ %q", ErrInvalidRule, r.Freq)
	}
	if r.Freq == Weekly {
		for _, d := range r.ByDay {
			opt.Byweekday = append(opt.Byweekday, rruleDay(d))
		}
	}
	if (r.Freq == Monthly || r.Freq == Yearly) && r.ByMonthDay != nil {
		opt.Bymonthday = []int{*r.ByMonthDay}
	}
	if r.Freq == Yearly && r.ByMonth != nil {
		opt.Bymonth = []int{*r.ByMonth}
	}
	if r.ByHour != nil {
		opt.Byhour = []int{*r.ByHour}
		opt.Byminute = []int{r.minute()}
		opt.Bysecond = []int{0}
	}
	return opt, nil
}

func rruleDay(d time.Weekday) rrule.Weekday {
	switch d {
	case time.Monday:
		return rrule.MO
	case time.Tuesday:
		return rrule.TU
	case time.Wednesday:
		return rrule.WE
	case time.Thursday:
		return rrule.TH
	case time.Friday:
		return rrule.FR
	case time.Saturday:
		return rrule.SA
	}
	return rrule.SU
}
