package period

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// Reporting calendar defaults: a Monday to Friday posting cadence.
const (
	DefaultRule          = "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR"
	DefaultReportingDays = 5
)

// Calendar expands a recurrence rule over a week to count the days on which
// a daily post is expected.
type Calendar struct {
	rule string
	opt  rrule.ROption
}

// NewCalendar parses an RFC 5545 RRULE. An empty rule selects DefaultRule.
func NewCalendar(rule string) (*Calendar, error) {
	if rule == "" {
		rule = DefaultRule
	}
	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return nil, fmt.Errorf("parse reporting rule %q: %w", rule, err)
	}
	c := &Calendar{rule: rule, opt: *opt}
	if _, err := c.expand(Of(time.Now())); err != nil {
		return nil, fmt.Errorf("reporting rule %q: %w", rule, err)
	}
	return c, nil
}

// Rule returns the rule the calendar was built from.
func (c *Calendar) Rule() string {
	return c.rule
}

// ReportingDays counts rule occurrences inside the week.
func (c *Calendar) ReportingDays(w Week) int {
	if c == nil {
		return DefaultReportingDays
	}
	days, err := c.expand(w)
	if err != nil {
		return DefaultReportingDays
	}
	return len(days)
}

func (c *Calendar) expand(w Week) ([]time.Time, error) {
	opt := c.opt
	opt.Dtstart = w.Start()
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, err
	}
	return r.Between(w.Start(), w.End().Add(-time.Second), true), nil
}
