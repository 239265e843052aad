package history

import (
	"github.com/rickb777/date"

	"github.com/transit-history/ingestor/internal/gtfs"
)

// ServiceDates maps each service id to its explicit active dates, expanded
// from the weekly recurring rules.
type ServiceDates struct {
	// Dates holds the sorted active dates per service. A service with no
	// recurring rule (or a rule with no active weekday) maps to nil; it
	// may still operate via explicit exceptions.
	Dates map[string][]date.Date

	// First holds the earliest active date per service, present only for
	// services with at least one active date.
	First map[string]date.Date
}

// ExpandCalendar turns the snapshot's weekly rules into explicit per-service
// date lists for every service referenced by the given trips.
func ExpandCalendar(rules []gtfs.Calendar, trips []gtfs.Trip, diags *Diagnostics) ServiceDates {
	byService := make(map[string]gtfs.Calendar, len(rules))
	for _, rule := range rules {
		byService[rule.ServiceID] = rule
	}

	out := ServiceDates{
		Dates: make(map[string][]date.Date),
		First: make(map[string]date.Date),
	}

	for _, trip := range trips {
		if _, done := out.Dates[trip.ServiceID]; done {
			continue
		}

		rule, ok := byService[trip.ServiceID]
		if !ok {
			// No weekly rule; the service may still appear through
			// calendar exceptions.
			out.Dates[trip.ServiceID] = nil
			continue
		}

		dates := expandRule(rule)
		out.Dates[trip.ServiceID] = dates
		if len(dates) > 0 {
			out.First[trip.ServiceID] = dates[0]
		} else {
			diags.EmptyWeekdayServices = append(diags.EmptyWeekdayServices, trip.ServiceID)
			diags.warnf("service %s has a weekly rule with no active weekday", trip.ServiceID)
		}
	}

	return out
}

// expandRule lists every date in the rule's inclusive range that falls on
// an active weekday, ascending.
func expandRule(rule gtfs.Calendar) []date.Date {
	active := false
	for _, on := range rule.Weekdays {
		if on {
			active = true
			break
		}
	}
	if !active || rule.EndDate.Before(rule.StartDate) {
		return nil
	}

	var dates []date.Date
	for d := rule.StartDate; !d.After(rule.EndDate); d = d.Add(1) {
		if rule.ActiveOn(d.Weekday()) {
			dates = append(dates, d)
		}
	}
	return dates
}
