// Package ics renders an owner's items as an iCalendar feed.
package ics

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/rezkam/dayplan/internal/domain"
)

// Default export settings.
const (
	DefaultProductID     = "-//dayplan//Agenda Export//EN"
	DefaultEventDuration = time.Hour
)

const (
	localTimestamp = "20060102T150405"
	utcTimestamp   = "20060102T150405Z"
)

// Custom properties carrying what VEVENT has no field for.
const (
	PropertyKind   ical.ComponentProperty = "X-DAYPLAN-KIND"
	PropertyStatus ical.ComponentProperty = "X-DAYPLAN-STATUS"
)

// Options configures an export.
type Options struct {
	// Location interprets item dates and clock times. Defaults to UTC.
	Location *time.Location
	// ProductID is written as PRODID.
	ProductID string
	// Now stamps DTSTAMP. Defaults to time.Now.
	Now time.Time
	// EventDuration is the length given to timed entries, which only carry a start.
	EventDuration time.Duration
}

func (o *Options) applyDefaults() {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.ProductID == "" {
		o.ProductID = DefaultProductID
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.EventDuration <= 0 {
		o.EventDuration = DefaultEventDuration
	}
}

// Encode builds the calendar for items.
//
// Tasks become one-day entries, timed when they have a clock time. Events span
// their date range; a timed event lasting several days is a single VEVENT
// repeated daily until its end date, at the same wall-clock time in
// opts.Location.
func Encode(items []domain.Item, opts Options) (string, error) {
	opts.applyDefaults()

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(opts.ProductID)
	if tzid := zoneID(opts.Location); tzid != "" {
		cal.SetXWRTimezone(tzid)
	}

	for _, item := range items {
		if err := addItem(cal, item, opts); err != nil {
			return "", fmt.Errorf("item %s: %w", item.ID, err)
		}
	}
	return cal.Serialize(), nil
}

// Write encodes items to w.
func Write(w io.Writer, items []domain.Item, opts Options) error {
	body, err := Encode(items, opts)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, body)
	return err
}

func addItem(cal *ical.Calendar, item domain.Item, opts Options) error {
	event := cal.AddEvent(item.ID + "@dayplan")
	event.SetDtStampTime(opts.Now.UTC())
	if !item.CreatedAt.IsZero() {
		event.SetCreatedTime(item.CreatedAt.UTC())
	}
	if !item.UpdatedAt.IsZero() {
		event.SetModifiedAt(item.UpdatedAt.UTC())
	}
	event.SetSummary(item.Title)
	if item.Description != "" {
		event.SetDescription(item.Description)
	}
	event.SetProperty(PropertyKind, string(item.Kind))
	if item.IsTask() {
		event.SetProperty(PropertyStatus, string(item.Status))
	}

	first, last := item.FirstDate(), item.LastDate()

	if item.Time.IsZero() {
		event.SetAllDayStartAt(first.In(opts.Location))
		event.SetAllDayEndAt(last.AddDays(1).In(opts.Location))
		return nil
	}

	start, err := item.Time.On(first, opts.Location)
	if err != nil {
		return err
	}
	end := start.Add(opts.EventDuration)

	tzid := zoneID(opts.Location)
	if tzid != "" {
		event.SetProperty(ical.ComponentPropertyDtStart, start.Format(localTimestamp), ical.WithTZID(tzid))
		event.SetProperty(ical.ComponentPropertyDtEnd, end.In(opts.Location).Format(localTimestamp), ical.WithTZID(tzid))
	} else {
		event.SetStartAt(start)
		event.SetEndAt(end)
	}

	if first == last {
		return nil
	}

	// Without a zone name a daily rule would repeat at a fixed UTC instant,
	// so each later day is listed with its own offset.
	if tzid == "" && opts.Location.String() != "UTC" {
		for d := first.AddDays(1); !d.After(last); d = d.AddDays(1) {
			at, err := item.Time.On(d, opts.Location)
			if err != nil {
				return err
			}
			event.AddRdate(at.UTC().Format(utcTimestamp))
		}
		return nil
	}

	rule, err := DailyRule(item.Time, first, last, opts.Location)
	if err != nil {
		return err
	}
	event.AddRrule(rule.OrigOptions.RRuleString())
	return nil
}

// zoneID returns the IANA name of loc for TZID parameters. It is empty for
// UTC and for zones without a loadable name, such as fixed offsets or Local.
func zoneID(loc *time.Location) string {
	name := loc.String()
	switch name {
	case "", "UTC", "Local":
		return ""
	}
	if _, err := time.LoadLocation(name); err != nil {
		return ""
	}
	return name
}

// DailyRule returns the recurrence repeating clock every day from first to
// last. Occurrences keep the wall-clock time in loc across offset changes.
func DailyRule(clock domain.ClockTime, first, last domain.Date, loc *time.Location) (*rrule.RRule, error) {
	start, err := clock.On(first, loc)
	if err != nil {
		return nil, err
	}
	until, err := clock.On(last, loc)
	if err != nil {
		return nil, err
	}
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: start,
		Until:   until,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build daily rule: %w", err)
	}
	return rule, nil
}
