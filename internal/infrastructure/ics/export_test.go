package ics

import (
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/dayplan/internal/domain"
)

var exportNow = time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)

func parse(t *testing.T, body string) map[string]*ical.VEvent {
	t.Helper()
	cal, err := ical.ParseCalendar(strings.NewReader(body))
	require.NoError(t, err)
	events := make(map[string]*ical.VEvent)
	for _, e := range cal.Events() {
		events[e.Id()] = e
	}
	return events
}

func prop(e *ical.VEvent, p ical.ComponentProperty) string {
	if v := e.GetProperty(p); v != nil {
		return v.Value
	}
	return ""
}

func TestEncode(t *testing.T) {
	items := []domain.Item{
		{ID: "t1", Kind: domain.KindTask, Title: "Buy milk", Date: "2024-07-02", Status: domain.StatusCompleted},
		{ID: "t2", Kind: domain.KindTask, Title: "Standup", Description: "daily sync", Date: "2024-07-02", Time: "09:30", Status: domain.StatusPending},
		{ID: "e1", Kind: domain.KindEvent, Title: "Trip", StartDate: "2024-07-03", EndDate: "2024-07-05", AllDay: true},
		{ID: "e2", Kind: domain.KindEvent, Title: "Conference", StartDate: "2024-07-08", EndDate: "2024-07-10", Time: "10:00"},
	}

	body, err := Encode(items, Options{Now: exportNow})
	require.NoError(t, err)
	assert.Contains(t, body, "PRODID:"+DefaultProductID)

	events := parse(t, body)
	require.Len(t, events, 4)

	t.Run("untimed task is a one-day entry", func(t *testing.T) {
		e := events["t1@dayplan"]
		require.NotNil(t, e)
		assert.Equal(t, "Buy milk", prop(e, ical.ComponentPropertySummary))
		assert.Equal(t, "20240702", prop(e, ical.ComponentPropertyDtStart))
		assert.Equal(t, "20240703", prop(e, ical.ComponentPropertyDtEnd))
		assert.Equal(t, "task", prop(e, PropertyKind))
		assert.Equal(t, "completed", prop(e, PropertyStatus))
	})

	t.Run("timed task starts at its clock time", func(t *testing.T) {
		e := events["t2@dayplan"]
		require.NotNil(t, e)
		assert.Equal(t, "20240702T093000Z", prop(e, ical.ComponentPropertyDtStart))
		assert.Equal(t, "20240702T103000Z", prop(e, ical.ComponentPropertyDtEnd))
		assert.Equal(t, "daily sync", prop(e, ical.ComponentPropertyDescription))
		assert.Empty(t, prop(e, ical.ComponentPropertyRrule))
	})

	t.Run("all-day event ends the day after its last date", func(t *testing.T) {
		e := events["e1@dayplan"]
		require.NotNil(t, e)
		assert.Equal(t, "20240703", prop(e, ical.ComponentPropertyDtStart))
		assert.Equal(t, "20240706", prop(e, ical.ComponentPropertyDtEnd))
		assert.Empty(t, prop(e, PropertyStatus))
	})

	t.Run("timed multi-day event repeats daily", func(t *testing.T) {
		e := events["e2@dayplan"]
		require.NotNil(t, e)
		assert.Equal(t, "20240708T100000Z", prop(e, ical.ComponentPropertyDtStart))
		rule := prop(e, ical.ComponentPropertyRrule)
		assert.Contains(t, rule, "FREQ=DAILY")
		assert.Contains(t, rule, "UNTIL=20240710T100000Z")
	})
}

func TestEncode_LocationShiftsTimedEntries(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	items := []domain.Item{
		{ID: "t1", Kind: domain.KindTask, Title: "Call", Date: "2024-07-02", Time: "09:00", Status: domain.StatusPending},
	}

	body, err := Encode(items, Options{Now: exportNow, Location: loc})
	require.NoError(t, err)

	e := parse(t, body)["t1@dayplan"]
	require.NotNil(t, e)
	assert.Equal(t, "20240702T070000Z", prop(e, ical.ComponentPropertyDtStart))
}

func TestDailyRule_CoversEveryDay(t *testing.T) {
	rule, err := DailyRule("18:00", "2024-02-27", "2024-03-02", time.UTC)
	require.NoError(t, err)

	occurrences := rule.All()
	require.Len(t, occurrences, 5)
	assert.Equal(t, time.Date(2024, 2, 29, 18, 0, 0, 0, time.UTC), occurrences[2])
}

func TestWrite_PropagatesClockErrors(t *testing.T) {
	items := []domain.Item{
		{ID: "bad", Kind: domain.KindTask, Title: "x", Date: "2024-07-02", Time: "25:99"},
	}
	var sb strings.Builder

	err := Write(&sb, items, Options{Now: exportNow})

	assert.Error(t, err)
	assert.Empty(t, sb.String())
}

func TestDailyRule_KeepsWallClockAcrossDST(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// Clocks move forward on 2025-03-30.
	rule, err := DailyRule("09:00", "2025-03-29", "2025-03-31", berlin)
	require.NoError(t, err)

	occurrences := rule.All()
	require.Len(t, occurrences, 3)
	for i, day := range []int{29, 30, 31} {
		assert.Equal(t, time.Date(2025, 3, day, 9, 0, 0, 0, berlin), occurrences[i].In(berlin))
	}
}

func TestEncode_NamedZoneUsesTZID(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	items := []domain.Item{
		{ID: "e1", Kind: domain.KindEvent, Title: "Retreat", StartDate: "2025-03-29", EndDate: "2025-03-31", Time: "09:00"},
	}

	body, err := Encode(items, Options{Now: exportNow, Location: berlin})
	require.NoError(t, err)
	assert.Contains(t, body, "X-WR-TIMEZONE:Europe/Berlin")

	e := parse(t, body)["e1@dayplan"]
	require.NotNil(t, e)

	dtstart := e.GetProperty(ical.ComponentPropertyDtStart)
	require.NotNil(t, dtstart)
	assert.Equal(t, "20250329T090000", dtstart.Value)
	assert.Equal(t, []string{"Europe/Berlin"}, dtstart.ICalParameters[string(ical.ParameterTzid)])
	assert.Equal(t, "20250329T100000", prop(e, ical.ComponentPropertyDtEnd))

	start, err := e.GetStartAt()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 29, 8, 0, 0, 0, time.UTC), start.UTC())

	rule := prop(e, ical.ComponentPropertyRrule)
	assert.Contains(t, rule, "FREQ=DAILY")
	assert.Contains(t, rule, "UNTIL=20250331T070000Z", "the last day starts at 09:00 summer time")
}

func TestEncode_UnnamedZoneListsEachDay(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	items := []domain.Item{
		{ID: "e1", Kind: domain.KindEvent, Title: "Workshop", StartDate: "2024-07-08", EndDate: "2024-07-10", Time: "10:00"},
	}

	body, err := Encode(items, Options{Now: exportNow, Location: loc})
	require.NoError(t, err)

	e := parse(t, body)["e1@dayplan"]
	require.NotNil(t, e)
	assert.Equal(t, "20240708T080000Z", prop(e, ical.ComponentPropertyDtStart))
	assert.Empty(t, prop(e, ical.ComponentPropertyRrule))

	var rdates []string
	for _, p := range e.GetProperties(ical.ComponentPropertyRdate) {
		rdates = append(rdates, p.Value)
	}
	assert.Equal(t, []string{"20240709T080000Z", "20240710T080000Z"}, rdates)
}
