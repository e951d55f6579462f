package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/dayplan/internal/application/auth"
	"github.com/rezkam/dayplan/internal/application/planner"
	"github.com/rezkam/dayplan/internal/application/profile"
	"github.com/rezkam/dayplan/internal/domain"
	"github.com/rezkam/dayplan/internal/infrastructure/http/response"
	"github.com/rezkam/dayplan/internal/infrastructure/realtime"
)

var fixedNow = time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	store  *memStore
	hub    *realtime.Hub
	router http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemStore()
	hub := realtime.NewHub()
	plan := planner.NewService(store, hub, nil, planner.Config{
		Location: time.UTC,
		Now:      func() time.Time { return fixedNow },
	})
	h := NewPlanHandler(plan, profile.NewService(store), hub, Config{})
	return &testEnv{store: store, hub: hub, router: NewRouter(h)}
}

// asOwner injects an authenticated key the way the auth middleware does.
func asOwner(owner string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := &domain.APIKey{ID: "key-" + owner, OwnerID: owner, IsActive: true}
		next.ServeHTTP(w, r.WithContext(auth.WithKey(r.Context(), key)))
	})
}

func (e *testEnv) do(t *testing.T, owner, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	w := httptest.NewRecorder()
	asOwner(owner, e.router).ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (e *testEnv) create(t *testing.T, owner string, req CreateItemRequest) ItemDTO {
	t.Helper()
	w := e.do(t, owner, http.MethodPost, "/v1/items", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[ItemResponse](t, w).Item
}

func TestCreateItem(t *testing.T) {
	env := newTestEnv(t)

	t.Run("task", func(t *testing.T) {
		w := env.do(t, "alice", http.MethodPost, "/v1/items", CreateItemRequest{
			Kind: "task", Title: "  Write report ", Date: "2024-07-01", Time: "09:00",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, `"1"`, w.Header().Get("ETag"))

		item := decode[ItemResponse](t, w).Item
		assert.NotEmpty(t, item.ID)
		assert.Equal(t, "Write report", item.Title)
		assert.Equal(t, "task", item.Kind)
		assert.Equal(t, "pending", item.Status)
		assert.Equal(t, "09:00", item.Time)
		assert.Equal(t, "1", item.Etag)
	})

	t.Run("single-day event defaults end date", func(t *testing.T) {
		item := env.create(t, "alice", CreateItemRequest{
			Kind: "event", Title: "Offsite", StartDate: "2024-07-03", AllDay: true,
		})
		assert.Equal(t, "2024-07-03", item.StartDate)
		assert.Equal(t, "2024-07-03", item.EndDate)
		assert.True(t, item.AllDay)
	})

	tests := []struct {
		name      string
		req       any
		wantCode  string
		wantField string
	}{
		{"missing title", CreateItemRequest{Kind: "task", Date: "2024-07-01"}, "VALIDATION_ERROR", "title"},
		{"bad kind", CreateItemRequest{Kind: "chore", Title: "x", Date: "2024-07-01"}, "VALIDATION_ERROR", "kind"},
		{"bad date", CreateItemRequest{Kind: "task", Title: "x", Date: "07/01/2024"}, "VALIDATION_ERROR", "date"},
		{"bad time", CreateItemRequest{Kind: "task", Title: "x", Date: "2024-07-01", Time: "9pm"}, "VALIDATION_ERROR", "time"},
		{"end before start", CreateItemRequest{Kind: "event", Title: "x", StartDate: "2024-07-05", EndDate: "2024-07-01"}, "VALIDATION_ERROR", "end_date"},
		{"all-day task", CreateItemRequest{Kind: "task", Title: "x", Date: "2024-07-01", AllDay: true}, "VALIDATION_ERROR", "all_day"},
		{"unknown field", map[string]any{"kind": "task", "title": "x", "date": "2024-07-01", "priority": 1}, "INVALID_REQUEST", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "alice", http.MethodPost, "/v1/items", tt.req)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			body := decode[response.ErrorResponse](t, w)
			assert.Equal(t, tt.wantCode, body.Error.Code)
			if tt.wantField != "" {
				require.Len(t, body.Error.Details, 1)
				assert.Equal(t, tt.wantField, body.Error.Details[0].Field)
			}
		})
	}
}

func TestGetItem_ScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	item := env.create(t, "alice", CreateItemRequest{Kind: "task", Title: "Mine", Date: "2024-07-01"})

	w := env.do(t, "alice", http.MethodGet, "/v1/items/"+item.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "bob", http.MethodGet, "/v1/items/"+item.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListItems_Pagination(t *testing.T) {
	env := newTestEnv(t)
	for i := range 5 {
		env.create(t, "alice", CreateItemRequest{Kind: "task", Title: fmt.Sprintf("t%d", i), Date: "2024-07-01"})
	}

	w := env.do(t, "alice", http.MethodGet, "/v1/items", nil)
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[ListItemsResponse](t, w)
	assert.Len(t, all.Items, 5)
	assert.Nil(t, all.NextPageToken)

	w = env.do(t, "alice", http.MethodGet, "/v1/items?page_size=2", nil)
	first := decode[ListItemsResponse](t, w)
	require.Len(t, first.Items, 2)
	require.NotNil(t, first.NextPageToken)
	assert.Equal(t, "t0", first.Items[0].Title)

	w = env.do(t, "alice", http.MethodGet, "/v1/items?page_size=10&page_token="+*first.NextPageToken, nil)
	rest := decode[ListItemsResponse](t, w)
	require.Len(t, rest.Items, 3)
	assert.Equal(t, "t2", rest.Items[0].Title)
	assert.Nil(t, rest.NextPageToken)
}

func TestUpdateItem(t *testing.T) {
	env := newTestEnv(t)
	item := env.create(t, "alice", CreateItemRequest{Kind: "task", Title: "Draft", Date: "2024-07-01"})
	path := "/v1/items/" + item.ID

	w := env.do(t, "alice", http.MethodPatch, path, map[string]any{
		"etag": "1", "update_mask": []string{"title", "time"}, "title": "Final", "time": "14:30",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[ItemResponse](t, w).Item
	assert.Equal(t, "Final", updated.Title)
	assert.Equal(t, "14:30", updated.Time)
	assert.Equal(t, "2", updated.Etag)

	t.Run("stale etag conflicts", func(t *testing.T) {
		w := env.do(t, "alice", http.MethodPatch, path, map[string]any{
			"etag": "1", "update_mask": []string{"title"}, "title": "Again",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("event field on a task", func(t *testing.T) {
		w := env.do(t, "alice", http.MethodPatch, path, map[string]any{
			"update_mask": []string{"start_date"}, "start_date": "2024-07-02",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("if-match header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, path, strings.NewReader(`{"update_mask":["description"],"description":"notes"}`))
		req.Header.Set("If-Match", `W/"1"`)
		w := httptest.NewRecorder()
		asOwner("alice", env.router).ServeHTTP(w, req)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestDeleteItem(t *testing.T) {
	env := newTestEnv(t)
	item := env.create(t, "alice", CreateItemRequest{Kind: "task", Title: "Gone", Date: "2024-07-01"})

	w := env.do(t, "bob", http.MethodDelete, "/v1/items/"+item.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, "alice", http.MethodDelete, "/v1/items/"+item.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, "alice", http.MethodGet, "/v1/items/"+item.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChangeStatus(t *testing.T) {
	env := newTestEnv(t)
	task := env.create(t, "alice", CreateItemRequest{Kind: "task", Title: "Gym", Date: "2024-07-01"})
	event := env.create(t, "alice", CreateItemRequest{Kind: "event", Title: "Trip", StartDate: "2024-07-01", EndDate: "2024-07-03", AllDay: true})

	t.Run("task without date uses its own", func(t *testing.T) {
		w := env.do(t, "alice", http.MethodPost, "/v1/items/"+task.ID+"/status", ChangeStatusRequest{Status: "completed"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "completed", decode[ItemResponse](t, w).Item.Status)
	})

	t.Run("event changes one day only", func(t *testing.T) {
		w := env.do(t, "alice", http.MethodPost, "/v1/items/"+event.ID+"/status", ChangeStatusRequest{Date: "2024-07-02", Status: "failed"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		got := decode[ItemResponse](t, w).Item
		assert.Equal(t, map[string]string{"2024-07-02": "failed"}, got.PerDayStatus)
		assert.Equal(t, []string{"2024-07-02"}, got.FailedDates)
	})

	t.Run("event date outside range", func(t *testing.T) {
		w := env.do(t, "alice", http.MethodPost, "/v1/items/"+event.ID+"/status", ChangeStatusRequest{Date: "2024-07-09", Status: "completed"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("event requires a date", func(t *testing.T) {
		w := env.do(t, "alice", http.MethodPost, "/v1/items/"+event.ID+"/status", ChangeStatusRequest{Status: "completed"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown status", func(t *testing.T) {
		w := env.do(t, "alice", http.MethodPost, "/v1/items/"+task.ID+"/status", ChangeStatusRequest{Status: "done"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestReschedule(t *testing.T) {
	env := newTestEnv(t)
	task := env.create(t, "alice", CreateItemRequest{Kind: "task", Title: "Dentist", Date: "2024-07-01", Time: "08:00"})
	env.do(t, "alice", http.MethodPost, "/v1/items/"+task.ID+"/status", ChangeStatusRequest{Status: "failed"})

	w := env.do(t, "alice", http.MethodPost, "/v1/items/"+task.ID+"/reschedule", RescheduleRequest{Date: "2024-07-04", Time: "16:00"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	moved := decode[ItemResponse](t, w).Item
	assert.Equal(t, "2024-07-04", moved.Date)
	assert.Equal(t, "16:00", moved.Time)
	assert.Equal(t, "pending", moved.Status)
	assert.Empty(t, moved.FailedDates)

	event := env.create(t, "alice", CreateItemRequest{Kind: "event", Title: "Fair", StartDate: "2024-07-01"})
	w = env.do(t, "alice", http.MethodPost, "/v1/items/"+event.ID+"/reschedule", RescheduleRequest{Date: "2024-07-04"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAgenda(t *testing.T) {
	env := newTestEnv(t)
	late := env.create(t, "alice", CreateItemRequest{Kind: "task", Title: "Late", Date: "2024-07-01", Time: "11:00"})
	early := env.create(t, "alice", CreateItemRequest{Kind: "task", Title: "Early", Date: "2024-07-01", Time: "09:00"})
	allDay := env.create(t, "alice", CreateItemRequest{Kind: "event", Title: "Holiday", StartDate: "2024-06-30", EndDate: "2024-07-02", AllDay: true})
	env.create(t, "alice", CreateItemRequest{Kind: "task", Title: "Tomorrow", Date: "2024-07-02"})

	w := env.do(t, "alice", http.MethodGet, "/v1/agenda?date=2024-07-01", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view := decode[DayViewDTO](t, w)

	require.Len(t, view.Entries, 3)
	assert.Equal(t, allDay.ID, view.Entries[0].Item.ID)
	assert.Equal(t, early.ID, view.Entries[1].Item.ID)
	assert.Equal(t, late.ID, view.Entries[2].Item.ID)

	// 09:00 has passed at fixedNow, so the pending task reads as failed.
	assert.Equal(t, "failed", view.Entries[1].Status)
	assert.Equal(t, "pending", view.Entries[1].Item.Status)
	assert.Equal(t, "pending", view.Entries[2].Status)

	assert.Equal(t, StatsDTO{Date: "2024-07-01", Pending: 2, Failed: 1, Total: 3}, view.Stats)

	t.Run("defaults to today", func(t *testing.T) {
		w := env.do(t, "alice", http.MethodGet, "/v1/agenda", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2024-07-01", decode[DayViewDTO](t, w).Date)
	})
}

func TestReorderAgenda(t *testing.T) {
	env := newTestEnv(t)
	a := env.create(t, "alice", CreateItemRequest{Kind: "task", Title: "A", Date: "2024-07-02"})
	b := env.create(t, "alice", CreateItemRequest{Kind: "task", Title: "B", Date: "2024-07-02"})
	c := env.create(t, "alice", CreateItemRequest{Kind: "task", Title: "C", Date: "2024-07-02"})

	w := env.do(t, "alice", http.MethodPut, "/v1/agenda/order", ReorderRequest{Date: "2024-07-02", ItemIDs: []string{c.ID, a.ID, b.ID}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	view := decode[DayViewDTO](t, w)
	require.Len(t, view.Entries, 3)
	assert.Equal(t, []string{c.ID, a.ID, b.ID}, []string{view.Entries[0].Item.ID, view.Entries[1].Item.ID, view.Entries[2].Item.ID})

	t.Run("missing ids rejected", func(t *testing.T) {
		w := env.do(t, "alice", http.MethodPut, "/v1/agenda/order", ReorderRequest{Date: "2024-07-02", ItemIDs: []string{c.ID}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetStats(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "alice", CreateItemRequest{Kind: "event", Title: "Camp", StartDate: "2024-07-01", EndDate: "2024-07-02"})

	w := env.do(t, "alice", http.MethodGet, "/v1/stats?from=2024-07-01&to=2024-07-03", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stats := decode[StatsResponse](t, w)
	require.Len(t, stats.Days, 3)
	assert.Equal(t, 1, stats.Days[0].Total)
	assert.Equal(t, 1, stats.Days[1].Total)
	assert.Equal(t, 0, stats.Days[2].Total)

	w = env.do(t, "alice", http.MethodGet, "/v1/stats?from=2024-01-01&to=2024-12-31", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "alice", http.MethodGet, "/v1/stats?from=2024-07-01", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportCalendar(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "alice", CreateItemRequest{Kind: "task", Title: "Inside", Date: "2024-07-02"})
	env.create(t, "alice", CreateItemRequest{Kind: "task", Title: "Outside", Date: "2024-08-20"})

	w := env.do(t, "alice", http.MethodGet, "/v1/calendar.ics?from=2024-07-01&to=2024-07-31", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/calendar; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "BEGIN:VCALENDAR")
	assert.Contains(t, w.Body.String(), "SUMMARY:Inside")
	assert.NotContains(t, w.Body.String(), "Outside")
}

func TestProfileAndGreeting(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "alice", http.MethodGet, "/v1/profile", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, "alice", http.MethodGet, "/v1/greeting?date=2024-07-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	g := decode[GreetingDTO](t, w)
	assert.False(t, g.Birthday)
	assert.Equal(t, domain.DefaultQuote, g.Message)
	assert.NotNil(t, g.BirthdaysToday)
	assert.Empty(t, g.BirthdaysToday)

	w = env.do(t, "alice", http.MethodPut, "/v1/profile", UpdateProfileRequest{Name: " Alex ", BirthDate: "1990-07-01"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	p := decode[ProfileDTO](t, w)
	assert.Equal(t, "Alex", p.Name)
	assert.Equal(t, "1990-07-01", p.BirthDate)

	w = env.do(t, "alice", http.MethodGet, "/v1/greeting?date=2024-07-01", nil)
	g = decode[GreetingDTO](t, w)
	assert.True(t, g.Birthday)
	assert.Equal(t, 34, g.Age)
	assert.Contains(t, g.Message, "Alex")
	assert.Equal(t, []string{"Alex"}, g.BirthdaysToday)

	w = env.do(t, "bob", http.MethodPut, "/v1/profile", UpdateProfileRequest{Name: "Bo", BirthDate: "2001-07-01"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = env.do(t, "carol", http.MethodPut, "/v1/profile", UpdateProfileRequest{Name: "Cy", BirthDate: "2001-07-02"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Birthdays of other owners are listed alongside the caller's own.
	w = env.do(t, "bob", http.MethodGet, "/v1/greeting?date=2024-07-01", nil)
	g = decode[GreetingDTO](t, w)
	assert.True(t, g.Birthday)
	assert.Equal(t, []string{"Alex", "Bo"}, g.BirthdaysToday)

	w = env.do(t, "alice", http.MethodGet, "/v1/greeting?date=2024-07-02", nil)
	g = decode[GreetingDTO](t, w)
	assert.False(t, g.Birthday)
	assert.Equal(t, []string{"Cy"}, g.BirthdaysToday)

	w = env.do(t, "alice", http.MethodPut, "/v1/profile", UpdateProfileRequest{Name: ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_UnknownRouteAndMethod(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "alice", http.MethodGet, "/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, "alice", http.MethodPost, "/v1/agenda", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandlers_RequireOwner(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/items", nil)
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStream_PushesSnapshots(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(asOwner("alice", env.router))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, br, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/stream?date=2024-07-01")
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	rw := struct {
		io.Reader
		io.Writer
	}{Reader: conn, Writer: conn}
	if br != nil {
		rw.Reader = io.MultiReader(br, conn)
	}

	read := func() SnapshotMessage {
		t.Helper()
		payload, err := wsutil.ReadServerText(rw)
		require.NoError(t, err)
		var msg SnapshotMessage
		require.NoError(t, json.Unmarshal(payload, &msg))
		return msg
	}

	initial := read()
	assert.Equal(t, "snapshot", initial.Type)
	assert.Empty(t, initial.Items)
	assert.Equal(t, "2024-07-01", initial.Agenda.Date)

	require.Eventually(t, func() bool { return env.hub.Subscribers("alice") == 1 }, time.Second, 10*time.Millisecond)
	env.create(t, "alice", CreateItemRequest{Kind: "task", Title: "Live", Date: "2024-07-01"})

	next := read()
	require.Len(t, next.Items, 1)
	assert.Equal(t, "Live", next.Items[0].Title)
	require.Len(t, next.Agenda.Entries, 1)
	assert.Equal(t, 1, next.Agenda.Stats.Total)
}
