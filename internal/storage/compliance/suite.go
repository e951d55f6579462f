// Package compliance holds the behaviour every storage backend must share.
package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/dayplan/internal/application/auth"
	"github.com/rezkam/dayplan/internal/application/planner"
	"github.com/rezkam/dayplan/internal/application/profile"
	"github.com/rezkam/dayplan/internal/domain"
)

// Backend is everything a storage backend provides to the application.
type Backend interface {
	planner.Repository
	profile.Repository
	auth.Repository
}

var baseTime = time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)

func newID(t *testing.T) string {
	t.Helper()
	id, err := uuid.NewV7()
	require.NoError(t, err)
	return id.String()
}

// NewTask returns a valid pending task for owner.
func NewTask(t *testing.T, owner, title string, date domain.Date) *domain.Item {
	return &domain.Item{
		ID:        newID(t),
		OwnerID:   owner,
		Title:     title,
		Kind:      domain.KindTask,
		Date:      date,
		Status:    domain.StatusPending,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
}

// NewEvent returns a valid event for owner spanning start..end.
func NewEvent(t *testing.T, owner, title string, start, end domain.Date) *domain.Item {
	return &domain.Item{
		ID:        newID(t),
		OwnerID:   owner,
		Title:     title,
		Kind:      domain.KindEvent,
		StartDate: start,
		EndDate:   end,
		Status:    domain.StatusPending,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
}

// RunRepositoryComplianceTest runs a standard set of tests against a backend.
// setup returns a fresh (clean) backend and a cleanup function.
func RunRepositoryComplianceTest(t *testing.T, setup func() (Backend, func())) {
	t.Run("CreateAndFindTask", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		task := NewTask(t, "alice", "Write report", "2024-07-01")
		task.Description = "quarterly"
		task.Time = "09:30"

		created, err := store.CreateItem(ctx, task)
		require.NoError(t, err)
		assert.Equal(t, 1, created.Version)
		assert.Equal(t, 0, created.Position)

		fetched, err := store.FindItem(ctx, "alice", task.ID)
		require.NoError(t, err)
		assert.Equal(t, task.ID, fetched.ID)
		assert.Equal(t, "alice", fetched.OwnerID)
		assert.Equal(t, domain.KindTask, fetched.Kind)
		assert.Equal(t, "Write report", fetched.Title)
		assert.Equal(t, "quarterly", fetched.Description)
		assert.Equal(t, domain.ClockTime("09:30"), fetched.Time)
		assert.Equal(t, domain.Date("2024-07-01"), fetched.Date)
		assert.Equal(t, domain.StatusPending, fetched.Status)
		assert.Equal(t, 1, fetched.Version)
		assert.WithinDuration(t, baseTime, fetched.CreatedAt, time.Millisecond)
	})

	t.Run("CreateAndFindEventWithDayState", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		event := NewEvent(t, "alice", "Conference", "2024-07-01", "2024-07-03")
		event.AllDay = true
		event.PerDayStatus = map[domain.Date]domain.Status{
			"2024-07-01": domain.StatusCompleted,
			"2024-07-02": domain.StatusFailed,
		}
		event.FailureMarks = map[domain.Date]bool{"2024-07-02": true}

		_, err := store.CreateItem(ctx, event)
		require.NoError(t, err)

		fetched, err := store.FindItem(ctx, "alice", event.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.KindEvent, fetched.Kind)
		assert.True(t, fetched.AllDay)
		assert.Equal(t, domain.Date("2024-07-01"), fetched.StartDate)
		assert.Equal(t, domain.Date("2024-07-03"), fetched.EndDate)
		assert.Equal(t, event.PerDayStatus, fetched.PerDayStatus)
		assert.True(t, fetched.HasFailureMark("2024-07-02"))
		assert.False(t, fetched.HasFailureMark("2024-07-01"))
	})

	t.Run("FindItemIsOwnerScoped", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		task := NewTask(t, "alice", "Private", "2024-07-01")
		_, err := store.CreateItem(ctx, task)
		require.NoError(t, err)

		_, err = store.FindItem(ctx, "bob", task.ID)
		assert.ErrorIs(t, err, domain.ErrItemNotFound)

		_, err = store.FindItem(ctx, "alice", newID(t))
		assert.ErrorIs(t, err, domain.ErrItemNotFound)
	})

	t.Run("UpdateItemChecksVersion", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		task := NewTask(t, "alice", "Draft", "2024-07-01")
		created, err := store.CreateItem(ctx, task)
		require.NoError(t, err)

		created.Title = "Final"
		created.Status = domain.StatusFailed
		created.FailureMarks = map[domain.Date]bool{"2024-07-01": true}
		updated, err := store.UpdateItem(ctx, created)
		require.NoError(t, err)
		assert.Equal(t, 2, updated.Version)

		fetched, err := store.FindItem(ctx, "alice", task.ID)
		require.NoError(t, err)
		assert.Equal(t, "Final", fetched.Title)
		assert.Equal(t, domain.StatusFailed, fetched.Status)
		assert.True(t, fetched.HasFailureMark("2024-07-01"))
		assert.Equal(t, 2, fetched.Version)

		// created still carries version 1.
		_, err = store.UpdateItem(ctx, created)
		assert.ErrorIs(t, err, domain.ErrVersionConflict)

		missing := NewTask(t, "alice", "Ghost", "2024-07-01")
		missing.Version = 1
		_, err = store.UpdateItem(ctx, missing)
		assert.ErrorIs(t, err, domain.ErrItemNotFound)
	})

	t.Run("UpdateClearsDayState", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		event := NewEvent(t, "alice", "Camp", "2024-07-01", "2024-07-02")
		event.PerDayStatus = map[domain.Date]domain.Status{"2024-07-01": domain.StatusFailed}
		event.FailureMarks = map[domain.Date]bool{"2024-07-01": true}
		created, err := store.CreateItem(ctx, event)
		require.NoError(t, err)

		created.PerDayStatus = nil
		created.FailureMarks = nil
		_, err = store.UpdateItem(ctx, created)
		require.NoError(t, err)

		fetched, err := store.FindItem(ctx, "alice", event.ID)
		require.NoError(t, err)
		assert.Empty(t, fetched.PerDayStatus)
		assert.Empty(t, fetched.FailureMarks)
	})

	t.Run("DeleteItem", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		task := NewTask(t, "alice", "Temp", "2024-07-01")
		_, err := store.CreateItem(ctx, task)
		require.NoError(t, err)

		assert.ErrorIs(t, store.DeleteItem(ctx, "bob", task.ID), domain.ErrItemNotFound)
		require.NoError(t, store.DeleteItem(ctx, "alice", task.ID))

		_, err = store.FindItem(ctx, "alice", task.ID)
		assert.ErrorIs(t, err, domain.ErrItemNotFound)
		assert.ErrorIs(t, store.DeleteItem(ctx, "alice", task.ID), domain.ErrItemNotFound)
	})

	t.Run("ListItemsInPositionOrder", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		a := NewTask(t, "alice", "A", "2024-07-01")
		b := NewEvent(t, "alice", "B", "2024-07-01", "2024-07-02")
		c := NewTask(t, "alice", "C", "2024-07-02")
		other := NewTask(t, "bob", "Bob's", "2024-07-01")
		for _, item := range []*domain.Item{a, b, c, other} {
			_, err := store.CreateItem(ctx, item)
			require.NoError(t, err)
		}

		items, err := store.ListItems(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, []string{a.ID, b.ID, c.ID}, ids(items))
		assert.Equal(t, []int{0, 1, 2}, positions(items))

		require.NoError(t, store.SavePositions(ctx, "alice", map[string]int{c.ID: 0, a.ID: 1, b.ID: 2, other.ID: 9}))

		items, err = store.ListItems(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{c.ID, a.ID, b.ID}, ids(items))

		bobs, err := store.ListItems(ctx, "bob")
		require.NoError(t, err)
		require.Len(t, bobs, 1)
		assert.Equal(t, 0, bobs[0].Position, "positions are scoped to the owner")

		empty, err := store.ListItems(ctx, "carol")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("ListOwners", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		for _, owner := range []string{"alice", "bob", "alice"} {
			_, err := store.CreateItem(ctx, NewTask(t, owner, "x", "2024-07-01"))
			require.NoError(t, err)
		}

		owners, err := store.ListOwners(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"alice", "bob"}, owners)
	})

	t.Run("Profile", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		_, err := store.FindProfile(ctx, "alice")
		assert.ErrorIs(t, err, domain.ErrProfileNotFound)

		p := &domain.Profile{OwnerID: "alice", Name: "Alex", BirthDate: "1990-07-01", CreatedAt: baseTime, UpdatedAt: baseTime}
		_, err = store.SaveProfile(ctx, p)
		require.NoError(t, err)

		p.Name = "Alexandra"
		p.BirthDate = ""
		p.UpdatedAt = baseTime.Add(time.Hour)
		_, err = store.SaveProfile(ctx, p)
		require.NoError(t, err)

		fetched, err := store.FindProfile(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "Alexandra", fetched.Name)
		assert.True(t, fetched.BirthDate.IsZero())
		assert.WithinDuration(t, baseTime, fetched.CreatedAt, time.Millisecond)
		assert.WithinDuration(t, baseTime.Add(time.Hour), fetched.UpdatedAt, time.Millisecond)
	})

	t.Run("ListProfilesWithBirthday", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		for _, p := range []domain.Profile{
			{OwnerID: "alice", Name: "Alex", BirthDate: "1990-07-01"},
			{OwnerID: "bob", Name: "Bea", BirthDate: "1985-07-01"},
			{OwnerID: "carol", Name: "Cy", BirthDate: "1990-07-02"},
			{OwnerID: "dave", Name: "Dee"},
		} {
			p.CreatedAt, p.UpdatedAt = baseTime, baseTime
			_, err := store.SaveProfile(ctx, &p)
			require.NoError(t, err)
		}

		found, err := store.ListProfilesWithBirthday(ctx, time.July, 1)
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, "Alex", found[0].Name)
		assert.Equal(t, "Bea", found[1].Name)
		assert.Equal(t, domain.Date("1985-07-01"), found[1].BirthDate)

		found, err = store.ListProfilesWithBirthday(ctx, time.January, 1)
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("APIKeys", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		expires := baseTime.Add(24 * time.Hour)
		key := &domain.APIKey{
			ID:             newID(t),
			OwnerID:        "alice",
			KeyType:        "sk",
			Service:        "dayplan",
			Version:        "v1",
			ShortToken:     "short" + newID(t)[:8],
			LongSecretHash: "hash",
			Name:           "laptop",
			IsActive:       true,
			CreatedAt:      baseTime,
			ExpiresAt:      &expires,
		}
		require.NoError(t, store.Create(ctx, key))

		dup := *key
		dup.ID = newID(t)
		assert.ErrorIs(t, store.Create(ctx, &dup), domain.ErrAlreadyExists)

		fetched, err := store.FindByShortToken(ctx, key.ShortToken)
		require.NoError(t, err)
		assert.Equal(t, key.ID, fetched.ID)
		assert.Equal(t, "alice", fetched.OwnerID)
		assert.Equal(t, "hash", fetched.LongSecretHash)
		assert.True(t, fetched.IsActive)
		require.NotNil(t, fetched.ExpiresAt)
		assert.WithinDuration(t, expires, *fetched.ExpiresAt, time.Millisecond)
		assert.Nil(t, fetched.LastUsedAt)

		used := baseTime.Add(time.Minute)
		require.NoError(t, store.UpdateLastUsed(ctx, key.ID, used))
		// Earlier timestamps never move last-used backwards.
		require.NoError(t, store.UpdateLastUsed(ctx, key.ID, baseTime))

		fetched, err = store.FindByShortToken(ctx, key.ShortToken)
		require.NoError(t, err)
		require.NotNil(t, fetched.LastUsedAt)
		assert.WithinDuration(t, used, *fetched.LastUsedAt, time.Millisecond)

		_, err = store.FindByShortToken(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, store.UpdateLastUsed(ctx, newID(t), used), domain.ErrNotFound)
	})
}

func ids(items []domain.Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func positions(items []domain.Item) []int {
	out := make([]int, len(items))
	for i, item := range items {
		out[i] = item.Position
	}
	return out
}
