package document_test

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/dayplan/internal/domain"
	"github.com/rezkam/dayplan/internal/storage/compliance"
	"github.com/rezkam/dayplan/internal/storage/document"
)

// memBucket is a map-backed Bucket.
type memBucket struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func newMemBucket() *memBucket {
	return &memBucket{docs: make(map[string][]byte)}
}

func (b *memBucket) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.docs[key]
	if !ok {
		return nil, document.ErrMissing
	}
	return slices.Clone(data), nil
}

func (b *memBucket) Put(_ context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs[key] = slices.Clone(data)
	return nil
}

func (b *memBucket) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.docs[key]; !ok {
		return document.ErrMissing
	}
	delete(b.docs, key)
	return nil
}

func (b *memBucket) List(_ context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var keys []string
	for key := range maps.Keys(b.docs) {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func TestStoreCompliance(t *testing.T) {
	compliance.RunRepositoryComplianceTest(t, func() (compliance.Backend, func()) {
		return document.NewStore(newMemBucket()), func() {}
	})
}

func TestStore_KeyLayout(t *testing.T) {
	ctx := context.Background()
	bucket := newMemBucket()
	store := document.NewStore(bucket)

	task := compliance.NewTask(t, "team/alice", "Report", "2024-07-01")
	event := compliance.NewEvent(t, "team/alice", "Offsite", "2024-07-02", "2024-07-03")
	for _, item := range []*domain.Item{task, event} {
		_, err := store.CreateItem(ctx, item)
		require.NoError(t, err)
	}

	keys, err := bucket.List(ctx, "owners/")
	require.NoError(t, err)
	slices.Sort(keys)

	// Owner IDs are encoded so a "/" never splits the key.
	assert.Equal(t, []string{
		"owners/dGVhbS9hbGljZQ/events/" + event.ID + ".json",
		"owners/dGVhbS9hbGljZQ/tasks/" + task.ID + ".json",
	}, keys)

	owners, err := store.ListOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"team/alice"}, owners)
}

func TestStore_ListSkipsForeignKeys(t *testing.T) {
	ctx := context.Background()
	bucket := newMemBucket()
	store := document.NewStore(bucket)

	task := compliance.NewTask(t, "alice", "Report", "2024-07-01")
	_, err := store.CreateItem(ctx, task)
	require.NoError(t, err)
	require.NoError(t, bucket.Put(ctx, "owners/YWxpY2U/tasks/.lock", []byte("x")))

	items, err := store.ListItems(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, task.ID, items[0].ID)
}

func TestStore_CorruptDocument(t *testing.T) {
	ctx := context.Background()
	bucket := newMemBucket()
	store := document.NewStore(bucket)

	require.NoError(t, bucket.Put(ctx, "owners/YWxpY2U/tasks/broken.json", []byte("{not json")))

	_, err := store.ListItems(ctx, "alice")
	assert.ErrorContains(t, err, "failed to decode")
}
