package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/dayplan/internal/storage/compliance"
	"github.com/rezkam/dayplan/internal/storage/document"
	"github.com/rezkam/dayplan/internal/storage/fs"
)

func TestFSStore_Compliance(t *testing.T) {
	compliance.RunRepositoryComplianceTest(t, func() (compliance.Backend, func()) {
		tmpDir, err := os.MkdirTemp("", "dayplan-fs-test-*")
		require.NoError(t, err)

		store, _, err := fs.NewStore(tmpDir)
		require.NoError(t, err)

		cleanup := func() {
			os.RemoveAll(tmpDir)
		}

		return store, cleanup
	})
}

func TestBucket_FilesFollowKeys(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	bucket, err := fs.NewBucket(dir)
	require.NoError(t, err)

	require.NoError(t, bucket.Put(ctx, "owners/YWxpY2U/tasks/1.json", []byte(`{}`)))

	data, err := os.ReadFile(filepath.Join(dir, "owners", "YWxpY2U", "tasks", "1.json"))
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))

	keys, err := bucket.List(ctx, "owners/")
	require.NoError(t, err)
	assert.Equal(t, []string{"owners/YWxpY2U/tasks/1.json"}, keys)

	keys, err = bucket.List(ctx, "profiles/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestBucket_MissingKeys(t *testing.T) {
	ctx := context.Background()
	bucket, err := fs.NewBucket(t.TempDir())
	require.NoError(t, err)

	_, err = bucket.Get(ctx, "owners/x/tasks/none.json")
	assert.ErrorIs(t, err, document.ErrMissing)
	assert.ErrorIs(t, bucket.Delete(ctx, "owners/x/tasks/none.json"), document.ErrMissing)
}

func TestBucket_WatchPublishesOwner(t *testing.T) {
	dir := t.TempDir()
	store, bucket, err := fs.NewStore(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	owners := make(chan string, 8)
	require.NoError(t, bucket.Watch(ctx, func(owner string) { owners <- owner }))

	_, err = store.CreateItem(ctx, compliance.NewTask(t, "alice", "Water plants", "2024-07-01"))
	require.NoError(t, err)

	select {
	case owner := <-owners:
		assert.Equal(t, "alice", owner)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}
}
