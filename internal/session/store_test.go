package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(access string) *Session {
	return &Session{
		AccessToken:  access,
		RefreshToken: "refresh-1",
		Profile: Profile{
			ID:          "u1",
			DisplayName: "Ann",
			Email:       "ann@example.com",
		},
	}
}

func TestStore_EmptyReadsAbsent(t *testing.T) {
	store := NewStore(NewMemoryKV())

	sess, err := store.Get()
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestStore_SetGetRoundTrip(t *testing.T) {
	store := NewStore(NewMemoryKV())

	require.NoError(t, store.Set(testSession("access-1")))

	got, err := store.Get()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "access-1", got.AccessToken)
	assert.Equal(t, "refresh-1", got.RefreshToken)
	assert.Equal(t, "Ann", got.Profile.DisplayName)
}

func TestStore_SetRejectsIncompleteSession(t *testing.T) {
	store := NewStore(NewMemoryKV())

	err := store.Set(&Session{AccessToken: "only-access"})
	require.Error(t, err)

	sess, err := store.Get()
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestStore_Clear(t *testing.T) {
	store := NewStore(NewMemoryKV())

	require.NoError(t, store.Set(testSession("access-1")))
	require.NoError(t, store.Clear())

	sess, err := store.Get()
	require.NoError(t, err)
	assert.Nil(t, sess)

	// Clearing an empty store is a no-op, not an error.
	require.NoError(t, store.Clear())
}

func TestStore_PartialRecordReadsAbsent(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Replace(map[string]string{
		KeyAccessToken: "dangling-token",
	}))

	store := NewStore(kv)

	sess, err := store.Get()
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestFileKV_RoundTripAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	store := NewStore(NewFileKV(path))
	require.NoError(t, store.Set(testSession("access-1")))

	// A fresh FileKV over the same path sees the last write.
	reopened := NewStore(NewFileKV(path))

	got, err := reopened.Get()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "access-1", got.AccessToken)
}

func TestFileKV_ClearRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	store := NewStore(NewFileKV(path))
	require.NoError(t, store.Set(testSession("access-1")))
	require.NoError(t, store.Clear())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileKV_MissingFileReadsEmpty(t *testing.T) {
	kv := NewFileKV(filepath.Join(t.TempDir(), "nope.json"))

	entries, err := kv.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileKV_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	store := NewStore(NewFileKV(path))
	require.NoError(t, store.Set(testSession("access-1")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePerms), info.Mode().Perm())
}

func TestStore_LastWriteWins(t *testing.T) {
	store := NewStore(NewMemoryKV())

	require.NoError(t, store.Set(testSession("access-1")))
	require.NoError(t, store.Set(testSession("access-2")))

	got, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, "access-2", got.AccessToken)
}
