package session

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestManager_InitializesUnauthenticatedFromEmptyStore(t *testing.T) {
	m := NewManager(NewStore(NewMemoryKV()), discardLogger())

	assert.Equal(t, StateUnauthenticated, m.State())
	assert.False(t, m.IsAuthenticated())
	assert.Nil(t, m.CurrentUser())
}

func TestManager_RestoresPersistedSession(t *testing.T) {
	store := NewStore(NewMemoryKV())
	require.NoError(t, store.Set(testSession("access-1")))

	m := NewManager(store, discardLogger())

	assert.Equal(t, StateAuthenticated, m.State())

	user := m.CurrentUser()
	require.NotNil(t, user)
	assert.Equal(t, "Ann", user.DisplayName)
}

func TestManager_CorruptStoreTreatedAsAbsent(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Replace(map[string]string{
		KeyAccessToken:  "a",
		KeyRefreshToken: "r",
		KeyProfile:      "{not json",
	}))

	store := NewStore(kv)
	m := NewManager(store, discardLogger())

	assert.Equal(t, StateUnauthenticated, m.State())

	// The unreadable record is discarded, not left around.
	sess, err := store.Get()
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestManager_LoginTransitionsAndPersists(t *testing.T) {
	store := NewStore(NewMemoryKV())
	m := NewManager(store, discardLogger())

	require.NoError(t, m.Login(testSession("access-1")))

	assert.True(t, m.IsAuthenticated())
	assert.Equal(t, "Ann", m.CurrentUser().DisplayName)

	persisted, err := store.Get()
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, "access-1", persisted.AccessToken)
}

func TestManager_LoginRejectsIncompleteSession(t *testing.T) {
	m := NewManager(NewStore(NewMemoryKV()), discardLogger())

	require.Error(t, m.Login(&Session{AccessToken: "a"}))
	assert.False(t, m.IsAuthenticated())
}

func TestManager_LogoutIdempotent(t *testing.T) {
	store := NewStore(NewMemoryKV())
	m := NewManager(store, discardLogger())
	require.NoError(t, m.Login(testSession("access-1")))

	var notifications []State

	m.SetOnChange(func(s State) {
		notifications = append(notifications, s)
	})

	require.NoError(t, m.Logout())
	require.NoError(t, m.Logout())

	assert.Equal(t, StateUnauthenticated, m.State())
	assert.Nil(t, m.CurrentUser())

	sess, err := store.Get()
	require.NoError(t, err)
	assert.Nil(t, sess)

	// Only the first logout is a transition; the second fires no hook.
	assert.Equal(t, []State{StateUnauthenticated}, notifications)
}

func TestManager_OnChangeFiresOnLogin(t *testing.T) {
	m := NewManager(NewStore(NewMemoryKV()), discardLogger())

	var got []State

	m.SetOnChange(func(s State) { got = append(got, s) })

	require.NoError(t, m.Login(testSession("access-1")))
	assert.Equal(t, []State{StateAuthenticated}, got)
}

func TestManager_CurrentUserReturnsCopy(t *testing.T) {
	m := NewManager(NewStore(NewMemoryKV()), discardLogger())
	require.NoError(t, m.Login(testSession("access-1")))

	first := m.CurrentUser()
	first.DisplayName = "mutated"

	assert.Equal(t, "Ann", m.CurrentUser().DisplayName)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "initializing", StateInitializing.String())
	assert.Equal(t, "authenticated", StateAuthenticated.String())
	assert.Equal(t, "unauthenticated", StateUnauthenticated.String())
}
