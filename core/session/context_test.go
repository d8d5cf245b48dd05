package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo/portal/core/session"
	"github.com/trezcool/masomo/portal/core/user"
	"github.com/trezcool/masomo/portal/storage/credential"
	"github.com/trezcool/masomo/portal/tests"
)

// countingResolver counts calls to the wrapped resolver.
type countingResolver struct {
	mu    sync.Mutex
	calls int
	next  session.Resolver
}

func (r *countingResolver) Resolve(token string) (user.User, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return r.next.Resolve(token)
}

func (r *countingResolver) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestContext_Init(t *testing.T) {
	student := testutil.NewUser("1", user.RoleStudent)

	tests := []struct {
		name      string
		store     session.CredentialStore
		wantState session.State
		wantUser  *user.User
	}{
		{name: "no token", store: credential.NewMemoryStore(), wantState: session.ResolvedWithoutUser},
		{name: "valid token", store: credential.NewMemoryStore(testutil.MakeToken(t, student)), wantState: session.ResolvedWithUser, wantUser: &student},
		{name: "malformed token", store: credential.NewMemoryStore("lol.lol.lol"), wantState: session.ResolvedWithoutUser},
		{name: "storage unavailable", store: &credential.MemoryStore{Fail: true}, wantState: session.ResolvedWithoutUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := session.New(tt.store, session.NewJWTResolver())
			assert.Equal(t, session.Resolving, sess.Current().State)

			snap := sess.Init()
			assert.Equal(t, tt.wantState, snap.State)
			assert.Equal(t, tt.wantUser, snap.User)

			usr, ok := sess.User()
			assert.Equal(t, tt.wantUser != nil, ok)
			if tt.wantUser != nil {
				assert.Equal(t, *tt.wantUser, usr)
			}
		})
	}
}

func TestContext_Init_once(t *testing.T) {
	store := testutil.NewBlockingStore(testutil.MakeToken(t, testutil.NewUser("2", user.RoleTeacher)))
	resolver := &countingResolver{next: session.NewJWTResolver()}
	sess := session.New(store, resolver)

	var seen []session.Snapshot
	var mu sync.Mutex
	sess.Subscribe(func(s session.Snapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	const consumers = 10
	var wg sync.WaitGroup
	results := make(chan session.Snapshot, consumers)
	for i := 0; i < consumers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- sess.Init()
		}()
	}

	<-store.Entered()
	// everyone observes Resolving while the single resolution is pending
	assert.Equal(t, session.Resolving, sess.Current().State)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	_, err := sess.Wait(ctx)
	cancel()
	assert.Equal(t, context.DeadlineExceeded, err)

	store.Release()
	wg.Wait()
	close(results)

	var first *user.User
	for snap := range results {
		require.Equal(t, session.ResolvedWithUser, snap.State)
		if first == nil {
			first = snap.User
		}
		assert.Equal(t, first, snap.User, "all consumers see the same user")
	}
	assert.Equal(t, 1, store.Loads())
	assert.Equal(t, 1, resolver.Calls())
	assert.Len(t, seen, 1)

	snap, err := sess.Wait(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, session.ResolvedWithUser, snap.State)
}

func TestContext_Login(t *testing.T) {
	store := credential.NewMemoryStore()
	resolver := &countingResolver{next: session.NewJWTResolver()}
	sess := session.New(store, resolver)
	sess.Init()

	guardian := testutil.NewUser("3", user.RoleGuardian)
	token := testutil.MakeToken(t, guardian)
	require.NoError(t, sess.Login(guardian, token))

	snap := sess.Current()
	assert.Equal(t, session.ResolvedWithUser, snap.State)
	assert.Equal(t, &guardian, snap.User)
	assert.Equal(t, 0, resolver.Calls(), "login does not re-resolve")

	stored, ok := store.Load()
	assert.True(t, ok)
	assert.Equal(t, token, stored)

	// what was saved resolves back to the same user
	resolved, err := session.NewJWTResolver().Resolve(stored)
	assert.NoError(t, err)
	assert.Equal(t, guardian, resolved)
}

func TestContext_Login_errors(t *testing.T) {
	sess := session.New(&credential.MemoryStore{Fail: true}, session.NewJWTResolver())
	sess.Init()

	err := sess.Login(testutil.NewUser("4", user.RoleStudent), "tok")
	assert.Error(t, err)
	assert.Equal(t, session.ResolvedWithoutUser, sess.Current().State, "state unchanged when saving fails")

	assert.Equal(t, session.ErrEmptyToken, sess.Login(testutil.NewUser("4", user.RoleStudent), ""))
}

func TestContext_Logout(t *testing.T) {
	admin := testutil.NewUser("5", user.RoleAdministrator)
	store := credential.NewMemoryStore(testutil.MakeToken(t, admin))
	sess := session.New(store, session.NewJWTResolver())
	require.Equal(t, session.ResolvedWithUser, sess.Init().State)

	require.NoError(t, sess.Logout())
	assert.Equal(t, session.Snapshot{State: session.ResolvedWithoutUser}, sess.Current())

	_, ok := store.Load()
	assert.False(t, ok, "logout clears the store")

	// the session ends even when the store cannot be cleared
	failing := &credential.MemoryStore{}
	sess = session.New(failing, session.NewJWTResolver())
	require.NoError(t, sess.Login(admin, "tok"))
	failing.Fail = true
	assert.Error(t, sess.Logout())
	assert.Equal(t, session.ResolvedWithoutUser, sess.Current().State)
}

func TestContext_loginWhileResolving(t *testing.T) {
	student := testutil.NewUser("6", user.RoleStudent)
	store := testutil.NewBlockingStore("") // nothing stored yet
	sess := session.New(store, session.NewJWTResolver())

	done := make(chan session.Snapshot)
	go func() { done <- sess.Init() }()
	<-store.Entered()

	require.NoError(t, sess.Login(student, testutil.MakeToken(t, student)))
	store.Release()

	// the stale "no token" result is discarded
	snap := <-done
	assert.Equal(t, session.ResolvedWithUser, snap.State)
	assert.Equal(t, &student, snap.User)
}

func TestContext_Close(t *testing.T) {
	store := testutil.NewBlockingStore(testutil.MakeToken(t, testutil.NewUser("7", user.RoleTeacher)))
	sess := session.New(store, session.NewJWTResolver())

	var notified int
	sess.Subscribe(func(session.Snapshot) { notified++ })

	done := make(chan session.Snapshot)
	go func() { done <- sess.Init() }()
	<-store.Entered()

	sess.Close()
	store.Release()

	snap := <-done
	assert.Equal(t, session.Resolving, snap.State, "result not applied to a torn down view")
	assert.Equal(t, 0, notified)
}

func TestContext_Login_closed(t *testing.T) {
	store := credential.NewMemoryStore()
	sess := session.New(store, session.NewJWTResolver())
	sess.Init()
	sess.Close()

	teacher := testutil.NewUser("9", user.RoleTeacher)
	assert.Equal(t, session.ErrClosed, sess.Login(teacher, testutil.MakeToken(t, teacher)))
	_, ok := store.Load()
	assert.False(t, ok, "nothing saved for a torn down view")
	assert.Equal(t, session.ResolvedWithoutUser, sess.Current().State)
}

func TestContext_Watch(t *testing.T) {
	student := testutil.NewUser("10", user.RoleStudent)
	store := testutil.NewBlockingStore(testutil.MakeToken(t, student))
	sess := session.New(store, session.NewJWTResolver())

	done := make(chan struct{})
	go func() {
		sess.Init()
		close(done)
	}()
	<-store.Entered()

	var mu sync.Mutex
	var states []session.State
	unwatch := sess.Watch(func(s session.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s.State)
	})
	defer unwatch()

	store.Release()
	<-done
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []session.State{session.Resolving, session.ResolvedWithUser}, states)
}

func TestContext_Watch_concurrentResolution(t *testing.T) {
	student := testutil.NewUser("11", user.RoleStudent)
	token := testutil.MakeToken(t, student)

	for i := 0; i < 100; i++ {
		sess := session.New(credential.NewMemoryStore(token), session.NewJWTResolver())
		done := make(chan struct{})
		go func() {
			sess.Init()
			close(done)
		}()

		var mu sync.Mutex
		var last session.Snapshot
		sess.Watch(func(s session.Snapshot) {
			mu.Lock()
			defer mu.Unlock()
			last = s
		})
		<-done

		mu.Lock()
		require.Equal(t, sess.Current(), last, "the latest snapshot is observed last")
		mu.Unlock()
	}
}

func TestContext_Subscribe(t *testing.T) {
	sess := session.New(credential.NewMemoryStore(), session.NewJWTResolver())
	teacher := testutil.NewUser("8", user.RoleTeacher)

	var log []string
	record := func(name string) session.Listener {
		return func(s session.Snapshot) { log = append(log, name+":"+s.State.String()) }
	}
	unsubA := sess.Subscribe(record("a"))
	sess.Subscribe(record("b"))

	sess.Init()
	require.NoError(t, sess.Login(teacher, "tok"))
	unsubA()
	unsubA() // idempotent
	require.NoError(t, sess.Logout())

	assert.Equal(t, []string{
		"a:resolved-without-user", "b:resolved-without-user",
		"a:resolved-with-user", "b:resolved-with-user",
		"b:resolved-without-user",
	}, log)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "resolving", session.Resolving.String())
	assert.Equal(t, "unknown", session.State(42).String())
}
