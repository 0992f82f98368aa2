package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/evzone-io/go-session-core/gateway"
	"github.com/evzone-io/go-session-core/gateway/gatewayfakes"
	"github.com/evzone-io/go-session-core/identity"
	"github.com/evzone-io/go-session-core/permissions"
	"github.com/evzone-io/go-session-core/session"
	"github.com/evzone-io/go-session-core/session/storefakes"
)

const (
	testAdminEmail    = "admin@evzone.africa"
	testAdminPassword = "Password123"
)

// testFixture holds all test dependencies.
type testFixture struct {
	store   *storefakes.FakeStore
	gateway *gatewayfakes.FakeGateway
	manager *session.Manager
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	store := storefakes.NewFakeStore()
	gw := gatewayfakes.NewFakeGateway()
	manager, err := session.NewManager(session.Deps{
		Store:    store,
		Gateway:  gw,
		Resolver: permissions.NewResolver(),
	})
	require.NoError(t, err)

	return &testFixture{store: store, gateway: gw, manager: manager}
}

func adminIdentity() identity.Identity {
	return identity.Identity{
		ID:    "u1",
		Name:  "Alice Admin",
		Role:  identity.RoleEvzoneAdmin,
		Email: testAdminEmail,
	}
}

func (f *testFixture) loginAsAdmin(t *testing.T) *identity.Identity {
	t.Helper()
	require.NoError(t, f.gateway.AddAccount(testAdminEmail, testAdminPassword, adminIdentity()))
	id, err := f.manager.Login(context.Background(), gateway.Credentials{
		Email:    testAdminEmail,
		Password: testAdminPassword,
	})
	require.NoError(t, err)
	return id
}

func TestNewManagerRequiresDeps(t *testing.T) {
	_, err := session.NewManager(session.Deps{})
	require.Error(t, err)

	_, err = session.NewManager(session.Deps{
		Store:   storefakes.NewFakeStore(),
		Gateway: gatewayfakes.NewFakeGateway(),
	})
	require.Error(t, err)
}

func TestLoginSuccess(t *testing.T) {
	f := setupTestFixture(t)

	id := f.loginAsAdmin(t)
	require.Equal(t, "u1", id.ID)
	require.Equal(t, session.StateAuthenticated, f.manager.State())
	require.False(t, f.manager.Loading())

	// The session slot is durable before the call returns.
	stored := f.store.LoadIdentity(session.SlotSession)
	require.NotNil(t, stored)
	require.True(t, stored.Equal(id))
	require.Nil(t, f.store.LoadIdentity(session.SlotImpersonator))
	require.Empty(t, f.store.LoadReturnTo())
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.gateway.AddAccount(testAdminEmail, testAdminPassword, adminIdentity()))

	_, err := f.manager.Login(context.Background(), gateway.Credentials{
		Email:    testAdminEmail,
		Password: "wrong-password",
	})
	require.ErrorIs(t, err, gateway.ErrInvalidCredentials)
	require.Equal(t, session.StateAnonymous, f.manager.State())
	require.False(t, f.manager.Loading(), "loading flag must reset on failure")
	require.Nil(t, f.store.LoadIdentity(session.SlotSession))
}

func TestLoginReplacesPreviousSession(t *testing.T) {
	f := setupTestFixture(t)
	f.loginAsAdmin(t)

	other := identity.Identity{ID: "u9", Name: "Olga Operator", Role: identity.RoleEvzoneOperator}
	require.NoError(t, f.gateway.AddAccount("ops@evzone.africa", "Password456", other))

	id, err := f.manager.Login(context.Background(), gateway.Credentials{
		Email:    "ops@evzone.africa",
		Password: "Password456",
	})
	require.NoError(t, err)
	require.Equal(t, "u9", id.ID)
	require.True(t, f.store.LoadIdentity(session.SlotSession).Equal(id))
}

func TestLoginClearsStaleImpersonationSlots(t *testing.T) {
	f := setupTestFixture(t)
	stale := adminIdentity()
	require.NoError(t, f.store.SaveIdentity(session.SlotImpersonator, &stale))
	require.NoError(t, f.store.SaveReturnTo("/somewhere"))

	f.loginAsAdmin(t)

	require.Nil(t, f.store.LoadIdentity(session.SlotImpersonator))
	require.Empty(t, f.store.LoadReturnTo())
	require.Nil(t, f.manager.Impersonation())
}

func TestConcurrentDuplicateLoginsCoalesce(t *testing.T) {
	f := setupTestFixture(t)
	gate := make(chan struct{})
	gw := &blockingGateway{inner: f.gateway, gate: gate, entered: make(chan struct{})}
	manager, err := session.NewManager(session.Deps{
		Store:    f.store,
		Gateway:  gw,
		Resolver: permissions.NewResolver(),
	})
	require.NoError(t, err)
	require.NoError(t, f.gateway.AddAccount(testAdminEmail, testAdminPassword, adminIdentity()))

	creds := gateway.Credentials{Email: testAdminEmail, Password: testAdminPassword}
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := manager.Login(context.Background(), creds)
			errs <- err
		}()
	}

	// Wait until the first call is held open, give the second a moment to
	// join the same flight, then release.
	gw.waitForFirst()
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, 1, f.gateway.LoginCalls(), "duplicate submissions must share one round trip")
	require.Equal(t, session.StateAuthenticated, manager.State())
}

func TestWrongPasswordNeverJoinsAnotherLoginFlight(t *testing.T) {
	f := setupTestFixture(t)
	gate := make(chan struct{})
	gw := &blockingGateway{inner: f.gateway, gate: gate, entered: make(chan struct{})}
	manager, err := session.NewManager(session.Deps{
		Store:    f.store,
		Gateway:  gw,
		Resolver: permissions.NewResolver(),
	})
	require.NoError(t, err)
	require.NoError(t, f.gateway.AddAccount(testAdminEmail, testAdminPassword, adminIdentity()))

	goodErr := make(chan error, 1)
	badErr := make(chan error, 1)
	go func() {
		_, err := manager.Login(context.Background(), gateway.Credentials{
			Email:    testAdminEmail,
			Password: testAdminPassword,
		})
		goodErr <- err
	}()

	// The correct-password attempt is held open; a wrong-password attempt
	// for the same email must form its own flight and fail on its own.
	gw.waitForFirst()
	go func() {
		_, err := manager.Login(context.Background(), gateway.Credentials{
			Email:    testAdminEmail,
			Password: "wrong-password",
		})
		badErr <- err
	}()
	time.Sleep(50 * time.Millisecond)
	close(gate)

	require.NoError(t, <-goodErr)
	require.ErrorIs(t, <-badErr, gateway.ErrInvalidCredentials)
	require.Equal(t, 2, f.gateway.LoginCalls(), "each distinct credential pair must be verified individually")
	require.Equal(t, session.StateAuthenticated, manager.State())
}

func TestCoalescedLoginsReceiveIndependentCopies(t *testing.T) {
	f := setupTestFixture(t)
	gate := make(chan struct{})
	gw := &blockingGateway{inner: f.gateway, gate: gate, entered: make(chan struct{})}
	manager, err := session.NewManager(session.Deps{
		Store:    f.store,
		Gateway:  gw,
		Resolver: permissions.NewResolver(),
	})
	require.NoError(t, err)
	require.NoError(t, f.gateway.AddAccount(testAdminEmail, testAdminPassword, adminIdentity()))

	creds := gateway.Credentials{Email: testAdminEmail, Password: testAdminPassword}
	ids := make(chan *identity.Identity, 2)
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := manager.Login(context.Background(), creds)
			ids <- id
			errs <- err
		}()
	}

	gw.waitForFirst()
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(ids)
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	first := <-ids
	second := <-ids
	require.NotSame(t, first, second)

	// Mutating one caller's copy must not leak into the other or into the
	// session itself.
	first.Name = "scribbled"
	require.Equal(t, "Alice Admin", second.Name)
	require.Equal(t, "Alice Admin", manager.Current().Name)
}

func TestLastTransitionAtFollowsPublishes(t *testing.T) {
	f := setupTestFixture(t)
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	manager, err := session.NewManager(session.Deps{
		Store:    f.store,
		Gateway:  f.gateway,
		Resolver: permissions.NewResolver(),
	}, session.WithNowTime(func() time.Time { return now }))
	require.NoError(t, err)

	require.True(t, manager.LastTransitionAt().IsZero(), "no transition has been published yet")

	admin := adminIdentity()
	require.NoError(t, manager.LoginWithIdentity(&admin))
	require.Equal(t, now, manager.LastTransitionAt())

	now = now.Add(time.Minute)
	manager.Logout(context.Background())
	require.Equal(t, now, manager.LastTransitionAt())
}

// blockingGateway holds the first Login open until the gate channel closes,
// so tests can line up concurrent callers deterministically.
type blockingGateway struct {
	inner *gatewayfakes.FakeGateway
	gate  chan struct{}

	once    sync.Once
	entered chan struct{}
}

func (g *blockingGateway) Login(ctx context.Context, creds gateway.Credentials) (*gateway.LoginResult, error) {
	g.once.Do(func() {
		if g.entered != nil {
			close(g.entered)
		}
	})
	<-g.gate
	return g.inner.Login(ctx, creds)
}

func (g *blockingGateway) Logout(ctx context.Context) error {
	return g.inner.Logout(ctx)
}

func (g *blockingGateway) waitForFirst() {
	if g.entered != nil {
		<-g.entered
	}
}

func TestLoginWithIdentity(t *testing.T) {
	f := setupTestFixture(t)

	id := adminIdentity()
	require.NoError(t, f.manager.LoginWithIdentity(&id))
	require.Equal(t, session.StateAuthenticated, f.manager.State())
	require.True(t, f.store.LoadIdentity(session.SlotSession).Equal(&id))

	require.Error(t, f.manager.LoginWithIdentity(nil))
	require.Error(t, f.manager.LoginWithIdentity(&identity.Identity{ID: "x", Role: "NOT_A_ROLE"}))
}

func TestLogoutClearsEverything(t *testing.T) {
	f := setupTestFixture(t)
	f.loginAsAdmin(t)

	f.manager.Logout(context.Background())

	require.Equal(t, session.StateAnonymous, f.manager.State())
	require.Nil(t, f.store.LoadIdentity(session.SlotSession))
	require.Nil(t, f.store.LoadIdentity(session.SlotImpersonator))
	require.Empty(t, f.store.LoadReturnTo())
	require.Equal(t, 1, f.gateway.LogoutCalls())
}

func TestLogoutSucceedsLocallyWhenServerUnreachable(t *testing.T) {
	f := setupTestFixture(t)
	f.loginAsAdmin(t)
	f.gateway.LogoutErr = gateway.ErrUnavailable

	f.manager.Logout(context.Background())

	require.Equal(t, session.StateAnonymous, f.manager.State())
	require.Nil(t, f.store.LoadIdentity(session.SlotSession))
	require.Nil(t, f.store.LoadIdentity(session.SlotImpersonator))
	require.Empty(t, f.store.LoadReturnTo())
}

func TestStartImpersonationDeniedForNonAdmins(t *testing.T) {
	f := setupTestFixture(t)
	siteOwner := identity.Identity{ID: "u3", Name: "Sam Owner", Role: identity.RoleSiteOwner}
	require.NoError(t, f.manager.LoginWithIdentity(&siteOwner))

	writesBefore := f.store.Writes()
	target := identity.Identity{ID: "u2", Name: "Bob", Role: identity.RoleAttendant}
	f.manager.StartImpersonation(&target, "/dashboard")

	require.Equal(t, session.StateAuthenticated, f.manager.State())
	require.True(t, f.manager.Current().Equal(&siteOwner))
	require.Nil(t, f.store.LoadIdentity(session.SlotImpersonator))
	require.Equal(t, writesBefore, f.store.Writes(), "a denied guard must produce no storage write")
}

func TestStartImpersonationAsPlatformAdmin(t *testing.T) {
	f := setupTestFixture(t)
	admin := identity.Identity{ID: "u1", Role: identity.RoleEvzoneAdmin}
	require.NoError(t, f.manager.LoginWithIdentity(&admin))

	target := identity.Identity{ID: "u2", Name: "Target", Role: identity.RoleAttendant}
	f.manager.StartImpersonation(&target, "/ops")

	require.Equal(t, session.StateImpersonating, f.manager.State())
	current := f.manager.Current()
	require.Equal(t, "u2", current.ID)
	require.Equal(t, "Target", current.Name)
	require.Equal(t, identity.RoleAttendant, current.Role)

	stored := f.store.LoadIdentity(session.SlotImpersonator)
	require.NotNil(t, stored)
	require.Equal(t, "u1", stored.ID)
	require.Equal(t, identity.RoleEvzoneAdmin, stored.Role)
	require.Equal(t, "/ops", f.store.LoadReturnTo())

	overlay := f.manager.Impersonation()
	require.NotNil(t, overlay)
	require.Equal(t, "/ops", overlay.ReturnTo)
	require.Equal(t, "u1", overlay.Impersonator.ID)
}

func TestImpersonationIsSingleLevel(t *testing.T) {
	f := setupTestFixture(t)
	admin := adminIdentity()
	require.NoError(t, f.manager.LoginWithIdentity(&admin))

	first := identity.Identity{ID: "u2", Name: "First", Role: identity.RoleEvzoneAdmin}
	f.manager.StartImpersonation(&first, "/a")
	require.Equal(t, session.StateImpersonating, f.manager.State())

	// Even though the target's role would pass the guard, a second start
	// while impersonating must not nest.
	second := identity.Identity{ID: "u5", Name: "Second", Role: identity.RoleAttendant}
	f.manager.StartImpersonation(&second, "/b")

	require.Equal(t, "u2", f.manager.Current().ID)
	require.Equal(t, "u1", f.store.LoadIdentity(session.SlotImpersonator).ID)
	require.Equal(t, "/a", f.store.LoadReturnTo())
}

func TestStartImpersonationIgnoresInvalidTarget(t *testing.T) {
	f := setupTestFixture(t)
	admin := adminIdentity()
	require.NoError(t, f.manager.LoginWithIdentity(&admin))

	f.manager.StartImpersonation(nil, "/x")
	f.manager.StartImpersonation(&identity.Identity{Name: "no id or role"}, "/x")

	require.Equal(t, session.StateAuthenticated, f.manager.State())
}

func TestStopImpersonationRestoresImpersonator(t *testing.T) {
	f := setupTestFixture(t)
	admin := f.loginAsAdmin(t)

	target := identity.Identity{ID: "u2", Name: "Target", Role: identity.RoleAttendant}
	f.manager.StartImpersonation(&target, "/ops")
	f.manager.StopImpersonation()

	require.Equal(t, session.StateAuthenticated, f.manager.State())
	require.True(t, f.manager.Current().Equal(admin))
	require.Nil(t, f.store.LoadIdentity(session.SlotImpersonator))
	require.Empty(t, f.store.LoadReturnTo())
}

func TestStopImpersonationWithoutOverlayIsNoOp(t *testing.T) {
	f := setupTestFixture(t)
	f.loginAsAdmin(t)

	f.manager.StopImpersonation()
	require.Equal(t, session.StateAuthenticated, f.manager.State())
}

func TestStopThenRestoreReproducesPreImpersonationIdentity(t *testing.T) {
	f := setupTestFixture(t)
	admin := f.loginAsAdmin(t)

	target := identity.Identity{ID: "u2", Name: "Target", Role: identity.RoleAttendant}
	f.manager.StartImpersonation(&target, "/ops")
	f.manager.StopImpersonation()

	// Simulate a reload on the same storage.
	restored, err := session.NewManager(session.Deps{
		Store:    f.store,
		Gateway:  f.gateway,
		Resolver: permissions.NewResolver(),
	})
	require.NoError(t, err)
	restored.Restore()

	require.Equal(t, session.StateAuthenticated, restored.State())
	require.True(t, restored.Current().Equal(admin), "restored identity must equal the one captured at impersonation start")
}

func TestRestoreColdStart(t *testing.T) {
	f := setupTestFixture(t)

	f.manager.Restore()
	require.Equal(t, session.StateAnonymous, f.manager.State())

	admin := adminIdentity()
	require.NoError(t, f.store.SaveIdentity(session.SlotSession, &admin))
	f.manager.Restore()
	require.Equal(t, session.StateAuthenticated, f.manager.State())

	target := identity.Identity{ID: "u2", Name: "Target", Role: identity.RoleAttendant}
	require.NoError(t, f.store.SaveIdentity(session.SlotSession, &target))
	require.NoError(t, f.store.SaveIdentity(session.SlotImpersonator, &admin))
	require.NoError(t, f.store.SaveReturnTo("/ops"))
	f.manager.Restore()
	require.Equal(t, session.StateImpersonating, f.manager.State())
	overlay := f.manager.Impersonation()
	require.NotNil(t, overlay)
	require.Equal(t, admin.ID, overlay.Impersonator.ID)
	require.Equal(t, "/ops", overlay.ReturnTo)
}

func TestCredentialExpiredForcesLogoutExactlyOnce(t *testing.T) {
	f := setupTestFixture(t)
	f.loginAsAdmin(t)

	f.manager.HandleCredentialExpired(context.Background())
	f.manager.HandleCredentialExpired(context.Background())

	require.Equal(t, session.StateAnonymous, f.manager.State())
	require.Equal(t, 1, f.gateway.LogoutCalls(), "duplicate expiry signals must not duplicate the network call")
}

func TestCredentialExpiredIgnoredWhenAnonymous(t *testing.T) {
	f := setupTestFixture(t)
	f.manager.HandleCredentialExpired(context.Background())
	require.Equal(t, 0, f.gateway.LogoutCalls())
}

func TestSubscribersObserveDurableState(t *testing.T) {
	f := setupTestFixture(t)

	var snapshots []session.Snapshot
	unsubscribe := f.manager.Subscribe(func(snap session.Snapshot) {
		// Storage writes happen before the publish: a subscriber reading the
		// store mid-callback must observe state consistent with the snapshot.
		stored := f.store.LoadIdentity(session.SlotSession)
		if snap.Identity == nil {
			require.Nil(t, stored)
		} else {
			require.True(t, stored.Equal(snap.Identity))
		}
		snapshots = append(snapshots, snap)
	})

	f.loginAsAdmin(t)
	f.manager.Logout(context.Background())
	require.Len(t, snapshots, 2)
	require.Equal(t, session.StateAuthenticated, snapshots[0].State)
	require.Equal(t, session.StateAnonymous, snapshots[1].State)

	unsubscribe()
	f.loginAsAdmin(t)
	require.Len(t, snapshots, 2, "unsubscribed observer must not be called")
}

func TestStorageFailuresDoNotBreakTransitions(t *testing.T) {
	f := setupTestFixture(t)
	f.store.SaveErr = gateway.ErrUnavailable

	f.loginAsAdmin(t)
	require.Equal(t, session.StateAuthenticated, f.manager.State())

	f.manager.Logout(context.Background())
	require.Equal(t, session.StateAnonymous, f.manager.State())
}
