package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/evzone-io/go-session-core/gateway"
	"github.com/evzone-io/go-session-core/identity"
	"github.com/evzone-io/go-session-core/internal/obs"
	"github.com/evzone-io/go-session-core/permissions"
)

// Subscriber receives a snapshot after every successful transition.
type Subscriber func(Snapshot)

// Deps holds the collaborator dependencies for the Manager.
type Deps struct {
	Store    Store                 // Durable persistence facade
	Gateway  gateway.Gateway       // External identity verification
	Resolver *permissions.Resolver // Role-group guard for impersonation
}

// Manager is the session state machine. It exclusively owns the in-memory
// current identity and impersonation overlay; feature screens observe it via
// Subscribe and never touch the store directly.
//
// Instances are isolated: tests construct their own Manager rather than
// sharing a process-wide singleton.
type Manager struct {
	deps    Deps
	logger  zerolog.Logger
	nowTime func() time.Time

	loginGroup singleflight.Group

	mu             sync.Mutex
	current        *identity.Identity
	impersonation  *ImpersonationContext
	loading        bool
	lastTransition time.Time
	subscribers    map[string]Subscriber
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for absorbed failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// NewManager initializes a Manager with required dependencies.
func NewManager(deps Deps, options ...Option) (*Manager, error) {
	if deps.Store == nil {
		return nil, errors.New("[NewManager] Store is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("[NewManager] Gateway is required")
	}
	if deps.Resolver == nil {
		return nil, errors.New("[NewManager] Resolver is required")
	}

	obs.Init()

	m := &Manager{
		deps:        deps,
		logger:      zerolog.Nop(),
		nowTime:     time.Now,
		subscribers: make(map[string]Subscriber),
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Current returns a copy of the identity the application acts as, or nil.
func (m *Manager) Current() *identity.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Clone()
}

// Impersonation returns the active overlay, or nil.
func (m *Manager) Impersonation() *ImpersonationContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.impersonation == nil {
		return nil
	}
	ctx := *m.impersonation
	return &ctx
}

// State derives the lifecycle state from the (identity, overlay) pair.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// Loading reports whether a login round trip is in flight, so the UI can
// disable the trigger instead of issuing duplicate attempts.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// Subscribe registers fn to receive every published snapshot and returns the
// matching unsubscribe function.
func (m *Manager) Subscribe(fn Subscriber) (unsubscribe func()) {
	id := uuid.New().String()
	m.mu.Lock()
	m.subscribers[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

// Login authenticates against the gateway and, on success, replaces the
// session identity. Concurrent submissions of the identical credential pair
// share a single gateway round trip and a single publish; a submission with
// a different password never joins another caller's flight. The loading flag
// is always reset, success or failure.
func (m *Manager) Login(ctx context.Context, creds gateway.Credentials) (*identity.Identity, error) {
	m.mu.Lock()
	m.loading = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.loading = false
		m.mu.Unlock()
	}()

	result, err, _ := m.loginGroup.Do(flightKey(creds), func() (any, error) {
		loginResult, err := m.deps.Gateway.Login(ctx, creds)
		if err != nil {
			return nil, err
		}
		if err := loginResult.Identity.Validate(); err != nil {
			return nil, errors.Wrap(err, "[Manager.Login] gateway identity")
		}
		m.commitIdentity(&loginResult.Identity)
		return loginResult.Identity.Clone(), nil
	})
	if err != nil {
		obs.LoginAttempt("failure")
		return nil, errors.Wrap(err, "[Manager.Login] gateway")
	}

	obs.LoginAttempt("success")
	// Each coalesced caller gets its own copy; sharing one pointer would
	// alias mutations across callers.
	return result.(*identity.Identity).Clone(), nil
}

// flightKey coalesces only true duplicate submissions. Keying on the email
// alone would let a wrong-password attempt join a correct-password flight
// and receive its successful result, so the whole credential pair is hashed
// into the key.
func flightKey(creds gateway.Credentials) string {
	sum := sha256.Sum256([]byte(creds.Email + "\x00" + creds.Password))
	return hex.EncodeToString(sum[:])
}

// LoginWithIdentity installs an identity the gateway has already verified
// out of band (OAuth or OTP callbacks). Synchronous; no network round trip.
func (m *Manager) LoginWithIdentity(id *identity.Identity) error {
	if id == nil {
		return errors.Wrap(ErrInvalidIdentity, "[Manager.LoginWithIdentity] nil identity")
	}
	if err := id.Validate(); err != nil {
		return errors.Wrap(err, "[Manager.LoginWithIdentity]")
	}
	m.commitIdentity(id)
	obs.LoginAttempt("success")
	return nil
}

// commitIdentity replaces the session identity, clears any stale
// impersonation slots and publishes. Every login replaces, never merges.
func (m *Manager) commitIdentity(id *identity.Identity) {
	m.mu.Lock()
	m.current = id.Clone()
	m.impersonation = nil
	m.saveLocked(SlotSession, m.current)
	m.saveLocked(SlotImpersonator, nil)
	m.saveReturnToLocked("")
	snap, subs := m.publishLocked()
	m.mu.Unlock()
	notify(snap, subs)
}

// Logout tears the session down. The server-side revoke is best effort: a
// network failure is logged and local state is cleared regardless, so a user
// can always leave a session even when the server is unreachable.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.deps.Gateway.Logout(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("session: server-side logout failed, clearing local state anyway")
	}

	m.mu.Lock()
	m.current = nil
	m.impersonation = nil
	m.saveLocked(SlotSession, nil)
	m.saveLocked(SlotImpersonator, nil)
	m.saveReturnToLocked("")
	snap, subs := m.publishLocked()
	m.mu.Unlock()
	notify(snap, subs)
}

// StartImpersonation lets a platform admin temporarily act as target. The
// role-group guard is defense-in-depth behind the hidden UI affordance, so
// an unqualified caller is a silent no-op, not an error. The impersonated
// identity is the minimal projection of target; the pre-impersonation
// identity and return location are persisted for the way back.
func (m *Manager) StartImpersonation(target *identity.Identity, returnTo string) {
	if target == nil || target.Validate() != nil {
		m.logger.Debug().Msg("session: impersonation target invalid, ignoring")
		obs.Impersonation("denied")
		return
	}

	m.mu.Lock()
	if m.current == nil || m.impersonation != nil ||
		!m.deps.Resolver.IsInRoleGroup(m.current.Role, permissions.GroupPlatformAdmins) {
		m.mu.Unlock()
		m.logger.Debug().Msg("session: impersonation guard failed, ignoring")
		obs.Impersonation("denied")
		return
	}

	impersonator := *m.current
	m.impersonation = &ImpersonationContext{Impersonator: impersonator, ReturnTo: returnTo}
	m.current = target.MinimalProjection()
	m.saveLocked(SlotImpersonator, &impersonator)
	m.saveReturnToLocked(returnTo)
	m.saveLocked(SlotSession, m.current)
	snap, subs := m.publishLocked()
	m.mu.Unlock()
	notify(snap, subs)
	obs.Impersonation("started")
}

// StopImpersonation restores the stored impersonator as the session
// identity. Without one in storage it is a no-op.
func (m *Manager) StopImpersonation() {
	impersonator := m.deps.Store.LoadIdentity(SlotImpersonator)
	if impersonator == nil {
		m.logger.Debug().Msg("session: no impersonator stored, ignoring stop")
		return
	}

	m.mu.Lock()
	m.current = impersonator
	m.impersonation = nil
	m.saveLocked(SlotSession, m.current)
	m.saveLocked(SlotImpersonator, nil)
	m.saveReturnToLocked("")
	snap, subs := m.publishLocked()
	m.mu.Unlock()
	notify(snap, subs)
	obs.Impersonation("stopped")
}

// Restore reconstructs the session from the durable slots at cold start.
// An empty session slot leaves the machine anonymous; a populated
// impersonator slot reconstructs the impersonation overlay.
func (m *Manager) Restore() {
	current := m.deps.Store.LoadIdentity(SlotSession)
	impersonator := m.deps.Store.LoadIdentity(SlotImpersonator)
	returnTo := m.deps.Store.LoadReturnTo()

	m.mu.Lock()
	m.current = current
	m.impersonation = nil
	if current != nil && impersonator != nil {
		m.impersonation = &ImpersonationContext{Impersonator: *impersonator, ReturnTo: returnTo}
	}
	snap, subs := m.publishLocked()
	m.mu.Unlock()
	notify(snap, subs)
}

// HandleCredentialExpired reacts to the external "credential expired"
// signal: a forced logout when a session is present, ignored otherwise.
// Duplicate signals while already anonymous never reach the gateway.
func (m *Manager) HandleCredentialExpired(ctx context.Context) {
	m.mu.Lock()
	present := m.current != nil
	m.mu.Unlock()
	if !present {
		return
	}
	obs.ForcedLogout()
	m.Logout(ctx)
}

func (m *Manager) stateLocked() State {
	switch {
	case m.current == nil:
		return StateAnonymous
	case m.impersonation != nil:
		return StateImpersonating
	default:
		return StateAuthenticated
	}
}

// saveLocked writes a slot, absorbing failures: persistence is a best-effort
// cache and must never break a transition.
func (m *Manager) saveLocked(slot Slot, id *identity.Identity) {
	if err := m.deps.Store.SaveIdentity(slot, id); err != nil {
		m.logger.Warn().Err(err).Str("slot", string(slot)).Msg("session: storage write failed")
	}
}

func (m *Manager) saveReturnToLocked(returnTo string) {
	if err := m.deps.Store.SaveReturnTo(returnTo); err != nil {
		m.logger.Warn().Err(err).Msg("session: returnTo write failed")
	}
}

// LastTransitionAt returns when the last snapshot was published.
func (m *Manager) LastTransitionAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastTransition
}

// publishLocked assembles the snapshot and the subscriber list while holding
// the lock; the caller invokes the subscribers after releasing it, so a
// subscriber may call back into the Manager.
func (m *Manager) publishLocked() (Snapshot, []Subscriber) {
	m.lastTransition = m.nowTime()
	snap := Snapshot{
		Identity: m.current.Clone(),
		State:    m.stateLocked(),
	}
	if m.impersonation != nil {
		ctx := *m.impersonation
		snap.Impersonation = &ctx
	}
	subs := make([]Subscriber, 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	return snap, subs
}

func notify(snap Snapshot, subs []Subscriber) {
	for _, fn := range subs {
		fn(snap)
	}
}
