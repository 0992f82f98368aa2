package session

import (
	"context"

	"github.com/evzone-io/go-session-core/expiry"
)

// expiryBindKey is fixed so that re-running the startup path replaces the
// handler instead of stacking duplicates.
const expiryBindKey = "session.Manager"

// BindExpiry subscribes the manager to the credential-expired signal,
// registered once at process start. Repeated calls are idempotent.
func (m *Manager) BindExpiry(n *expiry.Notifier) {
	n.Bind(expiryBindKey, func() {
		m.HandleCredentialExpired(context.Background())
	})
}
