// Package session owns the in-memory current identity of the operations
// dashboard, drives login, logout and restore, and owns the impersonation
// overlay. All persistence goes through the Store facade and all external
// identity verification through the gateway collaborator.
package session

import "github.com/evzone-io/go-session-core/identity"

// State is the derived lifecycle state of the session.
type State string

const (
	// StateAnonymous means no identity is present.
	StateAnonymous State = "ANONYMOUS"
	// StateAuthenticated means an identity is present with no overlay.
	StateAuthenticated State = "AUTHENTICATED"
	// StateImpersonating means the current identity is an impersonation
	// target and a pointer back to the impersonator exists.
	StateImpersonating State = "IMPERSONATING"
)

// ImpersonationContext exists if and only if the current identity is being
// impersonated. At most one level is ever active: the impersonator captured
// here is always the pre-impersonation identity, never a nested one.
type ImpersonationContext struct {
	Impersonator identity.Identity `json:"impersonator"`
	ReturnTo     string            `json:"return_to"`
}

// Snapshot is what subscribers receive on every successful transition.
// Storage writes for the transition happen before the snapshot is published,
// so a reload observed immediately afterwards sees consistent state.
type Snapshot struct {
	Identity      *identity.Identity
	Impersonation *ImpersonationContext
	State         State
}
