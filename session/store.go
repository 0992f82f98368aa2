package session

import "github.com/evzone-io/go-session-core/identity"

// Slot names one of the three durable persistence slots this core owns.
type Slot string

const (
	// SlotSession holds the identity the application currently acts as.
	SlotSession Slot = "session"
	// SlotImpersonator holds the pre-impersonation identity while an
	// impersonation overlay is active.
	SlotImpersonator Slot = "impersonator"
	// SlotReturnTo holds the location to return to when impersonation ends.
	SlotReturnTo Slot = "returnTo"
)

// Store is the durable session persistence facade. It is a best-effort
// cache, not a source of truth: loads fail soft, returning absence instead
// of propagating storage corruption or unavailability to the caller.
//
// Saving a nil identity (or an empty returnTo) removes the slot entirely, so
// a subsequent load reports an unambiguous absence.
type Store interface {
	// LoadIdentity returns the identity stored in slot, or nil if the slot
	// is empty, unreadable, or holds malformed data.
	LoadIdentity(slot Slot) *identity.Identity

	// SaveIdentity persists id into slot; nil removes the slot.
	SaveIdentity(slot Slot, id *identity.Identity) error

	// LoadReturnTo returns the stored return location, or "" when absent.
	LoadReturnTo() string

	// SaveReturnTo persists the return location; "" removes the slot.
	SaveReturnTo(returnTo string) error
}
