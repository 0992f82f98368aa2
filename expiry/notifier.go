// Package expiry bridges the asynchronous "credential expired" signal raised
// by the network layer into the session core. The signal carries no payload:
// it only means the current credential is no longer valid.
package expiry

import "sync"

// Notifier fans a credential-expired notification out to bound handlers.
// Binding is keyed, so re-binding the same key (a hot reload re-running the
// startup path) replaces the handler instead of accumulating duplicates that
// would each independently force a logout.
type Notifier struct {
	mu       sync.Mutex
	handlers map[string]func()
}

// New returns an isolated Notifier, mainly for tests. Production code uses
// Default.
func New() *Notifier {
	return &Notifier{handlers: make(map[string]func())}
}

// Bind registers fn under key, replacing any previous binding for key.
func (n *Notifier) Bind(key string, fn func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[key] = fn
}

// Unbind removes the binding for key, if any.
func (n *Notifier) Unbind(key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.handlers, key)
}

// Notify invokes every bound handler once. Handlers run outside the lock so
// they may bind or unbind in response.
func (n *Notifier) Notify() {
	n.mu.Lock()
	fns := make([]func(), 0, len(n.handlers))
	for _, fn := range n.handlers {
		fns = append(fns, fn)
	}
	n.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

var defaultNotifier = New()

// Default returns the process-wide notifier the network layer raises the
// signal on.
func Default() *Notifier {
	return defaultNotifier
}
