// Package filestore persists the session slots as a single JSON document on
// disk. It is a best-effort cache: reads fail soft, a corrupt or unreadable
// file is treated as empty, and writes go through a temp-file rename guarded
// by a cross-process file lock.
package filestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/evzone-io/go-session-core/identity"
	"github.com/evzone-io/go-session-core/session"
)

const defaultNamespace = "evzone.ops"

var _ session.Store = (*Store)(nil)

// Store implements session.Store on top of a JSON file. Keys are namespaced
// so the document can share a directory with unrelated application storage.
type Store struct {
	path      string
	namespace string
	logger    zerolog.Logger

	mu  sync.Mutex
	flk *flock.Flock
}

// Option configures a Store.
type Option func(*Store)

// WithNamespace overrides the key namespace prefix.
func WithNamespace(namespace string) Option {
	return func(s *Store) {
		s.namespace = namespace
	}
}

// WithLogger sets the logger for absorbed read/write failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store persisting to path. The lock file lives next to it.
func New(path string, options ...Option) *Store {
	s := &Store{
		path:      path,
		namespace: defaultNamespace,
		logger:    zerolog.Nop(),
		flk:       flock.New(path + ".lock"),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Store) key(slot session.Slot) string {
	return s.namespace + "." + string(slot)
}

func (s *Store) LoadIdentity(slot session.Slot) *identity.Identity {
	raw, ok := s.read()[s.key(slot)]
	if !ok {
		return nil
	}
	var id identity.Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		s.logger.Warn().Err(err).Str("slot", string(slot)).Msg("filestore: malformed identity, treating as absent")
		return nil
	}
	return &id
}

func (s *Store) SaveIdentity(slot session.Slot, id *identity.Identity) error {
	if id == nil {
		return s.update(func(doc map[string]json.RawMessage) {
			delete(doc, s.key(slot))
		})
	}
	raw, err := json.Marshal(id)
	if err != nil {
		return errors.Wrap(err, "[filestore.SaveIdentity] marshal")
	}
	return s.update(func(doc map[string]json.RawMessage) {
		doc[s.key(slot)] = raw
	})
}

func (s *Store) LoadReturnTo() string {
	raw, ok := s.read()[s.key(session.SlotReturnTo)]
	if !ok {
		return ""
	}
	var returnTo string
	if err := json.Unmarshal(raw, &returnTo); err != nil {
		s.logger.Warn().Err(err).Msg("filestore: malformed returnTo, treating as absent")
		return ""
	}
	return returnTo
}

func (s *Store) SaveReturnTo(returnTo string) error {
	if returnTo == "" {
		return s.update(func(doc map[string]json.RawMessage) {
			delete(doc, s.key(session.SlotReturnTo))
		})
	}
	raw, err := json.Marshal(returnTo)
	if err != nil {
		return errors.Wrap(err, "[filestore.SaveReturnTo] marshal")
	}
	return s.update(func(doc map[string]json.RawMessage) {
		doc[s.key(session.SlotReturnTo)] = raw
	})
}

// read loads the whole document, failing soft: any IO or decode problem is
// logged and reported as an empty document.
func (s *Store) read() map[string]json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flk.RLock(); err != nil {
		s.logger.Warn().Err(err).Msg("filestore: read lock failed, treating store as empty")
		return map[string]json.RawMessage{}
	}
	defer func() { _ = s.flk.Unlock() }()

	return s.readLocked()
}

func (s *Store) readLocked() map[string]json.RawMessage {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Msg("filestore: read failed, treating store as empty")
		}
		return map[string]json.RawMessage{}
	}
	doc := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn().Err(err).Msg("filestore: corrupt document, treating store as empty")
		return map[string]json.RawMessage{}
	}
	return doc
}

// update applies mutate under the exclusive lock and writes the document
// back atomically via temp file + rename.
func (s *Store) update(mutate func(doc map[string]json.RawMessage)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flk.Lock(); err != nil {
		return errors.Wrap(err, "[filestore.update] lock")
	}
	defer func() { _ = s.flk.Unlock() }()

	doc := s.readLocked()
	mutate(doc)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[filestore.update] marshal")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "[filestore.update] mkdir")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "[filestore.update] write temp")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "[filestore.update] rename")
	}
	return nil
}
