package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/alanmaizon/slidebuddy/internal/slides"
)

// Session is the per-user context threaded through every call: who is
// asking, with which credential, against which document, and their undo
// history. Nothing about a session lives in package state.
type Session struct {
	ID         string
	Credential string
	Document   slides.Document
	Undo       *UndoStack

	persist func(ctx context.Context) error
}

// New returns a standalone session that is not backed by a store.
func New(id string, doc slides.Document, depth int) *Session {
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	return &Session{ID: id, Document: doc, Undo: NewUndoStack(depth)}
}

// Persist writes the undo stack back to its store, if any.
func (s *Session) Persist(ctx context.Context) error {
	if s == nil || s.persist == nil {
		return nil
	}
	return s.persist(ctx)
}

type entry struct {
	mu      sync.Mutex
	session *Session
}

// Manager hands out sessions by id and serialises requests within a
// session.
type Manager struct {
	store Store
	depth int

	mu      sync.Mutex
	entries map[string]*entry
}

func NewManager(store Store, depth int) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	if depth <= 0 {
		depth = DefaultUndoDepth
	}
	return &Manager{store: store, depth: depth, entries: make(map[string]*entry)}
}

func (m *Manager) Depth() int {
	return m.depth
}

func (m *Manager) StoreName() string {
	return m.store.Name()
}

// Acquire locks session id for the caller and returns it with its undo
// stack loaded. The release func must be called when the request is done.
func (m *Manager) Acquire(ctx context.Context, id string) (*Session, func(), error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok {
		e = &entry{}
		m.entries[id] = e
	}
	m.mu.Unlock()

	e.mu.Lock()
	if e.session == nil {
		session, err := m.load(ctx, id)
		if err != nil {
			e.mu.Unlock()
			return nil, nil, err
		}
		e.session = session
	}
	return e.session, e.mu.Unlock, nil
}

func (m *Manager) load(ctx context.Context, id string) (*Session, error) {
	stack := NewUndoStack(m.depth)
	payload, found, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if found {
		if err := json.Unmarshal(payload, stack); err != nil {
			// A corrupt history loses undo, not the session.
			log.Printf("component=session session_id=%s event=undo_load_failed error=%q", id, err.Error())
			stack = NewUndoStack(m.depth)
		}
	}

	session := &Session{ID: id, Undo: stack}
	session.persist = func(ctx context.Context) error {
		payload, err := json.Marshal(stack)
		if err != nil {
			return fmt.Errorf("encode undo stack: %w", err)
		}
		return m.store.Save(ctx, id, payload)
	}
	return session, nil
}

// Forget drops a session and its persisted history.
func (m *Manager) Forget(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return m.store.Delete(ctx, id)
}

func (m *Manager) Close() error {
	return m.store.Close()
}
