package conversation

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Manager.Open when the view was closed while it
// was still being opened.
var ErrClosed = errors.New("conversation closed")

// entry is a view slot. ready is closed once view or err is set.
type entry struct {
	ready  chan struct{}
	view   *View
	err    error
	closed bool
}

// Manager owns the open conversation views of one client session.
type Manager struct {
	source Source
	opts   Options

	mu    sync.Mutex
	views map[string]*entry
}

// NewManager constructs a manager over source.
func NewManager(source Source, opts Options) *Manager {
	return &Manager{source: source, opts: opts.withDefaults(), views: make(map[string]*entry)}
}

// Open returns the live view for counterpartID, opening it when needed.
// Concurrent calls for the same counterpart share one open; the source is
// never called with the manager lock held.
func (m *Manager) Open(ctx context.Context, counterpartID string) (*View, error) {
	m.mu.Lock()
	if e, ok := m.views[counterpartID]; ok {
		m.mu.Unlock()
		select {
		case <-e.ready:
			return e.view, e.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e := &entry{ready: make(chan struct{})}
	m.views[counterpartID] = e
	m.mu.Unlock()

	v, err := Open(ctx, m.source, counterpartID, m.opts)

	m.mu.Lock()
	switch {
	case err != nil:
		e.err = err
	case e.closed:
		e.err = ErrClosed
	default:
		v.onClose = m.forget
		e.view = v
	}
	if e.err != nil && m.views[counterpartID] == e {
		delete(m.views, counterpartID)
	}
	close(e.ready)
	m.mu.Unlock()

	if err == nil && e.err != nil {
		v.Close()
	}
	return e.view, e.err
}

// Close tears down the view for counterpartID if one is open. A view still
// opening is closed as soon as it is ready.
func (m *Manager) Close(counterpartID string) {
	m.mu.Lock()
	e := m.views[counterpartID]
	var v *View
	if e != nil {
		if e.view == nil {
			e.closed = true
			delete(m.views, counterpartID)
		}
		v = e.view
	}
	m.mu.Unlock()
	if v != nil {
		v.Close()
	}
}

// CloseAll tears down every open view.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	views := make([]*View, 0, len(m.views))
	for id, e := range m.views {
		if e.view == nil {
			e.closed = true
			delete(m.views, id)
			continue
		}
		views = append(views, e.view)
	}
	m.mu.Unlock()

	for _, v := range views {
		v.Close()
	}
}

// Live reports the number of open views.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.views {
		if e.view != nil {
			n++
		}
	}
	return n
}

func (m *Manager) forget(v *View) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e := m.views[v.counterpartID]; e != nil && e.view == v {
		delete(m.views, v.counterpartID)
	}
}
