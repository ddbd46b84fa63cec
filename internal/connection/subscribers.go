package connection

import (
	"fmt"

	"github.com/carewatch/guardian/internal/protocol"
)

// OnMessage registers h for every delivered envelope. The returned function
// removes this registration; calling it again is a no-op.
func (m *Manager) OnMessage(h MessageHandler) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	m.nextSubID++
	id := m.nextSubID
	m.onMessage[id] = h
	return func() {
		m.subMu.Lock()
		delete(m.onMessage, id)
		m.subMu.Unlock()
	}
}

// OnStatusChange registers h for every status transition. The returned
// function removes this registration.
func (m *Manager) OnStatusChange(h StatusHandler) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	m.nextSubID++
	id := m.nextSubID
	m.onStatus[id] = h
	return func() {
		m.subMu.Lock()
		delete(m.onStatus, id)
		m.subMu.Unlock()
	}
}

// setStatusLocked records a transition and queues its broadcast. Repeating
// the current status is not a transition.
func (m *Manager) setStatusLocked(st Status) {
	if m.status == st {
		return
	}
	m.status = st
	m.observer.StatusChanged(st)
	m.notices.Push(notice{status: st})
}

func (m *Manager) publishLocked(env protocol.Envelope) {
	m.notices.Push(notice{env: &env})
}

// dispatch delivers queued notices in order until the queue is closed.
func (m *Manager) dispatch() {
	defer close(m.dispatched)

	for {
		n, ok := m.notices.Pop()
		if !ok {
			return
		}
		if n.env != nil {
			m.deliverMessage(*n.env)
		} else {
			m.deliverStatus(n.status)
		}
	}
}

func (m *Manager) deliverMessage(env protocol.Envelope) {
	m.subMu.RLock()
	handlers := make([]MessageHandler, 0, len(m.onMessage))
	for _, h := range m.onMessage {
		handlers = append(handlers, h)
	}
	m.subMu.RUnlock()

	for _, h := range handlers {
		m.safeCall("message", func() { h(env) })
	}
}

func (m *Manager) deliverStatus(st Status) {
	m.subMu.RLock()
	handlers := make([]StatusHandler, 0, len(m.onStatus))
	for _, h := range m.onStatus {
		handlers = append(handlers, h)
	}
	m.subMu.RUnlock()

	for _, h := range handlers {
		m.safeCall("status", func() { h(st) })
	}
}

// safeCall runs a subscriber, logging a panic instead of propagating it.
func (m *Manager) safeCall(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("subscriber panicked", "kind", kind, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}
