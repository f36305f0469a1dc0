package session

import (
	"sync"
	"time"

	"pdf-chat-bot/internal/repository/memory"
	"pdf-chat-bot/pkg/store"
)

// Event is one selection interaction as seen by the manager. Queries and
// timeouts have no payload beyond the session itself and go through
// AcceptQuery and Resolve instead.
type Event struct {
	Selection     string // document id or store.SelectionAll
	SelectionName string
	At            time.Time
}

// Manager owns all session mutation. Events for one user run strictly in
// arrival order on a per-user queue; events for different users run
// concurrently. A selection arriving while a query is still being answered
// waits behind it, so the selection can never change mid-answer.
//
// Transition table:
//
//	awaiting_selection + Selection -> document_selected
//	awaiting_selection + Query     -> awaiting_selection (query rejected)
//	document_selected  + Selection -> document_selected (history reset iff the document changed)
//	document_selected  + Query     -> document_selected (query answered)
//	any                + Timeout   -> awaiting_selection (history cleared, epoch bumped)
type Manager struct {
	repo         *memory.SessionRepository
	idleTimeout  time.Duration
	historyLimit int

	mu     sync.Mutex
	queues map[int64]*userQueue
}

type userQueue struct {
	pending []func()
	running bool
}

func NewManager(repo *memory.SessionRepository, idleTimeout time.Duration, historyLimit int) *Manager {
	return &Manager{
		repo:         repo,
		idleTimeout:  idleTimeout,
		historyLimit: historyLimit,
		queues:       make(map[int64]*userQueue),
	}
}

// Dispatch enqueues fn on the user's serialization queue and returns
// immediately. fn runs after every previously dispatched fn for the same
// user has finished.
func (m *Manager) Dispatch(userId int64, fn func()) {
	m.mu.Lock()
	q, ok := m.queues[userId]
	if !ok {
		q = &userQueue{}
		m.queues[userId] = q
	}
	q.pending = append(q.pending, fn)
	if q.running {
		m.mu.Unlock()
		return
	}
	q.running = true
	m.mu.Unlock()

	go m.drain(userId, q)
}

func (m *Manager) drain(userId int64, q *userQueue) {
	for {
		m.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			delete(m.queues, userId)
			m.mu.Unlock()
			return
		}
		fn := q.pending[0]
		q.pending = q.pending[1:]
		m.mu.Unlock()

		fn()
	}
}

// Resolve returns the user's session, creating it on first interaction and
// applying the idle-timeout transition when the last activity is too old.
// Must be called from within a dispatched fn.
func (m *Manager) Resolve(userId, chatId int64, now time.Time) *store.Session {
	sess, found := m.repo.Get(userId)
	if !found {
		sess = &store.Session{
			UserId: userId,
			ChatId: chatId,
			Mode:   store.ModeAwaitingSelection,
		}
	}
	sess.ChatId = chatId

	if found && m.idleTimeout > 0 && now.Sub(sess.LastActivity) > m.idleTimeout {
		m.reset(sess)
	}

	sess.LastActivity = now
	m.repo.Save(sess)
	return sess
}

// ApplySelection records a new selection. Rolling history survives a
// re-selection of the same document and is reset when the selection
// switches to a different one.
func (m *Manager) ApplySelection(sess *store.Session, ev Event) (switched bool) {
	switched = sess.Mode == store.ModeDocumentSelected && sess.SelectedDoc != ev.Selection
	if switched {
		sess.History = nil
		sess.Epoch++
	}
	sess.Mode = store.ModeDocumentSelected
	sess.SelectedDoc = ev.Selection
	sess.SelectedName = ev.SelectionName
	sess.LastActivity = ev.At
	m.repo.Save(sess)
	return switched
}

// AcceptQuery reports whether the session is in a state where a free-text
// message is a query for the current selection.
func (m *Manager) AcceptQuery(sess *store.Session) bool {
	return sess.Mode == store.ModeDocumentSelected && sess.SelectedDoc != ""
}

// AppendTurn appends a completed Q/A exchange to the rolling history,
// evicting the oldest turn past the bound. The epoch captured before the
// answer started must still match; otherwise the session was reset while
// the answer was in flight and the result is discarded.
func (m *Manager) AppendTurn(userId int64, epoch uint64, turn store.Turn) bool {
	sess, found := m.repo.Get(userId)
	if !found || sess.Epoch != epoch {
		return false
	}
	sess.History = append(sess.History, turn)
	if m.historyLimit > 0 && len(sess.History) > m.historyLimit {
		sess.History = sess.History[len(sess.History)-m.historyLimit:]
	}
	m.repo.Save(sess)
	return true
}

// Reset forces the session back to awaiting_selection, as /start does.
// Must be called from within a dispatched fn.
func (m *Manager) Reset(sess *store.Session) {
	m.reset(sess)
	m.repo.Save(sess)
}

// reset applies the timeout transition: back to awaiting_selection with
// transient fields cleared. The entity itself persists.
func (m *Manager) reset(sess *store.Session) {
	sess.Mode = store.ModeAwaitingSelection
	sess.SelectedDoc = ""
	sess.SelectedName = ""
	sess.History = nil
	sess.Epoch++
}
