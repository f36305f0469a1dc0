package session

import (
	"sync"
	"testing"
	"time"

	"pdf-chat-bot/internal/repository/memory"
	"pdf-chat-bot/pkg/store"
)

func newTestManager(idleTimeout time.Duration, historyLimit int) *Manager {
	repo := memory.NewSessionRepository(time.Hour)
	return NewManager(repo, idleTimeout, historyLimit)
}

// flush waits until every previously dispatched fn for the user has run.
func flush(m *Manager, userId int64) {
	done := make(chan struct{})
	m.Dispatch(userId, func() { close(done) })
	<-done
}

func TestDispatchRunsInArrivalOrder(t *testing.T) {
	m := newTestManager(time.Hour, 5)

	var mu sync.Mutex
	var got []int
	for i := 0; i < 50; i++ {
		i := i
		m.Dispatch(7, func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	flush(m, 7)

	for i, v := range got {
		if v != i {
			t.Fatalf("event %d ran at position %d: order not preserved", v, i)
		}
	}
	if len(got) != 50 {
		t.Fatalf("ran %d events, want 50", len(got))
	}
}

func TestSelectionQueryFlow(t *testing.T) {
	m := newTestManager(time.Hour, 5)
	now := time.Now()

	var accepted []bool
	m.Dispatch(1, func() {
		sess := m.Resolve(1, 100, now)
		if sess.Mode != store.ModeAwaitingSelection {
			t.Errorf("new session mode %q, want awaiting_selection", sess.Mode)
		}
		// Query before any selection is rejected.
		accepted = append(accepted, m.AcceptQuery(sess))

		m.ApplySelection(sess, Event{Selection: "doc1", SelectionName: "doc1.pdf", At: now})
		accepted = append(accepted, m.AcceptQuery(sess))
	})
	flush(m, 1)

	if accepted[0] {
		t.Error("query accepted while awaiting selection")
	}
	if !accepted[1] {
		t.Error("query rejected after selection")
	}
}

func TestReselectionHistorySemantics(t *testing.T) {
	m := newTestManager(time.Hour, 5)
	now := time.Now()

	m.Dispatch(1, func() {
		sess := m.Resolve(1, 100, now)
		m.ApplySelection(sess, Event{Selection: "doc1", SelectionName: "doc1.pdf", At: now})
		m.AppendTurn(1, sess.Epoch, store.Turn{Question: "q1", Answer: "a1"})

		// Same document again: history survives.
		sess = m.Resolve(1, 100, now)
		if switched := m.ApplySelection(sess, Event{Selection: "doc1", SelectionName: "doc1.pdf", At: now}); switched {
			t.Error("re-selecting the same document reported a switch")
		}
		if len(sess.History) != 1 {
			t.Errorf("history length %d after same-doc reselection, want 1", len(sess.History))
		}

		// Different document: history resets, epoch bumps.
		before := sess.Epoch
		if switched := m.ApplySelection(sess, Event{Selection: "doc2", SelectionName: "doc2.pdf", At: now}); !switched {
			t.Error("switching documents not reported as a switch")
		}
		if len(sess.History) != 0 {
			t.Errorf("history length %d after switch, want 0", len(sess.History))
		}
		if sess.Epoch != before+1 {
			t.Errorf("epoch %d after switch, want %d", sess.Epoch, before+1)
		}
	})
	flush(m, 1)
}

func TestIdleTimeoutResetsLazily(t *testing.T) {
	m := newTestManager(30*time.Minute, 5)
	start := time.Now()

	m.Dispatch(1, func() {
		sess := m.Resolve(1, 100, start)
		m.ApplySelection(sess, Event{Selection: "doc1", SelectionName: "doc1.pdf", At: start})
		m.AppendTurn(1, sess.Epoch, store.Turn{Question: "q", Answer: "a"})
	})
	flush(m, 1)

	m.Dispatch(1, func() {
		sess := m.Resolve(1, 100, start.Add(31*time.Minute))
		if sess.Mode != store.ModeAwaitingSelection {
			t.Errorf("mode %q after idle timeout, want awaiting_selection", sess.Mode)
		}
		if sess.SelectedDoc != "" || len(sess.History) != 0 {
			t.Error("selection or history survived the idle timeout")
		}
	})
	flush(m, 1)
}

func TestIdleTimeoutNotAppliedEarly(t *testing.T) {
	m := newTestManager(30*time.Minute, 5)
	start := time.Now()

	m.Dispatch(1, func() {
		sess := m.Resolve(1, 100, start)
		m.ApplySelection(sess, Event{Selection: "doc1", SelectionName: "doc1.pdf", At: start})
	})
	flush(m, 1)

	m.Dispatch(1, func() {
		sess := m.Resolve(1, 100, start.Add(29*time.Minute))
		if sess.Mode != store.ModeDocumentSelected {
			t.Errorf("mode %q before idle timeout, want document_selected", sess.Mode)
		}
	})
	flush(m, 1)
}

func TestHistoryBound(t *testing.T) {
	m := newTestManager(time.Hour, 3)
	now := time.Now()

	m.Dispatch(1, func() {
		sess := m.Resolve(1, 100, now)
		m.ApplySelection(sess, Event{Selection: "doc1", SelectionName: "doc1.pdf", At: now})
		for i := 0; i < 6; i++ {
			m.AppendTurn(1, sess.Epoch, store.Turn{Question: "q", Answer: "a"})
		}
		sess = m.Resolve(1, 100, now)
		if len(sess.History) != 3 {
			t.Errorf("history length %d, want 3", len(sess.History))
		}
	})
	flush(m, 1)
}

func TestAppendTurnDiscardsStaleEpoch(t *testing.T) {
	m := newTestManager(time.Hour, 5)
	now := time.Now()

	m.Dispatch(1, func() {
		sess := m.Resolve(1, 100, now)
		m.ApplySelection(sess, Event{Selection: "doc1", SelectionName: "doc1.pdf", At: now})
		staleEpoch := sess.Epoch

		// Session resets while an answer is in flight.
		m.Reset(sess)

		if m.AppendTurn(1, staleEpoch, store.Turn{Question: "q", Answer: "a"}) {
			t.Error("stale answer was appended after a reset")
		}
		sess = m.Resolve(1, 100, now)
		if len(sess.History) != 0 {
			t.Errorf("history length %d, want 0", len(sess.History))
		}
	})
	flush(m, 1)
}

func TestUsersDoNotBlockEachOther(t *testing.T) {
	m := newTestManager(time.Hour, 5)

	release := make(chan struct{})
	m.Dispatch(1, func() { <-release })

	done := make(chan struct{})
	m.Dispatch(2, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("user 2 blocked behind user 1's queue")
	}
	close(release)
	flush(m, 1)
}
