package chat

import (
	"context"
	"sync"
)

const (
	// PageSize is how many messages one pagination round-trip fetches.
	PageSize = 50
	// RetentionCap bounds the in-memory render buffer. Eviction never
	// touches the persisted store.
	RetentionCap = 200
)

// Window is the bounded in-memory view of one session's messages, kept in
// chronological order. It paginates backwards from the newest message:
// Load fetches the most recent page, LoadMore prepends progressively older
// pages. offset counts rows already consumed from the newest end and only
// advances on successful loads.
type Window struct {
	mu          sync.Mutex
	messages    []Message
	hasMore     bool
	offset      int
	loadingMore bool
}

func NewWindow() *Window {
	return &Window{}
}

func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = nil
	w.hasMore = false
	w.offset = 0
	w.loadingMore = false
}

// Load replaces the window with the most recent page of the session.
func (w *Window) Load(ctx context.Context, repo *Repo, sessionID string) error {
	page, err := repo.ListMessagesPageDesc(ctx, sessionID, PageSize, 0)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = reverseChronological(page)
	w.hasMore = len(page) == PageSize
	w.offset = len(page)
	w.loadingMore = false
	w.evictLocked()
	return nil
}

// LoadMore prepends the next older page. It is a no-op when there is
// nothing left or another LoadMore is still in flight.
func (w *Window) LoadMore(ctx context.Context, repo *Repo, sessionID string) error {
	w.mu.Lock()
	if !w.hasMore || w.loadingMore {
		w.mu.Unlock()
		return nil
	}
	w.loadingMore = true
	offset := w.offset
	w.mu.Unlock()

	page, err := repo.ListMessagesPageDesc(ctx, sessionID, PageSize, offset)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.loadingMore = false
	if err != nil {
		return err
	}
	w.messages = append(reverseChronological(page), w.messages...)
	w.offset += len(page)
	w.hasMore = len(page) == PageSize
	w.evictLocked()
	return nil
}

// Append adds a freshly persisted message at the newest end.
func (w *Window) Append(m Message) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, m)
	w.offset++
	w.evictLocked()
}

// Messages returns a copy of the window in chronological order.
func (w *Window) Messages() []Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Message, len(w.messages))
	copy(out, w.messages)
	return out
}

func (w *Window) HasMore() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hasMore
}

func (w *Window) Offset() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.offset
}

func (w *Window) evictLocked() {
	if len(w.messages) > RetentionCap {
		w.messages = w.messages[len(w.messages)-RetentionCap:]
	}
}

// reverseChronological flips a DESC page into oldest -> newest order.
func reverseChronological(desc []Message) []Message {
	out := make([]Message, 0, len(desc))
	for i := len(desc) - 1; i >= 0; i-- {
		out = append(out, desc[i])
	}
	return out
}
