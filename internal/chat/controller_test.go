package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/jurisdesk/jurisdesk/internal/ai"
)

func TestSend_PersistsUserAndAssistantWithProfileAndCost(t *testing.T) {
	prov := &recordingProvider{result: ai.Result{
		Content:  "Segue a petição inicial.",
		Thinking: "raciocínio interno",
		ClaudeUsage: &ai.ClaudeUsage{
			InputTokens:  1200,
			OutputTokens: 900,
		},
	}}
	ctrl, repo := newTestController(t, prov)

	sess, err := ctrl.CreateSession(context.Background(), "claude", "default", nil, "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	assistant, err := ctrl.Send(context.Background(), "Elabore uma petição inicial", SendOptions{})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if assistant.ID == 0 {
		t.Fatalf("assistant message id not assigned")
	}

	var msgs []Message
	if err := repoDB(repo).Where("session_id = ?", sess.SessionID).
		Order("id ASC").Find(&msgs).Error; err != nil {
		t.Fatalf("query messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[0].Content != "Elabore uma petição inicial" {
		t.Fatalf("unexpected user msg: %+v", msgs[0])
	}
	if msgs[1].Role != "assistant" {
		t.Fatalf("unexpected assistant msg: %+v", msgs[1])
	}
	if msgs[1].IntentProfile == nil || *msgs[1].IntentProfile != "peca" {
		t.Fatalf("assistant intent_profile = %v, want peca", msgs[1].IntentProfile)
	}
	if msgs[1].CostUSD == nil || *msgs[1].CostUSD <= 0 {
		t.Fatalf("assistant cost_usd = %v, want > 0", msgs[1].CostUSD)
	}
	if msgs[1].ThinkingContent == nil || *msgs[1].ThinkingContent != "raciocínio interno" {
		t.Fatalf("thinking content not persisted: %v", msgs[1].ThinkingContent)
	}

	// peca profile drove the provider config
	if prov.lastReq.Config.Claude == nil || !prov.lastReq.Config.Claude.ThinkingEnabled {
		t.Fatalf("peca should enable thinking: %+v", prov.lastReq.Config.Claude)
	}

	// window reflects both turns with real ids
	win := ctrl.WindowMessages()
	if len(win) != 2 || win[0].ID != msgs[0].ID || win[1].ID != msgs[1].ID {
		t.Fatalf("window out of sync with store: %+v", win)
	}
	if ctrl.IsSending() {
		t.Fatalf("sending flag not cleared")
	}
}

func TestSend_ContextWindowCap(t *testing.T) {
	prov := &recordingProvider{result: ai.Result{Content: "ok"}}
	db := openTestDB(t)
	repo := NewRepo(db)
	reg := ai.NewRegistry()
	reg.Register("fake", func(ctx context.Context, model string) (ai.Provider, error) {
		_, _ = ctx, model
		return prov, nil
	})
	ctrl := NewController(ControllerDeps{Repo: repo, Registry: reg, ContextSize: 3})

	sess, err := ctrl.CreateSession(context.Background(), "fake", "default", nil, "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	seedMessages(t, repo, sess.SessionID, 5)

	if _, err := ctrl.Send(context.Background(), "nova", SendOptions{}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(prov.lastReq.Messages) != 3 {
		t.Fatalf("provider got %d messages, want 3", len(prov.lastReq.Messages))
	}
	last := prov.lastReq.Messages[len(prov.lastReq.Messages)-1]
	if last.Role != "user" || last.Content != "nova" {
		t.Fatalf("newest context message should be the new user turn, got %+v", last)
	}
}

func TestSend_ProviderFailureKeepsUserMessage(t *testing.T) {
	prov := &recordingProvider{err: errors.New("boom")}
	ctrl, repo := newTestController(t, prov)

	sess, err := ctrl.CreateSession(context.Background(), "fake", "default", nil, "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	if _, err := ctrl.Send(context.Background(), "olá", SendOptions{}); err == nil {
		t.Fatalf("expected send to fail")
	}

	// orphaned user turn stays; no assistant reply; flags cleared
	var msgs []Message
	if err := repoDB(repo).Where("session_id = ?", sess.SessionID).Find(&msgs).Error; err != nil {
		t.Fatalf("query messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != "user" {
		t.Fatalf("expected single orphaned user turn, got %+v", msgs)
	}
	if ctrl.IsSending() {
		t.Fatalf("sending flag not cleared on failure")
	}
	if ctrl.CurrentProfile() != "" {
		t.Fatalf("profile not cleared on failure")
	}
	if ctrl.LastError() == "" {
		t.Fatalf("expected stored error message")
	}
}

func TestSend_OverridesBeatIntentAndToggles(t *testing.T) {
	prov := &recordingProvider{result: ai.Result{Content: "ok"}}
	db := openTestDB(t)
	repo := NewRepo(db)
	reg := ai.NewRegistry()
	reg.Register("fake", func(ctx context.Context, model string) (ai.Provider, error) {
		_, _ = ctx, model
		return prov, nil
	})
	ctrl := NewController(ControllerDeps{
		Repo:     repo,
		Registry: reg,
		Toggles:  staticToggles{thinking: false, webSearch: false},
	})
	if _, err := ctrl.CreateSession(context.Background(), "fake", "default", nil, ""); err != nil {
		t.Fatalf("create session: %v", err)
	}

	maxTokens := 999
	webSearch := true
	if _, err := ctrl.Send(context.Background(), "pesquise a jurisprudência", SendOptions{
		MaxTokens: &maxTokens,
		WebSearch: &webSearch,
	}); err != nil {
		t.Fatalf("send: %v", err)
	}

	got := prov.lastReq.Config
	if got.MaxTokens != 999 {
		t.Fatalf("override max tokens not applied: %d", got.MaxTokens)
	}
	// toggle disabled web search, but the explicit override wins
	if !got.WebSearch {
		t.Fatalf("explicit web-search override must beat the settings toggle")
	}
}

type staticToggles struct {
	thinking  bool
	webSearch bool
}

func (s staticToggles) ThinkingEnabled(context.Context) bool  { return s.thinking }
func (s staticToggles) WebSearchEnabled(context.Context) bool { return s.webSearch }

func TestFetchSessions_ConcurrentCallsCoalesce(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	ctrl := NewController(ControllerDeps{Repo: repo, Registry: ai.NewRegistry()})

	// After gorm:query the statement table is resolved; the sleep keeps the
	// first call inside the singleflight window while the others arrive.
	var queries int64
	err := db.Callback().Query().After("gorm:query").Register("test_count_session_queries", func(tx *gorm.DB) {
		if tx.Statement.Table == "chat_sessions" {
			atomic.AddInt64(&queries, 1)
			time.Sleep(100 * time.Millisecond)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ctrl.FetchSessions(context.Background()); err != nil {
				t.Errorf("fetch sessions: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt64(&queries); n != 1 {
		t.Fatalf("expected exactly 1 underlying query, got %d", n)
	}
}

func TestLoadSession_NotFound(t *testing.T) {
	ctrl, _ := newTestController(t, &recordingProvider{})
	if _, err := ctrl.LoadSession(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("got %v, want ErrSessionNotFound", err)
	}
}

func TestLoadSession_ActivatesAndLoadsFirstPage(t *testing.T) {
	ctrl, repo := newTestController(t, &recordingProvider{})
	sess := seedSession(t, repo, "fake", "m")
	seedMessages(t, repo, sess.SessionID, 4)

	got, err := ctrl.LoadSession(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if got.SessionID != sess.SessionID {
		t.Fatalf("loaded wrong session")
	}
	if active := ctrl.ActiveSession(); active == nil || active.SessionID != sess.SessionID {
		t.Fatalf("session not activated")
	}
	if len(ctrl.WindowMessages()) != 4 {
		t.Fatalf("window not loaded")
	}
}

// parkNextSessionQuery blocks the next chat_sessions query once armed,
// letting tests interleave a session switch with an in-flight load.
func parkNextSessionQuery(t *testing.T, repo *Repo, name string) (arm func(), entered, release chan struct{}) {
	t.Helper()
	var armed atomic.Bool
	entered = make(chan struct{})
	release = make(chan struct{})
	err := repoDB(repo).Callback().Query().After("gorm:query").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table == "chat_sessions" && armed.CompareAndSwap(true, false) {
			close(entered)
			<-release
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
	return func() { armed.Store(true) }, entered, release
}

func TestLoadSession_SupersededByCreateIsDiscarded(t *testing.T) {
	ctrl, repo := newTestController(t, &recordingProvider{})
	old := seedSession(t, repo, "fake", "m")
	seedMessages(t, repo, old.SessionID, 2)

	arm, entered, release := parkNextSessionQuery(t, repo, "test_park_load_vs_create")

	arm()
	loadErr := make(chan error, 1)
	go func() {
		_, err := ctrl.LoadSession(context.Background(), old.SessionID)
		loadErr <- err
	}()
	<-entered

	created, err := ctrl.CreateSession(context.Background(), "fake", "default", nil, "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	close(release)

	if err := <-loadErr; !errors.Is(err, ErrStaleLoad) {
		t.Fatalf("superseded load returned %v, want ErrStaleLoad", err)
	}
	if active := ctrl.ActiveSession(); active == nil || active.SessionID != created.SessionID {
		t.Fatalf("stale load stole the active slot: %+v", active)
	}
	if len(ctrl.WindowMessages()) != 0 {
		t.Fatalf("stale load replaced the fresh window")
	}
}

func TestLoadSession_SupersededByDeleteIsDiscarded(t *testing.T) {
	ctrl, repo := newTestController(t, &recordingProvider{})
	sess := seedSession(t, repo, "fake", "m")
	if _, err := ctrl.LoadSession(context.Background(), sess.SessionID); err != nil {
		t.Fatalf("load session: %v", err)
	}

	arm, entered, release := parkNextSessionQuery(t, repo, "test_park_load_vs_delete")

	arm()
	loadErr := make(chan error, 1)
	go func() {
		_, err := ctrl.LoadSession(context.Background(), sess.SessionID)
		loadErr <- err
	}()
	<-entered

	if err := ctrl.DeleteSession(context.Background(), sess.SessionID); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	close(release)

	if err := <-loadErr; !errors.Is(err, ErrStaleLoad) {
		t.Fatalf("superseded load returned %v, want ErrStaleLoad", err)
	}
	if ctrl.ActiveSession() != nil {
		t.Fatalf("stale load resurrected a deleted session as active")
	}
}

func TestDeleteSession_CascadesAndClearsActive(t *testing.T) {
	ctrl, repo := newTestController(t, &recordingProvider{result: ai.Result{Content: "ok"}})
	sess, err := ctrl.CreateSession(context.Background(), "fake", "default", nil, "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := ctrl.Send(context.Background(), "olá", SendOptions{}); err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := ctrl.DeleteSession(context.Background(), sess.SessionID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var n int64
	if err := repoDB(repo).Model(&Message{}).Where("session_id = ?", sess.SessionID).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("messages not cascaded, %d left", n)
	}
	if ctrl.ActiveSession() != nil {
		t.Fatalf("active session not cleared")
	}
	if len(ctrl.WindowMessages()) != 0 {
		t.Fatalf("window not cleared")
	}
}

func TestUpdateSessionProviderModel_PreservesHistory(t *testing.T) {
	ctrl, repo := newTestController(t, &recordingProvider{result: ai.Result{Content: "ok"}})
	sess, err := ctrl.CreateSession(context.Background(), "fake", "default", nil, "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := ctrl.Send(context.Background(), "olá", SendOptions{}); err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := ctrl.UpdateSessionProviderModel(context.Background(), sess.SessionID, "fake", "other"); err != nil {
		t.Fatalf("update: %v", err)
	}
	reread, err := repo.GetSessionBySessionID(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reread.Model != "other" {
		t.Fatalf("model not rebound: %q", reread.Model)
	}
	n, err := repo.CountMessages(context.Background(), sess.SessionID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("history lost on rebind: %d", n)
	}
	if active := ctrl.ActiveSession(); active == nil || active.Model != "other" {
		t.Fatalf("in-memory active session not rebound")
	}
}

// repoDB exposes the underlying gorm handle for assertions.
func repoDB(r *Repo) *gorm.DB { return r.db }
