package chat

import (
	"context"
	"fmt"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/jurisdesk/jurisdesk/internal/ai"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Session{}, &Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedSession(t *testing.T, repo *Repo, provider, model string) *Session {
	t.Helper()
	sid, err := NewSessionID()
	if err != nil {
		t.Fatalf("session id: %v", err)
	}
	s := &Session{SessionID: sid, Title: "Teste", Provider: provider, Model: model}
	if err := repo.CreateSession(context.Background(), s); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return s
}

func seedMessages(t *testing.T, repo *Repo, sessionID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		if err := repo.InsertMessage(context.Background(), &Message{
			SessionID: sessionID,
			Role:      role,
			Content:   fmt.Sprintf("msg-%d", i),
		}); err != nil {
			t.Fatalf("seed msg %d: %v", i, err)
		}
	}
}

// recordingProvider captures the request and answers with fixed content and
// usage, so send-pipeline tests can assert on config and cost.
type recordingProvider struct {
	lastReq ai.Request
	result  ai.Result
	err     error
}

func (p *recordingProvider) Chat(ctx context.Context, req ai.Request) (*ai.Result, error) {
	_ = ctx
	p.lastReq = req
	p.lastReq.Messages = append([]ai.Message(nil), req.Messages...)
	if p.err != nil {
		return nil, p.err
	}
	res := p.result
	return &res, nil
}

func newTestController(t *testing.T, prov ai.Provider) (*Controller, *Repo) {
	t.Helper()
	db := openTestDB(t)
	repo := NewRepo(db)
	reg := ai.NewRegistry()
	factory := func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		_ = model
		return prov, nil
	}
	// "claude" is registered too so tests can exercise family-specific
	// config without a real client
	reg.Register("fake", factory)
	reg.Register("claude", factory)
	ctrl := NewController(ControllerDeps{Repo: repo, Registry: reg, ContextSize: 20})
	return ctrl, repo
}
