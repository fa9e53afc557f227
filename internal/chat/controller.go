package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/jurisdesk/jurisdesk/internal/ai"
	"github.com/jurisdesk/jurisdesk/internal/cost"
	"github.com/jurisdesk/jurisdesk/internal/intent"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoActiveSession = errors.New("no active session")
	// ErrStaleLoad marks a LoadSession whose result arrived after a newer
	// load started; the result was discarded.
	ErrStaleLoad = errors.New("session load superseded")
)

const (
	defaultProvider = "ollama"
	defaultModel    = "llama3:latest"
	defaultTitle    = "Nova conversa"
	// ContextSize caps how many persisted messages are replayed to the
	// provider per send. Independent of the UI window cap.
	ContextSize = 20
)

// ActivityLogger records audit entries. Failures must never abort the
// operation that triggered them.
type ActivityLogger interface {
	Log(ctx context.Context, entityType string, entityID uint64, action, name, details string)
}

// BackupTrigger requests a database backup; debouncing happens downstream.
type BackupTrigger interface {
	Trigger(ctx context.Context)
}

// UsageRecord is the raw token breakdown written to the usage ledger
// alongside the computed cost.
type UsageRecord struct {
	SessionID      string
	MessageID      uint64
	Provider       string
	Model          string
	Profile        string
	InputTokens    int
	OutputTokens   int
	ThinkingTokens int
	CachedTokens   int
	CostUSD        float64
}

type UsageLedger interface {
	Record(ctx context.Context, rec UsageRecord) error
}

// FeatureToggles gates whether intent-derived features are honored at all.
type FeatureToggles interface {
	ThinkingEnabled(ctx context.Context) bool
	WebSearchEnabled(ctx context.Context) bool
}

// SendOptions are explicit per-call overrides. They replace the final value
// unconditionally, after intent classification and settings gating.
type SendOptions struct {
	MaxTokens       *int
	WebSearch       *bool
	ThinkingBudget  *int
	ReasoningEffort *string
	Verbosity       *string
}

type ControllerDeps struct {
	Repo        *Repo
	Registry    *ai.Registry
	Activity    ActivityLogger
	Backup      BackupTrigger
	Usage       UsageLedger
	Toggles     FeatureToggles
	ContextSize int
	Logger      *zap.Logger
}

// Controller owns the single active session and its message window, and
// runs the send pipeline. All exported methods are safe for concurrent use.
type Controller struct {
	repo        *Repo
	registry    *ai.Registry
	activity    ActivityLogger
	backup      BackupTrigger
	usage       UsageLedger
	toggles     FeatureToggles
	contextSize int
	log         *zap.Logger

	mu             sync.Mutex
	sessions       []Session
	active         *Session
	window         *Window
	sending        bool
	currentProfile intent.Profile
	lastErr        string
	loadGen        uint64

	sf singleflight.Group
}

func NewController(deps ControllerDeps) *Controller {
	size := deps.ContextSize
	if size <= 0 || size > 100 {
		size = ContextSize
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		repo:        deps.Repo,
		registry:    deps.Registry,
		activity:    deps.Activity,
		backup:      deps.Backup,
		usage:       deps.Usage,
		toggles:     deps.Toggles,
		contextSize: size,
		log:         logger,
		window:      NewWindow(),
	}
}

// FetchSessions refreshes the session list. Concurrent calls are coalesced:
// every caller observes the result of a single underlying query.
func (c *Controller) FetchSessions(ctx context.Context) ([]Session, error) {
	v, err, _ := c.sf.Do("sessions", func() (any, error) {
		return c.repo.ListSessions(ctx)
	})
	if err != nil {
		c.setErr(fmt.Sprintf("falha ao carregar sessões: %v", err))
		return nil, err
	}
	sessions := v.([]Session)
	c.mu.Lock()
	c.sessions = sessions
	c.mu.Unlock()
	return sessions, nil
}

// CreateSession persists a new session, re-reads it, prepends it to the
// list, makes it active and clears the window. The error is returned to the
// caller in addition to being stored.
func (c *Controller) CreateSession(ctx context.Context, provider, model string, caseID *uint64, title string) (*Session, error) {
	if provider == "" {
		provider = defaultProvider
	}
	if model == "" {
		model = defaultModel
	}
	if title == "" {
		title = defaultTitle
	}

	sid, err := NewSessionID()
	if err != nil {
		return nil, err
	}
	if err := c.repo.CreateSession(ctx, &Session{
		SessionID: sid,
		CaseID:    caseID,
		Title:     title,
		Provider:  provider,
		Model:     model,
	}); err != nil {
		c.setErr(fmt.Sprintf("falha ao criar sessão: %v", err))
		return nil, err
	}

	created, err := c.repo.GetSessionBySessionID(ctx, sid)
	if err != nil {
		c.setErr(fmt.Sprintf("falha ao reler sessão: %v", err))
		return nil, err
	}

	c.mu.Lock()
	c.sessions = append([]Session{*created}, c.sessions...)
	c.active = created
	c.window.Reset()
	// invalidate any in-flight LoadSession so it cannot steal the
	// active slot back when it completes
	c.loadGen++
	c.mu.Unlock()

	c.notifyMutation(ctx, "chat_session", created.ID, "created", created.Title, "")
	return created, nil
}

// LoadSession activates a session and loads its first message page. A load
// superseded by a newer one (or by a session switch) is discarded on
// arrival and reported as ErrStaleLoad.
func (c *Controller) LoadSession(ctx context.Context, sessionID string) (*Session, error) {
	c.mu.Lock()
	c.loadGen++
	gen := c.loadGen
	c.mu.Unlock()

	sess, err := c.repo.GetSessionBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.setErr("sessão não encontrada")
			return nil, ErrSessionNotFound
		}
		c.setErr(fmt.Sprintf("falha ao carregar sessão: %v", err))
		return nil, err
	}

	w := NewWindow()
	if err := w.Load(ctx, c.repo, sessionID); err != nil {
		c.setErr(fmt.Sprintf("falha ao carregar mensagens: %v", err))
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.loadGen {
		return nil, ErrStaleLoad
	}
	c.active = sess
	c.window = w
	return sess, nil
}

// LoadOlderMessages pages the active session's window backwards. No-op when
// everything is already loaded or a page fetch is in flight.
func (c *Controller) LoadOlderMessages(ctx context.Context) error {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return ErrNoActiveSession
	}
	sessionID := c.active.SessionID
	w := c.window
	c.mu.Unlock()

	if err := w.LoadMore(ctx, c.repo, sessionID); err != nil {
		c.setErr(fmt.Sprintf("falha ao carregar mensagens antigas: %v", err))
		return err
	}
	return nil
}

// Send runs the pipeline: classify intent, persist the user turn, build the
// provider context, call the provider, compute cost and persist the
// assistant turn. The user message is never rolled back on later failures;
// an aborted send leaves an orphaned user turn in the store.
func (c *Controller) Send(ctx context.Context, text string, opts SendOptions) (*Message, error) {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	sess := *c.active
	family := ai.FamilyOf(sess.Provider)
	profile, gen := intent.Classify(family, text)
	c.sending = true
	c.currentProfile = profile
	c.lastErr = ""
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.sending = false
		c.currentProfile = ""
		c.mu.Unlock()
	}()

	c.applyToggles(ctx, &gen)
	applyOverrides(&gen, opts)

	profileStr := string(profile)
	userMsg := &Message{
		SessionID:     sess.SessionID,
		Role:          "user",
		Content:       text,
		IntentProfile: &profileStr,
	}
	// persist first: the window only ever sees the database-assigned id
	if err := c.repo.InsertMessage(ctx, userMsg); err != nil {
		c.setErr(fmt.Sprintf("falha ao gravar mensagem: %v", err))
		return nil, err
	}
	c.appendIfActive(sess.SessionID, *userMsg)

	recentDesc, err := c.repo.ListRecentMessagesDesc(ctx, sess.SessionID, c.contextSize)
	if err != nil {
		c.setErr(fmt.Sprintf("falha ao montar contexto: %v", err))
		return nil, err
	}
	providerMsgs := make([]ai.Message, 0, len(recentDesc))
	for i := len(recentDesc) - 1; i >= 0; i-- {
		m := recentDesc[i]
		providerMsgs = append(providerMsgs, ai.Message{Role: m.Role, Content: m.Content})
	}

	provider, err := c.registry.Get(ctx, sess.Provider, sess.Model)
	if err != nil {
		c.setErr(err.Error())
		return nil, err
	}

	res, err := provider.Chat(ctx, ai.Request{Messages: providerMsgs, Config: gen})
	if err != nil {
		c.setErr(fmt.Sprintf("falha na chamada ao provedor: %v", err))
		return nil, err
	}

	costUSD := cost.FromResult(res)
	assistant := &Message{
		SessionID:        sess.SessionID,
		Role:             "assistant",
		Content:          res.Content,
		ThinkingContent:  optional(res.Thinking),
		WebSearchResults: EncodeWebSearchResults(res.WebSearchResults),
		CostUSD:          &costUSD,
		IntentProfile:    &profileStr,
	}
	if err := c.repo.InsertMessage(ctx, assistant); err != nil {
		c.setErr(fmt.Sprintf("falha ao gravar resposta: %v", err))
		return nil, err
	}
	c.appendIfActive(sess.SessionID, *assistant)

	c.recordUsage(ctx, sess, assistant, profileStr, res, costUSD)
	c.notifyMutation(ctx, "chat_message", assistant.ID, "created", sess.Title, profileStr)
	return assistant, nil
}

// UpdateSessionProviderModel re-binds the session's provider/model pair
// while preserving its history.
func (c *Controller) UpdateSessionProviderModel(ctx context.Context, sessionID, provider, model string) error {
	if err := c.repo.UpdateSessionProviderModel(ctx, sessionID, provider, model); err != nil {
		c.setErr(fmt.Sprintf("falha ao atualizar sessão: %v", err))
		return err
	}

	c.mu.Lock()
	for i := range c.sessions {
		if c.sessions[i].SessionID == sessionID {
			c.sessions[i].Provider = provider
			c.sessions[i].Model = model
		}
	}
	var id uint64
	if c.active != nil && c.active.SessionID == sessionID {
		c.active.Provider = provider
		c.active.Model = model
		id = c.active.ID
	}
	c.mu.Unlock()

	c.notifyMutation(ctx, "chat_session", id, "rebound", provider+"/"+model, "")
	return nil
}

// DeleteSession removes the session and its messages. If it was active, the
// active session and window are cleared.
func (c *Controller) DeleteSession(ctx context.Context, sessionID string) error {
	sess, err := c.repo.GetSessionBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.setErr("sessão não encontrada")
			return ErrSessionNotFound
		}
		c.setErr(fmt.Sprintf("falha ao excluir sessão: %v", err))
		return err
	}
	if err := c.repo.DeleteSession(ctx, sessionID); err != nil {
		c.setErr(fmt.Sprintf("falha ao excluir sessão: %v", err))
		return err
	}

	c.mu.Lock()
	kept := c.sessions[:0]
	for _, s := range c.sessions {
		if s.SessionID != sessionID {
			kept = append(kept, s)
		}
	}
	c.sessions = kept
	if c.active != nil && c.active.SessionID == sessionID {
		c.active = nil
		c.window.Reset()
		// an in-flight load must not resurrect the cleared slot
		c.loadGen++
	}
	c.mu.Unlock()

	c.notifyMutation(ctx, "chat_session", sess.ID, "deleted", sess.Title, "")
	return nil
}

func (c *Controller) ActiveSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil
	}
	s := *c.active
	return &s
}

func (c *Controller) Sessions() []Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Session, len(c.sessions))
	copy(out, c.sessions)
	return out
}

func (c *Controller) WindowMessages() []Message {
	c.mu.Lock()
	w := c.window
	c.mu.Unlock()
	return w.Messages()
}

func (c *Controller) HasMoreMessages() bool {
	c.mu.Lock()
	w := c.window
	c.mu.Unlock()
	return w.HasMore()
}

func (c *Controller) IsSending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

func (c *Controller) CurrentProfile() intent.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentProfile
}

// LastError returns the stored human-readable error, empty when healthy.
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) setErr(msg string) {
	c.mu.Lock()
	c.lastErr = msg
	c.mu.Unlock()
	c.log.Warn("chat store error", zap.String("error", msg))
}

// appendIfActive adds a persisted message to the window only when the
// session it belongs to is still the active one. A send completing after a
// session switch must not leak into the new session's window.
func (c *Controller) appendIfActive(sessionID string, m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil && c.active.SessionID == sessionID {
		c.window.Append(m)
	}
}

func (c *Controller) applyToggles(ctx context.Context, gen *ai.GenConfig) {
	if c.toggles == nil {
		return
	}
	if !c.toggles.ThinkingEnabled(ctx) {
		if gen.Claude != nil {
			gen.Claude.ThinkingEnabled = false
			gen.Claude.ThinkingBudget = 0
		}
		if gen.GPT5 != nil {
			gen.GPT5.ReasoningEffort = "minimal"
		}
		if gen.Gemini != nil {
			gen.Gemini.ThinkingBudget = 0
			gen.Gemini.IncludeThoughts = false
		}
	}
	if !c.toggles.WebSearchEnabled(ctx) {
		gen.WebSearch = false
	}
}

func applyOverrides(gen *ai.GenConfig, opts SendOptions) {
	if opts.MaxTokens != nil {
		gen.MaxTokens = *opts.MaxTokens
	}
	if opts.WebSearch != nil {
		gen.WebSearch = *opts.WebSearch
	}
	if opts.ThinkingBudget != nil {
		if gen.Claude != nil {
			gen.Claude.ThinkingBudget = *opts.ThinkingBudget
			gen.Claude.ThinkingEnabled = *opts.ThinkingBudget > 0
		}
		if gen.Gemini != nil {
			gen.Gemini.ThinkingBudget = *opts.ThinkingBudget
			gen.Gemini.IncludeThoughts = *opts.ThinkingBudget > 0
		}
	}
	if opts.ReasoningEffort != nil && gen.GPT5 != nil {
		gen.GPT5.ReasoningEffort = *opts.ReasoningEffort
	}
	if opts.Verbosity != nil && gen.GPT5 != nil {
		gen.GPT5.Verbosity = *opts.Verbosity
	}
}

func (c *Controller) recordUsage(ctx context.Context, sess Session, msg *Message, profile string, res *ai.Result, costUSD float64) {
	if c.usage == nil {
		return
	}
	rec := UsageRecord{
		SessionID: sess.SessionID,
		MessageID: msg.ID,
		Provider:  sess.Provider,
		Model:     sess.Model,
		Profile:   profile,
		CostUSD:   costUSD,
	}
	switch {
	case res.ClaudeUsage != nil:
		u := res.ClaudeUsage
		rec.InputTokens = u.InputTokens
		rec.OutputTokens = u.OutputTokens
		rec.ThinkingTokens = u.ThinkingTokens
		rec.CachedTokens = u.CacheReadTokens
	case res.GPT5Usage != nil:
		u := res.GPT5Usage
		rec.InputTokens = u.InputTokens
		rec.OutputTokens = u.OutputTokens
		rec.ThinkingTokens = u.ReasoningTokens
		rec.CachedTokens = u.CachedInputTokens
	case res.GeminiUsage != nil:
		u := res.GeminiUsage
		rec.InputTokens = u.PromptTokens
		rec.OutputTokens = u.OutputTokens
		rec.ThinkingTokens = u.ThoughtTokens
		rec.CachedTokens = u.CachedTokens
	}
	if err := c.usage.Record(ctx, rec); err != nil {
		c.log.Warn("usage ledger write failed", zap.Error(err))
	}
}

// notifyMutation fires the activity-log and backup collaborators. Both are
// best-effort: their failure never aborts the primary operation.
func (c *Controller) notifyMutation(ctx context.Context, entityType string, entityID uint64, action, name, details string) {
	if c.activity != nil {
		c.activity.Log(ctx, entityType, entityID, action, name, details)
	}
	if c.backup != nil {
		c.backup.Trigger(ctx)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
