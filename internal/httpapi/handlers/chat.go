package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jurisdesk/jurisdesk/internal/chat"
	"github.com/jurisdesk/jurisdesk/internal/common"
	"github.com/jurisdesk/jurisdesk/internal/cost"
)

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"status": "ok"})
}

func (h *Handler) ListProviders(c *gin.Context) {
	common.OK(c, gin.H{"providers": h.Registry.Names()})
}

func (h *Handler) ListChatSessions(c *gin.Context) {
	sessions, err := h.Ctrl.FetchSessions(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list sessions")
		return
	}
	common.OK(c, gin.H{"sessions": sessions})
}

type createSessionReq struct {
	Provider string  `json:"provider"`
	Model    string  `json:"model"`
	CaseID   *uint64 `json:"case_id"`
	Title    string  `json:"title"`
}

func (h *Handler) CreateChatSession(c *gin.Context) {
	var req createSessionReq
	_ = c.ShouldBindJSON(&req) // allow empty {}

	sess, err := h.Ctrl.CreateSession(c.Request.Context(), req.Provider, req.Model, req.CaseID, req.Title)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create session")
		return
	}
	common.OK(c, gin.H{"session": sess})
}

func (h *Handler) LoadChatSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	sess, err := h.Ctrl.LoadSession(c.Request.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrSessionNotFound):
			common.Fail(c, http.StatusNotFound, 40004, "session not found")
		case errors.Is(err, chat.ErrStaleLoad):
			// a newer load superseded this one; nothing to render
			common.Fail(c, http.StatusConflict, 40901, "superseded by a newer load")
		default:
			common.Fail(c, http.StatusInternalServerError, 50003, "failed to load session")
		}
		return
	}

	common.OK(c, gin.H{
		"session":  sess,
		"messages": h.Ctrl.WindowMessages(),
		"has_more": h.Ctrl.HasMoreMessages(),
	})
}

func (h *Handler) LoadOlderMessages(c *gin.Context) {
	if err := h.Ctrl.LoadOlderMessages(c.Request.Context()); err != nil {
		if errors.Is(err, chat.ErrNoActiveSession) {
			common.Fail(c, http.StatusBadRequest, 40005, "no active session")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to load older messages")
		return
	}
	common.OK(c, gin.H{
		"messages": h.Ctrl.WindowMessages(),
		"has_more": h.Ctrl.HasMoreMessages(),
	})
}

type sendMessageReq struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message" binding:"required"`

	// explicit per-call overrides
	MaxTokens       *int    `json:"max_tokens"`
	WebSearch       *bool   `json:"web_search"`
	ThinkingBudget  *int    `json:"thinking_budget"`
	ReasoningEffort *string `json:"reasoning_effort"`
	Verbosity       *string `json:"verbosity"`
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	// sending targets the active session; switch first when needed
	active := h.Ctrl.ActiveSession()
	if active == nil || active.SessionID != req.SessionID {
		if _, err := h.Ctrl.LoadSession(c.Request.Context(), req.SessionID); err != nil {
			switch {
			case errors.Is(err, chat.ErrSessionNotFound):
				common.Fail(c, http.StatusNotFound, 40004, "session not found")
			case errors.Is(err, chat.ErrStaleLoad):
				common.Fail(c, http.StatusConflict, 40901, "superseded by a newer load")
			default:
				common.Fail(c, http.StatusInternalServerError, 50003, "failed to load session")
			}
			return
		}
	}

	assistant, err := h.Ctrl.Send(c.Request.Context(), req.Message, chat.SendOptions{
		MaxTokens:       req.MaxTokens,
		WebSearch:       req.WebSearch,
		ThinkingBudget:  req.ThinkingBudget,
		ReasoningEffort: req.ReasoningEffort,
		Verbosity:       req.Verbosity,
	})
	if err != nil {
		common.Fail(c, http.StatusBadGateway, 40001, h.Ctrl.LastError())
		return
	}

	resp := gin.H{
		"session_id": req.SessionID,
		"message":    assistant,
	}
	if assistant.CostUSD != nil {
		rate := h.Settings.USDBRLRate(c.Request.Context())
		resp["cost_display"] = cost.FormatUSD(*assistant.CostUSD)
		resp["cost_display_brl"] = cost.FormatBRL(*assistant.CostUSD, rate)
	}
	if assistant.WebSearchResults != nil {
		resp["web_search_results"] = chat.DecodeWebSearchResults(assistant.WebSearchResults)
	}
	common.OK(c, resp)
}

type updateSessionModelReq struct {
	Provider string `json:"provider" binding:"required"`
	Model    string `json:"model" binding:"required"`
}

func (h *Handler) UpdateChatSessionModel(c *gin.Context) {
	var req updateSessionModelReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	sessionID := c.Param("session_id")
	if err := h.Ctrl.UpdateSessionProviderModel(c.Request.Context(), sessionID, req.Provider, req.Model); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50005, "failed to update session")
		return
	}
	common.OK(c, gin.H{"session_id": sessionID, "provider": req.Provider, "model": req.Model})
}

func (h *Handler) DeleteChatSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	if err := h.Ctrl.DeleteSession(c.Request.Context(), sessionID); err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			common.Fail(c, http.StatusNotFound, 40004, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50006, "failed to delete session")
		return
	}
	common.OK(c, gin.H{"session_id": sessionID})
}

func (h *Handler) ListActivity(c *gin.Context) {
	entries, err := h.Activity.ListRecent(c.Request.Context(), 50)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50007, "failed to list activity")
		return
	}
	common.OK(c, gin.H{"entries": entries})
}
