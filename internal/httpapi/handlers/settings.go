package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jurisdesk/jurisdesk/internal/common"
	"github.com/jurisdesk/jurisdesk/internal/settings"
)

func (h *Handler) GetSettings(c *gin.Context) {
	ctx := c.Request.Context()
	common.OK(c, gin.H{
		"enable_thinking":   h.Settings.ThinkingEnabled(ctx),
		"enable_web_search": h.Settings.WebSearchEnabled(ctx),
		"usd_brl_rate":      h.Settings.USDBRLRate(ctx),
	})
}

type updateSettingsReq struct {
	EnableThinking  *bool    `json:"enable_thinking"`
	EnableWebSearch *bool    `json:"enable_web_search"`
	USDBRLRate      *float64 `json:"usd_brl_rate"`
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var req updateSettingsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	ctx := c.Request.Context()
	if req.EnableThinking != nil {
		if err := h.Settings.Set(ctx, settings.KeyEnableThinking, strconv.FormatBool(*req.EnableThinking)); err != nil {
			common.Fail(c, http.StatusInternalServerError, 50013, "failed to save settings")
			return
		}
	}
	if req.EnableWebSearch != nil {
		if err := h.Settings.Set(ctx, settings.KeyEnableWebSearch, strconv.FormatBool(*req.EnableWebSearch)); err != nil {
			common.Fail(c, http.StatusInternalServerError, 50013, "failed to save settings")
			return
		}
	}
	if req.USDBRLRate != nil && *req.USDBRLRate > 0 {
		if err := h.Settings.Set(ctx, settings.KeyUSDBRLRate, strconv.FormatFloat(*req.USDBRLRate, 'f', -1, 64)); err != nil {
			common.Fail(c, http.StatusInternalServerError, 50013, "failed to save settings")
			return
		}
	}
	h.GetSettings(c)
}

type setAPIKeyReq struct {
	Provider string `json:"provider" binding:"required"`
	APIKey   string `json:"api_key" binding:"required"`
}

func (h *Handler) SetProviderAPIKey(c *gin.Context) {
	var req setAPIKeyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if err := h.Settings.SetAPIKey(c.Request.Context(), req.Provider, req.APIKey); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50014, "failed to save api key")
		return
	}
	common.OK(c, gin.H{"provider": req.Provider})
}
