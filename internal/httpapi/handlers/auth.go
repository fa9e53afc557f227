package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jurisdesk/jurisdesk/internal/auth"
	"github.com/jurisdesk/jurisdesk/internal/common"
	"github.com/jurisdesk/jurisdesk/internal/settings"
)

const (
	maxUnlockAttempts = 5
	attemptWindow     = time.Minute
)

type unlockReq struct {
	Passphrase string `json:"passphrase" binding:"required"`
}

// Unlock exchanges the office passphrase for an API token. The first unlock
// on a fresh database sets the passphrase.
func (h *Handler) Unlock(c *gin.Context) {
	var req unlockReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	ctx := c.Request.Context()

	if h.Redis != nil {
		n, err := h.Redis.CountAttempt(ctx, "unlock", attemptWindow)
		if err == nil && n > maxUnlockAttempts {
			common.Fail(c, http.StatusTooManyRequests, 42901, "too many attempts, try again later")
			return
		}
	}

	hash, err := h.Settings.PassphraseHash(ctx)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50010, "failed to read settings")
		return
	}

	if hash == "" {
		newHash, err := auth.HashPassphrase(req.Passphrase)
		if err != nil {
			common.Fail(c, http.StatusInternalServerError, 50011, "failed to set passphrase")
			return
		}
		if err := h.Settings.Set(ctx, settings.KeyPassphraseHash, newHash); err != nil {
			common.Fail(c, http.StatusInternalServerError, 50011, "failed to set passphrase")
			return
		}
	} else if !auth.CheckPassphrase(hash, req.Passphrase) {
		common.Fail(c, http.StatusUnauthorized, 40103, "wrong passphrase")
		return
	}

	if h.Redis != nil {
		_ = h.Redis.ResetAttempts(ctx, "unlock")
	}

	token, err := auth.MintToken(h.Cfg.JWTSecret, time.Now())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50012, "failed to mint token")
		return
	}
	common.OK(c, gin.H{"token": token, "expires_in": int(auth.TokenTTL.Seconds())})
}
