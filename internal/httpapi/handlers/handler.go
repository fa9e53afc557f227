package handlers

import (
	"go.uber.org/zap"

	"github.com/jurisdesk/jurisdesk/internal/activity"
	"github.com/jurisdesk/jurisdesk/internal/ai"
	"github.com/jurisdesk/jurisdesk/internal/chat"
	"github.com/jurisdesk/jurisdesk/internal/config"
	"github.com/jurisdesk/jurisdesk/internal/settings"
	"github.com/jurisdesk/jurisdesk/internal/store/redisstore"
)

type Handler struct {
	Cfg      config.Config
	Ctrl     *chat.Controller
	Registry *ai.Registry
	Settings *settings.Service
	Activity *activity.Repo
	Redis    *redisstore.Store
	Log      *zap.Logger
}

func NewHandler(cfg config.Config, ctrl *chat.Controller, registry *ai.Registry, st *settings.Service, act *activity.Repo, rds *redisstore.Store, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Cfg:      cfg,
		Ctrl:     ctrl,
		Registry: registry,
		Settings: st,
		Activity: act,
		Redis:    rds,
		Log:      log,
	}
}
