// internal/httpapi/handler.go
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/selinkarabicakkk/trading-bot/internal/model"
	"github.com/selinkarabicakkk/trading-bot/internal/session"
	"github.com/selinkarabicakkk/trading-bot/internal/stats"
	"github.com/selinkarabicakkk/trading-bot/pkg/logger"
)

// Session is the part of *session.Manager the API drives.
type Session interface {
	Start(cfg model.SubscriptionConfig) error
	Stop() error
	Snapshot() session.Snapshot
	Stats() stats.Stats
	Latest(n int) []model.SignalEvent
}

// MarkerSource serves the chart markers collected so far.
type MarkerSource interface {
	Markers() []json.RawMessage
}

type Handler struct {
	sess    Session
	markers MarkerSource
	log     *logger.Logger
}

func NewHandler(sess Session, markers MarkerSource, log *logger.Logger) *Handler {
	return &Handler{sess: sess, markers: markers, log: log.Named("http-api")}
}

func (h *Handler) GetSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.sess.Snapshot())
}

func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req model.SubscriptionConfig
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "", "invalid json")
		return
	}

	err := h.sess.Start(req)
	var cfgErr *model.ConfigError
	switch {
	case err == nil:
		h.log.WithContext(r.Context()).Info("session start requested", zap.String("symbol", req.Symbol))
		writeJSON(w, http.StatusAccepted, h.sess.Snapshot())
	case errors.As(err, &cfgErr):
		badRequest(w, cfgErr.Field, cfgErr.Reason)
	case errors.Is(err, session.ErrInvalidTransition):
		conflict(w, err.Error())
	default:
		h.log.WithContext(r.Context()).Error("session start failed", zap.Error(err))
		internalError(w, "start failed")
	}
}

func (h *Handler) StopSession(w http.ResponseWriter, r *http.Request) {
	err := h.sess.Stop()
	switch {
	case err == nil:
		h.log.WithContext(r.Context()).Info("session stop requested")
		writeJSON(w, http.StatusAccepted, h.sess.Snapshot())
	case errors.Is(err, session.ErrInvalidTransition):
		conflict(w, err.Error())
	default:
		h.log.WithContext(r.Context()).Error("session stop failed", zap.Error(err))
		internalError(w, "stop failed")
	}
}

func (h *Handler) GetStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.sess.Stats())
}

// GetTrades returns the last ?limit= trades, oldest first. No limit means all.
func (h *Handler) GetTrades(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(w, "limit", "must be a non-negative integer")
			return
		}
		limit = n
	}
	trades := h.sess.Latest(limit)
	if trades == nil {
		trades = []model.SignalEvent{}
	}
	writeJSON(w, http.StatusOK, trades)
}

func (h *Handler) GetMarkers(w http.ResponseWriter, _ *http.Request) {
	markers := h.markers.Markers()
	if markers == nil {
		markers = []json.RawMessage{}
	}
	writeJSON(w, http.StatusOK, markers)
}
