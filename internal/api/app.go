package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/siampass/internal/chat"
	"github.com/kalambet/siampass/internal/loyalty"
	"github.com/kalambet/siampass/internal/nav"
	"github.com/kalambet/siampass/internal/recommend"
)

const maxRequestBodySize = 1 << 20 // 1MB

// AppDeps holds the collaborators behind the app API.
type AppDeps struct {
	Nav     *nav.Controller
	Loyalty *loyalty.Manager
	// AREvents receives the AR engine's WebSocket connection; optional.
	AREvents http.Handler
	Token    string
}

type viewRequest struct {
	View string `json:"view"`
}

type modalRequest struct {
	Kind string          `json:"kind"`
	Item *recommend.Item `json:"item,omitempty"`
}

type messageRequest struct {
	Text string `json:"text"`
}

type chatResponse struct {
	SessionID     chat.SessionID `json:"sessionId,omitempty"`
	AwaitingReply bool           `json:"awaitingReply"`
	Messages      []chat.Message `json:"messages"`
}

type provinceRequest struct {
	Province string `json:"province"`
}

type tabRequest struct {
	Tab string `json:"tab"`
}

type filterRequest struct {
	Category string `json:"category"`
}

type redeemRequest struct {
	RewardID string `json:"rewardId"`
}

// NewAppHandler routes the app API. Everything except /health requires
// deps.Token when one is configured.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", handleHealth)
	if deps.AREvents != nil {
		r.With(SocketAuth(deps.Token)).Method(http.MethodGet, "/ar/events", deps.AREvents)
	}

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/state", handleGetState(deps))
		r.Put("/view", handleSelectView(deps))
		r.Post("/overlay/ar", handleOpenOverlay(deps))
		r.Delete("/overlay/ar", handleCloseOverlay(deps))
		r.Post("/modal", handleOpenModal(deps))
		r.Delete("/modal", handleCloseModal(deps))

		r.Get("/chat/messages", handleListMessages(deps))
		r.Post("/chat/messages", handleSendMessage(deps))

		r.Get("/guide", handleGetGuide(deps))
		r.Post("/guide/province", handleSelectProvince(deps))
		r.Delete("/guide/province", handleClearProvince(deps))
		r.Put("/guide/tab", handleSetTab(deps))
		r.Put("/guide/filter", handleSetFilter(deps))

		r.Get("/profile", handleGetProfile(deps))
		r.Post("/profile/redeem", handleRedeem(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleGetState(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Nav.Snapshot())
	}
}

func handleSelectView(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req viewRequest
		if !decodeBody(w, r, &req) {
			return
		}
		v, ok := nav.ParseView(req.View)
		if !ok {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown view %q", req.View)
			return
		}
		deps.Nav.SelectView(r.Context(), v)
		writeJSON(w, http.StatusOK, deps.Nav.Snapshot())
	}
}

func handleOpenOverlay(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Nav.OpenOverlayAR()
		writeJSON(w, http.StatusOK, deps.Nav.Snapshot())
	}
}

func handleCloseOverlay(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Nav.CloseOverlayAR()
		writeJSON(w, http.StatusOK, deps.Nav.Snapshot())
	}
}

func handleOpenModal(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req modalRequest
		if !decodeBody(w, r, &req) {
			return
		}
		kind, ok := nav.ParseModalKind(req.Kind)
		if !ok {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown modal kind %q", req.Kind)
			return
		}
		if kind == nav.ModalPlaceDetail && req.Item == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "item is required for %s", kind)
			return
		}
		deps.Nav.OpenModal(kind, req.Item)
		writeJSON(w, http.StatusOK, deps.Nav.Snapshot())
	}
}

func handleCloseModal(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Nav.CloseModal()
		writeJSON(w, http.StatusOK, deps.Nav.Snapshot())
	}
}

func handleListMessages(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := deps.Nav.Chat()
		if s == nil {
			httpError(w, http.StatusConflict, "conflict_error", "chat view is not active")
			return
		}
		writeJSON(w, http.StatusOK, chatState(s))
	}
}

// handleSendMessage blocks until the guide replies or the exchange fails.
// A failed exchange still answers 200: the user message stays in the
// history and the guide simply never replied.
func handleSendMessage(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req messageRequest
		if !decodeBody(w, r, &req) {
			return
		}
		s := deps.Nav.Chat()
		if s == nil {
			httpError(w, http.StatusConflict, "conflict_error", "chat view is not active")
			return
		}
		switch s.SendUserMessage(r.Context(), req.Text) {
		case chat.RejectedBlank:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message text is required")
			return
		case chat.RejectedPending:
			httpError(w, http.StatusConflict, "conflict_error", "a reply is already pending")
			return
		case chat.RejectedEnded:
			httpError(w, http.StatusConflict, "conflict_error", "chat view is not active")
			return
		}
		writeJSON(w, http.StatusOK, chatState(s))
	}
}

func chatState(s *chat.Session) chatResponse {
	return chatResponse{
		SessionID:     s.SessionID(),
		AwaitingReply: s.AwaitingReply(),
		Messages:      s.Messages(),
	}
}

func mountedGuide(w http.ResponseWriter, deps AppDeps) *recommend.Store {
	g := deps.Nav.Guide()
	if g == nil {
		httpError(w, http.StatusConflict, "conflict_error", "travel guide view is not active")
	}
	return g
}

func handleGetGuide(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g := mountedGuide(w, deps)
		if g == nil {
			return
		}
		writeJSON(w, http.StatusOK, g.Snapshot())
	}
}

// handleSelectProvince waits for the province's data. The response reports
// whatever the store holds afterwards, which is a newer province when
// another selection raced ahead.
func handleSelectProvince(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req provinceRequest
		if !decodeBody(w, r, &req) {
			return
		}
		g := mountedGuide(w, deps)
		if g == nil {
			return
		}
		g.SelectProvince(r.Context(), req.Province)
		writeJSON(w, http.StatusOK, g.Snapshot())
	}
}

func handleClearProvince(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g := mountedGuide(w, deps)
		if g == nil {
			return
		}
		g.ClearProvince()
		writeJSON(w, http.StatusOK, g.Snapshot())
	}
}

func handleSetTab(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tabRequest
		if !decodeBody(w, r, &req) {
			return
		}
		tab, ok := recommend.ParseTab(req.Tab)
		if !ok {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown tab %q", req.Tab)
			return
		}
		g := mountedGuide(w, deps)
		if g == nil {
			return
		}
		g.SetTab(tab)
		writeJSON(w, http.StatusOK, g.Snapshot())
	}
}

func handleSetFilter(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req filterRequest
		if !decodeBody(w, r, &req) {
			return
		}
		g := mountedGuide(w, deps)
		if g == nil {
			return
		}
		g.SetCategoryFilter(req.Category)
		writeJSON(w, http.StatusOK, g.Snapshot())
	}
}

func handleGetProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Loyalty.GetProfile()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleRedeem(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req redeemRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.RewardID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "rewardId is required")
			return
		}

		red, err := deps.Loyalty.Redeem(req.RewardID)
		switch {
		case errors.Is(err, loyalty.ErrUnknownReward):
			httpError(w, http.StatusNotFound, "not_found", "reward %q not found", req.RewardID)
			return
		case errors.Is(err, loyalty.ErrInsufficientPoints):
			httpError(w, http.StatusConflict, "insufficient_points", "not enough points for %q", req.RewardID)
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "failed to redeem: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, red)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
