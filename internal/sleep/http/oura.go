package http

import (
	"errors"
	"net/http"

	"github.com/somnuslabs/somnus/internal/sleep/service"
	"github.com/somnuslabs/somnus/internal/sleep/store"
	"github.com/somnuslabs/somnus/pkg/httpx"
	"github.com/somnuslabs/somnus/pkg/sleepsdk"
	"github.com/somnuslabs/somnus/pkg/slogx"
)

type OuraConnectHandler struct {
	Tokens *service.TokenLifecycle
}

func (h *OuraConnectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := ctx.Value(httpx.CtxKeyUserID).(string)
	if !ok || userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "missing authenticated user")
		return
	}

	authURL, err := h.Tokens.BeginAuthorization(ctx, userID)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to begin authorization", "user_id", userID, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, sleepsdk.ConnectResponse{AuthorizationURL: authURL})
}

// OuraCallbackHandler receives the provider redirect. It is unauthenticated:
// the browser arrives without our bearer token, and the one-time state binds
// the callback to the user who started the flow.
type OuraCallbackHandler struct {
	Tokens *service.TokenLifecycle
}

func (h *OuraCallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if providerErr := r.URL.Query().Get("error"); providerErr != "" {
		httpx.WriteError(w, http.StatusBadRequest, "authorization_denied", "the provider reported: "+providerErr)
		return
	}

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")

	err := h.Tokens.HandleCallback(ctx, state, code)
	switch {
	case errors.Is(err, service.ErrInvalidState):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_state", "state is missing, expired, or already used")
		return
	case err != nil:
		slogx.FromContext(ctx).Error("oura callback failed", "error", err)
		httpx.WriteError(w, http.StatusBadGateway, "exchange_failed", "could not complete the provider connection")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "connected"})
}

type OuraSyncHandler struct {
	Sync *service.SyncService
}

func (h *OuraSyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := ctx.Value(httpx.CtxKeyUserID).(string)
	if !ok || userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "missing authenticated user")
		return
	}

	result, err := h.Sync.Sync(ctx, userID)
	if err != nil {
		slogx.FromContext(ctx).Error("sync failed", "user_id", userID, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, sleepsdk.SyncResponse{
		Processed:      result.Processed,
		Failed:         result.Failed,
		TotalFetched:   result.TotalFetched,
		SkippedReason:  result.SkippedReason,
		NeedsReconnect: result.NeedsReconnect,
	})
}

type OuraDisconnectHandler struct {
	Tokens *service.TokenLifecycle
}

func (h *OuraDisconnectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := ctx.Value(httpx.CtxKeyUserID).(string)
	if !ok || userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "missing authenticated user")
		return
	}

	if err := h.Tokens.Disconnect(ctx, userID); err != nil && !errors.Is(err, store.ErrNotFound) {
		slogx.FromContext(ctx).Error("disconnect failed", "user_id", userID, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
