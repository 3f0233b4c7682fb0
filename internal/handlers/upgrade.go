package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/studygenius/studygenius/internal/request"
	"github.com/studygenius/studygenius/internal/services/entitlement"
	"go.uber.org/zap"
)

// UpgradeHandler issues premium entitlement tokens. There is no payment
// integration; the upgrade endpoint simulates the purchase and hands back a
// token the client presents on gated requests.
type UpgradeHandler struct {
	entitlements *entitlement.Service
	logger       *zap.Logger
}

// NewUpgradeHandler creates a new upgrade handler
func NewUpgradeHandler(entitlements *entitlement.Service, logger *zap.Logger) *UpgradeHandler {
	return &UpgradeHandler{entitlements: entitlements, logger: logger}
}

// RegisterRoutes registers upgrade routes on the given router.
// The router should already carry the /upgrade prefix.
func (h *UpgradeHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.Upgrade).Methods("POST")
}

// Upgrade grants the session a premium entitlement token
func (h *UpgradeHandler) Upgrade(w http.ResponseWriter, r *http.Request) {
	if h.entitlements == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Upgrades are not enabled")
		return
	}

	id := request.SessionIDFromContext(r)
	token, err := h.entitlements.IssuePremium(id)
	if err != nil {
		h.logger.Error("failed to issue entitlement token",
			zap.String("session_id", id),
			zap.Error(err),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to issue entitlement")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"plan":  "premium",
		"token": token,
	})
}
