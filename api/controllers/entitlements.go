package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/miketere/businesscard-sub000/api/middleware"
	"github.com/miketere/businesscard-sub000/api/responses"
	"github.com/miketere/businesscard-sub000/internal/entitlements"
	"github.com/miketere/businesscard-sub000/pkg/logger"
)

// FeatureGate describes the entitlement methods used by the HTTP
// controllers.
type FeatureGate interface {
	Snapshot(ctx context.Context, userID uuid.UUID) (*entitlements.Snapshot, error)
	CanCreateCard(ctx context.Context, userID uuid.UUID) entitlements.Decision
	CanAddContact(ctx context.Context, userID uuid.UUID) entitlements.Decision
}

// GetEntitlements returns the acting user's effective plan and limits.
func GetEntitlements(svc FeatureGate, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := svc.Snapshot(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// CheckCardEntitlement answers whether the acting user may create another
// business card.
func CheckCardEntitlement(svc FeatureGate, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decision := svc.CanCreateCard(r.Context(), middleware.UserIDFromContext(r.Context()))
		responses.WriteSuccess(w, decision)
	}
}

// CheckContactEntitlement answers whether the acting user may save another
// contact.
func CheckContactEntitlement(svc FeatureGate, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decision := svc.CanAddContact(r.Context(), middleware.UserIDFromContext(r.Context()))
		responses.WriteSuccess(w, decision)
	}
}
