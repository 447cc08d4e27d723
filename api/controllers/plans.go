package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/miketere/businesscard-sub000/api/responses"
	"github.com/miketere/businesscard-sub000/pkg/db/models"
	"github.com/miketere/businesscard-sub000/pkg/logger"
)

// PlanCatalog describes the plan methods used by the HTTP controllers.
type PlanCatalog interface {
	List(ctx context.Context) ([]models.Plan, error)
	Sync(ctx context.Context, id string) (*models.Plan, error)
}

type planListResponse struct {
	Plans []planResponse `json:"plans"`
}

// ListPlans serves the public plan catalog.
func ListPlans(svc PlanCatalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plans, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := planListResponse{Plans: make([]planResponse, 0, len(plans))}
		for i := range plans {
			out.Plans = append(out.Plans, toPlanResponse(&plans[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// SyncPlan registers a catalog plan with the payment gateway.
func SyncPlan(svc PlanCatalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan, err := svc.Sync(r.Context(), chi.URLParam(r, "planId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPlanResponse(plan))
	}
}
