package webhooks

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/miketere/businesscard-sub000/api/responses"
	paymongowebhook "github.com/miketere/businesscard-sub000/internal/webhooks/paymongo"
	pkgerrors "github.com/miketere/businesscard-sub000/pkg/errors"
	"github.com/miketere/businesscard-sub000/pkg/logger"
)

const signatureHeader = "Paymongo-Signature"

// PayMongoWebhookService describes the reconciler surface the controller
// drives.
type PayMongoWebhookService interface {
	HandleEvent(ctx context.Context, event *paymongowebhook.Event) error
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type signingSecretSource interface {
	SigningSecret() string
}

// PayMongoWebhook receives PayMongo event deliveries. A bad signature is
// the only rejection; every authenticated delivery is acknowledged with
// 200 so the gateway stops redelivering, including events we cannot
// process yet.
func PayMongoWebhook(svc PayMongoWebhookService, client signingSecretSource, guard webhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || client == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook pipeline unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if err := paymongowebhook.VerifySignature(client.SigningSecret(), r.Header.Get(signatureHeader), payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		// Past this point the sender is authenticated, so always return
		// 200. Failures are logged and unmarked so a redelivery retries.
		event, err := paymongowebhook.ParseEvent(payload)
		if err != nil {
			if logg != nil {
				logg.Warn(ctx, "undecodable webhook payload acknowledged")
			}
			responses.WriteSuccess(w, nil)
			return
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			if logg != nil {
				logg.Error(ctx, "webhook idempotency check failed", err)
			}
			responses.WriteSuccess(w, nil)
			return
		}
		if alreadyProcessed {
			responses.WriteSuccess(w, nil)
			return
		}

		if err := svc.HandleEvent(ctx, event); err != nil {
			_ = guard.Release(ctx, event.ID)
			if logg != nil {
				logg.Error(ctx, fmt.Sprintf("paymongo event %s failed", event.ID), err)
			}
			responses.WriteSuccess(w, nil)
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("paymongo event %s processed", event.ID))
		}
		responses.WriteSuccess(w, nil)
	}
}
