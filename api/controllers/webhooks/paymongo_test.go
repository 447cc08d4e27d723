package webhooks

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	paymongowebhook "github.com/miketere/businesscard-sub000/internal/webhooks/paymongo"
)

const webhookSecret = "whsk_test_secret"

type fakeWebhookService struct {
	calls int
	last  *paymongowebhook.Event
	err   error
}

func (f *fakeWebhookService) HandleEvent(ctx context.Context, event *paymongowebhook.Event) error {
	f.calls++
	f.last = event
	return f.err
}

type fakeSigningClient struct {
	secret string
}

func (f *fakeSigningClient) SigningSecret() string { return f.secret }

type inMemoryStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{keys: map[string]string{}}
}

func (s *inMemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[key], nil
}

func (s *inMemoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.keys[key]; exists {
		return false, nil
	}
	s.keys[key] = "1"
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return "cd:idem:" + scope + ":" + id
}

func (s *inMemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

func newGuard(t *testing.T) *paymongowebhook.IdempotencyGuard {
	t.Helper()
	guard, err := paymongowebhook.NewIdempotencyGuard(newInMemoryStore(), time.Minute, "paymongo-webhook")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	return guard
}

func postEvent(t *testing.T, handler http.HandlerFunc, payload []byte, header string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paymongo", bytes.NewReader(payload))
	if header != "" {
		req.Header.Set("Paymongo-Signature", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func eventPayload() []byte {
	return []byte(`{"data":{"id":"evt_1","attributes":{"type":"subscription.updated","data":{"id":"sub_1"}}}}`)
}

func TestPayMongoWebhookSuccessAndIdempotent(t *testing.T) {
	payload := eventPayload()
	header := paymongowebhook.ComputeSignature(webhookSecret, "1767225600", payload)
	service := &fakeWebhookService{}
	handler := PayMongoWebhook(service, &fakeSigningClient{secret: webhookSecret}, newGuard(t), nil)

	rec := postEvent(t, handler, payload, header)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}
	if service.last.ResourceID != "sub_1" {
		t.Fatalf("event not parsed: %+v", service.last)
	}

	rec = postEvent(t, handler, payload, header)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d", rec.Code)
	}
	if service.calls != 1 {
		t.Fatalf("duplicate must not reprocess, got %d calls", service.calls)
	}
}

func TestPayMongoWebhookInvalidSignature(t *testing.T) {
	payload := eventPayload()
	service := &fakeWebhookService{}
	handler := PayMongoWebhook(service, &fakeSigningClient{secret: webhookSecret}, newGuard(t), nil)

	rec := postEvent(t, handler, payload, "t=1,v1=deadbeef")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid signature, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatal("service must not be invoked on invalid signature")
	}
}

func TestPayMongoWebhookMissingSignature(t *testing.T) {
	handler := PayMongoWebhook(&fakeWebhookService{}, &fakeSigningClient{secret: webhookSecret}, newGuard(t), nil)
	rec := postEvent(t, handler, eventPayload(), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing signature, got %d", rec.Code)
	}
}

func TestPayMongoWebhookTamperedBody(t *testing.T) {
	payload := eventPayload()
	header := paymongowebhook.ComputeSignature(webhookSecret, "1767225600", payload)
	tampered := bytes.Replace(payload, []byte("sub_1"), []byte("sub_2"), 1)

	handler := PayMongoWebhook(&fakeWebhookService{}, &fakeSigningClient{secret: webhookSecret}, newGuard(t), nil)
	rec := postEvent(t, handler, tampered, header)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for tampered body, got %d", rec.Code)
	}
}

func TestPayMongoWebhookHandlerFailureStillAcks(t *testing.T) {
	payload := eventPayload()
	header := paymongowebhook.ComputeSignature(webhookSecret, "1767225600", payload)
	service := &fakeWebhookService{err: errors.New("gateway down")}
	handler := PayMongoWebhook(service, &fakeSigningClient{secret: webhookSecret}, newGuard(t), nil)

	rec := postEvent(t, handler, payload, header)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated deliveries are always acked, got %d", rec.Code)
	}

	// The guard was released, so the redelivery reaches the service again.
	service.err = nil
	rec = postEvent(t, handler, payload, header)
	if rec.Code != http.StatusOK || service.calls != 2 {
		t.Fatalf("redelivery after failure must retry: code=%d calls=%d", rec.Code, service.calls)
	}
}

func TestPayMongoWebhookUndecodablePayloadAcked(t *testing.T) {
	payload := []byte("not json")
	header := paymongowebhook.ComputeSignature(webhookSecret, "1767225600", payload)
	service := &fakeWebhookService{}
	handler := PayMongoWebhook(service, &fakeSigningClient{secret: webhookSecret}, newGuard(t), nil)

	rec := postEvent(t, handler, payload, header)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated junk is acked, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatal("undecodable payload must not reach the service")
	}
}
