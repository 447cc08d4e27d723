package paymongowebhook

import (
	"context"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/miketere/businesscard-sub000/pkg/errors"
)

const testSecret = "whsk_test_secret"

func TestVerifySignatureValid(t *testing.T) {
	body := []byte(`{"data":{"id":"evt_1"}}`)
	header := ComputeSignature(testSecret, "1767225600", body)
	if err := VerifySignature(testSecret, header, body); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
}

func TestVerifySignatureCoversRawBodyOnly(t *testing.T) {
	// HMAC-SHA256("whsk_test_secret", raw body). The timestamp in the
	// header is metadata: a signer that MACs only the body must verify,
	// whatever t says.
	body := []byte(`{"data":{"id":"evt_1"}}`)
	digest := "8d0c65f21fa6704ebbb9ab6bf25af1f6658e4d668a5bf663d87d87b46d4fc9bb"

	for _, ts := range []string{"1767225600", "1", "9999999999"} {
		header := "t=" + ts + ",v1=" + digest
		if err := VerifySignature(testSecret, header, body); err != nil {
			t.Fatalf("t=%s: body-keyed signature rejected: %v", ts, err)
		}
	}
}

func TestVerifySignatureTamperedBody(t *testing.T) {
	body := []byte(`{"data":{"id":"evt_1"}}`)
	header := ComputeSignature(testSecret, "1767225600", body)
	tampered := []byte(`{"data":{"id":"evt_2"}}`)

	err := VerifySignature(testSecret, header, tampered)
	if err == nil {
		t.Fatal("tampered body must be rejected")
	}
	if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected %s, got %s", pkgerrors.CodeUnauthorized, code)
	}
}

func TestVerifySignatureWrongSecret(t *testing.T) {
	body := []byte(`{}`)
	header := ComputeSignature("other_secret", "1767225600", body)
	if err := VerifySignature(testSecret, header, body); err == nil {
		t.Fatal("signature from the wrong secret must be rejected")
	}
}

func TestVerifySignatureMalformedHeader(t *testing.T) {
	for _, header := range []string{"", "garbage", "t=123", "v1=abcd", "t=123,v1=zz-not-hex"} {
		err := VerifySignature(testSecret, header, []byte(`{}`))
		if err == nil {
			t.Fatalf("header %q must be rejected", header)
		}
		if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeUnauthorized {
			t.Fatalf("header %q: expected %s, got %s", header, pkgerrors.CodeUnauthorized, code)
		}
	}
}

func TestVerifySignatureMissingSecret(t *testing.T) {
	err := VerifySignature("", "t=1,v1=ab", []byte(`{}`))
	if err == nil {
		t.Fatal("missing secret must fail closed")
	}
	if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeUnauthorized {
		t.Fatalf("missing secret must reject the delivery, got %s", code)
	}
}

type memoryStore struct {
	keys map[string]string
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, error) {
	return m.keys[key], nil
}

func (m *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.keys == nil {
		m.keys = map[string]string{}
	}
	if _, exists := m.keys[key]; exists {
		return false, nil
	}
	m.keys[key] = "1"
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "cd:idem:" + scope + ":" + id
}

func (m *memoryStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

func TestIdempotencyGuard(t *testing.T) {
	guard, err := NewIdempotencyGuard(&memoryStore{}, time.Hour, "paymongo")
	if err != nil {
		t.Fatalf("NewIdempotencyGuard: %v", err)
	}

	seen, err := guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil || seen {
		t.Fatalf("first delivery should be unseen: seen=%v err=%v", seen, err)
	}
	seen, err = guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil || !seen {
		t.Fatalf("second delivery should be seen: seen=%v err=%v", seen, err)
	}

	if err := guard.Release(context.Background(), "evt_1"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	seen, _ = guard.CheckAndMark(context.Background(), "evt_1")
	if seen {
		t.Fatal("released event should be retryable")
	}

	if _, err := guard.CheckAndMark(context.Background(), ""); err == nil {
		t.Fatal("empty event id must fail")
	}
	if !strings.Contains(guardKeyForTest(guard, "evt_2"), "paymongo") {
		t.Fatal("keys must be scoped")
	}
}

func guardKeyForTest(g *IdempotencyGuard, id string) string {
	return g.store.IdempotencyKey(g.scope, id)
}
