package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/miketere/businesscard-sub000/pkg/db/models"
	"github.com/miketere/businesscard-sub000/pkg/enums"
)

func setupBillingTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	users := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  full_name TEXT NOT NULL,
  paymongo_customer_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	subscriptions := `
CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  plan_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  paymongo_subscription_id TEXT UNIQUE,
  paymongo_payment_intent_id TEXT,
  current_period_start DATETIME,
  current_period_end DATETIME NOT NULL,
  expires_at DATETIME NOT NULL,
  cancel_at_period_end INTEGER NOT NULL DEFAULT 0,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	payments := `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  subscription_id TEXT,
  amount_cents INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'PHP',
  paymongo_payment_intent_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  description TEXT NOT NULL,
  paid_at DATETIME,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(users).Error)
	require.NoError(t, db.Exec(subscriptions).Error)
	require.NoError(t, db.Exec(payments).Error)
	return db
}

func newUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{
		ID:       uuid.New(),
		Email:    email,
		FullName: "Juan dela Cruz",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func newSubscription(userID uuid.UUID, planID string, status enums.SubscriptionStatus, expiresAt time.Time) *models.Subscription {
	return &models.Subscription{
		ID:               uuid.New(),
		UserID:           userID,
		PlanID:           planID,
		Status:           status,
		CurrentPeriodEnd: expiresAt,
		ExpiresAt:        expiresAt,
	}
}

func createPayment(t *testing.T, db *gorm.DB, userID uuid.UUID, intentID string, created time.Time) *models.Payment {
	t.Helper()

	payment := &models.Payment{
		ID:                      uuid.New(),
		UserID:                  userID,
		AmountCents:             49900,
		Currency:                "PHP",
		PaymongoPaymentIntentID: intentID,
		Status:                  enums.PaymentStatusSucceeded,
		Description:             "Pro Plan - 1 Year Access",
		CreatedAt:               created,
	}
	require.NoError(t, db.Create(payment).Error)
	return payment
}

func TestUpsertSubscriptionSingleRowPerUser(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	user := newUser(t, db, "upsert@example.com")
	expiry := time.Now().AddDate(1, 0, 0).UTC()

	first := newSubscription(user.ID, "basic_v1", enums.SubscriptionStatusActive, expiry)
	require.NoError(t, repo.UpsertSubscription(ctx, first))

	second := newSubscription(user.ID, "pro_v1", enums.SubscriptionStatusActive, expiry.AddDate(1, 0, 0))
	require.NoError(t, repo.UpsertSubscription(ctx, second))

	var count int64
	require.NoError(t, db.Model(&models.Subscription{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	found, err := repo.FindSubscriptionByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "pro_v1", found.PlanID)
	assert.WithinDuration(t, expiry.AddDate(1, 0, 0), found.ExpiresAt, time.Second)
}

func TestFindSubscriptionMissingReturnsNil(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	byUser, err := repo.FindSubscriptionByUserID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, byUser)

	byRemote, err := repo.FindSubscriptionByPaymongoID(ctx, "sub_missing")
	require.NoError(t, err)
	assert.Nil(t, byRemote)

	byEmpty, err := repo.FindSubscriptionByPaymongoID(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, byEmpty)
}

func TestFindSubscriptionByPaymongoID(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	user := newUser(t, db, "remote@example.com")

	sub := newSubscription(user.ID, "pro_v1", enums.SubscriptionStatusActive, time.Now().AddDate(1, 0, 0))
	remoteID := "sub_abc123"
	sub.PaymongoSubscriptionID = &remoteID
	require.NoError(t, repo.UpsertSubscription(ctx, sub))

	found, err := repo.FindSubscriptionByPaymongoID(ctx, remoteID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.UserID)
}

func TestListPaymentsPagination(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	user := newUser(t, db, "payments@example.com")

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		createPayment(t, db, user.ID, uuid.NewString(), base.Add(time.Duration(i)*time.Hour))
	}

	page, cursor, err := repo.ListPayments(ctx, ListPaymentsQuery{UserID: user.ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, cursor)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt), "payments should be newest first")

	rest, next, err := repo.ListPayments(ctx, ListPaymentsQuery{UserID: user.ID, Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Nil(t, next)
	assert.WithinDuration(t, base, rest[0].CreatedAt, time.Second)
}

func TestListPaymentsScopedToUser(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	owner := newUser(t, db, "owner@example.com")
	other := newUser(t, db, "other@example.com")

	createPayment(t, db, owner.ID, uuid.NewString(), time.Now().UTC())
	createPayment(t, db, other.ID, uuid.NewString(), time.Now().UTC())

	page, cursor, err := repo.ListPayments(ctx, ListPaymentsQuery{UserID: owner.ID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Nil(t, cursor)
	assert.Equal(t, owner.ID, page[0].UserID)
}

func TestSetUserPaymongoCustomerID(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	user := newUser(t, db, "customer@example.com")

	require.NoError(t, repo.SetUserPaymongoCustomerID(ctx, user.ID, "cus_xyz789"))

	found, err := repo.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.NotNil(t, found.PaymongoCustomerID)
	assert.Equal(t, "cus_xyz789", *found.PaymongoCustomerID)

	missing, err := repo.FindUserByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}
