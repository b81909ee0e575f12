package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/atelier/internal/config"
	"github.com/example/atelier/internal/models"
	"github.com/example/atelier/internal/utils"
)

func createCustomer(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	phone := "+99890" + uuid.NewString()[:8]
	user := &models.User{Phone: &phone, AccountType: models.AccountTypeCustomer}
	require.NoError(t, db.Create(user).Error)
	return user
}

func storedOTP(t *testing.T, db *gorm.DB, user *models.User) models.OTPVerification {
	t.Helper()
	var otp models.OTPVerification
	require.NoError(t, db.First(&otp, "user_id = ?", user.ID).Error)
	return otp
}

func seedOTP(t *testing.T, db *gorm.DB, user *models.User, code string, expires time.Time) {
	t.Helper()
	hash, err := utils.HashOTPCode(code)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.OTPVerification{
		UserID:    user.ID,
		CodeHash:  hash,
		ExpiresAt: expires,
	}).Error)
}

func TestOTPService_RequestCodeStoresHashedCode(t *testing.T) {
	db := setupDB(t)
	svc := NewOTPService(db, &config.Config{}, zerolog.Nop())
	user := createCustomer(t, db)

	require.NoError(t, svc.RequestCode(context.Background(), user))

	otp := storedOTP(t, db, user)
	assert.False(t, otp.Verified)
	assert.True(t, otp.ExpiresAt.After(time.Now()))
	// The raw code must never appear in the table.
	assert.NotRegexp(t, `^\d{6}$`, otp.CodeHash)
}

func TestOTPService_VerifyCorrectCode(t *testing.T) {
	db := setupDB(t)
	svc := NewOTPService(db, &config.Config{}, zerolog.Nop())
	user := createCustomer(t, db)
	seedOTP(t, db, user, "482913", time.Now().Add(10*time.Minute))

	ok, err := svc.VerifyCode(context.Background(), user.ID, "482913")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, storedOTP(t, db, user).Verified)
}

func TestOTPService_WrongCodeLeavesRowUnverified(t *testing.T) {
	db := setupDB(t)
	svc := NewOTPService(db, &config.Config{}, zerolog.Nop())
	user := createCustomer(t, db)
	seedOTP(t, db, user, "482913", time.Now().Add(10*time.Minute))

	ok, err := svc.VerifyCode(context.Background(), user.ID, "000001")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, storedOTP(t, db, user).Verified)
}

func TestOTPService_ExpiredCodeRejected(t *testing.T) {
	db := setupDB(t)
	svc := NewOTPService(db, &config.Config{}, zerolog.Nop())
	user := createCustomer(t, db)
	seedOTP(t, db, user, "482913", time.Now().Add(-time.Minute))

	ok, err := svc.VerifyCode(context.Background(), user.ID, "482913")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOTPService_DevBypassOnlyInDevMode(t *testing.T) {
	db := setupDB(t)
	user := createCustomer(t, db)

	dev := NewOTPService(db, &config.Config{OTPDevMode: true}, zerolog.Nop())
	ok, err := dev.VerifyCode(context.Background(), user.ID, "000000")
	require.NoError(t, err)
	assert.True(t, ok, "bypass code should pass in dev mode")

	prod := NewOTPService(db, &config.Config{}, zerolog.Nop())
	ok, err = prod.VerifyCode(context.Background(), user.ID, "000000")
	require.NoError(t, err)
	assert.False(t, ok, "bypass code must not pass outside dev mode")
}

func TestOTPService_RequestCodeReplacesPrevious(t *testing.T) {
	db := setupDB(t)
	svc := NewOTPService(db, &config.Config{}, zerolog.Nop())
	user := createCustomer(t, db)

	require.NoError(t, svc.RequestCode(context.Background(), user))
	first := storedOTP(t, db, user)

	require.NoError(t, svc.RequestCode(context.Background(), user))
	second := storedOTP(t, db, user)

	assert.Equal(t, first.ID, second.ID, "one row per user, upserted")
	assert.NotEqual(t, first.CodeHash, second.CodeHash)
}

func TestOTPService_RateLimitsRequests(t *testing.T) {
	db := setupDB(t)
	svc := NewOTPService(db, &config.Config{}, zerolog.Nop())
	user := createCustomer(t, db)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.RequestCode(context.Background(), user))
	}
	err := svc.RequestCode(context.Background(), user)
	assert.ErrorIs(t, err, ErrTooManyRequests)
}

func TestOTPService_LimiterMapEvictsIdleEntries(t *testing.T) {
	db := setupDB(t)
	svc := NewOTPService(db, &config.Config{}, zerolog.Nop())

	for i := 0; i < limiterPruneSize; i++ {
		svc.allow(uuid.NewString())
	}
	require.Len(t, svc.limiters, limiterPruneSize)

	// Age every entry past the idle TTL; the next request prunes them all.
	stale := time.Now().Add(-limiterIdleTTL - time.Minute)
	svc.mu.Lock()
	for _, entry := range svc.limiters {
		entry.lastSeen = stale
	}
	svc.mu.Unlock()

	svc.allow("fresh-identifier")
	assert.Len(t, svc.limiters, 1)
}
