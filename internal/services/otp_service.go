package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/atelier/internal/config"
	"github.com/example/atelier/internal/models"
	"github.com/example/atelier/internal/utils"
)

const otpValidity = 10 * time.Minute

// Idle limiters are evicted once the map grows past the threshold, so the
// per-identifier state cannot accumulate without bound.
const (
	limiterIdleTTL   = 30 * time.Minute
	limiterPruneSize = 1024
)

// devBypassCode is accepted as a valid OTP only when OTP_DEV_MODE is on.
const devBypassCode = "000000"

// ErrTooManyRequests is returned when an identifier exceeds its OTP quota.
var ErrTooManyRequests = errors.New("too many code requests, try again later")

// OTPService issues and verifies one-time codes. Codes are stored hashed,
// one row per user: requesting a new code replaces the previous one.
type OTPService struct {
	db  *gorm.DB
	cfg *config.Config
	log zerolog.Logger

	mu       sync.Mutex
	limiters map[string]*otpLimiter
}

type otpLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewOTPService constructs an OTPService.
func NewOTPService(db *gorm.DB, cfg *config.Config, log zerolog.Logger) *OTPService {
	return &OTPService{
		db:       db,
		cfg:      cfg,
		log:      log.With().Str("component", "otp").Logger(),
		limiters: make(map[string]*otpLimiter),
	}
}

// RequestCode generates a fresh code for the user, upserts it, and hands it
// to the configured delivery channel. Returns ErrTooManyRequests when the
// identifier is over quota.
func (s *OTPService) RequestCode(ctx context.Context, user *models.User) error {
	if !s.allow(user.ID.String()) {
		return ErrTooManyRequests
	}

	code, err := utils.GenerateOTPCode()
	if err != nil {
		return err
	}

	hash, err := utils.HashOTPCode(code)
	if err != nil {
		return err
	}

	otp := models.OTPVerification{
		UserID:    user.ID,
		CodeHash:  hash,
		ExpiresAt: time.Now().Add(otpValidity),
		Verified:  false,
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"code_hash", "expires_at", "verified", "updated_at"}),
	}).Create(&otp).Error
	if err != nil {
		return err
	}

	s.deliver(user, code)
	return nil
}

// VerifyCode checks a submitted code against the user's stored OTP. In dev
// mode the bypass code "000000" is always accepted without touching the
// stored row. A wrong code never marks anything verified.
func (s *OTPService) VerifyCode(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	if s.cfg.OTPDevMode && code == devBypassCode {
		s.log.Debug().Str("user_id", userID.String()).Msg("dev bypass code accepted")
		return true, nil
	}

	var otp models.OTPVerification
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND verified = ? AND expires_at >= ?", userID, false, time.Now()).
		First(&otp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	if !utils.CheckOTPCode(otp.CodeHash, code) {
		return false, nil
	}

	otp.Verified = true
	if err := s.db.WithContext(ctx).Save(&otp).Error; err != nil {
		return false, err
	}
	return true, nil
}

// deliver hands the code to the SMS or email channel. Delivery transports
// are environment-gated; with both disabled the code is only logged, which
// is how local development runs.
func (s *OTPService) deliver(user *models.User, code string) {
	switch {
	case s.cfg.SMSEnabled && user.Phone != nil:
		s.log.Info().Str("phone", *user.Phone).Msg("dispatching OTP via SMS")
	case s.cfg.EmailEnabled && user.Email != nil:
		s.log.Info().Str("email", *user.Email).Msg("dispatching OTP via email")
	default:
		s.log.Info().Str("user_id", user.ID.String()).Str("code", code).Msg("OTP delivery disabled, code logged")
	}
}

// allow enforces a per-identifier request quota: three quick requests, then
// one per minute.
func (s *OTPService) allow(identifier string) bool {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.limiters) >= limiterPruneSize {
		s.pruneLocked(now)
	}

	entry, ok := s.limiters[identifier]
	if !ok {
		entry = &otpLimiter{limiter: rate.NewLimiter(rate.Every(time.Minute), 3)}
		s.limiters[identifier] = entry
	}
	entry.lastSeen = now
	return entry.limiter.Allow()
}

func (s *OTPService) pruneLocked(now time.Time) {
	for id, entry := range s.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(s.limiters, id)
		}
	}
}
