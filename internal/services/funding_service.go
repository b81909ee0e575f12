package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/example/atelier/internal/chain"
	"github.com/example/atelier/internal/config"
)

// ErrFundingUnavailable is returned when no funding provider is configured.
var ErrFundingUnavailable = errors.New("funding provider not configured")

// FundingService opens hosted funding sessions with the on-ramp provider.
// It satisfies chain.FundingProvider.
type FundingService struct {
	cfg    *config.Config
	client *http.Client
	log    zerolog.Logger
}

// NewFundingService constructs a FundingService.
func NewFundingService(cfg *config.Config, log zerolog.Logger) *FundingService {
	return &FundingService{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log.With().Str("component", "funding").Logger(),
	}
}

// CreateSession asks the provider for a funding flow pre-populated with the
// given USDC amount for the wallet.
func (s *FundingService) CreateSession(ctx context.Context, walletAddress string, amount decimal.Decimal) (*chain.FundingSession, error) {
	if s.cfg.FundingAPIURL == "" {
		return nil, ErrFundingUnavailable
	}

	payload, err := json.Marshal(map[string]string{
		"app_id":  s.cfg.FundingAppID,
		"address": walletAddress,
		"amount":  amount.String(),
		"asset":   "USDC",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.FundingAPIURL+"/v1/sessions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("funding provider returned status %d", resp.StatusCode)
	}

	id := gjson.GetBytes(body, "session.id").String()
	url := gjson.GetBytes(body, "session.url").String()
	if url == "" {
		return nil, errors.New("funding provider response missing session url")
	}

	s.log.Info().Str("wallet", walletAddress).Str("session_id", id).Msg("funding session created")
	return &chain.FundingSession{ID: id, URL: url, Amount: amount}, nil
}

// FallbackURL is the dedicated funding page offered when the provider call
// fails.
func (s *FundingService) FallbackURL() string {
	return s.cfg.FundingFallbackURL
}
