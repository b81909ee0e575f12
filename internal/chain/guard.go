package chain

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// BalanceSource supplies the guard with wallet balances.
type BalanceSource interface {
	Balances(ctx context.Context, owner solana.PublicKey) (Balances, error)
}

// FundingSession is a remediation handle for an underfunded wallet: a
// provider-hosted flow pre-populated with the amount still needed.
type FundingSession struct {
	ID     string          `json:"id,omitempty"`
	URL    string          `json:"url"`
	Amount decimal.Decimal `json:"amount"`
}

// FundingProvider opens funding sessions with the third-party on-ramp.
type FundingProvider interface {
	CreateSession(ctx context.Context, walletAddress string, amount decimal.Decimal) (*FundingSession, error)
	FallbackURL() string
}

// AttemptEvent describes a payment attempt observed by the guard. Call
// sites that only want to signal an attempt, without coupling to the guard's
// internals, publish one through NotifyAttempt.
type AttemptEvent struct {
	Wallet   string
	Required decimal.Decimal
	Allowed  bool
}

// Decision is the outcome of a balance-gate check.
type Decision struct {
	Allowed   bool            `json:"allowed"`
	Balance   decimal.Decimal `json:"balance"`
	Shortfall decimal.Decimal `json:"shortfall"`
	Funding   *FundingSession `json:"funding,omitempty"`
}

// Guard blocks doomed on-chain payments before they are submitted: it
// compares the required amount against the wallet's USDC balance and, when
// insufficient, answers with a funding path instead of letting the transfer
// fail on-chain.
type Guard struct {
	balances BalanceSource
	funding  FundingProvider
	log      zerolog.Logger

	mu        sync.RWMutex
	listeners []func(AttemptEvent)
}

// NewGuard constructs a Guard.
func NewGuard(balances BalanceSource, funding FundingProvider, log zerolog.Logger) *Guard {
	return &Guard{
		balances: balances,
		funding:  funding,
		log:      log.With().Str("component", "guard").Logger(),
	}
}

// OnAttempt registers a listener invoked for every observed payment attempt.
func (g *Guard) OnAttempt(fn func(AttemptEvent)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, fn)
}

// NotifyAttempt publishes an attempt event without running a check.
func (g *Guard) NotifyAttempt(wallet string, required decimal.Decimal) {
	g.publish(AttemptEvent{Wallet: wallet, Required: required})
}

// Check decides whether a payment of required USDC may proceed from owner.
// An unknown balance (RPC failure) blocks the payment. Blocked decisions
// always carry a funding session: if the provider call fails, the fallback
// funding page is offered instead, so the caller is never left without a
// next step.
func (g *Guard) Check(ctx context.Context, owner solana.PublicKey, required decimal.Decimal) Decision {
	bals, err := g.balances.Balances(ctx, owner)
	balance := bals.USDC
	if err != nil {
		g.log.Warn().Err(err).Str("wallet", owner.String()).Msg("balance unknown, blocking payment")
		balance = decimal.Zero
	}

	if err == nil && balance.GreaterThanOrEqual(required) {
		g.publish(AttemptEvent{Wallet: owner.String(), Required: required, Allowed: true})
		return Decision{Allowed: true, Balance: balance}
	}

	decision := Decision{
		Allowed:   false,
		Balance:   balance,
		Shortfall: required.Sub(balance),
	}

	// The funding flow is pre-populated with the full required amount, not
	// the shortfall: topping up to exactly the shortfall would leave nothing
	// for fees or concurrent spends.
	session, fundErr := g.funding.CreateSession(ctx, owner.String(), required)
	if fundErr != nil {
		g.log.Error().Err(fundErr).Msg("funding provider failed, using fallback page")
		session = &FundingSession{URL: g.funding.FallbackURL(), Amount: required}
	}
	decision.Funding = session

	g.publish(AttemptEvent{Wallet: owner.String(), Required: required, Allowed: false})
	return decision
}

func (g *Guard) publish(ev AttemptEvent) {
	g.mu.RLock()
	listeners := make([]func(AttemptEvent), len(g.listeners))
	copy(listeners, g.listeners)
	g.mu.RUnlock()

	for _, fn := range listeners {
		fn(ev)
	}
}
