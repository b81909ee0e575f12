package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBalances struct {
	usdc decimal.Decimal
	err  error
}

func (s *stubBalances) Balances(_ context.Context, _ solana.PublicKey) (Balances, error) {
	return Balances{USDC: s.usdc}, s.err
}

type stubFunding struct {
	session *FundingSession
	err     error

	gotWallet string
	gotAmount decimal.Decimal
}

func (s *stubFunding) CreateSession(_ context.Context, wallet string, amount decimal.Decimal) (*FundingSession, error) {
	s.gotWallet = wallet
	s.gotAmount = amount
	if s.err != nil {
		return nil, s.err
	}
	if s.session != nil {
		return s.session, nil
	}
	return &FundingSession{ID: "sess-1", URL: "https://fund.example/sess-1", Amount: amount}, nil
}

func (s *stubFunding) FallbackURL() string { return "https://app.example/fund-wallet" }

func testWalletKey(t *testing.T) solana.PublicKey {
	t.Helper()
	wallet, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return wallet.PublicKey()
}

func TestGuard_AllowsWhenBalanceCovers(t *testing.T) {
	funding := &stubFunding{}
	guard := NewGuard(&stubBalances{usdc: decimal.NewFromInt(10)}, funding, zerolog.Nop())

	d := guard.Check(context.Background(), testWalletKey(t), decimal.NewFromInt(10))

	assert.True(t, d.Allowed)
	assert.True(t, d.Balance.Equal(decimal.NewFromInt(10)))
	assert.Nil(t, d.Funding)
	assert.Empty(t, funding.gotWallet, "no funding session for an allowed payment")
}

func TestGuard_BlocksWithShortfallAndFullFundingAmount(t *testing.T) {
	funding := &stubFunding{}
	guard := NewGuard(&stubBalances{usdc: decimal.NewFromInt(3)}, funding, zerolog.Nop())

	d := guard.Check(context.Background(), testWalletKey(t), decimal.NewFromInt(10))

	assert.False(t, d.Allowed)
	assert.True(t, d.Shortfall.Equal(decimal.NewFromInt(7)), "shortfall %s", d.Shortfall)
	require.NotNil(t, d.Funding)
	// The funding flow asks for the full required amount, not the shortfall.
	assert.True(t, d.Funding.Amount.Equal(decimal.NewFromInt(10)))
	assert.True(t, funding.gotAmount.Equal(decimal.NewFromInt(10)))
}

func TestGuard_UnknownBalanceBlocks(t *testing.T) {
	guard := NewGuard(&stubBalances{usdc: decimal.NewFromInt(100), err: errors.New("rpc down")}, &stubFunding{}, zerolog.Nop())

	d := guard.Check(context.Background(), testWalletKey(t), decimal.NewFromInt(1))

	assert.False(t, d.Allowed)
	assert.True(t, d.Balance.IsZero())
	require.NotNil(t, d.Funding)
}

func TestGuard_FundingFailureFallsBackToStaticPage(t *testing.T) {
	funding := &stubFunding{err: errors.New("provider down")}
	guard := NewGuard(&stubBalances{usdc: decimal.Zero}, funding, zerolog.Nop())

	d := guard.Check(context.Background(), testWalletKey(t), decimal.NewFromInt(5))

	assert.False(t, d.Allowed)
	require.NotNil(t, d.Funding)
	assert.Equal(t, "https://app.example/fund-wallet", d.Funding.URL)
	assert.True(t, d.Funding.Amount.Equal(decimal.NewFromInt(5)))
}

func TestGuard_PublishesAttemptEvents(t *testing.T) {
	guard := NewGuard(&stubBalances{usdc: decimal.NewFromInt(10)}, &stubFunding{}, zerolog.Nop())

	var events []AttemptEvent
	guard.OnAttempt(func(ev AttemptEvent) { events = append(events, ev) })

	owner := testWalletKey(t)
	guard.Check(context.Background(), owner, decimal.NewFromInt(4))
	guard.Check(context.Background(), owner, decimal.NewFromInt(40))
	guard.NotifyAttempt(owner.String(), decimal.NewFromInt(1))

	require.Len(t, events, 3)
	assert.True(t, events[0].Allowed)
	assert.False(t, events[1].Allowed)
	assert.Equal(t, owner.String(), events[2].Wallet)
}
