package chain

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/atelier/internal/cache"
)

func TestClientBalances_ReadsSOLAndUSDC(t *testing.T) {
	node := newFakeRPC()
	mint := testMint(t)
	owner := testWalletKey(t)

	node.balances[owner] = 2_500_000_000 // 2.5 SOL in lamports

	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	require.NoError(t, err)
	node.accounts[ata] = true
	node.tokenAmts[ata] = "12500000" // 12.5 USDC in base units

	c := NewClient(node, mint, cache.NewMemory(time.Minute), zerolog.Nop())
	bals, err := c.Balances(context.Background(), owner)
	require.NoError(t, err)

	assert.True(t, bals.SOL.Equal(decimal.RequireFromString("2.5")), "sol %s", bals.SOL)
	assert.True(t, bals.USDC.Equal(decimal.RequireFromString("12.5")), "usdc %s", bals.USDC)
}

func TestClientBalances_MissingTokenAccountMeansZero(t *testing.T) {
	node := newFakeRPC()
	owner := testWalletKey(t)

	c := NewClient(node, testMint(t), cache.NewMemory(time.Minute), zerolog.Nop())
	bals, err := c.Balances(context.Background(), owner)
	require.NoError(t, err)

	assert.True(t, bals.USDC.IsZero())
}

func TestClientBalances_UsesCache(t *testing.T) {
	node := newFakeRPC()
	mint := testMint(t)
	owner := testWalletKey(t)
	node.balances[owner] = 1_000_000_000

	c := NewClient(node, mint, cache.NewMemory(time.Minute), zerolog.Nop())

	first, err := c.Balances(context.Background(), owner)
	require.NoError(t, err)

	// A changed on-chain balance is not visible until the cache entry ages out.
	node.balances[owner] = 9_000_000_000
	second, err := c.Balances(context.Background(), owner)
	require.NoError(t, err)

	assert.True(t, first.SOL.Equal(second.SOL))
}
