package chain

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/example/atelier/internal/cache"
)

// USDCDecimals is the decimal precision of the USDC mint.
const USDCDecimals = 6

// solDecimals converts lamports to SOL.
const solDecimals = 9

// rpcAPI is the subset of the Solana RPC client the chain layer depends on.
// Narrowed to an interface so tests can substitute a fake node.
type rpcAPI interface {
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
}

// Balances holds a wallet's native and stablecoin balances.
type Balances struct {
	SOL       decimal.Decimal `json:"sol"`
	USDC      decimal.Decimal `json:"usdc"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Client queries on-chain balances with a short-TTL cache in front of the
// RPC node.
type Client struct {
	rpc      rpcAPI
	usdcMint solana.PublicKey
	cache    cache.Cache
	log      zerolog.Logger
}

// NewClient constructs a Client for the given RPC endpoint and USDC mint.
func NewClient(client rpcAPI, usdcMint solana.PublicKey, c cache.Cache, log zerolog.Logger) *Client {
	return &Client{
		rpc:      client,
		usdcMint: usdcMint,
		cache:    c,
		log:      log.With().Str("component", "chain").Logger(),
	}
}

// Dial is a convenience wrapper building a Client over a real RPC endpoint.
func Dial(endpoint string, usdcMint solana.PublicKey, c cache.Cache, log zerolog.Logger) *Client {
	return NewClient(rpc.New(endpoint), usdcMint, c, log)
}

// Balances returns the SOL and USDC balances of owner, fetching both in
// parallel. Results are cached briefly so repeated gate checks do not hammer
// the RPC node. On error the affected balance degrades to zero and the error
// is returned alongside the partial result.
func (c *Client) Balances(ctx context.Context, owner solana.PublicKey) (Balances, error) {
	key := "balances:" + owner.String()
	if raw, ok := c.cache.Get(ctx, key); ok {
		var cached Balances
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}

	var (
		wg      sync.WaitGroup
		sol     decimal.Decimal
		usdc    decimal.Decimal
		solErr  error
		usdcErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		sol, solErr = c.solBalance(ctx, owner)
	}()
	go func() {
		defer wg.Done()
		usdc, usdcErr = c.usdcBalance(ctx, owner)
	}()
	wg.Wait()

	bals := Balances{SOL: sol, USDC: usdc, FetchedAt: time.Now()}

	if err := errors.Join(solErr, usdcErr); err != nil {
		c.log.Warn().Err(err).Str("owner", owner.String()).Msg("balance fetch degraded")
		return bals, err
	}

	if raw, err := json.Marshal(bals); err == nil {
		c.cache.Set(ctx, key, raw)
	}

	return bals, nil
}

// USDCBalance returns only the stablecoin balance of owner.
func (c *Client) USDCBalance(ctx context.Context, owner solana.PublicKey) (decimal.Decimal, error) {
	bals, err := c.Balances(ctx, owner)
	return bals.USDC, err
}

func (c *Client) solBalance(ctx context.Context, owner solana.PublicKey) (decimal.Decimal, error) {
	res, err := c.rpc.GetBalance(ctx, owner, rpc.CommitmentConfirmed)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.New(int64(res.Value), -solDecimals), nil
}

func (c *Client) usdcBalance(ctx context.Context, owner solana.PublicKey) (decimal.Decimal, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, c.usdcMint)
	if err != nil {
		return decimal.Zero, err
	}

	// A missing token account simply means a zero balance.
	if _, err := c.rpc.GetAccountInfo(ctx, ata); err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}

	res, err := c.rpc.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
	if err != nil {
		return decimal.Zero, err
	}

	amount, err := decimal.NewFromString(res.Value.Amount)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Shift(-int32(res.Value.Decimals)), nil
}
