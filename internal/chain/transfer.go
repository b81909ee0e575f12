package chain

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for zero, negative, or sub-unit amounts.
var ErrInvalidAmount = errors.New("transfer amount must be a positive token amount")

// Builder assembles USDC transfer transactions: both parties' associated
// token accounts are resolved, the recipient's account is created when it
// does not yet exist, and the result is compiled against a fresh blockhash
// with the sender as fee payer.
type Builder struct {
	rpc      rpcAPI
	usdcMint solana.PublicKey
	log      zerolog.Logger
}

// NewBuilder constructs a Builder.
func NewBuilder(client rpcAPI, usdcMint solana.PublicKey, log zerolog.Logger) *Builder {
	return &Builder{
		rpc:      client,
		usdcMint: usdcMint,
		log:      log.With().Str("component", "transfer").Logger(),
	}
}

// BuildUSDCTransfer returns an unsigned transaction moving amount USDC from
// sender to recipient. The caller signs and broadcasts it through a Wallet.
func (b *Builder) BuildUSDCTransfer(ctx context.Context, sender, recipient solana.PublicKey, amount decimal.Decimal) (*solana.Transaction, error) {
	units := amount.Shift(USDCDecimals)
	if units.Sign() <= 0 || !units.IsInteger() {
		return nil, ErrInvalidAmount
	}

	sourceATA, _, err := solana.FindAssociatedTokenAddress(sender, b.usdcMint)
	if err != nil {
		return nil, err
	}
	destATA, _, err := solana.FindAssociatedTokenAddress(recipient, b.usdcMint)
	if err != nil {
		return nil, err
	}

	var instructions []solana.Instruction

	// The recipient pays nothing: the sender funds account creation when the
	// recipient has never held USDC.
	if _, err := b.rpc.GetAccountInfo(ctx, destATA); err != nil {
		if !errors.Is(err, rpc.ErrNotFound) {
			return nil, err
		}
		create := associatedtokenaccount.NewCreateInstruction(sender, recipient, b.usdcMint).Build()
		instructions = append(instructions, create)
		b.log.Debug().Str("recipient", recipient.String()).Msg("recipient token account missing, adding create instruction")
	}

	transfer := token.NewTransferInstruction(
		uint64(units.IntPart()),
		sourceATA,
		destATA,
		sender,
		nil,
	).Build()
	instructions = append(instructions, transfer)

	recent, err := b.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, err
	}

	return solana.NewTransaction(
		instructions,
		recent.Value.Blockhash,
		solana.TransactionPayer(sender),
	)
}

// Send builds a transfer from the wallet's own address and broadcasts it.
// Used for treasury payouts; customer payments are signed client side.
func (b *Builder) Send(ctx context.Context, w Wallet, recipient solana.PublicKey, amount decimal.Decimal) (solana.Signature, error) {
	tx, err := b.BuildUSDCTransfer(ctx, w.PublicKey(), recipient, amount)
	if err != nil {
		return solana.Signature{}, err
	}
	sig, err := w.SendTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, err
	}
	b.log.Info().Str("signature", sig.String()).Str("recipient", recipient.String()).Msg("transfer sent")
	return sig, nil
}
