// Package chain provides Solana interaction for the marketplace: balance
// queries, the balance-gated payment guard, and token transfer construction.
package chain

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Wallet is the capability interface every backing wallet provider must
// implement. The concrete implementation is selected at composition time;
// there is no runtime feature detection.
type Wallet interface {
	PublicKey() solana.PublicKey
	SignTransaction(tx *solana.Transaction) error
	SignMessage(msg []byte) (solana.Signature, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// LocalWallet signs with a private key held in process memory. It backs the
// treasury wallet used for payouts.
type LocalWallet struct {
	key solana.PrivateKey
	rpc rpcAPI
}

// NewLocalWallet builds a LocalWallet from a base58 encoded secret key.
func NewLocalWallet(secretKey string, client rpcAPI) (*LocalWallet, error) {
	if secretKey == "" {
		return nil, errors.New("secret key required")
	}
	key, err := solana.PrivateKeyFromBase58(secretKey)
	if err != nil {
		return nil, err
	}
	return &LocalWallet{key: key, rpc: client}, nil
}

// PublicKey returns the wallet's public key.
func (w *LocalWallet) PublicKey() solana.PublicKey {
	return w.key.PublicKey()
}

// SignTransaction signs every signature slot owned by this wallet.
func (w *LocalWallet) SignTransaction(tx *solana.Transaction) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.key.PublicKey()) {
			return &w.key
		}
		return nil
	})
	return err
}

// SignMessage signs an arbitrary payload.
func (w *LocalWallet) SignMessage(msg []byte) (solana.Signature, error) {
	return w.key.Sign(msg)
}

// SendTransaction signs and broadcasts the transaction. There is no retry;
// a failed send is returned to the caller as-is.
func (w *LocalWallet) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if err := w.SignTransaction(tx); err != nil {
		return solana.Signature{}, err
	}
	return w.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
}
