package domain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// WalletProvider is the wallet/session collaborator.
type WalletProvider interface {
	// RequestAccounts asks the wallet for account access.
	RequestAccounts(ctx context.Context) ([]common.Address, error)

	// Signer returns the signer for the currently selected account.
	Signer(ctx context.Context) (Signer, error)

	// Network reads the current network identity.
	Network(ctx context.Context) (NetworkInfo, error)

	// SubscribeAccountsChanged delivers the new account list on every change.
	SubscribeAccountsChanged(ch chan<- []common.Address) event.Subscription

	// SubscribeChainChanged delivers a signal on every chain switch.
	SubscribeChainChanged(ch chan<- struct{}) event.Subscription
}

// TxRequest is an unsigned contract call.
type TxRequest struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Signer submits transactions on behalf of one account.
type Signer interface {
	Address() common.Address
	SendTransaction(ctx context.Context, req TxRequest) (PendingTx, error)
}

// PendingTx is a submitted transaction that must be awaited before its
// effects are assumed durable.
type PendingTx interface {
	Hash() common.Hash
	// Wait blocks until the transaction has one confirmation.
	Wait(ctx context.Context) (*types.Receipt, error)
}

// TokenContract is the fungible-token collaborator.
type TokenContract interface {
	Address() common.Address
	Name(ctx context.Context) (string, error)
	Symbol(ctx context.Context) (string, error)
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	Transfer(ctx context.Context, signer Signer, to common.Address, amount *big.Int) (PendingTx, error)
	Approve(ctx context.Context, signer Signer, spender common.Address, amount *big.Int) (PendingTx, error)
	WatchTokensTransferred(ctx context.Context, sink chan<- *TokensTransferredLog) (event.Subscription, error)
}

// NFTContract is the non-fungible-token collaborator.
type NFTContract interface {
	Address() common.Address
	Name(ctx context.Context) (string, error)
	Symbol(ctx context.Context) (string, error)
	MintFee(ctx context.Context) (*big.Int, error)
	TokenURI(ctx context.Context, tokenID *big.Int) (string, error)
	OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error)
	Mint(ctx context.Context, signer Signer) (PendingTx, error)
	// MintedTokenID extracts the minted id from a mint receipt.
	MintedTokenID(receipt *types.Receipt) (*big.Int, bool)
	WatchNFTMinted(ctx context.Context, sink chan<- *NFTMintedLog) (event.Subscription, error)
	WatchNFTTransferred(ctx context.Context, sink chan<- *NFTTransferredLog) (event.Subscription, error)
}

// EventEmitter forwards accepted events to an external sink.
type EventEmitter interface {
	Emit(ctx context.Context, record EventRecord) error
	Close() error
}
