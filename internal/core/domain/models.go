package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SessionStatus is the wallet session state.
type SessionStatus string

const (
	StatusDisconnected SessionStatus = "disconnected"
	StatusConnecting   SessionStatus = "connecting"
	StatusConnected    SessionStatus = "connected"
)

// NetworkInfo identifies the chain the provider is currently pointed at.
type NetworkInfo struct {
	Name    string   `json:"name"`
	ChainID *big.Int `json:"chain_id"`
}

// Identity is the result of a successful connect.
type Identity struct {
	Account common.Address `json:"account"`
	Network NetworkInfo    `json:"network"`
}

// TokenSnapshot holds the displayed ERC-20 state. Balance is a decimal
// string at 18-decimal scale.
type TokenSnapshot struct {
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
	Balance string `json:"balance"`
}

// NFTSnapshot holds the displayed NFT collection state. MintFee is a
// decimal string at 18-decimal scale.
type NFTSnapshot struct {
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
	MintFee string `json:"mint_fee"`
}

// LastMint is the most recently observed mint.
type LastMint struct {
	TokenID  string `json:"token_id"`
	TokenURI string `json:"token_uri,omitempty"`
}

// TransferForm holds pending transfer inputs.
type TransferForm struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// TxResult describes a confirmed transaction.
type TxResult struct {
	TxHash      common.Hash `json:"tx_hash"`
	BlockNumber uint64      `json:"block_number"`
}

// MintResult describes a confirmed approve-then-mint sequence.
type MintResult struct {
	Approve *TxResult `json:"approve,omitempty"`
	Mint    TxResult  `json:"mint"`
	TokenID *big.Int  `json:"token_id,omitempty"`
}

// LogMeta is the delivery metadata attached to a raw contract notification.
// Index is nil when the provider did not report a log index.
type LogMeta struct {
	TxHash      string `json:"tx_hash"`
	Index       *uint  `json:"index,omitempty"`
	BlockNumber uint64 `json:"block_number"`
}

// TokensTransferredLog is a raw TokensTransferred notification.
type TokensTransferredLog struct {
	From   common.Address
	To     common.Address
	Amount *big.Int
	Meta   LogMeta
}

// NFTMintedLog is a raw NFTMinted notification.
type NFTMintedLog struct {
	Owner   common.Address
	TokenID *big.Int
	Meta    LogMeta
}

// NFTTransferredLog is a raw NFTTransferred notification.
type NFTTransferredLog struct {
	From    common.Address
	To      common.Address
	TokenID *big.Int
	Meta    LogMeta
}
