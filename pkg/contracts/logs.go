package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TokensTransferred is a decoded TokensTransferred log.
type TokensTransferred struct {
	From   common.Address
	To     common.Address
	Amount *big.Int
}

// NFTMinted is a decoded NFTMinted log.
type NFTMinted struct {
	Owner   common.Address
	TokenID *big.Int
}

// NFTTransferred is a decoded NFTTransferred log.
type NFTTransferred struct {
	From    common.Address
	To      common.Address
	TokenID *big.Int
}

// UnpackTokensTransferred decodes a TokensTransferred log.
func UnpackTokensTransferred(l types.Log) (*TokensTransferred, error) {
	parsed, err := TokenABI()
	if err != nil {
		return nil, err
	}
	ev := parsed.Events[EventTokensTransferred]
	if err := checkTopics(l, ev.ID, 3); err != nil {
		return nil, err
	}

	values, err := parsed.Unpack(EventTokensTransferred, l.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack TokensTransferred data: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected TokensTransferred data length %d", len(values))
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected TokensTransferred amount type %T", values[0])
	}

	return &TokensTransferred{
		From:   common.BytesToAddress(l.Topics[1].Bytes()),
		To:     common.BytesToAddress(l.Topics[2].Bytes()),
		Amount: amount,
	}, nil
}

// UnpackNFTMinted decodes an NFTMinted log.
func UnpackNFTMinted(l types.Log) (*NFTMinted, error) {
	parsed, err := NFTABI()
	if err != nil {
		return nil, err
	}
	if err := checkTopics(l, parsed.Events[EventNFTMinted].ID, 3); err != nil {
		return nil, err
	}
	return &NFTMinted{
		Owner:   common.BytesToAddress(l.Topics[1].Bytes()),
		TokenID: new(big.Int).SetBytes(l.Topics[2].Bytes()),
	}, nil
}

// UnpackNFTTransferred decodes an NFTTransferred log.
func UnpackNFTTransferred(l types.Log) (*NFTTransferred, error) {
	parsed, err := NFTABI()
	if err != nil {
		return nil, err
	}
	if err := checkTopics(l, parsed.Events[EventNFTTransferred].ID, 4); err != nil {
		return nil, err
	}
	return &NFTTransferred{
		From:    common.BytesToAddress(l.Topics[1].Bytes()),
		To:      common.BytesToAddress(l.Topics[2].Bytes()),
		TokenID: new(big.Int).SetBytes(l.Topics[3].Bytes()),
	}, nil
}

// MintedTokenID finds the NFTMinted log emitted by nft in a receipt.
func MintedTokenID(nft common.Address, receipt *types.Receipt) (*big.Int, bool) {
	if receipt == nil {
		return nil, false
	}
	for _, l := range receipt.Logs {
		if l == nil || l.Address != nft {
			continue
		}
		if ev, err := UnpackNFTMinted(*l); err == nil {
			return ev.TokenID, true
		}
	}
	return nil, false
}

// TokensTransferredLog encodes a TokensTransferred log emitted by contract.
func TokensTransferredLog(contract, from, to common.Address, amount *big.Int) *types.Log {
	parsed := MustTokenABI()
	return &types.Log{
		Address: contract,
		Topics: []common.Hash{
			parsed.Events[EventTokensTransferred].ID,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data: common.LeftPadBytes(amount.Bytes(), 32),
	}
}

// NFTMintedLog encodes an NFTMinted log emitted by contract.
func NFTMintedLog(contract, owner common.Address, tokenID *big.Int) *types.Log {
	parsed := MustNFTABI()
	return &types.Log{
		Address: contract,
		Topics: []common.Hash{
			parsed.Events[EventNFTMinted].ID,
			common.BytesToHash(owner.Bytes()),
			common.BigToHash(tokenID),
		},
	}
}

// NFTTransferredLog encodes an NFTTransferred log emitted by contract.
func NFTTransferredLog(contract, from, to common.Address, tokenID *big.Int) *types.Log {
	parsed := MustNFTABI()
	return &types.Log{
		Address: contract,
		Topics: []common.Hash{
			parsed.Events[EventNFTTransferred].ID,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
			common.BigToHash(tokenID),
		},
	}
}

func checkTopics(l types.Log, id common.Hash, want int) error {
	if len(l.Topics) == 0 || l.Topics[0] != id {
		return fmt.Errorf("log is not event %s", id.Hex())
	}
	if len(l.Topics) != want {
		return fmt.Errorf("event %s has %d topics, want %d", id.Hex(), len(l.Topics), want)
	}
	return nil
}
