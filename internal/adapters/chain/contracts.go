package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/event"
	"github.com/rs/zerolog"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/domain"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/pkg/contracts"
)

// boundContract is the shared call/transact/watch plumbing of Token and NFT.
type boundContract struct {
	client       *ethclient.Client
	address      common.Address
	abi          abi.ABI
	pollInterval time.Duration
	log          zerolog.Logger
}

func (b *boundContract) call(ctx context.Context, out interface{}, method string, args ...interface{}) error {
	data, err := b.abi.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	result, err := b.client.CallContract(ctx, ethereum.CallMsg{
		To:   &b.address,
		Data: data,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", method, mapError(err))
	}

	if err := b.abi.UnpackIntoInterface(out, method, result); err != nil {
		return fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	return nil
}

func (b *boundContract) transact(ctx context.Context, signer domain.Signer, method string, args ...interface{}) (domain.PendingTx, error) {
	data, err := b.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}
	return signer.SendTransaction(ctx, domain.TxRequest{To: b.address, Data: data})
}

// Token binds the ERC-20 token contract.
type Token struct {
	boundContract
}

// NewToken binds the token at address.
func NewToken(client *ethclient.Client, address common.Address, pollInterval time.Duration, log zerolog.Logger) (*Token, error) {
	parsed, err := contracts.TokenABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}
	return &Token{boundContract{
		client:       client,
		address:      address,
		abi:          parsed,
		pollInterval: pollInterval,
		log:          log,
	}}, nil
}

func (t *Token) Address() common.Address { return t.address }

func (t *Token) Name(ctx context.Context) (string, error) {
	var name string
	err := t.call(ctx, &name, contracts.MethodName)
	return name, err
}

func (t *Token) Symbol(ctx context.Context) (string, error) {
	var symbol string
	err := t.call(ctx, &symbol, contracts.MethodSymbol)
	return symbol, err
}

func (t *Token) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	var balance *big.Int
	err := t.call(ctx, &balance, contracts.MethodBalanceOf, owner)
	return balance, err
}

func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	var allowance *big.Int
	err := t.call(ctx, &allowance, contracts.MethodAllowance, owner, spender)
	return allowance, err
}

func (t *Token) Transfer(ctx context.Context, signer domain.Signer, to common.Address, amount *big.Int) (domain.PendingTx, error) {
	return t.transact(ctx, signer, contracts.MethodTransfer, to, amount)
}

func (t *Token) Approve(ctx context.Context, signer domain.Signer, spender common.Address, amount *big.Int) (domain.PendingTx, error) {
	return t.transact(ctx, signer, contracts.MethodApprove, spender, amount)
}

// WatchTokensTransferred streams decoded TokensTransferred logs into sink.
func (t *Token) WatchTokensTransferred(ctx context.Context, sink chan<- *domain.TokensTransferredLog) (event.Subscription, error) {
	return watchDecoded(ctx, &t.boundContract, contracts.EventTokensTransferred, sink,
		func(l types.Log) (*domain.TokensTransferredLog, error) {
			ev, err := contracts.UnpackTokensTransferred(l)
			if err != nil {
				return nil, err
			}
			return &domain.TokensTransferredLog{From: ev.From, To: ev.To, Amount: ev.Amount, Meta: logMeta(l)}, nil
		})
}

// NFT binds the NFT collection contract.
type NFT struct {
	boundContract
}

// NewNFT binds the collection at address.
func NewNFT(client *ethclient.Client, address common.Address, pollInterval time.Duration, log zerolog.Logger) (*NFT, error) {
	parsed, err := contracts.NFTABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse NFT ABI: %w", err)
	}
	return &NFT{boundContract{
		client:       client,
		address:      address,
		abi:          parsed,
		pollInterval: pollInterval,
		log:          log,
	}}, nil
}

func (n *NFT) Address() common.Address { return n.address }

func (n *NFT) Name(ctx context.Context) (string, error) {
	var name string
	err := n.call(ctx, &name, contracts.MethodName)
	return name, err
}

func (n *NFT) Symbol(ctx context.Context) (string, error) {
	var symbol string
	err := n.call(ctx, &symbol, contracts.MethodSymbol)
	return symbol, err
}

func (n *NFT) MintFee(ctx context.Context) (*big.Int, error) {
	var fee *big.Int
	err := n.call(ctx, &fee, contracts.MethodMintFee)
	return fee, err
}

func (n *NFT) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	var uri string
	err := n.call(ctx, &uri, contracts.MethodTokenURI, tokenID)
	return uri, err
}

func (n *NFT) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	var owner common.Address
	err := n.call(ctx, &owner, contracts.MethodOwnerOf, tokenID)
	return owner, err
}

func (n *NFT) Mint(ctx context.Context, signer domain.Signer) (domain.PendingTx, error) {
	return n.transact(ctx, signer, contracts.MethodMint)
}

func (n *NFT) MintedTokenID(receipt *types.Receipt) (*big.Int, bool) {
	return contracts.MintedTokenID(n.address, receipt)
}

// WatchNFTMinted streams decoded NFTMinted logs into sink.
func (n *NFT) WatchNFTMinted(ctx context.Context, sink chan<- *domain.NFTMintedLog) (event.Subscription, error) {
	return watchDecoded(ctx, &n.boundContract, contracts.EventNFTMinted, sink,
		func(l types.Log) (*domain.NFTMintedLog, error) {
			ev, err := contracts.UnpackNFTMinted(l)
			if err != nil {
				return nil, err
			}
			return &domain.NFTMintedLog{Owner: ev.Owner, TokenID: ev.TokenID, Meta: logMeta(l)}, nil
		})
}

// WatchNFTTransferred streams decoded NFTTransferred logs into sink.
func (n *NFT) WatchNFTTransferred(ctx context.Context, sink chan<- *domain.NFTTransferredLog) (event.Subscription, error) {
	return watchDecoded(ctx, &n.boundContract, contracts.EventNFTTransferred, sink,
		func(l types.Log) (*domain.NFTTransferredLog, error) {
			ev, err := contracts.UnpackNFTTransferred(l)
			if err != nil {
				return nil, err
			}
			return &domain.NFTTransferredLog{From: ev.From, To: ev.To, TokenID: ev.TokenID, Meta: logMeta(l)}, nil
		})
}

// logMeta carries the log's delivery metadata. A zero tx hash means the
// node did not report one.
func logMeta(l types.Log) domain.LogMeta {
	m := domain.LogMeta{BlockNumber: l.BlockNumber}
	if l.TxHash != (common.Hash{}) {
		m.TxHash = l.TxHash.Hex()
		idx := l.Index
		m.Index = &idx
	}
	return m
}
