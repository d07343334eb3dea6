package sim

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/domain"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/pkg/contracts"
)

// NFT implements domain.NFTContract on top of a Chain.
type NFT struct {
	chain *Chain
}

func (n *NFT) Address() common.Address { return n.chain.nftAddr }

func (n *NFT) Name(ctx context.Context) (string, error) {
	c := n.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(ctx, CallNFTName); err != nil {
		return "", err
	}
	return c.nftName, nil
}

func (n *NFT) Symbol(ctx context.Context) (string, error) {
	c := n.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(ctx, CallNFTSymbol); err != nil {
		return "", err
	}
	return c.nftSymbol, nil
}

func (n *NFT) MintFee(ctx context.Context) (*big.Int, error) {
	c := n.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(ctx, CallMintFee); err != nil {
		return nil, err
	}
	return new(big.Int).Set(c.mintFee), nil
}

func (n *NFT) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	c := n.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(ctx, CallTokenURI); err != nil {
		return "", err
	}
	if _, ok := c.owners[tokenID.Int64()]; !ok {
		return "", fmt.Errorf("token %s does not exist", tokenID)
	}
	return c.baseURI + tokenID.String(), nil
}

func (n *NFT) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	c := n.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(ctx, CallOwnerOf); err != nil {
		return common.Address{}, err
	}
	owner, ok := c.owners[tokenID.Int64()]
	if !ok {
		return common.Address{}, fmt.Errorf("token %s does not exist", tokenID)
	}
	return owner, nil
}

// Mint submits mint() through signer.
func (n *NFT) Mint(ctx context.Context, signer domain.Signer) (domain.PendingTx, error) {
	data, err := contracts.MustNFTABI().Pack(contracts.MethodMint)
	if err != nil {
		return nil, err
	}
	return signer.SendTransaction(ctx, domain.TxRequest{To: n.chain.nftAddr, Data: data})
}

func (n *NFT) MintedTokenID(receipt *types.Receipt) (*big.Int, bool) {
	return contracts.MintedTokenID(n.chain.nftAddr, receipt)
}

func (n *NFT) WatchNFTMinted(ctx context.Context, sink chan<- *domain.NFTMintedLog) (event.Subscription, error) {
	return n.chain.mintFeed.Subscribe(sink), nil
}

func (n *NFT) WatchNFTTransferred(ctx context.Context, sink chan<- *domain.NFTTransferredLog) (event.Subscription, error) {
	return n.chain.nftTransferFeed.Subscribe(sink), nil
}

// TransferNFT moves a token between accounts and notifies watchers.
func (c *Chain) TransferNFT(from, to common.Address, tokenID *big.Int) error {
	c.mu.Lock()
	owner, ok := c.owners[tokenID.Int64()]
	if !ok || owner != from {
		c.mu.Unlock()
		return fmt.Errorf("token %s is not owned by %s", tokenID, from.Hex())
	}
	c.owners[tokenID.Int64()] = to
	receipt, _ := c.mineLocked(true, contracts.NFTTransferredLog(c.nftAddr, from, to, tokenID))
	c.mu.Unlock()

	c.nftTransferFeed.Send(&domain.NFTTransferredLog{
		From:    from,
		To:      to,
		TokenID: new(big.Int).Set(tokenID),
		Meta:    meta(receipt.Logs[0]),
	})
	return nil
}

// mint charges the fee through the minter's allowance, like transferFrom,
// and reverts when either the allowance or the balance is short.
func (c *Chain) mint(ctx context.Context, minter common.Address) (domain.PendingTx, error) {
	c.mu.Lock()
	if err := c.begin(ctx, CallMint); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.takeReject() {
		c.mu.Unlock()
		return nil, domain.ErrUserRejected
	}

	allowance := c.allowanceLocked(minter, c.nftAddr)
	ok := allowance.Cmp(c.mintFee) >= 0 && c.moveLocked(minter, c.nftAddr, c.mintFee)

	var tokenID *big.Int
	var logs []*types.Log
	if ok {
		c.setAllowanceLocked(minter, c.nftAddr, new(big.Int).Sub(allowance, c.mintFee))
		tokenID = big.NewInt(c.nextID)
		c.owners[c.nextID] = minter
		c.nextID++
		logs = append(logs, contracts.NFTMintedLog(c.nftAddr, minter, tokenID))
	}
	receipt, hold := c.mineLocked(ok, logs...)
	c.mu.Unlock()

	if ok {
		c.mintFeed.Send(&domain.NFTMintedLog{
			Owner:   minter,
			TokenID: new(big.Int).Set(tokenID),
			Meta:    meta(receipt.Logs[0]),
		})
	}
	return &pendingTx{receipt: receipt, hold: hold}, nil
}
