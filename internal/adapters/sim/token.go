package sim

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/domain"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/pkg/contracts"
)

// Token implements domain.TokenContract on top of a Chain.
type Token struct {
	chain *Chain
}

func (t *Token) Address() common.Address { return t.chain.tokenAddr }

func (t *Token) Name(ctx context.Context) (string, error) {
	c := t.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(ctx, CallTokenName); err != nil {
		return "", err
	}
	return c.tokenName, nil
}

func (t *Token) Symbol(ctx context.Context) (string, error) {
	c := t.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(ctx, CallTokenSymbol); err != nil {
		return "", err
	}
	return c.tokenSymbol, nil
}

func (t *Token) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	c := t.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(ctx, CallBalanceOf); err != nil {
		return nil, err
	}
	return new(big.Int).Set(c.balanceLocked(owner)), nil
}

func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	c := t.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(ctx, CallAllowance); err != nil {
		return nil, err
	}
	return new(big.Int).Set(c.allowanceLocked(owner, spender)), nil
}

// Transfer submits transfer(to, amount) through signer.
func (t *Token) Transfer(ctx context.Context, signer domain.Signer, to common.Address, amount *big.Int) (domain.PendingTx, error) {
	data, err := contracts.MustTokenABI().Pack(contracts.MethodTransfer, to, amount)
	if err != nil {
		return nil, err
	}
	return signer.SendTransaction(ctx, domain.TxRequest{To: t.chain.tokenAddr, Data: data})
}

// Approve submits approve(spender, amount) through signer.
func (t *Token) Approve(ctx context.Context, signer domain.Signer, spender common.Address, amount *big.Int) (domain.PendingTx, error) {
	data, err := contracts.MustTokenABI().Pack(contracts.MethodApprove, spender, amount)
	if err != nil {
		return nil, err
	}
	return signer.SendTransaction(ctx, domain.TxRequest{To: t.chain.tokenAddr, Data: data})
}

func (t *Token) WatchTokensTransferred(ctx context.Context, sink chan<- *domain.TokensTransferredLog) (event.Subscription, error) {
	return t.chain.transferFeed.Subscribe(sink), nil
}

func (c *Chain) transfer(ctx context.Context, from, to common.Address, amount *big.Int) (domain.PendingTx, error) {
	c.mu.Lock()
	if err := c.begin(ctx, CallTransfer); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.takeReject() {
		c.mu.Unlock()
		return nil, domain.ErrUserRejected
	}
	ok := c.moveLocked(from, to, amount)
	receipt, hold := c.mineLocked(ok, contracts.TokensTransferredLog(c.tokenAddr, from, to, amount))
	c.mu.Unlock()

	if ok {
		c.transferFeed.Send(&domain.TokensTransferredLog{
			From:   from,
			To:     to,
			Amount: new(big.Int).Set(amount),
			Meta:   meta(receipt.Logs[0]),
		})
	}
	return &pendingTx{receipt: receipt, hold: hold}, nil
}

func (c *Chain) approve(ctx context.Context, owner, spender common.Address, amount *big.Int) (domain.PendingTx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(ctx, CallApprove); err != nil {
		return nil, err
	}
	if c.takeReject() {
		return nil, domain.ErrUserRejected
	}
	c.setAllowanceLocked(owner, spender, amount)
	receipt, hold := c.mineLocked(true)
	return &pendingTx{receipt: receipt, hold: hold}, nil
}
