package sim

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/domain"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/pkg/contracts"
)

// Wallet implements domain.WalletProvider on top of a Chain.
type Wallet struct {
	chain *Chain
}

// RequestAccounts returns the authorized accounts.
func (w *Wallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	c := w.chain
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.begin(ctx, CallRequestAccounts); err != nil {
		return nil, err
	}
	if c.takeReject() {
		return nil, domain.ErrUserRejected
	}
	return append([]common.Address(nil), c.accounts...), nil
}

// Signer returns a signer for the selected account.
func (w *Wallet) Signer(ctx context.Context) (domain.Signer, error) {
	c := w.chain
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.begin(ctx, CallSigner); err != nil {
		return nil, err
	}
	if len(c.accounts) == 0 {
		return nil, fmt.Errorf("no account selected")
	}
	return &Signer{chain: c, address: c.accounts[0]}, nil
}

// Network returns the chain identity.
func (w *Wallet) Network(ctx context.Context) (domain.NetworkInfo, error) {
	c := w.chain
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.begin(ctx, CallNetwork); err != nil {
		return domain.NetworkInfo{}, err
	}
	return domain.NetworkInfo{Name: c.networkName, ChainID: new(big.Int).Set(c.chainID)}, nil
}

// SubscribeAccountsChanged delivers account switches.
func (w *Wallet) SubscribeAccountsChanged(ch chan<- []common.Address) event.Subscription {
	return w.chain.accountsFeed.Subscribe(ch)
}

// SubscribeChainChanged delivers chain switches.
func (w *Wallet) SubscribeChainChanged(ch chan<- struct{}) event.Subscription {
	return w.chain.chainFeed.Subscribe(ch)
}

// Signer submits raw contract calls to the simulated chain.
type Signer struct {
	chain   *Chain
	address common.Address
}

// NewSigner returns a signer for an arbitrary account on c.
func NewSigner(c *Chain, address common.Address) *Signer {
	return &Signer{chain: c, address: address}
}

// Address returns the signing account.
func (s *Signer) Address() common.Address { return s.address }

// SendTransaction decodes the call data against the token and NFT ABIs and
// executes it.
func (s *Signer) SendTransaction(ctx context.Context, req domain.TxRequest) (domain.PendingTx, error) {
	if len(req.Data) < 4 {
		return nil, fmt.Errorf("call data too short")
	}

	switch req.To {
	case s.chain.tokenAddr:
		parsed, err := contracts.TokenABI()
		if err != nil {
			return nil, err
		}
		method, err := parsed.MethodById(req.Data[:4])
		if err != nil {
			return nil, fmt.Errorf("unknown token method: %w", err)
		}
		args, err := method.Inputs.Unpack(req.Data[4:])
		if err != nil {
			return nil, fmt.Errorf("failed to unpack %s args: %w", method.Name, err)
		}
		switch method.Name {
		case contracts.MethodTransfer:
			return s.chain.transfer(ctx, s.address, args[0].(common.Address), args[1].(*big.Int))
		case contracts.MethodApprove:
			return s.chain.approve(ctx, s.address, args[0].(common.Address), args[1].(*big.Int))
		}
		return nil, fmt.Errorf("token method %s is not a transaction", method.Name)

	case s.chain.nftAddr:
		parsed, err := contracts.NFTABI()
		if err != nil {
			return nil, err
		}
		method, err := parsed.MethodById(req.Data[:4])
		if err != nil {
			return nil, fmt.Errorf("unknown NFT method: %w", err)
		}
		if method.Name == contracts.MethodMint {
			return s.chain.mint(ctx, s.address)
		}
		return nil, fmt.Errorf("NFT method %s is not a transaction", method.Name)
	}

	return nil, fmt.Errorf("no contract at %s", req.To.Hex())
}
