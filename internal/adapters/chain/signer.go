package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/domain"
)

// KeySigner signs transactions locally with a private key.
type KeySigner struct {
	client          *ethclient.Client
	privateKey      *ecdsa.PrivateKey
	address         common.Address
	chainID         *big.Int
	receiptInterval time.Duration
}

// Address returns the key's address.
func (s *KeySigner) Address() common.Address { return s.address }

// SendTransaction builds, signs and broadcasts a legacy transaction.
func (s *KeySigner) SendTransaction(ctx context.Context, req domain.TxRequest) (domain.PendingTx, error) {
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	// Get nonce
	nonce, err := s.client.PendingNonceAt(ctx, s.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", mapError(err))
	}

	// Get gas price
	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", mapError(err))
	}

	// Estimate gas (also validates the tx won't revert)
	to := req.To
	estimatedGas, err := s.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  s.address,
		To:    &to,
		Value: value,
		Data:  req.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("transaction would revert: %w", mapError(err))
	}
	gasLimit := estimatedGas * 120 / 100 // 20% safety margin

	tx := types.NewTransaction(nonce, to, value, gasLimit, gasPrice, req.Data)

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(s.chainID), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := s.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", mapError(err))
	}

	return &pendingTx{client: s.client, hash: signedTx.Hash(), interval: s.receiptInterval}, nil
}

// NodeSigner delegates signing to the node through eth_sendTransaction, the
// way a browser wallet signs on the dApp's behalf.
type NodeSigner struct {
	rpc             *rpc.Client
	client          *ethclient.Client
	address         common.Address
	receiptInterval time.Duration
}

// Address returns the node-managed account.
func (s *NodeSigner) Address() common.Address { return s.address }

// SendTransaction submits req from the node-managed account.
func (s *NodeSigner) SendTransaction(ctx context.Context, req domain.TxRequest) (domain.PendingTx, error) {
	args := map[string]interface{}{
		"from": s.address,
		"to":   req.To,
		"data": hexutil.Bytes(req.Data),
	}
	if req.Value != nil {
		args["value"] = (*hexutil.Big)(req.Value)
	}

	var hash common.Hash
	if err := s.rpc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", mapError(err))
	}
	return &pendingTx{client: s.client, hash: hash, interval: s.receiptInterval}, nil
}

type pendingTx struct {
	client   *ethclient.Client
	hash     common.Hash
	interval time.Duration
}

func (p *pendingTx) Hash() common.Hash { return p.hash }

// Wait polls for the receipt. The wait ignores ctx cancellation and has no
// timeout: once submitted, the caller is committed until the node answers.
func (p *pendingTx) Wait(ctx context.Context) (*types.Receipt, error) {
	return waitForReceipt(context.WithoutCancel(ctx), p.client, p.hash, p.interval)
}

// waitForReceipt polls for transaction receipt
func waitForReceipt(ctx context.Context, client *ethclient.Client, txHash common.Hash, interval time.Duration) (*types.Receipt, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			var rpcErr rpc.Error
			if errors.As(err, &rpcErr) {
				return nil, fmt.Errorf("failed to get transaction receipt: %w", err)
			}
			// transport hiccup: keep polling
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
