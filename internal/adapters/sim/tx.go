package sim

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type pendingTx struct {
	receipt *types.Receipt
	hold    <-chan struct{}
}

func (p *pendingTx) Hash() common.Hash { return p.receipt.TxHash }

// Wait returns the receipt once confirmations are released. A held wait is
// not interrupted by ctx.
func (p *pendingTx) Wait(ctx context.Context) (*types.Receipt, error) {
	if p.hold != nil {
		<-p.hold
	}
	return p.receipt, nil
}
