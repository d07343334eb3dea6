package service

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/adapters/sim"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/domain"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/pkg/units"
)

func TestTransferTokens(t *testing.T) {
	h := newHarness(t, 0)
	h.connect(t)
	h.store.SetForm(domain.TransferForm{Recipient: bob.Hex(), Amount: "50"})

	result, err := h.orchestrator.SubmitTransferForm(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, result.TxHash)

	assert.Equal(t, "950", h.store.Token().Balance)
	assert.Equal(t, domain.TransferForm{}, h.store.Form())

	bobBalance, err := h.chain.Token().BalanceOf(context.Background(), bob)
	require.NoError(t, err)
	assert.Equal(t, units.Ether(50), bobBalance)
}

func TestTransferValidation(t *testing.T) {
	tests := []struct {
		name      string
		connect   bool
		recipient string
		amount    string
		field     string
	}{
		{"not connected", false, bob.Hex(), "1", "account"},
		{"missing recipient", true, "", "1", "recipient"},
		{"blank recipient", true, "   ", "1", "recipient"},
		{"missing amount", true, bob.Hex(), "", "amount"},
		{"malformed recipient", true, "0x1234", "1", "recipient"},
		{"malformed amount", true, bob.Hex(), "abc", "amount"},
		{"negative amount", true, bob.Hex(), "-1", "amount"},
		{"too many decimals", true, bob.Hex(), "0.0000000000000000001", "amount"},
		{"exponent amount", true, bob.Hex(), "5e1", "amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 0)
			if tt.connect {
				h.connect(t)
			}
			form := domain.TransferForm{Recipient: tt.recipient, Amount: tt.amount}
			h.store.SetForm(form)

			_, err := h.orchestrator.TransferTokens(context.Background(), tt.recipient, tt.amount)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Zero(t, h.chain.Calls(sim.CallSigner))
			assert.Zero(t, h.chain.Calls(sim.CallTransfer))
			assert.Zero(t, h.chain.Calls(sim.CallBalanceOf))
			assert.Equal(t, form, h.store.Form())
		})
	}
}

func TestTransferRejectedKeepsInputs(t *testing.T) {
	h := newHarness(t, 0)
	h.connect(t)
	form := domain.TransferForm{Recipient: bob.Hex(), Amount: "50"}
	h.store.SetForm(form)
	h.chain.RejectNext()

	_, err := h.orchestrator.SubmitTransferForm(context.Background())

	var txErr *domain.TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, OpTransfer, txErr.Op)
	assert.ErrorIs(t, err, domain.ErrUserRejected)
	assert.Equal(t, form, h.store.Form())
	assert.Equal(t, "1000", h.store.Token().Balance)
}

func TestTransferRevert(t *testing.T) {
	h := newHarness(t, 0)
	h.connect(t)

	_, err := h.orchestrator.TransferTokens(context.Background(), bob.Hex(), "5000")

	var txErr *domain.TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.ErrorIs(t, err, domain.ErrReverted)
	assert.NotEmpty(t, txErr.TxHash)
	assert.Zero(t, h.chain.Calls(sim.CallBalanceOf))
}

func TestMintApproval(t *testing.T) {
	tests := []struct {
		name        string
		allowance   *big.Int
		wantApprove int
	}{
		{"no allowance", nil, 1},
		{"short allowance", units.Ether(9), 1},
		{"exact allowance", units.Ether(10), 0},
		{"large allowance", units.Ether(100), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 0)
			h.connect(t)
			if tt.allowance != nil {
				h.chain.SetAllowance(alice, sim.DefaultNFTAddress, tt.allowance)
			}

			result, err := h.orchestrator.MintNFT(context.Background())
			require.NoError(t, err)

			assert.Equal(t, tt.wantApprove, h.chain.Calls(sim.CallApprove))
			assert.Equal(t, 1, h.chain.Calls(sim.CallMint))
			assert.Equal(t, tt.wantApprove == 1, result.Approve != nil)
			require.NotNil(t, result.TokenID)
			assert.Equal(t, int64(1), result.TokenID.Int64())
			assert.Equal(t, "990", h.store.Token().Balance)

			owner, err := h.orchestrator.OwnerOf(context.Background(), result.TokenID)
			require.NoError(t, err)
			assert.Equal(t, alice, owner)
		})
	}
}

func TestMintRevertsOnInsufficientBalance(t *testing.T) {
	h := newHarness(t, 0)
	h.connect(t)
	h.chain.SetBalance(alice, units.Ether(1))

	result, err := h.orchestrator.MintNFT(context.Background())

	assert.ErrorIs(t, err, domain.ErrReverted)
	assert.NotNil(t, result.Approve)
	assert.Nil(t, result.TokenID)
}

func TestMintReadFailure(t *testing.T) {
	h := newHarness(t, 0)
	h.connect(t)
	h.chain.Fail(sim.CallAllowance, errors.New("execution reverted"))

	_, err := h.orchestrator.MintNFT(context.Background())

	var readErr *domain.ReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, "token.allowance", readErr.Op)
	assert.Zero(t, h.chain.Calls(sim.CallMint))
}

func TestMintRequiresAccount(t *testing.T) {
	h := newHarness(t, 0)

	_, err := h.orchestrator.MintNFT(context.Background())

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, h.chain.Calls(sim.CallMintFee))
}

func TestOperationInFlight(t *testing.T) {
	h := newHarness(t, 0)
	h.connect(t)
	release := h.chain.HoldConfirmations()
	defer release()

	done := make(chan error, 1)
	go func() {
		_, err := h.orchestrator.TransferTokens(context.Background(), bob.Hex(), "1")
		done <- err
	}()
	require.Eventually(t, func() bool { return h.chain.Calls(sim.CallTransfer) == 1 }, waitFor, tick)

	_, err := h.orchestrator.MintNFT(context.Background())
	assert.ErrorIs(t, err, domain.ErrOperationInFlight)
	_, err = h.orchestrator.TransferTokens(context.Background(), bob.Hex(), "1")
	assert.ErrorIs(t, err, domain.ErrOperationInFlight)
	assert.Zero(t, h.chain.Calls(sim.CallMintFee))

	release()
	require.NoError(t, <-done)
	assert.Equal(t, "999", h.store.Token().Balance)
}

func TestConfirmationWaitIgnoresCancellation(t *testing.T) {
	h := newHarness(t, 0)
	h.connect(t)
	release := h.chain.HoldConfirmations()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := h.orchestrator.TransferTokens(ctx, bob.Hex(), "1")
		done <- err
	}()
	require.Eventually(t, func() bool { return h.chain.Calls(sim.CallTransfer) == 1 }, waitFor, tick)
	cancel()
	release()

	require.NoError(t, <-done)
}
