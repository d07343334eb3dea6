package service

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/domain"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/state"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/metrics"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/pkg/units"
)

// Operation names used in errors, logs and metrics.
const (
	OpTransfer = "transfer"
	OpApprove  = "approve"
	OpMint     = "mint"
)

// Orchestrator runs the user-initiated transaction flows. Only one flow may
// be pending at a time; a second call fails with domain.ErrOperationInFlight.
type Orchestrator struct {
	provider domain.WalletProvider
	token    domain.TokenContract
	nft      domain.NFTContract
	store    *state.Store
	loader   DataLoader
	metrics  *metrics.Metrics
	log      zerolog.Logger

	inflight sync.Mutex
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(provider domain.WalletProvider, token domain.TokenContract, nft domain.NFTContract, store *state.Store, loader DataLoader, m *metrics.Metrics, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		token:    token,
		nft:      nft,
		store:    store,
		loader:   loader,
		metrics:  m,
		log:      log.With().Str("component", "orchestrator").Logger(),
	}
}

// SubmitTransferForm transfers using the recipient and amount held in the
// store.
func (o *Orchestrator) SubmitTransferForm(ctx context.Context) (domain.TxResult, error) {
	form := o.store.Form()
	return o.TransferTokens(ctx, form.Recipient, form.Amount)
}

// TransferTokens sends amount, a decimal string in whole tokens, to the
// recipient and waits for one confirmation. On success the balance is
// re-read and the transfer form is cleared.
func (o *Orchestrator) TransferTokens(ctx context.Context, recipient, amount string) (domain.TxResult, error) {
	account, err := o.requireAccount()
	if err != nil {
		return domain.TxResult{}, err
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return domain.TxResult{}, &domain.ValidationError{Field: "recipient", Reason: "required"}
	}
	if strings.TrimSpace(amount) == "" {
		return domain.TxResult{}, &domain.ValidationError{Field: "amount", Reason: "required"}
	}
	if !common.IsHexAddress(recipient) {
		return domain.TxResult{}, &domain.ValidationError{Field: "recipient", Reason: "not a hex address"}
	}
	value, err := units.ParseUnits(amount)
	if err != nil {
		return domain.TxResult{}, &domain.ValidationError{Field: "amount", Reason: err.Error()}
	}

	if !o.inflight.TryLock() {
		return domain.TxResult{}, domain.ErrOperationInFlight
	}
	defer o.inflight.Unlock()

	to := common.HexToAddress(recipient)
	log := o.log.With().Str("op", OpTransfer).Str("to", to.Hex()).Str("amount", amount).Logger()

	signer, err := o.provider.Signer(ctx)
	if err != nil {
		return domain.TxResult{}, o.failed(OpTransfer, "", err)
	}
	pending, err := o.token.Transfer(ctx, signer, to, value)
	if err != nil {
		return domain.TxResult{}, o.failed(OpTransfer, "", err)
	}
	log.Info().Str("tx_hash", pending.Hash().Hex()).Msg("Transfer submitted")

	result, _, err := o.wait(ctx, OpTransfer, pending)
	if err != nil {
		return domain.TxResult{}, err
	}
	log.Info().Str("tx_hash", result.TxHash.Hex()).Uint64("block", result.BlockNumber).Msg("Transfer confirmed")

	o.loader.RefreshBalance(ctx, account)
	o.store.ClearForm()
	return result, nil
}

// MintNFT approves the mint fee when the current allowance is short, then
// mints and waits for confirmation.
func (o *Orchestrator) MintNFT(ctx context.Context) (domain.MintResult, error) {
	account, err := o.requireAccount()
	if err != nil {
		return domain.MintResult{}, err
	}

	if !o.inflight.TryLock() {
		return domain.MintResult{}, domain.ErrOperationInFlight
	}
	defer o.inflight.Unlock()

	log := o.log.With().Str("op", OpMint).Str("account", account.Hex()).Logger()

	fee, err := o.nft.MintFee(ctx)
	if err != nil {
		return domain.MintResult{}, &domain.ReadError{Op: "nft.mintFee", Err: err}
	}
	allowance, err := o.token.Allowance(ctx, account, o.nft.Address())
	if err != nil {
		return domain.MintResult{}, &domain.ReadError{Op: "token.allowance", Err: err}
	}

	signer, err := o.provider.Signer(ctx)
	if err != nil {
		return domain.MintResult{}, o.failed(OpMint, "", err)
	}

	var result domain.MintResult
	if allowance.Cmp(fee) < 0 {
		log.Info().Str("allowance", units.FormatUnits(allowance)).Str("fee", units.FormatUnits(fee)).Msg("Approving mint fee")
		pending, err := o.token.Approve(ctx, signer, o.nft.Address(), fee)
		if err != nil {
			return domain.MintResult{}, o.failed(OpApprove, "", err)
		}
		approved, _, err := o.wait(ctx, OpApprove, pending)
		if err != nil {
			return domain.MintResult{}, err
		}
		result.Approve = &approved
	}

	pending, err := o.nft.Mint(ctx, signer)
	if err != nil {
		return result, o.failed(OpMint, "", err)
	}
	log.Info().Str("tx_hash", pending.Hash().Hex()).Msg("Mint submitted")

	minted, receipt, err := o.wait(ctx, OpMint, pending)
	if err != nil {
		return result, err
	}
	result.Mint = minted
	if id, ok := o.nft.MintedTokenID(receipt); ok {
		result.TokenID = id
	}
	log.Info().Str("tx_hash", minted.TxHash.Hex()).Str("token_id", tokenIDString(result.TokenID)).Msg("Mint confirmed")

	o.loader.RefreshBalance(ctx, account)
	return result, nil
}

// OwnerOf reads the owner of a minted token.
func (o *Orchestrator) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	owner, err := o.nft.OwnerOf(ctx, tokenID)
	if err != nil {
		return common.Address{}, &domain.ReadError{Op: "nft.ownerOf", Err: err}
	}
	return owner, nil
}

func (o *Orchestrator) requireAccount() (common.Address, error) {
	account, ok := o.store.Account()
	if !ok || o.store.Status() != domain.StatusConnected {
		return common.Address{}, &domain.ValidationError{Field: "account", Reason: "wallet not connected"}
	}
	return account, nil
}

// wait blocks until pending has one confirmation. The wait is detached from
// ctx cancellation.
func (o *Orchestrator) wait(ctx context.Context, op string, pending domain.PendingTx) (domain.TxResult, *types.Receipt, error) {
	hash := pending.Hash()
	receipt, err := pending.Wait(context.WithoutCancel(ctx))
	if err != nil {
		return domain.TxResult{}, nil, o.failed(op, hash.Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return domain.TxResult{}, receipt, o.failed(op, hash.Hex(), domain.ErrReverted)
	}
	o.metrics.Transaction(op, true)

	result := domain.TxResult{TxHash: hash}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return result, receipt, nil
}

func (o *Orchestrator) failed(op, txHash string, err error) error {
	o.metrics.Transaction(op, false)
	o.log.Error().Err(err).Str("op", op).Str("tx_hash", txHash).Msg("Transaction failed")
	return &domain.TransactionError{Op: op, TxHash: txHash, Err: err}
}
