// Package sim is an in-memory chain implementing the wallet provider, token
// and NFT collaborators. It backs cmd/simulate and the service tests.
package sim

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/domain"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/pkg/units"
)

// Default deployment addresses of the local hardhat network.
var (
	DefaultTokenAddress = common.HexToAddress("0xe7f1725e7734ce288f8367e1bb143e90bb3f0512")
	DefaultNFTAddress   = common.HexToAddress("0x9fe46736679d2d9a65f0992f2272de9f3c7fa6e0")
)

// Method keys accepted by Fail and reported by Calls.
const (
	CallRequestAccounts = "wallet.requestAccounts"
	CallNetwork         = "wallet.network"
	CallSigner          = "wallet.signer"
	CallTokenName       = "token.name"
	CallTokenSymbol     = "token.symbol"
	CallBalanceOf       = "token.balanceOf"
	CallAllowance       = "token.allowance"
	CallTransfer        = "token.transfer"
	CallApprove         = "token.approve"
	CallNFTName         = "nft.name"
	CallNFTSymbol       = "nft.symbol"
	CallMintFee         = "nft.mintFee"
	CallTokenURI        = "nft.tokenURI"
	CallOwnerOf         = "nft.ownerOf"
	CallMint            = "nft.mint"
)

// Options configures a simulated chain.
type Options struct {
	ChainID     *big.Int
	NetworkName string
	// Accounts authorized by the wallet; the first is selected.
	Accounts []common.Address
	// Balances seeds token balances in base units.
	Balances map[common.Address]*big.Int

	TokenName   string
	TokenSymbol string
	NFTName     string
	NFTSymbol   string
	MintFee     *big.Int
	BaseURI     string
}

// DefaultOptions mirrors the local deployment: 1000 XT for the first
// hardhat account and a 10 XT mint fee.
func DefaultOptions() Options {
	acct := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	return Options{
		ChainID:     big.NewInt(31337),
		NetworkName: "hardhat",
		Accounts:    []common.Address{acct},
		Balances:    map[common.Address]*big.Int{acct: units.Ether(1000)},
		TokenName:   "XToken",
		TokenSymbol: "XT",
		NFTName:     "XNonFunToken",
		NFTSymbol:   "XNFT",
		MintFee:     units.Ether(10),
		BaseURI:     "ipfs://metadata/",
	}
}

// Chain is the simulated ledger plus the wallet attached to it.
type Chain struct {
	mu sync.Mutex

	chainID     *big.Int
	networkName string
	accounts    []common.Address
	available   bool
	rejectNext  bool

	block uint64
	txSeq uint64

	tokenAddr   common.Address
	tokenName   string
	tokenSymbol string
	balances    map[common.Address]*big.Int
	allowances  map[common.Address]map[common.Address]*big.Int

	nftAddr   common.Address
	nftName   string
	nftSymbol string
	mintFee   *big.Int
	baseURI   string
	nextID    int64
	owners    map[int64]common.Address

	calls    map[string]int
	failures map[string]error
	hold     chan struct{}

	accountsFeed    event.Feed
	chainFeed       event.Feed
	transferFeed    event.Feed
	mintFeed        event.Feed
	nftTransferFeed event.Feed
}

// New creates a simulated chain.
func New(opts Options) *Chain {
	c := &Chain{
		chainID:     opts.ChainID,
		networkName: opts.NetworkName,
		accounts:    append([]common.Address(nil), opts.Accounts...),
		available:   true,
		tokenAddr:   DefaultTokenAddress,
		tokenName:   opts.TokenName,
		tokenSymbol: opts.TokenSymbol,
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[common.Address]map[common.Address]*big.Int),
		nftAddr:     DefaultNFTAddress,
		nftName:     opts.NFTName,
		nftSymbol:   opts.NFTSymbol,
		mintFee:     opts.MintFee,
		baseURI:     opts.BaseURI,
		nextID:      1,
		owners:      make(map[int64]common.Address),
		calls:       make(map[string]int),
		failures:    make(map[string]error),
	}
	if c.chainID == nil {
		c.chainID = big.NewInt(31337)
	}
	if c.mintFee == nil {
		c.mintFee = new(big.Int)
	}
	for addr, bal := range opts.Balances {
		c.balances[addr] = new(big.Int).Set(bal)
	}
	return c
}

// Wallet returns the provider view of the chain.
func (c *Chain) Wallet() *Wallet { return &Wallet{chain: c} }

// Token returns the token contract view of the chain.
func (c *Chain) Token() *Token { return &Token{chain: c} }

// NFT returns the NFT contract view of the chain.
func (c *Chain) NFT() *NFT { return &NFT{chain: c} }

// Calls returns how many times method was invoked.
func (c *Chain) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// ResetCalls zeroes all call counters.
func (c *Chain) ResetCalls() {
	c.mu.Lock()
	c.calls = make(map[string]int)
	c.mu.Unlock()
}

// Fail makes every subsequent call to method return err. A nil err clears it.
func (c *Chain) Fail(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failures, method)
		return
	}
	c.failures[method] = err
}

// SetAvailable toggles whether the wallet answers at all.
func (c *Chain) SetAvailable(ok bool) {
	c.mu.Lock()
	c.available = ok
	c.mu.Unlock()
}

// RejectNext makes the next account request or transaction be declined.
func (c *Chain) RejectNext() {
	c.mu.Lock()
	c.rejectNext = true
	c.mu.Unlock()
}

// HoldConfirmations blocks every Wait until the returned release func is
// called.
func (c *Chain) HoldConfirmations() (release func()) {
	ch := make(chan struct{})
	c.mu.Lock()
	c.hold = ch
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			if c.hold == ch {
				c.hold = nil
			}
			c.mu.Unlock()
			close(ch)
		})
	}
}

// SwitchAccounts replaces the authorized account list and notifies
// listeners, like a wallet account switch.
func (c *Chain) SwitchAccounts(accounts ...common.Address) {
	c.mu.Lock()
	c.accounts = append([]common.Address(nil), accounts...)
	c.mu.Unlock()
	c.accountsFeed.Send(append([]common.Address(nil), accounts...))
}

// NotifyAccounts sends an accountsChanged notification without changing
// the selected account.
func (c *Chain) NotifyAccounts(accounts ...common.Address) int {
	return c.accountsFeed.Send(append([]common.Address(nil), accounts...))
}

// SwitchChain changes the chain identity and notifies listeners.
func (c *Chain) SwitchChain(chainID *big.Int, name string) {
	c.mu.Lock()
	c.chainID = new(big.Int).Set(chainID)
	c.networkName = name
	c.mu.Unlock()
	c.chainFeed.Send(struct{}{})
}

// SetBalance overwrites a token balance.
func (c *Chain) SetBalance(owner common.Address, amount *big.Int) {
	c.mu.Lock()
	c.balances[owner] = new(big.Int).Set(amount)
	c.mu.Unlock()
}

// SetAllowance overwrites an allowance.
func (c *Chain) SetAllowance(owner, spender common.Address, amount *big.Int) {
	c.mu.Lock()
	c.setAllowanceLocked(owner, spender, amount)
	c.mu.Unlock()
}

// EmitTokensTransferred delivers a raw notification to token watchers.
func (c *Chain) EmitTokensTransferred(l *domain.TokensTransferredLog) int {
	return c.transferFeed.Send(l)
}

// EmitNFTMinted delivers a raw notification to mint watchers.
func (c *Chain) EmitNFTMinted(l *domain.NFTMintedLog) int {
	return c.mintFeed.Send(l)
}

// EmitNFTTransferred delivers a raw notification to NFT transfer watchers.
func (c *Chain) EmitNFTTransferred(l *domain.NFTTransferredLog) int {
	return c.nftTransferFeed.Send(l)
}

// begin counts a call and returns the injected failure for it, if any.
func (c *Chain) begin(ctx context.Context, method string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.calls[method]++
	if !c.available {
		return domain.ErrProviderUnavailable
	}
	return c.failures[method]
}

func (c *Chain) balanceLocked(owner common.Address) *big.Int {
	if b, ok := c.balances[owner]; ok {
		return b
	}
	return new(big.Int)
}

func (c *Chain) allowanceLocked(owner, spender common.Address) *big.Int {
	if m, ok := c.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return a
		}
	}
	return new(big.Int)
}

func (c *Chain) setAllowanceLocked(owner, spender common.Address, amount *big.Int) {
	m, ok := c.allowances[owner]
	if !ok {
		m = make(map[common.Address]*big.Int)
		c.allowances[owner] = m
	}
	m[spender] = new(big.Int).Set(amount)
}

// moveLocked transfers amount between balances. It reports false on
// insufficient balance.
func (c *Chain) moveLocked(from, to common.Address, amount *big.Int) bool {
	fromBal := c.balanceLocked(from)
	if fromBal.Cmp(amount) < 0 {
		return false
	}
	c.balances[from] = new(big.Int).Sub(fromBal, amount)
	c.balances[to] = new(big.Int).Add(c.balanceLocked(to), amount)
	return true
}

// mineLocked seals a single-transaction block and returns its receipt.
func (c *Chain) mineLocked(ok bool, logs ...*types.Log) (*types.Receipt, chan struct{}) {
	c.txSeq++
	c.block++
	hash := crypto.Keccak256Hash([]byte(fmt.Sprintf("sim-tx-%d", c.txSeq)))

	status := types.ReceiptStatusSuccessful
	if !ok {
		status = types.ReceiptStatusFailed
		logs = nil
	}
	for i, l := range logs {
		l.TxHash = hash
		l.BlockNumber = c.block
		l.Index = uint(i)
	}
	return &types.Receipt{
		Status:      status,
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(c.block),
		Logs:        logs,
	}, c.hold
}

// takeReject consumes a pending rejection.
func (c *Chain) takeReject() bool {
	if c.rejectNext {
		c.rejectNext = false
		return true
	}
	return false
}

func meta(l *types.Log) domain.LogMeta {
	idx := l.Index
	return domain.LogMeta{TxHash: l.TxHash.Hex(), Index: &idx, BlockNumber: l.BlockNumber}
}
