package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/config"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/domain"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/pkg/dapp"
)

// These tests expect the token and NFT contracts deployed to a local hardhat
// node at their default addresses. Configure with:
//
//	TEST_RPC_ENDPOINT - node URL; tests are skipped when unset
//	TEST_PRIVATE_KEY  - signer key (default: hardhat account #0)
const hardhatKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var recipient = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

func startClient(t *testing.T) *dapp.Client {
	t.Helper()

	endpoint := os.Getenv("TEST_RPC_ENDPOINT")
	if endpoint == "" {
		t.Skip("TEST_RPC_ENDPOINT not set")
	}
	key := os.Getenv("TEST_PRIVATE_KEY")
	if key == "" {
		key = hardhatKey
	}

	v := config.NewViper()
	v.Set("chain.rpc_url", endpoint)
	v.Set("chain.private_key", key)
	v.Set("chain.poll_interval", 250*time.Millisecond)
	v.Set("chain.receipt_poll_interval", 250*time.Millisecond)
	cfg, err := config.FromViper(v)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := dapp.Dial(ctx, cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, client.Start(ctx))
	t.Cleanup(func() { _ = client.Stop() })
	return client
}

func TestConnectLoadsContractData(t *testing.T) {
	client := startClient(t)

	view := client.Snapshot()
	assert.Equal(t, domain.StatusConnected, view.Status)
	require.NotNil(t, view.Account)
	assert.NotEmpty(t, view.Token.Name)
	assert.NotEmpty(t, view.Token.Balance)
	assert.NotEmpty(t, view.NFT.MintFee)
	assert.False(t, view.WrongNetwork)
}

func TestTransferIsReconciled(t *testing.T) {
	client := startClient(t)
	ctx := context.Background()

	result, err := client.TransferTokens(ctx, recipient.Hex(), "1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, r := range client.Snapshot().Events {
			if e, ok := r.Event.(domain.TokenTransfer); ok && e.TxHash == result.TxHash.Hex() {
				return true
			}
		}
		return false
	}, 30*time.Second, 250*time.Millisecond)
}

func TestMintAndVerifyOwner(t *testing.T) {
	client := startClient(t)
	ctx := context.Background()

	result, err := client.MintNFT(ctx)
	require.NoError(t, err)
	require.NotNil(t, result.TokenID)

	owner, err := client.OwnerOf(ctx, result.TokenID)
	require.NoError(t, err)
	assert.Equal(t, *client.Snapshot().Account, owner)

	require.Eventually(t, func() bool {
		return client.Snapshot().LastMint.TokenID == result.TokenID.String()
	}, 30*time.Second, 250*time.Millisecond)
}
