package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/adapters/emitter"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/adapters/sim"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/config"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/logger"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/pkg/dapp"
)

// Runs a connect, transfer, mint and account switch against the in-memory
// chain and prints the resulting state.
func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	l := logger.Init(cfg.Log.Level)

	opts := sim.DefaultOptions()
	second := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	chain := sim.New(opts)

	sinks := emitter.NewMulti(nil)
	sinks.Add("log", emitter.NewLogEmitter(l))

	client, err := dapp.NewSimulated(chain, dapp.Options{
		EventLogCapacity: cfg.Events.LogCapacity,
		ExpectedChainID:  opts.ChainID,
		URICacheSize:     cfg.Events.URICacheSize,
		Emitter:          sinks,
		Logger:           l,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create client")
	}

	ctx := context.Background()
	if err := client.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start client")
	}
	defer client.Stop()

	// 1. Transfer via the form
	client.SetTransferForm(second.Hex(), "50")
	if _, err := client.SubmitTransfer(ctx); err != nil {
		log.Fatal().Err(err).Msg("Transfer failed")
	}

	// 2. Mint, approving the fee first
	result, err := client.MintNFT(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Mint failed")
	}
	owner, err := client.OwnerOf(ctx, result.TokenID)
	if err != nil {
		log.Fatal().Err(err).Msg("Owner lookup failed")
	}
	log.Info().Str("token_id", result.TokenID.String()).Str("owner", owner.Hex()).Msg("Verified mint")

	// 3. An NFT transfer made outside this client still reaches the event log
	if err := chain.TransferNFT(owner, second, result.TokenID); err != nil {
		log.Fatal().Err(err).Msg("NFT transfer failed")
	}

	// 4. Wrong network, then switch accounts
	chain.SwitchChain(big.NewInt(1), "homestead")
	chain.SwitchAccounts(second)
	time.Sleep(200 * time.Millisecond)

	out, _ := json.MarshalIndent(client.Snapshot(), "", "  ")
	fmt.Println(string(out))
}
