package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/adapters/feed"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/config"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/logger"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/metrics"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/pkg/dapp"
	"github.com/TeneoProtocolAI/dapp-sync-sdk/pkg/version"
)

type app struct {
	v   *viper.Viper
	cfg *config.Config
	log zerolog.Logger
}

func main() {
	_ = godotenv.Load() // Load .env if present

	a := &app{v: config.NewViper()}
	rootCmd := &cobra.Command{
		Use:           "dappsync",
		Short:         "Keep a local view of an ERC-20/ERC-721 dApp in sync with the chain",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("rpc-url", "", "JSON-RPC endpoint (env DAPP_CHAIN_RPC_URL)")
	flags.String("private-key", "", "hex private key for local signing (env DAPP_CHAIN_PRIVATE_KEY)")
	flags.String("token", "", "token contract address (env DAPP_CHAIN_TOKEN_ADDRESS)")
	flags.String("nft", "", "NFT contract address (env DAPP_CHAIN_NFT_ADDRESS)")
	flags.String("log-level", "", "trace, debug, info, warn or error (env DAPP_LOG_LEVEL)")
	for key, name := range map[string]string{
		"chain.rpc_url":       "rpc-url",
		"chain.private_key":   "private-key",
		"chain.token_address": "token",
		"chain.nft_address":   "nft",
		"log.level":           "log-level",
	} {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			log.Fatal().Err(err).Str("flag", name).Msg("Failed to bind flag")
		}
	}

	rootCmd.AddCommand(
		a.watchCmd(),
		a.statusCmd(),
		a.transferCmd(),
		a.mintCmd(),
		a.verifyCmd(),
		a.feedTokenCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func (a *app) load() error {
	cfg, err := config.FromViper(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.Init(cfg.Log.Level)
	return nil
}

func (a *app) dial(ctx context.Context, m *metrics.Metrics) (*dapp.Client, error) {
	return dapp.Dial(ctx, a.cfg, m, a.log)
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Connect, load contract data and stream contract events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			reg := prometheus.NewRegistry()
			m := metrics.New(reg)

			client, err := a.dial(ctx, m)
			if err != nil {
				return err
			}

			if a.cfg.Metrics.Addr != "" {
				srv := metrics.NewServer(a.cfg.Metrics.Addr, reg, a.log)
				srv.Start()
				defer shutdown(a.log, "metrics", srv.Stop)
			}

			if a.cfg.Feed.Addr != "" {
				auth, err := feed.NewAuthenticator(a.cfg.Feed.JWTSecret, a.cfg.Feed.TokenTTL)
				if err != nil {
					return err
				}
				srv := feed.NewServer(a.cfg.Feed.Addr, client.Store(), auth, m, a.log)
				go func() { _ = srv.Run(ctx) }()
				srv.Start()
				defer shutdown(a.log, "feed", srv.Stop)
			}

			a.log.Info().Str("version", version.GetVersionString()).Msg("Watching contracts")
			return client.Run(ctx)
		},
	}
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Connect once and print the loaded state",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.dial(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer client.Stop()

			if _, err := client.Connect(cmd.Context()); err != nil {
				return err
			}
			return printJSON(client.Snapshot())
		},
	}
}

func (a *app) transferCmd() *cobra.Command {
	var to, amount string
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Transfer tokens from the connected account",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.dial(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer client.Stop()

			if _, err := client.Connect(cmd.Context()); err != nil {
				return err
			}
			result, err := client.TransferTokens(cmd.Context(), to, amount)
			if err != nil {
				return err
			}
			return printJSON(map[string]string{
				"tx_hash": result.TxHash.Hex(),
				"balance": client.Snapshot().Token.Balance,
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "recipient address")
	cmd.Flags().StringVar(&amount, "amount", "", "amount in whole tokens, up to 18 decimals")
	return cmd
}

func (a *app) mintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mint",
		Short: "Approve the mint fee if needed and mint one NFT",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.dial(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer client.Stop()

			if _, err := client.Connect(cmd.Context()); err != nil {
				return err
			}
			result, err := client.MintNFT(cmd.Context())
			if err != nil {
				return err
			}

			out := map[string]string{"mint_tx_hash": result.Mint.TxHash.Hex()}
			if result.Approve != nil {
				out["approve_tx_hash"] = result.Approve.TxHash.Hex()
			}
			if result.TokenID != nil {
				out["token_id"] = result.TokenID.String()
			}
			return printJSON(out)
		},
	}
}

func (a *app) verifyCmd() *cobra.Command {
	var tokenID string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Print the current owner of an NFT",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, ok := new(big.Int).SetString(tokenID, 10)
			if !ok || id.Sign() < 0 {
				return fmt.Errorf("invalid token id: %q", tokenID)
			}

			client, err := a.dial(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer client.Stop()

			owner, err := client.OwnerOf(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(map[string]string{"token_id": id.String(), "owner": owner.Hex()})
		},
	}
	cmd.Flags().StringVar(&tokenID, "token-id", "", "token id to look up")
	_ = cmd.MarkFlagRequired("token-id")
	return cmd
}

func (a *app) feedTokenCmd() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "feed-token",
		Short: "Issue a bearer token for the live feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			auth, err := feed.NewAuthenticator(a.cfg.Feed.JWTSecret, a.cfg.Feed.TokenTTL)
			if err != nil {
				return err
			}
			token, err := auth.IssueToken(subject)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "dashboard", "token subject")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.GetFullVersionString())
		},
	}
}

func shutdown(l zerolog.Logger, name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := stop(ctx); err != nil {
		l.Warn().Err(err).Str("server", name).Msg("Failed to stop server")
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
