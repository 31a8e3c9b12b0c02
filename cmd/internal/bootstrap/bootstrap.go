// Package bootstrap wires pkg/config into the concrete adapters, store,
// EVM client, and watcher both cmd/ binaries need.
package bootstrap

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hashcredit/spvbridge/pkg/chainadapter"
	"github.com/hashcredit/spvbridge/pkg/claim"
	"github.com/hashcredit/spvbridge/pkg/config"
	"github.com/hashcredit/spvbridge/pkg/evmclient"
	"github.com/hashcredit/spvbridge/pkg/payoutstore"
	"github.com/hashcredit/spvbridge/pkg/watcher"
)

// Deps is the fully wired set of components a binary composes into its
// own explicit top-level value.
type Deps struct {
	Config  *config.Config
	Adapter chainadapter.ChainAdapter
	Store   payoutstore.Store
	EVM     *evmclient.Client
	Watcher *watcher.Watcher
	Issuer  *claim.Issuer
	Logger  *log.Logger
}

// Build loads configuration and constructs every dependency. The
// resulting store must be closed by the caller when store is a
// *payoutstore.BoltStore (it holds a file lock).
func Build(ctx context.Context, logger *log.Logger) (*Deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	adapter, err := buildAdapter(cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	evm, err := evmclient.New(evmclient.Config{
		RPCURL:                cfg.EthereumURL,
		ChainID:               cfg.EthChainID,
		PrivateKeyHex:         cfg.EthPrivateKey,
		CheckpointManagerAddr: common.HexToAddress(cfg.CheckpointManagerAddr),
		BtcSpvVerifierAddr:    common.HexToAddress(cfg.BtcSpvVerifierAddr),
		HashCreditManagerAddr: common.HexToAddress(cfg.HashCreditManagerAddr),
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: evm client: %w", err)
	}

	watched, err := parseWatchedAddresses(cfg.WatchedAddresses)
	if err != nil {
		return nil, err
	}
	w := watcher.New(adapter, store, watched)

	var issuer *claim.Issuer
	if cfg.ClaimHMACSecret != "" {
		issuer = claim.NewIssuer([]byte(cfg.ClaimHMACSecret))
	}

	return &Deps{
		Config:  cfg,
		Adapter: adapter,
		Store:   store,
		EVM:     evm,
		Watcher: w,
		Issuer:  issuer,
		Logger:  logger,
	}, nil
}

func buildAdapter(cfg *config.Config) (chainadapter.ChainAdapter, error) {
	switch cfg.BitcoinAdapter {
	case "noderpc":
		return chainadapter.NewNodeRPC(cfg.BitcoinRPCURL, cfg.BitcoinRPCUser, cfg.BitcoinRPCPass), nil
	case "esplora":
		if cfg.EsploraBaseURL == "" {
			return nil, fmt.Errorf("bootstrap: ESPLORA_BASE_URL is required when BITCOIN_ADAPTER=esplora")
		}
		return chainadapter.NewEsplora(cfg.EsploraBaseURL), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown BITCOIN_ADAPTER %q", cfg.BitcoinAdapter)
	}
}

func buildStore(ctx context.Context, cfg *config.Config) (payoutstore.Store, error) {
	switch cfg.PayoutStoreBackend {
	case "bolt":
		return payoutstore.OpenBoltStore(cfg.PayoutStorePath)
	case "postgres":
		return payoutstore.OpenPostgresStore(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("bootstrap: unknown PAYOUT_STORE_BACKEND %q", cfg.PayoutStoreBackend)
	}
}

// parseWatchedAddresses parses "btc_address:borrower_evm_address" pairs,
// decoding each BTC address once up front.
func parseWatchedAddresses(pairs []string) ([]watcher.WatchedAddress, error) {
	out := make([]watcher.WatchedAddress, 0, len(pairs))
	for _, pair := range pairs {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("bootstrap: malformed WATCHED_ADDRESSES entry %q (want btc_address:borrower_evm_address)", pair)
		}
		btcAddr, borrowerHex := parts[0], parts[1]
		if !common.IsHexAddress(borrowerHex) {
			return nil, fmt.Errorf("bootstrap: invalid borrower address %q in %q", borrowerHex, pair)
		}
		wa, err := watcher.LoadWatchedAddress(btcAddr, [20]byte(common.HexToAddress(borrowerHex)))
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		out = append(out, wa)
	}
	return out, nil
}
