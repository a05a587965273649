package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/educhainverify/credential-service/anchor"
	"github.com/educhainverify/credential-service/credentials"
	"github.com/educhainverify/credential-service/cryptoutils"
	"github.com/educhainverify/credential-service/interfaces"
	"github.com/educhainverify/credential-service/storage"
	"github.com/educhainverify/credential-service/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
	"github.com/urfave/cli/v2"
)

// serviceConfig is everything needed to assemble the credential service.
type serviceConfig struct {
	DBDriver      string
	DBDSN         string
	StorageURIs   []string
	DefaultAnchor string

	RPCAddr         string
	ContractAddress string
	IssuerKey       string
	KeystorePath    string
	KeystorePass    string
	ChainID         int64
	GasLimit        uint64
	GasPriceGwei    int64
	WaitMined       bool
}

func serviceConfigFromCLI(cCtx *cli.Context) *serviceConfig {
	return &serviceConfig{
		DBDriver:        cCtx.String(dbDriverFlag.Name),
		DBDSN:           cCtx.String(dbDSNFlag.Name),
		StorageURIs:     cCtx.StringSlice(storageFlag.Name),
		DefaultAnchor:   cCtx.String(defaultAnchorFlag.Name),
		RPCAddr:         cCtx.String(rpcAddrFlag.Name),
		ContractAddress: cCtx.String(contractFlag.Name),
		IssuerKey:       cCtx.String(issuerKeyFlag.Name),
		KeystorePath:    cCtx.String(keystoreFlag.Name),
		KeystorePass:    cCtx.String(keystorePassFlag.Name),
		ChainID:         cCtx.Int64(chainIDFlag.Name),
		GasLimit:        cCtx.Uint64(gasLimitFlag.Name),
		GasPriceGwei:    cCtx.Int64(gasPriceFlag.Name),
		WaitMined:       cCtx.Bool(waitMinedFlag.Name),
	}
}

// buildService opens the database and configures every enabled anchor.
// The caller owns the returned store.
func buildService(ctx context.Context, cfg *serviceConfig, logger *slog.Logger) (*credentials.Service, *store.Store, error) {
	db, err := store.Open(cfg.DBDriver, cfg.DBDSN, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	anchors, err := buildAnchors(ctx, cfg, logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	logger.Info("Credential service configured", "anchors", anchors.Types(), "defaultAnchor", anchors.Default())
	return credentials.NewService(db, db, anchors, logger), db, nil
}

func buildAnchors(ctx context.Context, cfg *serviceConfig, logger *slog.Logger) (*anchor.Set, error) {
	var anchorers []interfaces.Anchorer

	if len(cfg.StorageURIs) > 0 {
		locations, err := storage.ParseLocations(cfg.StorageURIs)
		if err != nil {
			return nil, err
		}
		backend, err := storage.NewStorageBackendFactory(logger).CreateMultiBackend(locations)
		if err != nil {
			return nil, fmt.Errorf("failed to create document storage: %w", err)
		}
		anchorers = append(anchorers, anchor.NewHashAnchorer(backend, logger))
	}

	if cfg.RPCAddr != "" {
		ethAnchor, err := buildEthereumAnchor(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		anchorers = append(anchorers, ethAnchor)
	}

	if len(anchorers) == 0 {
		return nil, errors.New("no anchor configured: set --storage and/or --rpc-addr")
	}

	defaultType := anchorers[0].Type()
	if cfg.DefaultAnchor != "" {
		t, err := interfaces.ParseAnchorType(cfg.DefaultAnchor)
		if err != nil {
			return nil, err
		}
		defaultType = t
	}

	return anchor.NewSet(defaultType, anchorers...)
}

func buildEthereumAnchor(ctx context.Context, cfg *serviceConfig, logger *slog.Logger) (*anchor.EthereumAnchorer, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}

	key, err := cryptoutils.LoadKey(cfg.IssuerKey, cfg.KeystorePath, cfg.KeystorePass)
	if err != nil {
		return nil, fmt.Errorf("failed to load issuer key: %w", err)
	}

	logger.Info("Connecting to Ethereum RPC", "address", cfg.RPCAddr)
	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	client, err := ethclient.DialContext(dialCtx, cfg.RPCAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC: %w", err)
	}

	chainID := big.NewInt(cfg.ChainID)
	if err := checkChainID(dialCtx, client, chainID); err != nil {
		client.Close()
		return nil, err
	}

	ethCfg := anchor.EthereumConfig{
		ContractAddress: common.HexToAddress(cfg.ContractAddress),
		ChainID:         chainID,
		GasLimit:        cfg.GasLimit,
		WaitMined:       cfg.WaitMined,
	}
	if cfg.GasPriceGwei > 0 {
		ethCfg.GasPrice = new(big.Int).Mul(big.NewInt(cfg.GasPriceGwei), big.NewInt(params.GWei))
	}

	a, err := anchor.NewEthereumAnchorer(client, key, ethCfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Ethereum anchoring enabled", "contract", ethCfg.ContractAddress.Hex(), "issuer", a.From().Hex())
	return a, nil
}

type chainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// checkChainID refuses an RPC endpoint serving another chain than configured,
// since transactions signed for the configured chain would not verify there.
func checkChainID(ctx context.Context, client chainIDReader, want *big.Int) error {
	remote, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to read chain id from RPC: %w", err)
	}
	if remote.Cmp(want) != 0 {
		return fmt.Errorf("configured chain id %s does not match RPC chain id %s", want, remote)
	}
	return nil
}
