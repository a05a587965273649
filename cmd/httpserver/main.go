package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/educhainverify/credential-service/api/handlers"
	"github.com/educhainverify/credential-service/cmd/flags"
	"github.com/educhainverify/credential-service/httpserver"
	"github.com/educhainverify/credential-service/store"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var dbDriverFlag = &cli.StringFlag{
	Name:    "db-driver",
	Value:   store.DriverSQLite,
	Usage:   "database driver: 'sqlite3' or 'postgres'",
	EnvVars: []string{"DB_DRIVER"},
}
var dbDSNFlag = &cli.StringFlag{
	Name:    "db-dsn",
	Value:   "file:credentials.db?_foreign_keys=on",
	Usage:   "database connection string",
	EnvVars: []string{"DB_DSN", "DATABASE_URL"},
}
var storageFlag = &cli.StringSliceFlag{
	Name:    "storage",
	Usage:   "document storage URI for the hash anchor (file://, s3://, ipfs://, vault://); repeatable",
	EnvVars: []string{"STORAGE_URIS"},
}
var defaultAnchorFlag = &cli.StringFlag{
	Name:    "default-anchor",
	Usage:   "anchor used when a request does not name one: 'ethereum' or 'hash'",
	EnvVars: []string{"DEFAULT_ANCHOR"},
}
var rpcAddrFlag = flags.RpcAddrFlag
var contractFlag = &cli.StringFlag{
	Name:    "contract",
	Usage:   "CredentialManager contract address",
	EnvVars: []string{"CONTRACT_ADDRESS"},
}
var issuerKeyFlag = &cli.StringFlag{
	Name:    "issuer-key",
	Usage:   "hex private key of the wallet that sends anchor transactions",
	EnvVars: []string{"PRIVATE_KEY"},
}
var keystoreFlag = &cli.StringFlag{
	Name:    "keystore",
	Usage:   "JSON keystore file holding the issuer key (used when --issuer-key is empty)",
	EnvVars: []string{"KEYSTORE_PATH"},
}
var keystorePassFlag = &cli.StringFlag{
	Name:    "keystore-passphrase",
	Usage:   "passphrase for --keystore",
	EnvVars: []string{"KEYSTORE_PASSPHRASE"},
}
var chainIDFlag = &cli.Int64Flag{
	Name:    "chain-id",
	Value:   11155111,
	Usage:   "chain id used to sign anchor transactions",
	EnvVars: []string{"CHAIN_ID"},
}
var gasLimitFlag = &cli.Uint64Flag{
	Name:    "gas-limit",
	Value:   200000,
	Usage:   "gas limit of anchor transactions",
	EnvVars: []string{"GAS_LIMIT"},
}
var gasPriceFlag = &cli.Int64Flag{
	Name:    "gas-price-gwei",
	Value:   20,
	Usage:   "gas price of anchor transactions in gwei",
	EnvVars: []string{"GAS_PRICE_GWEI"},
}
var waitMinedFlag = &cli.BoolFlag{
	Name:    "wait-mined",
	Usage:   "wait for anchor transactions to be mined before answering",
	EnvVars: []string{"WAIT_MINED"},
}

func main() {
	// A missing .env is fine; flags and the environment still apply.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "credential-server",
		Usage: "Serve the credential issuance and verification API",
		Flags: append([]cli.Flag{
			dbDriverFlag,
			dbDSNFlag,
			storageFlag,
			defaultAnchorFlag,
			rpcAddrFlag,
			contractFlag,
			issuerKeyFlag,
			keystoreFlag,
			keystorePassFlag,
			chainIDFlag,
			gasLimitFlag,
			gasPriceFlag,
			waitMinedFlag,
		}, flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)
			cfg := flags.ConfigureServer(cCtx, logger)

			svc, db, err := buildService(cCtx.Context, serviceConfigFromCLI(cCtx), logger)
			if err != nil {
				logger.Error("Failed to configure credential service", "err", err)
				return err
			}
			defer db.Close()

			handler := handlers.NewHandler(svc, cfg.MaxClockSkew, logger)
			server, err := httpserver.New(cfg, handler, func(ctx context.Context) error { return db.Ping(ctx) })
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			<-exit

			server.Shutdown()
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
