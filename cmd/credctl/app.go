package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/educhainverify/credential-service/api"
	"github.com/educhainverify/credential-service/api/clients"
	"github.com/educhainverify/credential-service/cryptoutils"
	"github.com/educhainverify/credential-service/interfaces"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"
)

var flagServerAddr = &cli.StringFlag{
	Name:    "server",
	Value:   "http://127.0.0.1:8080",
	Usage:   "credential service address",
	EnvVars: []string{"CREDENTIAL_SERVER"},
}
var flagKey = &cli.StringFlag{
	Name:    "key",
	Usage:   "hex private key of the calling wallet",
	EnvVars: []string{"WALLET_KEY"},
}
var flagKeystore = &cli.StringFlag{
	Name:    "keystore",
	Usage:   "JSON keystore file of the calling wallet",
	EnvVars: []string{"WALLET_KEYSTORE"},
}
var flagPassphrase = &cli.StringFlag{
	Name:    "passphrase",
	Usage:   "keystore passphrase",
	EnvVars: []string{"WALLET_PASSPHRASE"},
}

// providerFunc builds the API client for a command invocation.
type providerFunc func(cCtx *cli.Context) (api.CredentialProvider, error)

func newClient(cCtx *cli.Context) (api.CredentialProvider, error) {
	if cCtx.String(flagKey.Name) == "" && cCtx.String(flagKeystore.Name) == "" {
		return clients.NewCredentialClient(cCtx.String(flagServerAddr.Name), nil), nil
	}
	key, err := cryptoutils.LoadKey(cCtx.String(flagKey.Name), cCtx.String(flagKeystore.Name), cCtx.String(flagPassphrase.Name))
	if err != nil {
		return nil, err
	}
	return clients.NewCredentialClient(cCtx.String(flagServerAddr.Name), key), nil
}

func newApp(provider providerFunc, out io.Writer) *cli.App {
	// Wraps a command body that needs the API client.
	withClient := func(fn func(*cli.Context, api.CredentialProvider) (interface{}, error)) cli.ActionFunc {
		return func(cCtx *cli.Context) error {
			c, err := provider(cCtx)
			if err != nil {
				return err
			}
			res, err := fn(cCtx, c)
			if err != nil {
				return describe(err)
			}
			return printJSON(out, res)
		}
	}

	credentialID := func(cCtx *cli.Context) (interfaces.CredentialID, error) {
		if cCtx.NArg() != 1 {
			return 0, errors.New("expected exactly one credential id")
		}
		return interfaces.ParseCredentialID(cCtx.Args().First())
	}

	return &cli.App{
		Name:      "credctl",
		Usage:     "Issue, revoke and verify academic credentials",
		Writer:    out,
		Flags:     []cli.Flag{flagServerAddr, flagKey, flagKeystore, flagPassphrase},
		ErrWriter: out,
		Commands: []*cli.Command{
			{
				Name:  "keygen",
				Usage: "Create a wallet; writes a keystore when --dir is given, prints a hex key otherwise",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Usage: "keystore directory"},
					&cli.BoolFlag{Name: "light", Usage: "use light scrypt parameters"},
				},
				Action: func(cCtx *cli.Context) error {
					if dir := cCtx.String("dir"); dir != "" {
						addr, path, err := cryptoutils.NewKeystoreAccount(dir, cCtx.String(flagPassphrase.Name), cCtx.Bool("light"))
						if err != nil {
							return err
						}
						return printJSON(out, map[string]string{"address": addr.Hex(), "keystore": path})
					}

					key, err := crypto.GenerateKey()
					if err != nil {
						return err
					}
					return printJSON(out, map[string]string{
						"address":     crypto.PubkeyToAddress(key.PublicKey).Hex(),
						"private_key": hexutil.Encode(crypto.FromECDSA(key)),
					})
				},
			},
			{
				Name:  "register",
				Usage: "Register the calling wallet as a student or institute",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "role", Required: true, Usage: "'student' or 'institute'"},
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "email"},
					&cli.StringFlag{Name: "institute"},
				},
				Action: withClient(func(cCtx *cli.Context, c api.CredentialProvider) (interface{}, error) {
					role, err := interfaces.ParseRole(cCtx.String("role"))
					if err != nil {
						return nil, err
					}
					return c.RegisterAccount(cCtx.Context, &interfaces.RegisterAccountRequest{
						Role:      role,
						Name:      cCtx.String("name"),
						Email:     cCtx.String("email"),
						Institute: cCtx.String("institute"),
					})
				}),
			},
			{
				Name:  "me",
				Usage: "Show the account of the calling wallet",
				Action: withClient(func(cCtx *cli.Context, c api.CredentialProvider) (interface{}, error) {
					return c.Me(cCtx.Context)
				}),
			},
			{
				Name:  "issue",
				Usage: "Issue a credential to a student wallet",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "student-name", Required: true},
					&cli.StringFlag{Name: "student-email", Required: true},
					&cli.StringFlag{Name: "course", Required: true},
					&cli.StringFlag{Name: "wallet", Required: true, Usage: "student wallet address"},
					&cli.StringFlag{Name: "anchor", Usage: "'ethereum' or 'hash'; server default when empty"},
				},
				Action: withClient(func(cCtx *cli.Context, c api.CredentialProvider) (interface{}, error) {
					return c.Issue(cCtx.Context, &interfaces.IssueRequest{
						StudentName:   cCtx.String("student-name"),
						StudentEmail:  cCtx.String("student-email"),
						Course:        cCtx.String("course"),
						WalletAddress: cCtx.String("wallet"),
						AnchorType:    interfaces.AnchorType(cCtx.String("anchor")),
					})
				}),
			},
			{
				Name:      "revoke",
				Usage:     "Revoke a credential issued by the calling institute",
				ArgsUsage: "<credential-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "reason", Required: true},
				},
				Action: withClient(func(cCtx *cli.Context, c api.CredentialProvider) (interface{}, error) {
					id, err := credentialID(cCtx)
					if err != nil {
						return nil, err
					}
					return c.Revoke(cCtx.Context, id, cCtx.String("reason"))
				}),
			},
			{
				Name:      "search",
				Usage:     "Search the calling institute's credentials by id or student email",
				ArgsUsage: "[query]",
				Action: withClient(func(cCtx *cli.Context, c api.CredentialProvider) (interface{}, error) {
					return c.Search(cCtx.Context, cCtx.Args().First())
				}),
			},
			{
				Name:  "mine",
				Usage: "List credentials issued to (student) or by (institute) the calling wallet",
				Action: withClient(func(cCtx *cli.Context, c api.CredentialProvider) (interface{}, error) {
					return c.Mine(cCtx.Context)
				}),
			},
			{
				Name:  "stats",
				Usage: "Show credential counts of the calling institute",
				Action: withClient(func(cCtx *cli.Context, c api.CredentialProvider) (interface{}, error) {
					return c.Stats(cCtx.Context)
				}),
			},
			{
				Name:      "show",
				Usage:     "Display a credential",
				ArgsUsage: "<credential-id>",
				Action: withClient(func(cCtx *cli.Context, c api.CredentialProvider) (interface{}, error) {
					id, err := credentialID(cCtx)
					if err != nil {
						return nil, err
					}
					return c.Show(cCtx.Context, id)
				}),
			},
			{
				Name:      "verify",
				Usage:     "Verify a credential and its anchor proof",
				ArgsUsage: "<credential-id>",
				Action: withClient(func(cCtx *cli.Context, c api.CredentialProvider) (interface{}, error) {
					id, err := credentialID(cCtx)
					if err != nil {
						return nil, err
					}
					return c.Verify(cCtx.Context, id)
				}),
			},
			{
				Name:  "anchors",
				Usage: "List the anchor types the server supports",
				Action: withClient(func(cCtx *cli.Context, c api.CredentialProvider) (interface{}, error) {
					return c.Anchors(cCtx.Context)
				}),
			},
		},
	}
}

// describe adds field level validation details to server errors.
func describe(err error) error {
	var statusErr *api.StatusError
	if !errors.As(err, &statusErr) || len(statusErr.Fields) == 0 {
		return err
	}
	return fmt.Errorf("%w %v", err, statusErr.Fields)
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
