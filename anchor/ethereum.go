package anchor

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/educhainverify/credential-service/bindings/credentialmanager"
	"github.com/educhainverify/credential-service/interfaces"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	DefaultChainID  = 11155111 // Sepolia
	DefaultGasLimit = 200000
)

// DefaultGasPrice is 20 gwei.
var DefaultGasPrice = big.NewInt(20_000_000_000)

var (
	// ErrProofPending is returned when the anchoring transaction is known but not mined yet.
	ErrProofPending = errors.New("anchor transaction not mined yet")

	// ErrTransactionFailed is returned when an anchoring transaction was mined but reverted.
	ErrTransactionFailed = errors.New("anchor transaction reverted")
)

// ChainClient is the subset of an Ethereum RPC client the anchorer needs.
// Both ethclient.Client and the simulated backend client satisfy it.
type ChainClient interface {
	bind.ContractBackend
	ethereum.TransactionReader
}

// EthereumConfig configures an EthereumAnchorer.
type EthereumConfig struct {
	// ContractAddress is the deployed CredentialManager contract.
	ContractAddress common.Address

	// ChainID defaults to Sepolia.
	ChainID *big.Int

	GasLimit uint64
	GasPrice *big.Int

	// WaitMined blocks AnchorIssue/AnchorRevocation until the transaction is mined
	// and fails them when the receipt reports a revert.
	WaitMined   bool
	MineTimeout time.Duration

	// SendTimeout bounds the retries of a transaction submission.
	SendTimeout time.Duration
}

func (c EthereumConfig) withDefaults() EthereumConfig {
	if c.ChainID == nil {
		c.ChainID = big.NewInt(DefaultChainID)
	}
	if c.GasLimit == 0 {
		c.GasLimit = DefaultGasLimit
	}
	if c.GasPrice == nil {
		c.GasPrice = new(big.Int).Set(DefaultGasPrice)
	}
	if c.MineTimeout == 0 {
		c.MineTimeout = 5 * time.Minute
	}
	if c.SendTimeout == 0 {
		c.SendTimeout = time.Minute
	}
	return c
}

// EthereumAnchorer anchors credentials with CredentialManager contract calls
// signed by a single service wallet.
type EthereumAnchorer struct {
	client   ChainClient
	contract *credentialmanager.CredentialManager
	auth     *bind.TransactOpts
	cfg      EthereumConfig
	log      *slog.Logger

	// Serializes nonce allocation and submission.
	mu sync.Mutex
	// Next nonce after the last accepted send, covering RPC nodes whose
	// pending state lags behind.
	nextNonce uint64
}

// NewEthereumAnchorer creates an anchorer that signs with key.
func NewEthereumAnchorer(client ChainClient, key *ecdsa.PrivateKey, cfg EthereumConfig, log *slog.Logger) (*EthereumAnchorer, error) {
	if cfg.ContractAddress == (common.Address{}) {
		return nil, errors.New("credential contract address is required")
	}
	cfg = cfg.withDefaults()

	auth, err := bind.NewKeyedTransactorWithChainID(key, cfg.ChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	contract, err := credentialmanager.NewCredentialManager(cfg.ContractAddress, client)
	if err != nil {
		return nil, err
	}

	return &EthereumAnchorer{
		client:   client,
		contract: contract,
		auth:     auth,
		cfg:      cfg,
		log:      log.With("anchor", interfaces.EthereumAnchor, "contract", cfg.ContractAddress.Hex()),
	}, nil
}

func (a *EthereumAnchorer) Type() interfaces.AnchorType {
	return interfaces.EthereumAnchor
}

// From returns the wallet transactions are sent from.
func (a *EthereumAnchorer) From() common.Address {
	return a.auth.From
}

// AnchorIssue sends issueCredential(id, student wallet, course).
func (a *EthereumAnchorer) AnchorIssue(ctx context.Context, doc interfaces.CredentialDocument) (string, error) {
	student, err := interfaces.NewWalletAddressFromHex(doc.WalletAddress)
	if err != nil {
		return "", fmt.Errorf("%w: %v", interfaces.ErrInvalidCredential, err)
	}
	id := new(big.Int).SetUint64(uint64(doc.CredentialID))

	return a.submit(ctx, credentialmanager.MethodIssueCredential, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return a.contract.IssueCredential(opts, id, student, doc.Course)
	})
}

// AnchorRevocation sends revokeCredential(id). The reason is kept off chain.
func (a *EthereumAnchorer) AnchorRevocation(ctx context.Context, doc interfaces.CredentialDocument, reason string, revokedAt time.Time) (string, error) {
	id := new(big.Int).SetUint64(uint64(doc.CredentialID))

	return a.submit(ctx, credentialmanager.MethodRevokeCredential, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return a.contract.RevokeCredential(opts, id)
	})
}

// VerifyIssue checks that proof is the hash of a successful issueCredential
// transaction, sent by this anchorer's wallet to the configured contract, whose
// arguments match doc.
func (a *EthereumAnchorer) VerifyIssue(ctx context.Context, doc interfaces.CredentialDocument, proof string) error {
	tx, err := a.anchorTransaction(ctx, proof)
	if err != nil {
		return err
	}

	call, err := credentialmanager.DecodeIssueCredential(tx.Data())
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrProofMismatch, err)
	}

	student, err := interfaces.NewWalletAddressFromHex(doc.WalletAddress)
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrInvalidCredential, err)
	}
	if !matchesID(call.CredentialId, doc.CredentialID) || call.Student != student || call.Course != doc.Course {
		return fmt.Errorf("%w: calldata does not match credential %s", interfaces.ErrProofMismatch, doc.CredentialID)
	}

	return a.checkReceipt(ctx, tx.Hash())
}

// VerifyRevocation checks that proof is the hash of a successful revokeCredential
// transaction for doc, sent by this anchorer's wallet to the configured contract.
func (a *EthereumAnchorer) VerifyRevocation(ctx context.Context, doc interfaces.CredentialDocument, proof string) error {
	tx, err := a.anchorTransaction(ctx, proof)
	if err != nil {
		return err
	}

	id, err := credentialmanager.DecodeRevokeCredential(tx.Data())
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrProofMismatch, err)
	}
	if !matchesID(id, doc.CredentialID) {
		return fmt.Errorf("%w: calldata does not revoke credential %s", interfaces.ErrProofMismatch, doc.CredentialID)
	}

	return a.checkReceipt(ctx, tx.Hash())
}

// anchorTransaction loads the mined transaction named by proof and checks it was
// sent by this anchorer's wallet to the credential contract.
func (a *EthereumAnchorer) anchorTransaction(ctx context.Context, proof string) (*types.Transaction, error) {
	raw, err := hexutil.Decode(strings.TrimSpace(proof))
	if err != nil || len(raw) != common.HashLength {
		return nil, fmt.Errorf("%w: malformed transaction hash", interfaces.ErrProofMismatch)
	}
	txHash := common.BytesToHash(raw)

	tx, pending, err := a.client.TransactionByHash(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, fmt.Errorf("%w: transaction %s not found", interfaces.ErrProofMismatch, txHash.Hex())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction: %w", err)
	}
	if pending {
		return nil, ErrProofPending
	}

	if tx.To() == nil || *tx.To() != a.cfg.ContractAddress {
		return nil, fmt.Errorf("%w: transaction not sent to the credential contract", interfaces.ErrProofMismatch)
	}

	sender, err := types.Sender(types.LatestSignerForChainID(a.cfg.ChainID), tx)
	if err != nil || sender != a.auth.From {
		return nil, fmt.Errorf("%w: transaction not sent by the issuing wallet", interfaces.ErrProofMismatch)
	}
	return tx, nil
}

func (a *EthereumAnchorer) checkReceipt(ctx context.Context, txHash common.Hash) error {
	receipt, err := a.client.TransactionReceipt(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return ErrProofPending
	}
	if err != nil {
		return fmt.Errorf("failed to fetch receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %w", interfaces.ErrProofMismatch, ErrTransactionFailed)
	}
	return nil
}

func matchesID(arg *big.Int, id interfaces.CredentialID) bool {
	return arg != nil && arg.IsUint64() && arg.Uint64() == uint64(id)
}

// submit signs a single transaction with an explicit nonce and sends it,
// retrying the send of that same signed transaction on transient errors.
func (a *EthereumAnchorer) submit(ctx context.Context, method string, build func(*bind.TransactOpts) (*types.Transaction, error)) (string, error) {
	tx, err := a.signAndSend(ctx, build)
	if err != nil {
		a.log.Error("Failed to send anchor transaction", "method", method, "err", err)
		return "", err
	}

	log := a.log.With("method", method, "tx", tx.Hash().Hex(), "nonce", tx.Nonce())
	log.Info("Anchor transaction sent")

	if a.cfg.WaitMined {
		waitCtx, cancel := context.WithTimeout(ctx, a.cfg.MineTimeout)
		defer cancel()

		receipt, err := bind.WaitMined(waitCtx, a.client, tx)
		if err != nil {
			return "", fmt.Errorf("failed waiting for anchor transaction %s: %w", tx.Hash().Hex(), err)
		}
		if receipt.Status != types.ReceiptStatusSuccessful {
			log.Error("Anchor transaction reverted", "block", receipt.BlockNumber)
			return "", fmt.Errorf("%w: %s", ErrTransactionFailed, tx.Hash().Hex())
		}
		log.Debug("Anchor transaction mined", "block", receipt.BlockNumber, "gasUsed", receipt.GasUsed)
	}

	return tx.Hash().Hex(), nil
}

func (a *EthereumAnchorer) signAndSend(ctx context.Context, build func(*bind.TransactOpts) (*types.Transaction, error)) (*types.Transaction, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	nonce, err := a.client.PendingNonceAt(ctx, a.auth.From)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending nonce: %w", err)
	}
	if a.nextNonce > nonce {
		nonce = a.nextNonce
	}

	opts := &bind.TransactOpts{
		From:     a.auth.From,
		Signer:   a.auth.Signer,
		Nonce:    new(big.Int).SetUint64(nonce),
		GasLimit: a.cfg.GasLimit,
		GasPrice: a.cfg.GasPrice,
		Context:  ctx,
		NoSend:   true,
	}

	tx, err := build(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = a.cfg.SendTimeout

	err = backoff.Retry(func() error {
		err := a.client.SendTransaction(ctx, tx)
		switch {
		case err == nil:
			return nil
		case isAlreadyKnown(err):
			return nil
		case isPermanentSendError(err):
			return backoff.Permanent(err)
		default:
			a.log.Warn("Retrying anchor transaction send", "tx", tx.Hash().Hex(), "err", err)
			return err
		}
	}, backoff.WithContext(b, ctx))
	if err != nil {
		a.nextNonce = 0
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	a.nextNonce = nonce + 1
	return tx, nil
}

func isAlreadyKnown(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "already known")
}

func isPermanentSendError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"nonce too low",
		"insufficient funds",
		"intrinsic gas too low",
		"exceeds block gas limit",
		"invalid sender",
		"replacement transaction underpriced",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
