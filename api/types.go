package api

import (
	"context"
	"fmt"

	"github.com/educhainverify/credential-service/credentials"
	"github.com/educhainverify/credential-service/interfaces"
)

// Headers carrying the wallet signature that authenticates a request.
// The signature is an EIP-191 personal_sign over cryptoutils.RequestMessage.
const (
	WalletAddressHeader   = "X-Wallet-Address"
	WalletTimestampHeader = "X-Wallet-Timestamp"
	WalletSignatureHeader = "X-Wallet-Signature"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// CredentialListResponse wraps credential listings.
type CredentialListResponse struct {
	Credentials []*interfaces.Credential `json:"credentials"`
}

// VerificationResponse reports the outcome of verifying a credential's anchor.
type VerificationResponse = credentials.VerificationResult

// AnchorsResponse lists the anchor types the server accepts.
type AnchorsResponse struct {
	Types   []interfaces.AnchorType `json:"types"`
	Default interfaces.AnchorType   `json:"default"`
}

// PublicCredentialProvider is the unauthenticated part of the API.
type PublicCredentialProvider interface {
	Show(ctx context.Context, id interfaces.CredentialID) (*interfaces.Credential, error)
	Verify(ctx context.Context, id interfaces.CredentialID) (*VerificationResponse, error)
	Anchors(ctx context.Context) (*AnchorsResponse, error)
}

// WalletCredentialProvider is the part of the API that acts on behalf of a signing wallet.
type WalletCredentialProvider interface {
	RegisterAccount(ctx context.Context, req *interfaces.RegisterAccountRequest) (*interfaces.Account, error)
	Me(ctx context.Context) (*interfaces.Account, error)
	Issue(ctx context.Context, req *interfaces.IssueRequest) (*interfaces.Credential, error)
	Revoke(ctx context.Context, id interfaces.CredentialID, reason string) (*interfaces.Credential, error)
	Search(ctx context.Context, query string) ([]*interfaces.Credential, error)
	Mine(ctx context.Context) ([]*interfaces.Credential, error)
	Stats(ctx context.Context) (interfaces.CredentialStats, error)
}

type CredentialProvider interface {
	PublicCredentialProvider
	WalletCredentialProvider
}

// StatusError is returned by clients when the server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}
