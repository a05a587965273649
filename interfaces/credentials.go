package interfaces

import (
	"context"
	"time"
)

// Anchorer produces and checks tamper-evident proofs for credentials.
type Anchorer interface {
	// Type names the proof mechanism.
	Type() AnchorType

	// AnchorIssue commits to an issued credential document and returns the proof.
	AnchorIssue(ctx context.Context, doc CredentialDocument) (string, error)

	// AnchorRevocation commits to the revocation of a credential and returns the proof.
	AnchorRevocation(ctx context.Context, doc CredentialDocument, reason string, revokedAt time.Time) (string, error)

	// VerifyIssue checks that proof commits to doc.
	// Returns ErrProofMismatch when it does not.
	VerifyIssue(ctx context.Context, doc CredentialDocument, proof string) error

	// VerifyRevocation checks that proof records the revocation of doc.
	// Returns ErrProofMismatch when it does not.
	VerifyRevocation(ctx context.Context, doc CredentialDocument, proof string) error
}

// CredentialStore persists credential records.
// Pending credentials are excluded from search, listing and counts.
type CredentialStore interface {
	InsertCredential(ctx context.Context, c *Credential) error
	GetCredential(ctx context.Context, id CredentialID) (*Credential, error)
	UpdateCredential(ctx context.Context, c *Credential) error
	// TransitionCredential moves a credential from one status to another in a single
	// conditional write. Returns ErrStatusConflict when the credential is not in from.
	TransitionCredential(ctx context.Context, id CredentialID, from, to CredentialStatus) error
	DeleteCredential(ctx context.Context, id CredentialID) error

	// SearchCredentials matches query against the credential id or the student email.
	SearchCredentials(ctx context.Context, issuer WalletAddress, query string) ([]*Credential, error)
	ListCredentialsByIssuer(ctx context.Context, issuer WalletAddress) ([]*Credential, error)
	ListCredentialsByStudent(ctx context.Context, wallet WalletAddress) ([]*Credential, error)
	CountCredentials(ctx context.Context, issuer WalletAddress) (CredentialStats, error)
}

// AccountDirectory resolves wallets to accounts.
type AccountDirectory interface {
	RegisterAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, addr WalletAddress) (*Account, error)
}
