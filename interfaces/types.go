package interfaces

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// WalletAddress is the Ethereum account a student or institute signs with.
type WalletAddress = common.Address

// NewWalletAddressFromHex parses a 0x-prefixed (or bare) 40-char hex address.
func NewWalletAddressFromHex(addr string) (WalletAddress, error) {
	addr = strings.TrimSpace(addr)
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		addr = "0x" + addr
	}
	if !common.IsHexAddress(addr) {
		return WalletAddress{}, fmt.Errorf("invalid wallet address %q", addr)
	}
	return common.HexToAddress(addr), nil
}

// CredentialID identifies a credential. It is the uint256 argument passed to the
// CredentialManager contract, kept within uint64 range.
type CredentialID uint64

// ParseCredentialID parses a base-10 credential id.
func ParseCredentialID(s string) (CredentialID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid credential id %q", s)
	}
	return CredentialID(v), nil
}

// String returns the base-10 representation.
func (id CredentialID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// CredentialStatus is the lifecycle state of a credential.
type CredentialStatus string

const (
	// StatusPending marks a reserved credential whose issue anchor is in flight.
	StatusPending CredentialStatus = "pending"
	// StatusActive marks an anchored, valid credential.
	StatusActive CredentialStatus = "active"
	// StatusRevoking marks a credential claimed by a revocation whose anchor is in flight.
	StatusRevoking CredentialStatus = "revoking"
	// StatusRevoked marks a credential withdrawn by its issuer.
	StatusRevoked CredentialStatus = "revoked"
)

// AnchorType names the mechanism a credential proof was produced with.
type AnchorType string

const (
	// EthereumAnchor proofs are transaction hashes of CredentialManager calls.
	EthereumAnchor AnchorType = "ethereum"
	// HashAnchor proofs are sha256 digests of documents kept in content-addressed storage.
	HashAnchor AnchorType = "hash"
)

// ParseAnchorType validates an anchor type name.
func ParseAnchorType(s string) (AnchorType, error) {
	switch t := AnchorType(strings.ToLower(strings.TrimSpace(s))); t {
	case EthereumAnchor, HashAnchor:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAnchor, s)
	}
}

// Role is the kind of account behind a wallet.
type Role string

const (
	RoleStudent   Role = "student"
	RoleInstitute Role = "institute"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleStudent, RoleInstitute:
		return r, nil
	default:
		return "", fmt.Errorf("invalid role %q", s)
	}
}

// Account binds a wallet to a role and profile.
type Account struct {
	Address   WalletAddress `json:"address"`
	Role      Role          `json:"role"`
	Name      string        `json:"name"`
	Email     string        `json:"email,omitempty"`
	Institute string        `json:"institute,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Credential is the stored record of an issued credential.
type Credential struct {
	ID              CredentialID     `json:"credential_id"`
	StudentName     string           `json:"student_name"`
	StudentEmail    string           `json:"student_email,omitempty"`
	Course          string           `json:"course"`
	WalletAddress   WalletAddress    `json:"wallet_address"`
	IssuerAddress   WalletAddress    `json:"issuer_address"`
	IssuedAt        time.Time        `json:"issue_date"`
	Status          CredentialStatus `json:"status"`
	RevokedReason   string           `json:"revoked_reason,omitempty"`
	RevokedAt       *time.Time       `json:"revoked_at,omitempty"`
	AnchorType      AnchorType       `json:"anchor_type"`
	AnchorProof     string           `json:"anchor_proof,omitempty"`
	RevocationProof string           `json:"revocation_proof,omitempty"`
}

// Document returns the canonical anchored subset of the credential.
func (c *Credential) Document() CredentialDocument {
	return CredentialDocument{
		CredentialID:  c.ID,
		StudentName:   c.StudentName,
		StudentEmail:  c.StudentEmail,
		Course:        c.Course,
		WalletAddress: c.WalletAddress.Hex(),
		IssuerAddress: c.IssuerAddress.Hex(),
		IssueDate:     c.IssuedAt.UTC().Format(time.RFC3339),
	}
}

// Public returns a copy safe to show to unauthenticated callers.
func (c *Credential) Public() *Credential {
	cp := *c
	cp.StudentEmail = ""
	return &cp
}

// CredentialDocument is the exact content an anchor commits to.
// Field order is part of the hash and must not change.
type CredentialDocument struct {
	CredentialID  CredentialID `json:"credential_id"`
	StudentName   string       `json:"student_name"`
	StudentEmail  string       `json:"student_email"`
	Course        string       `json:"course"`
	WalletAddress string       `json:"wallet_address"`
	IssuerAddress string       `json:"issuer_address"`
	IssueDate     string       `json:"issue_date"`
}

// Canonical returns the byte encoding that is hashed and stored.
func (d CredentialDocument) Canonical() ([]byte, error) {
	return json.Marshal(d)
}

// RevocationNotice is the content a hash anchor stores when a credential is revoked.
type RevocationNotice struct {
	CredentialID CredentialID `json:"credential_id"`
	DocumentHash string       `json:"document_hash"`
	Reason       string       `json:"reason"`
	RevokedAt    string       `json:"revoked_at"`
}

// CredentialStats summarizes an institute's credentials.
type CredentialStats struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Revoked int `json:"revoked"`
}

var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrCredentialExists   = errors.New("credential already exists")
	ErrAlreadyRevoked     = errors.New("credential already revoked")
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountExists      = errors.New("account already registered")
	ErrNotAuthorized      = errors.New("not authorized")
	ErrInvalidCredential  = errors.New("invalid credential")
	ErrUnknownAnchor      = errors.New("unknown anchor type")

	// ErrStatusConflict is returned by a status transition when the credential is not in the expected status.
	ErrStatusConflict = errors.New("credential is not in the expected status")

	// ErrProofMismatch is returned by verification when a proof does not commit to the given document.
	ErrProofMismatch = errors.New("anchor proof does not match credential")
)
