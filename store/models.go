package store

import (
	"time"

	"github.com/educhainverify/credential-service/interfaces"
	"github.com/ethereum/go-ethereum/common"
	"github.com/uptrace/bun"
)

type credentialRecord struct {
	bun.BaseModel `bun:"table:credentials,alias:c"`

	ID              int64      `bun:"id,pk"`
	StudentName     string     `bun:"student_name,notnull"`
	StudentEmail    string     `bun:"student_email,notnull"`
	Course          string     `bun:"course,notnull"`
	WalletAddress   string     `bun:"wallet_address,notnull"`
	IssuerAddress   string     `bun:"issuer_address,notnull"`
	IssuedAt        time.Time  `bun:"issued_at,notnull"`
	Status          string     `bun:"status,notnull"`
	RevokedReason   string     `bun:"revoked_reason,notnull"`
	RevokedAt       *time.Time `bun:"revoked_at,nullzero"`
	AnchorType      string     `bun:"anchor_type,notnull"`
	AnchorProof     string     `bun:"anchor_proof,notnull"`
	RevocationProof string     `bun:"revocation_proof,notnull"`
	CreatedAt       time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newCredentialRecord(c *interfaces.Credential) *credentialRecord {
	now := time.Now().UTC()
	rec := &credentialRecord{
		ID:              int64(c.ID),
		StudentName:     c.StudentName,
		StudentEmail:    c.StudentEmail,
		Course:          c.Course,
		WalletAddress:   c.WalletAddress.Hex(),
		IssuerAddress:   c.IssuerAddress.Hex(),
		IssuedAt:        c.IssuedAt.UTC(),
		Status:          string(c.Status),
		RevokedReason:   c.RevokedReason,
		AnchorType:      string(c.AnchorType),
		AnchorProof:     c.AnchorProof,
		RevocationProof: c.RevocationProof,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if c.RevokedAt != nil {
		revokedAt := c.RevokedAt.UTC()
		rec.RevokedAt = &revokedAt
	}
	return rec
}

func (r *credentialRecord) toDomain() *interfaces.Credential {
	c := &interfaces.Credential{
		ID:              interfaces.CredentialID(r.ID),
		StudentName:     r.StudentName,
		StudentEmail:    r.StudentEmail,
		Course:          r.Course,
		WalletAddress:   common.HexToAddress(r.WalletAddress),
		IssuerAddress:   common.HexToAddress(r.IssuerAddress),
		IssuedAt:        r.IssuedAt.UTC(),
		Status:          interfaces.CredentialStatus(r.Status),
		RevokedReason:   r.RevokedReason,
		AnchorType:      interfaces.AnchorType(r.AnchorType),
		AnchorProof:     r.AnchorProof,
		RevocationProof: r.RevocationProof,
	}
	if r.RevokedAt != nil {
		revokedAt := r.RevokedAt.UTC()
		c.RevokedAt = &revokedAt
	}
	return c
}

type accountRecord struct {
	bun.BaseModel `bun:"table:accounts,alias:a"`

	Address   string    `bun:"address,pk"`
	Role      string    `bun:"role,notnull"`
	Name      string    `bun:"name,notnull"`
	Email     string    `bun:"email,notnull"`
	Institute string    `bun:"institute,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func newAccountRecord(a *interfaces.Account) *accountRecord {
	return &accountRecord{
		Address:   a.Address.Hex(),
		Role:      string(a.Role),
		Name:      a.Name,
		Email:     a.Email,
		Institute: a.Institute,
		CreatedAt: a.CreatedAt.UTC(),
	}
}

func (r *accountRecord) toDomain() *interfaces.Account {
	return &interfaces.Account{
		Address:   common.HexToAddress(r.Address),
		Role:      interfaces.Role(r.Role),
		Name:      r.Name,
		Email:     r.Email,
		Institute: r.Institute,
		CreatedAt: r.CreatedAt.UTC(),
	}
}
