package anchor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/educhainverify/credential-service/interfaces"
)

// HashProofPrefix prefixes the hex digest in hash anchor proofs.
const HashProofPrefix = "sha256:"

// HashAnchorer anchors credentials by storing their canonical documents in
// content-addressed storage.
type HashAnchorer struct {
	storage interfaces.StorageBackend
	log     *slog.Logger
}

func NewHashAnchorer(storage interfaces.StorageBackend, log *slog.Logger) *HashAnchorer {
	return &HashAnchorer{
		storage: storage,
		log:     log.With("anchor", interfaces.HashAnchor, "storage", storage.Name()),
	}
}

func (a *HashAnchorer) Type() interfaces.AnchorType {
	return interfaces.HashAnchor
}

// FormatHashProof renders a content ID as a hash anchor proof.
func FormatHashProof(id interfaces.ContentID) string {
	return HashProofPrefix + id.String()
}

// ParseHashProof extracts the content ID from a hash anchor proof.
func ParseHashProof(proof string) (interfaces.ContentID, error) {
	digest, ok := strings.CutPrefix(strings.TrimSpace(proof), HashProofPrefix)
	if !ok {
		return interfaces.ContentID{}, fmt.Errorf("%w: missing %q prefix", interfaces.ErrProofMismatch, HashProofPrefix)
	}
	id, err := interfaces.NewContentIDFromHex(digest)
	if err != nil {
		return interfaces.ContentID{}, fmt.Errorf("%w: %v", interfaces.ErrProofMismatch, err)
	}
	return id, nil
}

func (a *HashAnchorer) AnchorIssue(ctx context.Context, doc interfaces.CredentialDocument) (string, error) {
	data, err := doc.Canonical()
	if err != nil {
		return "", fmt.Errorf("failed to encode credential document: %w", err)
	}

	id, err := a.storage.Store(ctx, data, interfaces.DocumentType)
	if err != nil {
		return "", fmt.Errorf("failed to store credential document: %w", err)
	}

	a.log.Info("Credential document anchored", "credentialID", doc.CredentialID, "contentID", id.String())
	return FormatHashProof(id), nil
}

// AnchorRevocation stores a revocation notice referencing the document hash.
func (a *HashAnchorer) AnchorRevocation(ctx context.Context, doc interfaces.CredentialDocument, reason string, revokedAt time.Time) (string, error) {
	data, err := doc.Canonical()
	if err != nil {
		return "", fmt.Errorf("failed to encode credential document: %w", err)
	}

	notice, err := json.Marshal(interfaces.RevocationNotice{
		CredentialID: doc.CredentialID,
		DocumentHash: FormatHashProof(interfaces.ComputeID(data)),
		Reason:       reason,
		RevokedAt:    revokedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode revocation notice: %w", err)
	}

	id, err := a.storage.Store(ctx, notice, interfaces.RevocationType)
	if err != nil {
		return "", fmt.Errorf("failed to store revocation notice: %w", err)
	}

	a.log.Info("Credential revocation anchored", "credentialID", doc.CredentialID, "contentID", id.String())
	return FormatHashProof(id), nil
}

// VerifyIssue recomputes the document hash and checks the stored copy is intact.
func (a *HashAnchorer) VerifyIssue(ctx context.Context, doc interfaces.CredentialDocument, proof string) error {
	want, err := ParseHashProof(proof)
	if err != nil {
		return err
	}

	data, err := doc.Canonical()
	if err != nil {
		return fmt.Errorf("failed to encode credential document: %w", err)
	}
	if !interfaces.ComputeID(data).Equal(want) {
		return fmt.Errorf("%w: document hash differs", interfaces.ErrProofMismatch)
	}

	stored, err := a.storage.Fetch(ctx, want, interfaces.DocumentType)
	if errors.Is(err, interfaces.ErrContentNotFound) {
		return fmt.Errorf("%w: anchored document missing from storage", interfaces.ErrProofMismatch)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch anchored document: %w", err)
	}
	if !bytes.Equal(stored, data) {
		return fmt.Errorf("%w: stored document differs", interfaces.ErrProofMismatch)
	}

	return nil
}

// VerifyRevocation checks that proof names a stored revocation notice for doc
// whose document hash matches doc.
func (a *HashAnchorer) VerifyRevocation(ctx context.Context, doc interfaces.CredentialDocument, proof string) error {
	notice, err := a.Revocation(ctx, proof)
	if errors.Is(err, interfaces.ErrContentNotFound) {
		return fmt.Errorf("%w: revocation notice missing from storage", interfaces.ErrProofMismatch)
	}
	if err != nil {
		return err
	}

	data, err := doc.Canonical()
	if err != nil {
		return fmt.Errorf("failed to encode credential document: %w", err)
	}
	if notice.CredentialID != doc.CredentialID || notice.DocumentHash != FormatHashProof(interfaces.ComputeID(data)) {
		return fmt.Errorf("%w: revocation notice does not match credential %s", interfaces.ErrProofMismatch, doc.CredentialID)
	}
	return nil
}

// Revocation loads a revocation notice by its proof.
func (a *HashAnchorer) Revocation(ctx context.Context, proof string) (*interfaces.RevocationNotice, error) {
	id, err := ParseHashProof(proof)
	if err != nil {
		return nil, err
	}

	data, err := a.storage.Fetch(ctx, id, interfaces.RevocationType)
	if err != nil {
		return nil, err
	}

	var notice interfaces.RevocationNotice
	if err := json.Unmarshal(data, &notice); err != nil {
		return nil, fmt.Errorf("%w: invalid revocation notice: %v", interfaces.ErrProofMismatch, err)
	}
	return &notice, nil
}
