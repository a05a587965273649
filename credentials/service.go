// Package credentials implements the issuance, revocation and verification
// workflow on top of a credential store and a set of anchors.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/educhainverify/credential-service/anchor"
	"github.com/educhainverify/credential-service/interfaces"
	"github.com/educhainverify/credential-service/metrics"
)

// maxIDAttempts bounds how far an id is bumped past colliding ones.
const maxIDAttempts = 64

// VerificationResult reports whether a credential is authentic and current.
type VerificationResult struct {
	Credential  *interfaces.Credential      `json:"credential"`
	Status      interfaces.CredentialStatus `json:"status"`
	AnchorValid bool                        `json:"anchor_valid"`
	// RevocationValid reports the revocation anchor check of a revoked credential.
	RevocationValid *bool `json:"revocation_valid,omitempty"`
	// Valid is true when the anchor checks out and the credential is not revoked.
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type Service struct {
	store    interfaces.CredentialStore
	accounts interfaces.AccountDirectory
	anchors  *anchor.Set
	log      *slog.Logger
	now      func() time.Time

	// Paces retries of store writes that follow a successful anchor.
	storeBackOff func() backoff.BackOff
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source used for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store interfaces.CredentialStore, accounts interfaces.AccountDirectory, anchors *anchor.Set, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		accounts: accounts,
		anchors:  anchors,
		log:      log,
		now:      time.Now,

		storeBackOff: defaultStoreBackOff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterAccount binds addr to the requested role.
func (s *Service) RegisterAccount(ctx context.Context, addr interfaces.WalletAddress, req *interfaces.RegisterAccountRequest) (*interfaces.Account, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	account := &interfaces.Account{
		Address:   addr,
		Role:      req.Role,
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
		Institute: strings.TrimSpace(req.Institute),
		CreatedAt: s.now().UTC().Truncate(time.Second),
	}
	if err := s.accounts.RegisterAccount(ctx, account); err != nil {
		return nil, err
	}

	s.log.Info("Account registered", "address", addr.Hex(), "role", account.Role)
	return account, nil
}

func (s *Service) Account(ctx context.Context, addr interfaces.WalletAddress) (*interfaces.Account, error) {
	return s.accounts.GetAccount(ctx, addr)
}

func (s *Service) requireInstitute(ctx context.Context, addr interfaces.WalletAddress) (*interfaces.Account, error) {
	account, err := s.accounts.GetAccount(ctx, addr)
	if errors.Is(err, interfaces.ErrAccountNotFound) {
		return nil, fmt.Errorf("%w: %s is not registered", interfaces.ErrNotAuthorized, addr.Hex())
	}
	if err != nil {
		return nil, err
	}
	if account.Role != interfaces.RoleInstitute {
		return nil, fmt.Errorf("%w: only institutes can manage credentials", interfaces.ErrNotAuthorized)
	}
	return account, nil
}

// Issue records a credential for a student and anchors it.
// The credential is reserved as pending and only becomes active once anchored;
// a failed anchor removes the reservation.
func (s *Service) Issue(ctx context.Context, issuer interfaces.WalletAddress, req *interfaces.IssueRequest) (*interfaces.Credential, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	if _, err := s.requireInstitute(ctx, issuer); err != nil {
		return nil, err
	}

	anchorer, err := s.anchors.Get(req.AnchorType)
	if err != nil {
		return nil, err
	}

	student, err := interfaces.NewWalletAddressFromHex(req.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidCredential, err)
	}

	issuedAt := s.now().UTC().Truncate(time.Second)
	cred := &interfaces.Credential{
		StudentName:   strings.TrimSpace(req.StudentName),
		StudentEmail:  strings.TrimSpace(req.StudentEmail),
		Course:        strings.TrimSpace(req.Course),
		WalletAddress: student,
		IssuerAddress: issuer,
		IssuedAt:      issuedAt,
		Status:        interfaces.StatusPending,
		AnchorType:    anchorer.Type(),
	}

	if err := s.reserve(ctx, cred, interfaces.CredentialID(issuedAt.Unix())); err != nil {
		return nil, err
	}

	log := s.log.With("credentialID", cred.ID, "issuer", issuer.Hex(), "anchor", cred.AnchorType)

	start := time.Now()
	proof, err := anchorer.AnchorIssue(ctx, cred.Document())
	metrics.ObserveAnchor(string(cred.AnchorType), "issue", start, err)
	if err != nil {
		log.Error("Failed to anchor credential", "err", err)
		if delErr := s.store.DeleteCredential(context.WithoutCancel(ctx), cred.ID); delErr != nil {
			log.Error("Failed to release pending credential", "err", delErr)
		}
		return nil, fmt.Errorf("failed to anchor credential: %w", err)
	}

	cred.Status = interfaces.StatusActive
	cred.AnchorProof = proof
	if err := s.persist(ctx, cred); err != nil {
		// The row stays pending; the proof in this log line is needed to reconcile it.
		log.Error("Anchored credential could not be activated", "proof", proof, "err", err)
		return nil, fmt.Errorf("failed to record anchored credential: %w", err)
	}

	metrics.CredentialsIssued.WithLabelValues(string(cred.AnchorType)).Inc()
	log.Info("Credential issued", "proof", proof)
	return cred, nil
}

// reserve inserts cred as pending under the first free id at or after id.
func (s *Service) reserve(ctx context.Context, cred *interfaces.Credential, id interfaces.CredentialID) error {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		cred.ID = id + interfaces.CredentialID(attempt)
		err := s.store.InsertCredential(ctx, cred)
		if err == nil {
			return nil
		}
		if !errors.Is(err, interfaces.ErrCredentialExists) {
			return err
		}
	}
	return fmt.Errorf("%w: no free id after %s", interfaces.ErrCredentialExists, cred.ID)
}

// Revoke withdraws a credential issued by issuer.
// The credential is first claimed in the store (active to revoking) so that a
// single caller, across every service replica, anchors the revocation. A failed
// anchor hands the claim back.
func (s *Service) Revoke(ctx context.Context, issuer interfaces.WalletAddress, id interfaces.CredentialID, req *interfaces.RevokeRequest) (*interfaces.Credential, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	if _, err := s.requireInstitute(ctx, issuer); err != nil {
		return nil, err
	}

	cred, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cred.IssuerAddress != issuer {
		return nil, fmt.Errorf("%w: credential %s was issued by another institute", interfaces.ErrNotAuthorized, id)
	}
	switch cred.Status {
	case interfaces.StatusRevoked:
		return nil, fmt.Errorf("%w: %s", interfaces.ErrAlreadyRevoked, id)
	case interfaces.StatusRevoking:
		return nil, fmt.Errorf("%w: revocation of %s in progress", interfaces.ErrAlreadyRevoked, id)
	}

	anchorer, err := s.anchors.Get(cred.AnchorType)
	if err != nil {
		return nil, err
	}

	err = s.store.TransitionCredential(ctx, id, interfaces.StatusActive, interfaces.StatusRevoking)
	if errors.Is(err, interfaces.ErrStatusConflict) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrAlreadyRevoked, id)
	}
	if err != nil {
		return nil, err
	}

	log := s.log.With("credentialID", id, "issuer", issuer.Hex(), "anchor", cred.AnchorType)
	revokedAt := s.now().UTC().Truncate(time.Second)
	reason := strings.TrimSpace(req.Reason)

	start := time.Now()
	proof, err := anchorer.AnchorRevocation(ctx, cred.Document(), reason, revokedAt)
	metrics.ObserveAnchor(string(cred.AnchorType), "revoke", start, err)
	if err != nil {
		log.Error("Failed to anchor revocation", "err", err)
		relErr := s.store.TransitionCredential(context.WithoutCancel(ctx), id, interfaces.StatusRevoking, interfaces.StatusActive)
		if relErr != nil {
			log.Error("Failed to release revocation claim", "err", relErr)
		}
		return nil, fmt.Errorf("failed to anchor revocation: %w", err)
	}

	cred.Status = interfaces.StatusRevoked
	cred.RevokedReason = reason
	cred.RevokedAt = &revokedAt
	cred.RevocationProof = proof
	if err := s.persist(ctx, cred); err != nil {
		// The row stays revoking; the proof in this log line is needed to reconcile it.
		log.Error("Anchored revocation could not be recorded", "proof", proof, "err", err)
		return nil, fmt.Errorf("failed to record anchored revocation: %w", err)
	}

	metrics.CredentialsRevoked.WithLabelValues(string(cred.AnchorType)).Inc()
	log.Info("Credential revoked", "proof", proof)
	return cred, nil
}

// persist writes cred once its proof is anchored. Transient store errors are
// retried, and the caller's cancellation is ignored so the proof is not lost.
func (s *Service) persist(ctx context.Context, cred *interfaces.Credential) error {
	ctx = context.WithoutCancel(ctx)
	attempt := 0

	return backoff.Retry(func() error {
		attempt++
		err := s.store.UpdateCredential(ctx, cred)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, interfaces.ErrCredentialNotFound):
			return backoff.Permanent(err)
		default:
			s.log.Warn("Retrying credential update", "credentialID", cred.ID, "attempt", attempt, "err", err)
			return err
		}
	}, backoff.WithContext(s.storeBackOff(), ctx))
}

// Get returns an issued credential. Pending reservations are reported as not found.
func (s *Service) Get(ctx context.Context, id interfaces.CredentialID) (*interfaces.Credential, error) {
	cred, err := s.store.GetCredential(ctx, id)
	if err != nil {
		return nil, err
	}
	if cred.Status == interfaces.StatusPending {
		return nil, interfaces.ErrCredentialNotFound
	}
	return cred, nil
}

// Verify checks a credential's issue anchor and, once revoked, its revocation anchor.
// A proof that does not match or is not final is reported in the result with a
// reason; failures to reach the anchor itself are returned as errors.
func (s *Service) Verify(ctx context.Context, id interfaces.CredentialID) (*VerificationResult, error) {
	cred, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &VerificationResult{
		Credential: cred,
		Status:     cred.Status,
	}

	anchorer, err := s.anchors.Get(cred.AnchorType)
	if err != nil {
		result.Reason = err.Error()
		return result, nil
	}

	start := time.Now()
	issueErr := anchorer.VerifyIssue(ctx, cred.Document(), cred.AnchorProof)
	metrics.ObserveAnchor(string(cred.AnchorType), "verify", start, issueErr)
	if result.AnchorValid, err = proofOutcome(issueErr); err != nil {
		return nil, fmt.Errorf("failed to verify anchor: %w", err)
	}

	var reasons []string
	if !result.AnchorValid {
		reasons = append(reasons, issueErr.Error())
	}

	switch cred.Status {
	case interfaces.StatusActive:
		result.Valid = result.AnchorValid
	case interfaces.StatusRevoking:
		reasons = append(reasons, "revocation in progress")
	case interfaces.StatusRevoked:
		if result.AnchorValid {
			reasons = append(reasons, "credential revoked: "+cred.RevokedReason)
		}

		start := time.Now()
		revErr := anchorer.VerifyRevocation(ctx, cred.Document(), cred.RevocationProof)
		metrics.ObserveAnchor(string(cred.AnchorType), "verify_revocation", start, revErr)
		revocationValid, err := proofOutcome(revErr)
		if err != nil {
			return nil, fmt.Errorf("failed to verify revocation anchor: %w", err)
		}
		result.RevocationValid = &revocationValid
		if !revocationValid {
			reasons = append(reasons, "revocation proof: "+revErr.Error())
		}
	}

	result.Reason = strings.Join(reasons, "; ")
	return result, nil
}

// proofOutcome splits an anchor check error into a verdict and an error that
// prevented the check.
func proofOutcome(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, interfaces.ErrProofMismatch), errors.Is(err, anchor.ErrProofPending):
		return false, nil
	default:
		return false, err
	}
}

// Search finds the issuer's credentials by id or student email.
func (s *Service) Search(ctx context.Context, issuer interfaces.WalletAddress, query string) ([]*interfaces.Credential, error) {
	if _, err := s.requireInstitute(ctx, issuer); err != nil {
		return nil, err
	}
	return s.store.SearchCredentials(ctx, issuer, query)
}

// ListMine returns the credentials issued by an institute wallet, or issued to
// any other wallet.
func (s *Service) ListMine(ctx context.Context, wallet interfaces.WalletAddress) ([]*interfaces.Credential, error) {
	account, err := s.accounts.GetAccount(ctx, wallet)
	if err != nil && !errors.Is(err, interfaces.ErrAccountNotFound) {
		return nil, err
	}
	if account != nil && account.Role == interfaces.RoleInstitute {
		return s.store.ListCredentialsByIssuer(ctx, wallet)
	}
	return s.store.ListCredentialsByStudent(ctx, wallet)
}

// Stats counts the issuer's credentials by status.
func (s *Service) Stats(ctx context.Context, issuer interfaces.WalletAddress) (interfaces.CredentialStats, error) {
	if _, err := s.requireInstitute(ctx, issuer); err != nil {
		return interfaces.CredentialStats{}, err
	}
	return s.store.CountCredentials(ctx, issuer)
}

// AnchorTypes lists the configured anchors and the default.
func (s *Service) AnchorTypes() ([]interfaces.AnchorType, interfaces.AnchorType) {
	return s.anchors.Types(), s.anchors.Default()
}
