package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/educhainverify/credential-service/interfaces"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	instituteA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	instituteB = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	studentX   = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	studentY   = common.HexToAddress("0x00000000000000000000000000000000000000d1")
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := fmt.Sprintf("file:credentials-test-%d?mode=memory&cache=shared", time.Now().UnixNano())
	s, err := Open(DriverSQLite, dsn, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(context.Background()))
	// Idempotent
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newCredential(id interfaces.CredentialID, issuer, student common.Address, email string, status interfaces.CredentialStatus) *interfaces.Credential {
	return &interfaces.Credential{
		ID:            id,
		StudentName:   "Student " + id.String(),
		StudentEmail:  email,
		Course:        "BSc Physics",
		WalletAddress: student,
		IssuerAddress: issuer,
		IssuedAt:      time.Unix(int64(id), 0).UTC(),
		Status:        status,
		AnchorType:    interfaces.HashAnchor,
	}
}

func TestStore_CredentialLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := newCredential(1714557600, instituteA, studentX, "x@uni.edu", interfaces.StatusPending)
	require.NoError(t, s.InsertCredential(ctx, c))

	err := s.InsertCredential(ctx, c)
	assert.ErrorIs(t, err, interfaces.ErrCredentialExists)

	got, err := s.GetCredential(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.StudentEmail, got.StudentEmail)
	assert.Equal(t, studentX, got.WalletAddress)
	assert.Equal(t, instituteA, got.IssuerAddress)
	assert.True(t, c.IssuedAt.Equal(got.IssuedAt))
	assert.Equal(t, interfaces.StatusPending, got.Status)
	assert.Nil(t, got.RevokedAt)

	// Pending credentials are hidden from listings
	list, err := s.ListCredentialsByIssuer(ctx, instituteA)
	require.NoError(t, err)
	assert.Empty(t, list)

	c.Status = interfaces.StatusActive
	c.AnchorProof = "sha256:abc"
	require.NoError(t, s.UpdateCredential(ctx, c))

	revokedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c.Status = interfaces.StatusRevoked
	c.RevokedReason = "issued in error"
	c.RevokedAt = &revokedAt
	c.RevocationProof = "sha256:def"
	require.NoError(t, s.UpdateCredential(ctx, c))

	got, err = s.GetCredential(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusRevoked, got.Status)
	assert.Equal(t, "issued in error", got.RevokedReason)
	require.NotNil(t, got.RevokedAt)
	assert.True(t, revokedAt.Equal(*got.RevokedAt))
	assert.Equal(t, "sha256:abc", got.AnchorProof)
	assert.Equal(t, "sha256:def", got.RevocationProof)

	require.NoError(t, s.DeleteCredential(ctx, c.ID))
	_, err = s.GetCredential(ctx, c.ID)
	assert.ErrorIs(t, err, interfaces.ErrCredentialNotFound)
	assert.ErrorIs(t, s.DeleteCredential(ctx, c.ID), interfaces.ErrCredentialNotFound)
	assert.ErrorIs(t, s.UpdateCredential(ctx, c), interfaces.ErrCredentialNotFound)
}

func TestStore_TransitionCredential(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := newCredential(1714557600, instituteA, studentX, "x@uni.edu", interfaces.StatusActive)
	c.AnchorProof = "sha256:abc"
	require.NoError(t, s.InsertCredential(ctx, c))

	t.Run("one winner", func(t *testing.T) {
		var (
			wg   sync.WaitGroup
			errs = make([]error, 8)
		)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = s.TransitionCredential(ctx, c.ID, interfaces.StatusActive, interfaces.StatusRevoking)
			}(i)
		}
		wg.Wait()

		won := 0
		for _, err := range errs {
			if err == nil {
				won++
				continue
			}
			assert.ErrorIs(t, err, interfaces.ErrStatusConflict)
		}
		assert.Equal(t, 1, won)

		got, err := s.GetCredential(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, interfaces.StatusRevoking, got.Status)
		assert.Equal(t, "sha256:abc", got.AnchorProof)
	})

	t.Run("claimed credentials count as active", func(t *testing.T) {
		stats, err := s.CountCredentials(ctx, instituteA)
		require.NoError(t, err)
		assert.Equal(t, interfaces.CredentialStats{Total: 1, Active: 1}, stats)
	})

	t.Run("release", func(t *testing.T) {
		require.NoError(t, s.TransitionCredential(ctx, c.ID, interfaces.StatusRevoking, interfaces.StatusActive))
		got, err := s.GetCredential(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, interfaces.StatusActive, got.Status)
	})

	t.Run("missing credential", func(t *testing.T) {
		err := s.TransitionCredential(ctx, 42, interfaces.StatusActive, interfaces.StatusRevoking)
		assert.ErrorIs(t, err, interfaces.ErrCredentialNotFound)
		assert.NotErrorIs(t, err, interfaces.ErrStatusConflict)
	})
}

func TestStore_SearchListCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fixtures := []*interfaces.Credential{
		newCredential(1000, instituteA, studentX, "x@uni.edu", interfaces.StatusActive),
		newCredential(1001, instituteA, studentX, "x@uni.edu", interfaces.StatusRevoked),
		newCredential(1002, instituteA, studentY, "y@uni.edu", interfaces.StatusActive),
		newCredential(1003, instituteA, studentY, "y@uni.edu", interfaces.StatusPending),
		newCredential(2000, instituteB, studentX, "x@uni.edu", interfaces.StatusActive),
	}
	for _, c := range fixtures {
		require.NoError(t, s.InsertCredential(ctx, c))
	}

	ids := func(list []*interfaces.Credential) []interfaces.CredentialID {
		out := make([]interfaces.CredentialID, 0, len(list))
		for _, c := range list {
			out = append(out, c.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		issuer common.Address
		query  string
		want   []interfaces.CredentialID
	}{
		{"by email", instituteA, "x@uni.edu", []interfaces.CredentialID{1001, 1000}},
		{"by email case insensitive", instituteA, " X@UNI.EDU ", []interfaces.CredentialID{1001, 1000}},
		{"by id", instituteA, "1002", []interfaces.CredentialID{1002}},
		{"pending excluded", instituteA, "1003", []interfaces.CredentialID{}},
		{"other issuer", instituteA, "2000", []interfaces.CredentialID{}},
		{"empty query lists all", instituteA, "", []interfaces.CredentialID{1002, 1001, 1000}},
		{"scoped to issuer", instituteB, "x@uni.edu", []interfaces.CredentialID{2000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := s.SearchCredentials(ctx, tt.issuer, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(list))
		})
	}

	mine, err := s.ListCredentialsByStudent(ctx, studentX)
	require.NoError(t, err)
	assert.Equal(t, []interfaces.CredentialID{2000, 1001, 1000}, ids(mine))

	stats, err := s.CountCredentials(ctx, instituteA)
	require.NoError(t, err)
	assert.Equal(t, interfaces.CredentialStats{Total: 3, Active: 2, Revoked: 1}, stats)

	stats, err = s.CountCredentials(ctx, studentY)
	require.NoError(t, err)
	assert.Equal(t, interfaces.CredentialStats{}, stats)
}

func TestStore_Accounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetAccount(ctx, instituteA)
	assert.ErrorIs(t, err, interfaces.ErrAccountNotFound)

	account := &interfaces.Account{
		Address:   instituteA,
		Role:      interfaces.RoleInstitute,
		Name:      "Example University",
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.RegisterAccount(ctx, account))
	assert.ErrorIs(t, s.RegisterAccount(ctx, account), interfaces.ErrAccountExists)

	got, err := s.GetAccount(ctx, instituteA)
	require.NoError(t, err)
	assert.Equal(t, account, got)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("mysql", "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
