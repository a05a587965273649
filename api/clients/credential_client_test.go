package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/educhainverify/credential-service/anchor"
	"github.com/educhainverify/credential-service/api"
	"github.com/educhainverify/credential-service/api/handlers"
	"github.com/educhainverify/credential-service/credentials"
	"github.com/educhainverify/credential-service/interfaces"
	"github.com/educhainverify/credential-service/storage"
	"github.com/educhainverify/credential-service/store"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := store.Open(store.DriverSQLite, fmt.Sprintf("file:clients-test-%d?mode=memory&cache=shared", time.Now().UnixNano()), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	backend, err := storage.NewFileBackend(t.TempDir(), logger)
	require.NoError(t, err)
	anchors, err := anchor.NewSet(interfaces.HashAnchor, anchor.NewHashAnchorer(backend, logger))
	require.NoError(t, err)

	r := chi.NewRouter()
	handlers.NewHandler(credentials.NewService(db, db, anchors, logger), 0, logger).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, serverURL string) *CredentialClient {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return NewCredentialClient(serverURL+"/", key)
}

func TestCredentialClient_RoundTrip(t *testing.T) {
	srv := setupServer(t)
	ctx := context.Background()

	institute := newTestClient(t, srv.URL)
	student := newTestClient(t, srv.URL)

	account, err := institute.RegisterAccount(ctx, &interfaces.RegisterAccountRequest{Role: "institute", Name: "Example University"})
	require.NoError(t, err)
	assert.Equal(t, institute.Address(), account.Address)
	assert.Equal(t, interfaces.RoleInstitute, account.Role)

	_, err = student.RegisterAccount(ctx, &interfaces.RegisterAccountRequest{
		Role: "student", Name: "Alice Example", Email: "alice@uni.edu", Institute: "Example University",
	})
	require.NoError(t, err)

	me, err := student.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alice Example", me.Name)

	cred, err := institute.Issue(ctx, &interfaces.IssueRequest{
		StudentName:   "Alice Example",
		StudentEmail:  "alice@uni.edu",
		Course:        "BSc Computer Science",
		WalletAddress: student.Address().Hex(),
	})
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusActive, cred.Status)
	assert.Equal(t, interfaces.HashAnchor, cred.AnchorType)

	found, err := institute.Search(ctx, "ALICE@uni.edu")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, cred.ID, found[0].ID)

	mine, err := student.Mine(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	public := NewCredentialClient(srv.URL, nil)
	shown, err := public.Show(ctx, cred.ID)
	require.NoError(t, err)
	assert.Empty(t, shown.StudentEmail)

	result, err := public.Verify(ctx, cred.ID)
	require.NoError(t, err)
	assert.True(t, result.Valid)

	anchors, err := public.Anchors(ctx)
	require.NoError(t, err)
	assert.Equal(t, interfaces.HashAnchor, anchors.Default)

	revoked, err := institute.Revoke(ctx, cred.ID, "issued in error")
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusRevoked, revoked.Status)

	stats, err := institute.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, interfaces.CredentialStats{Total: 1, Active: 0, Revoked: 1}, stats)

	result, err = public.Verify(ctx, cred.ID)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.True(t, result.AnchorValid)
}

func TestCredentialClient_Errors(t *testing.T) {
	srv := setupServer(t)
	ctx := context.Background()

	public := NewCredentialClient(srv.URL, nil)
	_, err := public.Me(ctx)
	assert.ErrorIs(t, err, ErrNoWallet)

	_, err = public.Show(ctx, 42)
	var statusErr *api.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)

	unregistered := newTestClient(t, srv.URL)
	_, err = unregistered.Me(ctx)
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)

	_, err = unregistered.RegisterAccount(ctx, &interfaces.RegisterAccountRequest{Role: "student", Name: " "})
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Contains(t, statusErr.Fields, "name")
	assert.Contains(t, statusErr.Fields, "email")

	// Signatures are bound to a clock window on the server.
	unregistered.now = func() time.Time { return time.Now().Add(-time.Hour) }
	_, err = unregistered.Me(ctx)
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
}

func TestMockCredentialProvider(t *testing.T) {
	m := new(MockCredentialProvider)
	ctx := context.Background()

	m.On("Show", ctx, interfaces.CredentialID(7)).Return(&interfaces.Credential{ID: 7, Course: "MSc"}, nil)
	m.On("Revoke", ctx, interfaces.CredentialID(7), mock.Anything).Return(nil, interfaces.ErrAlreadyRevoked)

	var provider api.CredentialProvider = m
	cred, err := provider.Show(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "MSc", cred.Course)

	_, err = provider.Revoke(ctx, 7, "dup")
	assert.ErrorIs(t, err, interfaces.ErrAlreadyRevoked)
	m.AssertExpectations(t)
}
