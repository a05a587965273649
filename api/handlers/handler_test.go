package handlers

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/educhainverify/credential-service/anchor"
	"github.com/educhainverify/credential-service/api"
	"github.com/educhainverify/credential-service/credentials"
	"github.com/educhainverify/credential-service/cryptoutils"
	"github.com/educhainverify/credential-service/interfaces"
	"github.com/educhainverify/credential-service/storage"
	"github.com/educhainverify/credential-service/store"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router    http.Handler
	institute *ecdsa.PrivateKey
	student   *ecdsa.PrivateKey
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dsn := fmt.Sprintf("file:handlers-test-%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := store.Open(store.DriverSQLite, dsn, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	backend, err := storage.NewFileBackend(t.TempDir(), logger)
	require.NoError(t, err)
	anchors, err := anchor.NewSet(interfaces.HashAnchor, anchor.NewHashAnchorer(backend, logger))
	require.NoError(t, err)

	handler := NewHandler(credentials.NewService(db, db, anchors, logger), 0, logger)
	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	instituteKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	studentKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	ts := &testServer{router: r, institute: instituteKey, student: studentKey}

	rr := ts.do(t, ts.signed(t, instituteKey, http.MethodPost, "/api/accounts", `{"role":"institute","name":"Example University"}`, time.Now()))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rr = ts.do(t, ts.signed(t, studentKey, http.MethodPost, "/api/accounts",
		`{"role":"student","name":"Alice Example","email":"alice@uni.edu","institute":"Example University"}`, time.Now()))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	return ts
}

func (ts *testServer) signed(t *testing.T, key *ecdsa.PrivateKey, method, target, body string, at time.Time) *http.Request {
	t.Helper()

	req := httptest.NewRequest(method, target, bytes.NewReader([]byte(body)))
	msg := cryptoutils.RequestMessage(method, req.URL.RequestURI(), at.Unix(), []byte(body))
	sig, err := cryptoutils.SignMessage(key, msg)
	require.NoError(t, err)

	req.Header.Set(api.WalletAddressHeader, crypto.PubkeyToAddress(key.PublicKey).Hex())
	req.Header.Set(api.WalletTimestampHeader, strconv.FormatInt(at.Unix(), 10))
	req.Header.Set(api.WalletSignatureHeader, cryptoutils.EncodeSignature(sig))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func (ts *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) issue(t *testing.T) *interfaces.Credential {
	t.Helper()

	body := fmt.Sprintf(`{"student_name":"Alice Example","student_email":"alice@uni.edu","course":"BSc Computer Science","wallet_address":%q}`,
		crypto.PubkeyToAddress(ts.student.PublicKey).Hex())
	rr := ts.do(t, ts.signed(t, ts.institute, http.MethodPost, "/api/credentials", body, time.Now()))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var cred interfaces.Credential
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cred))
	return &cred
}

func TestHandler_IssueShowVerify(t *testing.T) {
	ts := setupTestServer(t)

	cred := ts.issue(t)
	assert.Equal(t, interfaces.StatusActive, cred.Status)
	assert.Equal(t, "alice@uni.edu", cred.StudentEmail)
	assert.NotEmpty(t, cred.AnchorProof)

	rr := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/public/credentials/"+cred.ID.String(), nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "alice@uni.edu")

	var shown interfaces.Credential
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &shown))
	assert.Equal(t, cred.ID, shown.ID)
	assert.Equal(t, "BSc Computer Science", shown.Course)

	rr = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/public/credentials/"+cred.ID.String()+"/verify", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "alice@uni.edu")

	var result api.VerificationResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.True(t, result.AnchorValid)
	assert.True(t, result.Valid)

	rr = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/public/credentials/12345", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/public/credentials/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_Revoke(t *testing.T) {
	ts := setupTestServer(t)
	cred := ts.issue(t)
	path := "/api/credentials/" + cred.ID.String() + "/revoke"

	// Students cannot revoke
	rr := ts.do(t, ts.signed(t, ts.student, http.MethodPost, path, `{"reason":"please"}`, time.Now()))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.do(t, ts.signed(t, ts.institute, http.MethodPost, path, `{"reason":""}`, time.Now()))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var errResp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp))
	assert.Contains(t, errResp.Fields, "reason")

	rr = ts.do(t, ts.signed(t, ts.institute, http.MethodPost, path, `{"reason":"issued in error"}`, time.Now()))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var revoked interfaces.Credential
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &revoked))
	assert.Equal(t, interfaces.StatusRevoked, revoked.Status)
	assert.Equal(t, "issued in error", revoked.RevokedReason)

	rr = ts.do(t, ts.signed(t, ts.institute, http.MethodPost, path, `{"reason":"again"}`, time.Now()))
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/public/credentials/"+cred.ID.String()+"/verify", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var result api.VerificationResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.True(t, result.AnchorValid)
	assert.False(t, result.Valid)
	require.NotNil(t, result.RevocationValid)
	assert.True(t, *result.RevocationValid)

	rr = ts.do(t, ts.signed(t, ts.institute, http.MethodPost, "/api/credentials/99/revoke", `{"reason":"x"}`, time.Now()))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.do(t, ts.signed(t, ts.institute, http.MethodGet, "/api/stats", "", time.Now()))
	require.Equal(t, http.StatusOK, rr.Code)
	var stats interfaces.CredentialStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, interfaces.CredentialStats{Total: 1, Revoked: 1}, stats)
}

func TestHandler_SearchAndMine(t *testing.T) {
	ts := setupTestServer(t)
	cred := ts.issue(t)

	list := func(rr *httptest.ResponseRecorder) []*interfaces.Credential {
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var resp api.CredentialListResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		return resp.Credentials
	}

	found := list(ts.do(t, ts.signed(t, ts.institute, http.MethodGet, "/api/credentials?q=alice%40uni.edu", "", time.Now())))
	require.Len(t, found, 1)
	assert.Equal(t, cred.ID, found[0].ID)

	found = list(ts.do(t, ts.signed(t, ts.institute, http.MethodGet, "/api/credentials?q="+cred.ID.String(), "", time.Now())))
	require.Len(t, found, 1)

	found = list(ts.do(t, ts.signed(t, ts.institute, http.MethodGet, "/api/credentials?q=bob%40uni.edu", "", time.Now())))
	assert.Empty(t, found)

	mine := list(ts.do(t, ts.signed(t, ts.student, http.MethodGet, "/api/credentials/mine", "", time.Now())))
	require.Len(t, mine, 1)
	assert.Equal(t, cred.ID, mine[0].ID)

	rr := ts.do(t, ts.signed(t, ts.student, http.MethodGet, "/api/credentials?q=alice%40uni.edu", "", time.Now()))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestHandler_Accounts(t *testing.T) {
	ts := setupTestServer(t)

	rr := ts.do(t, ts.signed(t, ts.student, http.MethodGet, "/api/accounts/me", "", time.Now()))
	require.Equal(t, http.StatusOK, rr.Code)
	var account interfaces.Account
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &account))
	assert.Equal(t, interfaces.RoleStudent, account.Role)
	assert.Equal(t, crypto.PubkeyToAddress(ts.student.PublicKey), account.Address)

	rr = ts.do(t, ts.signed(t, ts.student, http.MethodPost, "/api/accounts", `{"role":"institute","name":"Fake U"}`, time.Now()))
	assert.Equal(t, http.StatusConflict, rr.Code)

	stranger, err := crypto.GenerateKey()
	require.NoError(t, err)
	rr = ts.do(t, ts.signed(t, stranger, http.MethodGet, "/api/accounts/me", "", time.Now()))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.do(t, ts.signed(t, stranger, http.MethodPost, "/api/accounts", `{"role":"institute","name":"X","extra":1}`, time.Now()))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_WalletAuth(t *testing.T) {
	ts := setupTestServer(t)
	instituteAddr := crypto.PubkeyToAddress(ts.institute.PublicKey).Hex()

	tests := []struct {
		name   string
		req    func() *http.Request
		status int
	}{
		{
			name: "no headers",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/api/stats", nil)
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "stale timestamp",
			req: func() *http.Request {
				return ts.signed(t, ts.institute, http.MethodGet, "/api/stats", "", time.Now().Add(-10*time.Minute))
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "future timestamp within skew",
			req: func() *http.Request {
				return ts.signed(t, ts.institute, http.MethodGet, "/api/stats", "", time.Now().Add(2*time.Minute))
			},
			status: http.StatusOK,
		},
		{
			name: "claimed by another wallet",
			req: func() *http.Request {
				req := ts.signed(t, ts.student, http.MethodGet, "/api/stats", "", time.Now())
				req.Header.Set(api.WalletAddressHeader, instituteAddr)
				return req
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "body swapped after signing",
			req: func() *http.Request {
				signed := ts.signed(t, ts.institute, http.MethodPost, "/api/credentials/1/revoke", `{"reason":"a"}`, time.Now())
				req := httptest.NewRequest(http.MethodPost, "/api/credentials/1/revoke", bytes.NewReader([]byte(`{"reason":"b"}`)))
				req.Header = signed.Header
				return req
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "path swapped after signing",
			req: func() *http.Request {
				signed := ts.signed(t, ts.institute, http.MethodGet, "/api/credentials?q=a", "", time.Now())
				req := httptest.NewRequest(http.MethodGet, "/api/credentials?q=b", nil)
				req.Header = signed.Header
				return req
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "malformed signature",
			req: func() *http.Request {
				req := ts.signed(t, ts.institute, http.MethodGet, "/api/stats", "", time.Now())
				req.Header.Set(api.WalletSignatureHeader, "0xzz")
				return req
			},
			status: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, tt.req())
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
		})
	}
}

func TestHandler_Anchors(t *testing.T) {
	ts := setupTestServer(t)

	rr := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/public/anchors", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp api.AnchorsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, interfaces.HashAnchor, resp.Default)
	assert.Equal(t, []interfaces.AnchorType{interfaces.HashAnchor}, resp.Types)
}
