package clients

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/educhainverify/credential-service/api"
	"github.com/educhainverify/credential-service/cryptoutils"
	"github.com/educhainverify/credential-service/interfaces"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrNoWallet is returned by calls that need a signing wallet when the client has none.
var ErrNoWallet = errors.New("client has no signing wallet")

// CredentialClient implements api.CredentialProvider over HTTP, signing
// authenticated calls with a wallet key.
type CredentialClient struct {
	// ServerAddr is the base URL of the credential service
	ServerAddr string

	// HTTPClient defaults to http.DefaultClient
	HTTPClient *http.Client

	key *ecdsa.PrivateKey
	now func() time.Time
}

// NewCredentialClient creates a client. key may be nil for public calls only.
func NewCredentialClient(serverAddr string, key *ecdsa.PrivateKey) *CredentialClient {
	return &CredentialClient{
		ServerAddr: strings.TrimRight(serverAddr, "/"),
		key:        key,
		now:        time.Now,
	}
}

// Address returns the signing wallet, or the zero address without one.
func (c *CredentialClient) Address() common.Address {
	if c.key == nil {
		return common.Address{}
	}
	return crypto.PubkeyToAddress(c.key.PublicKey)
}

func (c *CredentialClient) RegisterAccount(ctx context.Context, req *interfaces.RegisterAccountRequest) (*interfaces.Account, error) {
	var account interfaces.Account
	if err := c.do(ctx, http.MethodPost, "/api/accounts", req, &account, true); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *CredentialClient) Me(ctx context.Context) (*interfaces.Account, error) {
	var account interfaces.Account
	if err := c.do(ctx, http.MethodGet, "/api/accounts/me", nil, &account, true); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *CredentialClient) Issue(ctx context.Context, req *interfaces.IssueRequest) (*interfaces.Credential, error) {
	var cred interfaces.Credential
	if err := c.do(ctx, http.MethodPost, "/api/credentials", req, &cred, true); err != nil {
		return nil, err
	}
	return &cred, nil
}

func (c *CredentialClient) Revoke(ctx context.Context, id interfaces.CredentialID, reason string) (*interfaces.Credential, error) {
	var cred interfaces.Credential
	path := fmt.Sprintf("/api/credentials/%s/revoke", id)
	if err := c.do(ctx, http.MethodPost, path, &interfaces.RevokeRequest{Reason: reason}, &cred, true); err != nil {
		return nil, err
	}
	return &cred, nil
}

func (c *CredentialClient) Search(ctx context.Context, query string) ([]*interfaces.Credential, error) {
	var resp api.CredentialListResponse
	path := "/api/credentials?q=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Credentials, nil
}

func (c *CredentialClient) Mine(ctx context.Context) ([]*interfaces.Credential, error) {
	var resp api.CredentialListResponse
	if err := c.do(ctx, http.MethodGet, "/api/credentials/mine", nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Credentials, nil
}

func (c *CredentialClient) Stats(ctx context.Context) (interfaces.CredentialStats, error) {
	var stats interfaces.CredentialStats
	err := c.do(ctx, http.MethodGet, "/api/stats", nil, &stats, true)
	return stats, err
}

func (c *CredentialClient) Show(ctx context.Context, id interfaces.CredentialID) (*interfaces.Credential, error) {
	var cred interfaces.Credential
	if err := c.do(ctx, http.MethodGet, "/api/public/credentials/"+id.String(), nil, &cred, false); err != nil {
		return nil, err
	}
	return &cred, nil
}

func (c *CredentialClient) Verify(ctx context.Context, id interfaces.CredentialID) (*api.VerificationResponse, error) {
	var result api.VerificationResponse
	if err := c.do(ctx, http.MethodGet, "/api/public/credentials/"+id.String()+"/verify", nil, &result, false); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *CredentialClient) Anchors(ctx context.Context) (*api.AnchorsResponse, error) {
	var resp api.AnchorsResponse
	if err := c.do(ctx, http.MethodGet, "/api/public/anchors", nil, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *CredentialClient) do(ctx context.Context, method, path string, in, out interface{}, signed bool) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("could not encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.ServerAddr+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if signed {
		if err := c.sign(req, body); err != nil {
			return err
		}
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		statusErr := &api.StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(bodyBytes))}

		var errResp api.ErrorResponse
		if json.Unmarshal(bodyBytes, &errResp) == nil && errResp.Error != "" {
			statusErr.Message = errResp.Error
			statusErr.Fields = errResp.Fields
		}
		return statusErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not parse response: %w", err)
	}
	return nil
}

func (c *CredentialClient) sign(req *http.Request, body []byte) error {
	if c.key == nil {
		return ErrNoWallet
	}

	timestamp := c.now().Unix()
	sig, err := cryptoutils.SignMessage(c.key, cryptoutils.RequestMessage(req.Method, req.URL.RequestURI(), timestamp, body))
	if err != nil {
		return fmt.Errorf("could not sign request: %w", err)
	}

	req.Header.Set(api.WalletAddressHeader, c.Address().Hex())
	req.Header.Set(api.WalletTimestampHeader, strconv.FormatInt(timestamp, 10))
	req.Header.Set(api.WalletSignatureHeader, cryptoutils.EncodeSignature(sig))
	return nil
}
