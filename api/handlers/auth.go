package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/educhainverify/credential-service/api"
	"github.com/educhainverify/credential-service/cryptoutils"
	"github.com/educhainverify/credential-service/interfaces"
)

// DefaultMaxClockSkew is how far a signed request timestamp may drift from server time.
const DefaultMaxClockSkew = 5 * time.Minute

type walletContextKey struct{}

// WalletFromContext returns the wallet authenticated by WalletAuth.
func WalletFromContext(ctx context.Context) (interfaces.WalletAddress, bool) {
	addr, ok := ctx.Value(walletContextKey{}).(interfaces.WalletAddress)
	return addr, ok
}

// WalletAuth authenticates requests signed by a wallet.
//
// Required headers:
//   - X-Wallet-Address: the signing wallet
//   - X-Wallet-Timestamp: unix seconds, within the allowed clock skew
//   - X-Wallet-Signature: personal_sign over method, request URI, timestamp and body hash
func (h *Handler) WalletAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr, err := h.authenticate(r)
		if err != nil {
			h.log.Debug("Rejected wallet signature", "err", err, "path", r.URL.Path)
			h.writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), walletContextKey{}, addr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) authenticate(r *http.Request) (interfaces.WalletAddress, error) {
	unauthorized := func(format string, args ...interface{}) error {
		return &RequestError{
			StatusCode: http.StatusUnauthorized,
			Err:        fmt.Errorf("%w: %s", cryptoutils.ErrInvalidSignature, fmt.Sprintf(format, args...)),
		}
	}

	addrHeader := r.Header.Get(api.WalletAddressHeader)
	if addrHeader == "" {
		return interfaces.WalletAddress{}, unauthorized("missing %s header", api.WalletAddressHeader)
	}
	addr, err := interfaces.NewWalletAddressFromHex(addrHeader)
	if err != nil {
		return interfaces.WalletAddress{}, unauthorized("%v", err)
	}

	timestamp, err := strconv.ParseInt(r.Header.Get(api.WalletTimestampHeader), 10, 64)
	if err != nil {
		return interfaces.WalletAddress{}, unauthorized("missing or malformed %s header", api.WalletTimestampHeader)
	}
	skew := h.now().Sub(time.Unix(timestamp, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > h.maxClockSkew {
		return interfaces.WalletAddress{}, unauthorized("timestamp outside the allowed %s window", h.maxClockSkew)
	}

	sig, err := cryptoutils.DecodeSignature(r.Header.Get(api.WalletSignatureHeader))
	if err != nil {
		return interfaces.WalletAddress{}, unauthorized("malformed %s header", api.WalletSignatureHeader)
	}

	body, err := readBody(r)
	if err != nil {
		return interfaces.WalletAddress{}, err
	}

	msg := cryptoutils.RequestMessage(r.Method, r.URL.RequestURI(), timestamp, body)
	if err := cryptoutils.VerifySignature(addr, msg, sig); err != nil {
		return interfaces.WalletAddress{}, &RequestError{StatusCode: http.StatusUnauthorized, Err: err}
	}

	return addr, nil
}

// readBody buffers the request body so it can be hashed and decoded later.
func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return nil, &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("failed to read request body: %w", err)}
	}
	if len(body) > maxBodySize {
		return nil, &RequestError{StatusCode: http.StatusRequestEntityTooLarge, Err: errors.New("request body too large")}
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}
