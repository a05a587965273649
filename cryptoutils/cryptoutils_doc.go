// Package cryptoutils provides Ethereum wallet helpers: EIP-191 signing and
// recovery, the canonical message signed for API requests, and loading keys
// from hex strings or JSON keystores.
package cryptoutils
