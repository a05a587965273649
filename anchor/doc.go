// Package anchor produces and checks the tamper-evident proofs attached to
// credentials.
//
// Two mechanisms are provided:
//
//   - EthereumAnchorer sends issueCredential/revokeCredential transactions to a
//     CredentialManager contract. The proof is the transaction hash, and
//     verification decodes the mined transaction's calldata against the
//     credential.
//   - HashAnchorer writes the canonical credential document to a
//     content-addressed StorageBackend. The proof is "sha256:<hex>" of the
//     document.
//
// A Set selects an anchorer by AnchorType and falls back to a default.
package anchor
