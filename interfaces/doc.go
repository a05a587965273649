// Package interfaces defines core interfaces and types for the credential
// service, separating interface definitions from implementations.
//
// # Credential Types
//
// Credential is the stored record of an academic credential issued by an
// institute to a student wallet. CredentialDocument is the canonical subset an
// anchor commits to; its JSON encoding is what gets hashed or referenced
// on chain.
//
// # Anchoring
//
// Anchorer produces a proof when a credential is issued or revoked and can
// later check the issue proof against a document. Two anchor types exist:
//
//   - EthereumAnchor: the proof is the hash of a CredentialManager transaction
//   - HashAnchor: the proof is the SHA-256 of the document kept in storage
//
// # Storage Interfaces
//
// StorageBackend provides content-addressed storage for credential documents
// and revocation notices across multiple backend types (file, S3, IPFS, Vault).
//
// StorageBackendFactory creates storage backends from URI strings and manages
// multi-backend configurations for redundant storage.
//
// # Persistence
//
// CredentialStore and AccountDirectory describe the SQL-backed record store.
package interfaces
