// Package storage provides a content-addressed storage system with pluggable backends.
//
// Credential documents and revocation notices written by the hash anchor are
// kept here, identified by the SHA-256 hash of their bytes:
//
//   - File system storage for local development and single-node deployments
//   - S3-compatible storage for cloud deployments
//   - IPFS storage through the node's mutable file system
//   - Vault KV v2 storage
//
// # Storage URI Format
//
// Storage backends are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - file:///var/lib/educhain/
//   - s3://ACCESS:SECRET@bucket-name/prefix/?region=us-west-2&endpoint=http://minio:9000
//   - ipfs://127.0.0.1:5001/?root=/educhain&timeout=30s
//   - vault://TOKEN@vault.example.com:8200/secret/educhain?tls=false
//
// # Namespaces
//
// Each interfaces.ContentType is stored under its own directory or key prefix
// ("credentials", "revocations").
//
// # Redundancy
//
// MultiStorageBackend writes to every available backend and reads from the
// first one holding the content. A fetch only reports
// interfaces.ErrContentNotFound when every reachable backend agrees the
// content is missing.
package storage
