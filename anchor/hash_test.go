package anchor

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/educhainverify/credential-service/interfaces"
	"github.com/educhainverify/credential-service/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHashAnchorer(t *testing.T) (*HashAnchorer, string) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	backend, err := storage.NewFileBackend(dir, logger)
	require.NoError(t, err)
	return NewHashAnchorer(backend, logger), dir
}

func TestHashAnchorer_IssueAndVerify(t *testing.T) {
	anchorer, dir := newTestHashAnchorer(t)
	ctx := context.Background()
	doc := testDocument(1714557600)

	proof, err := anchorer.AnchorIssue(ctx, doc)
	require.NoError(t, err)

	data, err := doc.Canonical()
	require.NoError(t, err)
	assert.Equal(t, FormatHashProof(interfaces.ComputeID(data)), proof)

	require.NoError(t, anchorer.VerifyIssue(ctx, doc, proof))

	tampered := doc
	tampered.StudentName = "Mallory"
	assert.ErrorIs(t, anchorer.VerifyIssue(ctx, tampered, proof), interfaces.ErrProofMismatch)

	assert.ErrorIs(t, anchorer.VerifyIssue(ctx, doc, "0xabc"), interfaces.ErrProofMismatch)

	// Stored copy deleted
	id, err := ParseHashProof(proof)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, interfaces.DocumentType.String(), id.String())))
	assert.ErrorIs(t, anchorer.VerifyIssue(ctx, doc, proof), interfaces.ErrProofMismatch)
}

func TestHashAnchorer_Revocation(t *testing.T) {
	anchorer, _ := newTestHashAnchorer(t)
	ctx := context.Background()
	doc := testDocument(1714557600)

	issueProof, err := anchorer.AnchorIssue(ctx, doc)
	require.NoError(t, err)

	revokedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	proof, err := anchorer.AnchorRevocation(ctx, doc, "grade appeal upheld", revokedAt)
	require.NoError(t, err)
	assert.NotEqual(t, issueProof, proof)

	notice, err := anchorer.Revocation(ctx, proof)
	require.NoError(t, err)
	assert.Equal(t, doc.CredentialID, notice.CredentialID)
	assert.Equal(t, issueProof, notice.DocumentHash)
	assert.Equal(t, "grade appeal upheld", notice.Reason)
	assert.Equal(t, "2024-06-01T12:00:00Z", notice.RevokedAt)

	_, err = anchorer.Revocation(ctx, issueProof)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
}

func TestHashAnchorer_VerifyRevocation(t *testing.T) {
	anchorer, dir := newTestHashAnchorer(t)
	ctx := context.Background()
	doc := testDocument(1714557600)

	issueProof, err := anchorer.AnchorIssue(ctx, doc)
	require.NoError(t, err)
	proof, err := anchorer.AnchorRevocation(ctx, doc, "issued in error", time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.NoError(t, anchorer.VerifyRevocation(ctx, doc, proof))

	tampered := doc
	tampered.Course = "MSc Physics"
	assert.ErrorIs(t, anchorer.VerifyRevocation(ctx, tampered, proof), interfaces.ErrProofMismatch)

	other := testDocument(1714557601)
	assert.ErrorIs(t, anchorer.VerifyRevocation(ctx, other, proof), interfaces.ErrProofMismatch)

	// An issue proof does not name a revocation notice.
	assert.ErrorIs(t, anchorer.VerifyRevocation(ctx, doc, issueProof), interfaces.ErrProofMismatch)
	assert.ErrorIs(t, anchorer.VerifyRevocation(ctx, doc, "0xabc"), interfaces.ErrProofMismatch)

	id, err := ParseHashProof(proof)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, interfaces.RevocationType.String(), id.String()), []byte("{"), 0o644))
	assert.ErrorIs(t, anchorer.VerifyRevocation(ctx, doc, proof), interfaces.ErrProofMismatch)
}

func TestHashAnchorer_StorageOutage(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dirs := []string{t.TempDir(), t.TempDir()}

	var backends []interfaces.StorageBackend
	for _, dir := range dirs {
		b, err := storage.NewFileBackend(dir, logger)
		require.NoError(t, err)
		backends = append(backends, b)
	}
	anchorer := NewHashAnchorer(storage.NewMultiStorageBackend(backends, logger), logger)
	doc := testDocument(1714557600)

	require.NoError(t, os.Rename(dirs[1], dirs[1]+".down"))
	proof, err := anchorer.AnchorIssue(ctx, doc)
	require.NoError(t, err)

	require.NoError(t, os.Rename(dirs[1]+".down", dirs[1]))
	require.NoError(t, os.Rename(dirs[0], dirs[0]+".down"))

	err = anchorer.VerifyIssue(ctx, doc, proof)
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
	assert.NotErrorIs(t, err, interfaces.ErrProofMismatch)
}

func TestParseHashProof(t *testing.T) {
	id := interfaces.ComputeID([]byte("doc"))

	parsed, err := ParseHashProof(FormatHashProof(id))
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseHashProof(id.String())
	assert.ErrorIs(t, err, interfaces.ErrProofMismatch)

	_, err = ParseHashProof("sha256:abcd")
	assert.ErrorIs(t, err, interfaces.ErrProofMismatch)
}
