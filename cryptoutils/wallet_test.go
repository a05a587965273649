package cryptoutils

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	msg := RequestMessage("post", "/api/credentials", 1700000000, []byte(`{"course":"BSc"}`))
	sig, err := SignMessage(key, msg)
	require.NoError(t, err)
	assert.Len(t, sig, 65)
	assert.GreaterOrEqual(t, sig[64], byte(27))

	recovered, err := RecoverAddress(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, addr, recovered)
	require.NoError(t, VerifySignature(addr, msg, sig))

	// 0/1 recovery ids are accepted too
	raw := append([]byte(nil), sig...)
	raw[64] -= 27
	require.NoError(t, VerifySignature(addr, msg, raw))

	// Different message, different signer
	other := RequestMessage("POST", "/api/credentials", 1700000001, []byte(`{"course":"BSc"}`))
	assert.ErrorIs(t, VerifySignature(addr, other, sig), ErrInvalidSignature)

	_, err = RecoverAddress(msg, sig[:64])
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

// Matches the personal_sign digest wallets compute.
func TestSignMessage_PersonalSignPrefix(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	msg := []byte("hello")
	sig, err := SignMessage(key, msg)
	require.NoError(t, err)

	digest := crypto.Keccak256([]byte("\x19Ethereum Signed Message:\n5hello"))
	sig[64] -= 27
	pub, err := crypto.SigToPub(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), crypto.PubkeyToAddress(*pub))
}

func TestEncodeDecodeSignature(t *testing.T) {
	sig := make([]byte, 65)
	sig[0] = 0xab
	enc := EncodeSignature(sig)
	assert.Equal(t, "0xab", enc[:4])

	dec, err := DecodeSignature(enc[2:])
	require.NoError(t, err)
	assert.Equal(t, sig, dec)

	_, err = DecodeSignature("0xzz")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestRequestMessage(t *testing.T) {
	msg := string(RequestMessage("get", "/api/credentials?q=alice%40uni.edu", 42, nil))
	assert.Equal(t, "GET\n/api/credentials?q=alice%40uni.edu\n42\n"+crypto.Keccak256Hash(nil).Hex(), msg)
}

func TestLoadKeys(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := hex.EncodeToString(crypto.FromECDSA(key))

	loaded, err := LoadPrivateKey("0x" + hexKey)
	require.NoError(t, err)
	assert.Equal(t, key.D, loaded.D)

	_, err = LoadPrivateKey("not-a-key")
	assert.Error(t, err)

	dir := t.TempDir()
	addr, path, err := NewKeystoreAccount(dir, "secret", true)
	require.NoError(t, err)

	fromKeystore, err := LoadKey("", path, "secret")
	require.NoError(t, err)
	assert.Equal(t, addr, crypto.PubkeyToAddress(fromKeystore.PublicKey))

	_, err = LoadKeystore(path, "wrong")
	assert.Error(t, err)

	_, err = LoadKey("", "", "")
	assert.Error(t, err)
}
