package signing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	for _, alg := range []Algorithm{SHA256, SHA1, SHA512} {
		s, err := NewSigner(alg)
		require.NoError(t, err)

		payload := map[string]any{"order_id": 42, "status": "paid"}
		sig, err := s.Sign(payload, "whsec_test")
		require.NoError(t, err)
		assert.NotEmpty(t, sig)

		assert.True(t, s.Verify(sig, payload, "whsec_test"), "algorithm %s", alg)
		assert.False(t, s.Verify(sig, payload, "whsec_other"))
	}
}

func TestVerifyRejectsMutatedSignature(t *testing.T) {
	s, err := NewSigner(SHA256)
	require.NoError(t, err)

	payload := map[string]any{"a": 1}
	sig, err := s.Sign(payload, "secret")
	require.NoError(t, err)

	for i := range sig {
		mutated := []byte(sig)
		if mutated[i] == '0' {
			mutated[i] = '1'
		} else {
			mutated[i] = '0'
		}
		assert.False(t, s.Verify(string(mutated), payload, "secret"), "mutation at byte %d accepted", i)
	}
}

func TestSignIsKeyOrderIndependent(t *testing.T) {
	s, err := NewSigner(SHA256)
	require.NoError(t, err)

	a := map[string]any{"a": 1, "b": 2, "nested": map[string]any{"x": "1", "y": "2"}}
	b := map[string]any{"nested": map[string]any{"y": "2", "x": "1"}, "b": 2, "a": 1}

	sigA, err := s.Sign(a, "secret")
	require.NoError(t, err)
	sigB, err := s.Sign(b, "secret")
	require.NoError(t, err)
	assert.Equal(t, sigA, sigB)
}

func TestCanonicalJSON(t *testing.T) {
	got, err := CanonicalJSON(map[string]any{
		"url":  "https://example.com/a/b",
		"name": "héllo",
		"b":    2,
		"a":    1,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2,"name":"héllo","url":"https://example.com/a/b"}`, string(got))
}

func TestNewSignerUnsupportedAlgorithm(t *testing.T) {
	_, err := NewSigner("md5")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestNewSignerDefaultsToSHA256(t *testing.T) {
	s, err := NewSigner("")
	require.NoError(t, err)
	assert.Equal(t, SHA256, s.Algorithm())
}
