package dispatch

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsNormalizeDefaults(t *testing.T) {
	opts, err := Options{}.normalize()
	require.NoError(t, err)
	assert.Equal(t, DefaultRetry, opts.Retry)
	assert.Equal(t, DefaultTimeout, opts.Timeout)
	assert.Equal(t, http.MethodPost, opts.Method)
}

func TestOptionsNormalizeNegativeRetryMeansNone(t *testing.T) {
	opts, err := Options{Retry: -5}.normalize()
	require.NoError(t, err)
	assert.Equal(t, -1, opts.Retry)

	// Re-normalizing a normalized snapshot must not change it; replayed
	// dead letters depend on this.
	again, err := opts.normalize()
	require.NoError(t, err)
	assert.Equal(t, opts.Retry, again.Retry)
}

func TestOptionsNormalizeMethods(t *testing.T) {
	for m, want := range map[string]string{
		"get":    http.MethodGet,
		"POST":   http.MethodPost,
		"Put":    http.MethodPut,
		"PATCH":  http.MethodPatch,
		"delete": http.MethodDelete,
	} {
		opts, err := Options{Method: m}.normalize()
		require.NoError(t, err, m)
		assert.Equal(t, want, opts.Method)
	}

	_, err := Options{Method: "HEAD"}.normalize()
	assert.ErrorIs(t, err, ErrUnsupportedMethod)

	_, err = Options{Method: "BREW"}.normalize()
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
}

func TestOptionsNormalizeKeepsExplicitValues(t *testing.T) {
	opts, err := Options{Retry: 7, Timeout: 5 * time.Second, Method: "put"}.normalize()
	require.NoError(t, err)
	assert.Equal(t, 7, opts.Retry)
	assert.Equal(t, 5*time.Second, opts.Timeout)
	assert.Equal(t, http.MethodPut, opts.Method)
}
