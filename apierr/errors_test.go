package apierr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWrapsSentinelForErrorsIs(t *testing.T) {
	err := New(KindNotFound, "lease.Renew", nil)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
}

func TestNewWithCauseChainsBoth(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := New(KindTransient, "replication.Send", cause)

	assert.True(t, errors.Is(err, ErrTransient))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIsMatchesKindViaErrorsAs(t *testing.T) {
	err := New(KindChannelClosed, "session.Broadcast", nil)
	assert.True(t, Is(err, KindChannelClosed))
	assert.False(t, Is(err, KindPermanent))
}

func TestIsRetryableClassifiesStatusCodes(t *testing.T) {
	cases := map[int]bool{
		200: false,
		400: false,
		404: false,
		408: true,
		429: true,
		500: true,
		503: true,
	}
	for code, want := range cases {
		assert.Equal(t, want, IsRetryable(code), "status %d", code)
	}
}
