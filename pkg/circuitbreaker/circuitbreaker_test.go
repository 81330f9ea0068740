package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")
var errBusiness = errors.New("business")

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cfg := Config{Name: "test", ConsecutiveFailures: 2, OpenTimeout: time.Minute, HalfOpenRequests: 1}
	b := New[int](cfg, nil, nil)

	calls := 0
	fail := func() (int, error) {
		calls++
		return 0, errBoom
	}

	_, err := b.Execute(fail)
	require.ErrorIs(t, err, errBoom)
	_, err = b.Execute(fail)
	require.ErrorIs(t, err, errBoom)

	_, err = b.Execute(fail)
	assert.ErrorIs(t, err, ErrOpen)
	assert.Equal(t, 2, calls, "open breaker must not invoke the function")
	assert.Equal(t, "open", b.State())
}

func TestBreaker_IgnoresNonFailures(t *testing.T) {
	cfg := Config{Name: "test", ConsecutiveFailures: 1, OpenTimeout: time.Minute, HalfOpenRequests: 1}
	b := New[string](cfg, nil, func(err error) bool { return !errors.Is(err, errBusiness) })

	for i := 0; i < 3; i++ {
		_, err := b.Execute(func() (string, error) { return "", errBusiness })
		assert.ErrorIs(t, err, errBusiness)
	}
	assert.Equal(t, "closed", b.State())

	v, err := b.Execute(func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}
