package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := New[int](Settings{Name: "test", ConsecutiveFails: 2, OpenTimeout: time.Minute})
	boom := errors.New("boom")

	calls := 0
	fail := func() (int, error) {
		calls++
		return 0, boom
	}

	_, err := b.Execute(fail)
	assert.ErrorIs(t, err, boom)
	_, err = b.Execute(fail)
	assert.ErrorIs(t, err, boom)

	_, err = b.Execute(fail)
	assert.ErrorIs(t, err, ErrOpen)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "open", b.State())
}

func TestBreaker_IgnoresNonFailures(t *testing.T) {
	declined := errors.New("declined")
	b := New[int](Settings{
		Name:             "test",
		ConsecutiveFails: 1,
		IsFailure:        func(err error) bool { return !errors.Is(err, declined) },
	})

	for i := 0; i < 3; i++ {
		_, err := b.Execute(func() (int, error) { return 0, declined })
		require.ErrorIs(t, err, declined)
	}
	assert.Equal(t, "closed", b.State())

	v, err := b.Execute(func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
