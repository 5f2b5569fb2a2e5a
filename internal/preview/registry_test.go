package preview

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleLifecycle(t *testing.T) {
	r := NewRegistry(WithMode(ModeProduction))
	h := r.Create([]byte("jpeg bytes"))

	assert.True(t, strings.HasPrefix(h.ID(), "blob:turfpix/"))
	assert.Equal(t, StateCreated, r.State(h))
	assert.Equal(t, 1, r.Live())

	require.NoError(t, r.Display(h))
	assert.Equal(t, StateDisplayed, r.State(h))

	buf, err := r.Bytes(h)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), buf)

	r.Revoke(h)
	assert.Equal(t, StateRevoked, r.State(h))
	assert.Equal(t, 0, r.Live())
}

func TestHandlesAreUnique(t *testing.T) {
	r := NewRegistry(WithMode(ModeProduction))
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := r.Create(nil).ID()
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestDoubleRevokeIsNoop(t *testing.T) {
	for _, mode := range []Mode{ModeProduction, ModeDevelopment} {
		r := NewRegistry(WithMode(mode))
		h := r.Create([]byte{1})

		r.Revoke(h)
		assert.NotPanics(t, func() { r.Revoke(h) })
		assert.Equal(t, 0, r.Live())
	}
}

func TestUseAfterRevokeProduction(t *testing.T) {
	r := NewRegistry(WithMode(ModeProduction))
	h := r.Create([]byte{1})
	r.Revoke(h)

	_, err := r.Bytes(h)
	assert.True(t, errors.Is(err, ErrRevoked))
	assert.True(t, errors.Is(r.Display(h), ErrInvalidTransition))
}

func TestUseAfterRevokeDevelopmentPanics(t *testing.T) {
	r := NewRegistry(WithMode(ModeDevelopment))
	h := r.Create([]byte{1})
	r.Revoke(h)

	assert.Panics(t, func() { _, _ = r.Bytes(h) })
	assert.Panics(t, func() { _ = r.Display(h) })

	// the registry stays usable after a reported misuse
	other := r.Create([]byte{2})
	assert.Equal(t, 1, r.Live())
	r.Revoke(other)
}

func TestResetRevokesEverything(t *testing.T) {
	r := NewRegistry(WithMode(ModeProduction))
	a := r.Create([]byte{1})
	b := r.Create([]byte{2})
	c := r.Create([]byte{3})
	r.Revoke(b)

	assert.Equal(t, 2, r.Reset())
	assert.Equal(t, 0, r.Live())
	for _, h := range []*Handle{a, b, c} {
		assert.Equal(t, StateRevoked, r.State(h))
	}
	assert.Equal(t, 0, r.Reset())
}

func TestRevokeID(t *testing.T) {
	r := NewRegistry(WithMode(ModeProduction))
	h := r.Create([]byte{1})

	assert.True(t, r.RevokeID(h.ID()))
	assert.False(t, r.RevokeID(h.ID()))
	assert.False(t, r.RevokeID("blob:turfpix/missing"))
}

func TestForeignHandle(t *testing.T) {
	r1 := NewRegistry(WithMode(ModeProduction))
	r2 := NewRegistry(WithMode(ModeProduction))
	h := r1.Create([]byte{1})

	_, err := r2.Bytes(h)
	assert.True(t, errors.Is(err, ErrUnknownHandle))
	r2.Revoke(h)
	assert.Equal(t, StateCreated, r1.State(h))
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeDevelopment, ParseMode("dev"))
	assert.Equal(t, ModeDevelopment, ParseMode(" Development "))
	assert.Equal(t, ModeProduction, ParseMode("prod"))
	assert.Equal(t, ModeProduction, ParseMode(""))
}

func TestModeFromEnv(t *testing.T) {
	t.Setenv(EnvModeKey, "development")
	assert.Equal(t, ModeDevelopment, NewRegistry().Mode())
}
