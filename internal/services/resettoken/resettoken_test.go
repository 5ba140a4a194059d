// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package resettoken_test

import (
	"testing"
	"time"

	"github.com/authprowess/authd/internal/services/resettoken"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	svc := resettoken.New(10 * time.Minute)

	raw, hash, expiresAt, err := svc.Generate()

	require.NoError(t, err)
	assert.Len(t, raw, 64) // 32 random bytes, hex encoded
	assert.Equal(t, resettoken.HashToken(raw), hash)
	assert.NotEqual(t, raw, hash)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), expiresAt, time.Second)
}

func TestGenerate_Unique(t *testing.T) {
	svc := resettoken.New(0)

	raw1, _, _, err := svc.Generate()
	require.NoError(t, err)
	raw2, _, _, err := svc.Generate()
	require.NoError(t, err)

	assert.NotEqual(t, raw1, raw2)
}

func TestValidate(t *testing.T) {
	svc := resettoken.New(10 * time.Minute)
	now := time.Now()

	raw, hash, expiresAt, err := svc.Generate()
	require.NoError(t, err)

	assert.True(t, svc.Validate(raw, hash, expiresAt, now))
}

func TestValidate_WrongToken(t *testing.T) {
	svc := resettoken.New(10 * time.Minute)
	now := time.Now()

	_, hash, expiresAt, err := svc.Generate()
	require.NoError(t, err)

	other, _, _, err := svc.Generate()
	require.NoError(t, err)

	assert.False(t, svc.Validate(other, hash, expiresAt, now))
}

func TestValidate_Expired(t *testing.T) {
	svc := resettoken.New(10 * time.Minute)

	raw, hash, expiresAt, err := svc.Generate()
	require.NoError(t, err)

	// Correct raw value, but observed after the expiry timestamp
	assert.False(t, svc.Validate(raw, hash, expiresAt, expiresAt.Add(time.Second)))
	assert.False(t, svc.Validate(raw, hash, expiresAt, expiresAt))
}

func TestValidate_MissingStoredFields(t *testing.T) {
	svc := resettoken.New(10 * time.Minute)
	now := time.Now()

	raw, hash, _, err := svc.Generate()
	require.NoError(t, err)

	assert.False(t, svc.Validate(raw, "", now.Add(time.Minute), now))
	assert.False(t, svc.Validate(raw, hash, time.Time{}, now))
}

func TestNew_DefaultTTL(t *testing.T) {
	svc := resettoken.New(0)
	assert.Equal(t, resettoken.DefaultTTL, svc.TTL())
}
