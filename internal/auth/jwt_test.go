package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestAccessToken_RoundTrip(t *testing.T) {
	m := NewJWTManager(secret, "maintenance", time.Hour)

	token, exp, err := m.GenerateAccessToken(Identity{UserID: "u-1", Email: "a@b.c"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	id, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u-1", Email: "a@b.c"}, id)
}

func TestAccessToken_Rejections(t *testing.T) {
	m := NewJWTManager(secret, "maintenance", time.Hour)
	token, _, err := m.GenerateAccessToken(Identity{UserID: "u-1"})
	require.NoError(t, err)

	other := NewJWTManager(secret, "someone-else", time.Hour)
	_, err = other.ValidateAccessToken(token)
	assert.Error(t, err, "issuer mismatch")

	wrongKey := NewJWTManager("ffffffffffffffffffffffffffffffff", "maintenance", time.Hour)
	_, err = wrongKey.ValidateAccessToken(token)
	assert.Error(t, err, "signature mismatch")

	_, err = m.ValidateAccessToken("")
	assert.Error(t, err)

	expired := NewJWTManager(secret, "maintenance", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _, err := expired.GenerateAccessToken(Identity{UserID: "u-1"})
	require.NoError(t, err)
	_, err = m.ValidateAccessToken(old)
	assert.Error(t, err, "expired token")
}

func TestObjectToken(t *testing.T) {
	m := NewJWTManager(secret, "maintenance", time.Hour)

	token, err := m.SignObject("repair-photos", "d1_repair_1_0.jpg", time.Minute)
	require.NoError(t, err)

	require.NoError(t, m.ValidateObject(token, "repair-photos", "d1_repair_1_0.jpg"))
	assert.Error(t, m.ValidateObject(token, "defect-photos", "d1_repair_1_0.jpg"))
	assert.Error(t, m.ValidateObject(token, "repair-photos", "other.jpg"))
}

func TestOpaqueToken(t *testing.T) {
	raw, hash, err := GenerateOpaqueToken()
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashToken(raw))

	raw2, _, err := GenerateOpaqueToken()
	require.NoError(t, err)
	assert.NotEqual(t, raw, raw2)
}
