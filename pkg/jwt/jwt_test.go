package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour)

	token, err := manager.GenerateToken(7, 3, "owner", true)
	require.NoError(t, err)

	claims, err := manager.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, uint(3), claims.OrgID)
	assert.True(t, claims.IsAdmin)
}

func TestJWTManager_Rejects(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour)

	other, err := NewJWTManager("other", time.Hour).GenerateToken(7, 3, "owner", false)
	require.NoError(t, err)
	_, err = manager.VerifyToken(other)
	assert.Error(t, err)

	expired, err := NewJWTManager("secret", -time.Minute).GenerateToken(7, 3, "owner", false)
	require.NoError(t, err)
	_, err = manager.VerifyToken(expired)
	assert.Error(t, err)

	// 缺少组织的令牌无法做数据隔离
	noOrg, err := manager.GenerateToken(7, 0, "owner", false)
	require.NoError(t, err)
	_, err = manager.VerifyToken(noOrg)
	assert.Error(t, err)
}
