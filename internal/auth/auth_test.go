package auth

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/hospitaldata/explorer/internal/config"
	"github.com/stretchr/testify/require"
)

func TestHMACVerifier_RoundTrip(t *testing.T) {
	tok, err := IssueToken("s3cret", "user-1", time.Minute)
	require.NoError(t, err)

	ver, err := NewHMACVerifier("s3cret")
	require.NoError(t, err)
	parsed, err := ver.Verify(context.Background(), tok)
	require.NoError(t, err)

	var claims map[string]interface{}
	require.NoError(t, parsed.Claims(&claims))
	require.Equal(t, "user-1", claims["sub"])
}

func TestHMACVerifier_Rejects(t *testing.T) {
	ver, err := NewHMACVerifier("s3cret")
	require.NoError(t, err)

	wrong, err := IssueToken("other", "user-1", time.Minute)
	require.NoError(t, err)
	_, err = ver.Verify(context.Background(), wrong)
	require.Error(t, err)

	expired, err := IssueToken("s3cret", "user-1", -time.Minute)
	require.NoError(t, err)
	_, err = ver.Verify(context.Background(), expired)
	require.Error(t, err)

	_, err = NewHMACVerifier("")
	require.Error(t, err)
}

func TestInsecureVerifier(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"dev"}`))
	tok, err := NewInsecureVerifier().Verify(context.Background(), "e30."+payload+".sig")
	require.NoError(t, err)
	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	require.Equal(t, "dev", claims["sub"])

	_, err = NewInsecureVerifier().Verify(context.Background(), "garbage")
	require.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	ctx := context.Background()
	require.Nil(t, FromConfig(ctx, &config.Config{}))

	v := FromConfig(ctx, &config.Config{JWT: config.JWTConfig{Secret: "x"}})
	require.IsType(t, &HMACVerifier{}, v)

	v = FromConfig(ctx, &config.Config{JWT: config.JWTConfig{AllowInsecure: true}})
	require.IsType(t, &InsecureVerifier{}, v)
}

func TestIssueToken_RequiresSecret(t *testing.T) {
	_, err := IssueToken("", "user-1", time.Minute)
	require.Error(t, err)
}
