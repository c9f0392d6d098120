package audit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedactArgs(t *testing.T) {
	args := map[string]any{
		"city":          "Berlin",
		"api_key":       "sk-123",
		"Authorization": "Bearer abc",
		"user_token":    "tok",
		"password":      "hunter2",
		"count":         3,
		"nested":        map[string]any{"a": 1},
		"empty":         nil,
	}

	out := RedactArgs(args)
	require.Equal(t, "Berlin", out["city"])
	require.Equal(t, "***", out["api_key"])
	require.Equal(t, "***", out["Authorization"])
	require.Equal(t, "***", out["user_token"])
	require.Equal(t, "***", out["password"])
	require.Equal(t, "3", out["count"])
	require.Equal(t, `{"a":1}`, out["nested"])
	require.Equal(t, "", out["empty"])
}

func TestRedactArgsEmpty(t *testing.T) {
	require.Nil(t, RedactArgs(nil))
	require.Nil(t, RedactArgs(map[string]any{}))
}

func TestContainsSensitiveKey(t *testing.T) {
	require.True(t, ContainsSensitiveKey("API_KEY"))
	require.True(t, ContainsSensitiveKey("session_cookie"))
	require.True(t, ContainsSensitiveKey("client_secret"))
	require.False(t, ContainsSensitiveKey("username"))
	require.False(t, ContainsSensitiveKey("query"))
}

func TestRedactValue(t *testing.T) {
	require.Equal(t, "***", RedactValue("token", "abc"))
	require.Equal(t, "abc", RedactValue("city", "abc"))
}
