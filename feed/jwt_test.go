package feed

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/go-playground/assert/v2"
)

func testSessionToken(t *testing.T, claims map[string]any) string {
	encode := func(data map[string]any) string {
		dataBytes, err := json.Marshal(data)
		if err != nil {
			t.Fatal(err)
		}
		return base64.RawURLEncoding.EncodeToString(dataBytes)
	}
	header := encode(map[string]any{
		"alg": "none",
		"typ": "JWT",
	})
	return fmt.Sprintf("%s.%s.", header, encode(claims))
}

func TestParseSessionTokenUnverified(t *testing.T) {
	userId := NewId()

	sessionJwt, err := ParseSessionTokenUnverified(testSessionToken(t, map[string]any{
		"userId": userId.String(),
		"name":   "Ada",
	}))
	assert.Equal(t, nil, err)
	assert.Equal(t, userId, sessionJwt.UserId)
	assert.Equal(t, "Ada", sessionJwt.UserName)
}

func TestParseSessionTokenSubjectClaim(t *testing.T) {
	userId := NewId()

	sessionJwt, err := ParseSessionTokenUnverified(testSessionToken(t, map[string]any{
		"sub": userId.String(),
	}))
	assert.Equal(t, nil, err)
	assert.Equal(t, userId, sessionJwt.UserId)
}

func TestParseSessionTokenInvalid(t *testing.T) {
	_, err := ParseSessionTokenUnverified("not a jwt")
	assert.NotEqual(t, nil, err)

	// a valid token without a user id is rejected
	_, err = ParseSessionTokenUnverified(testSessionToken(t, map[string]any{
		"name": "Ada",
	}))
	assert.NotEqual(t, nil, err)
}
