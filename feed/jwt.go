package feed

import (
	"errors"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// claims recovered from a JWT-shaped session token.
// the token is not verified here. Verification is the backend's job;
// the client only needs the viewer identity to seed the store.
type SessionJwt struct {
	UserId   Id
	UserName string
}

func ParseSessionTokenUnverified(sessionToken string) (*SessionJwt, error) {
	parser := gojwt.NewParser()
	token, _, err := parser.ParseUnverified(sessionToken, gojwt.MapClaims{})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(gojwt.MapClaims)
	if !ok {
		return nil, errors.New("session token missing claims")
	}

	sessionJwt := &SessionJwt{}

	userIdClaim, ok := claims["userId"]
	if !ok {
		// some deployments issue the user id as the subject
		userIdClaim, ok = claims["sub"]
	}
	if userIdStr, strOk := userIdClaim.(string); ok && strOk {
		if userId, err := ParseId(userIdStr); err == nil {
			sessionJwt.UserId = userId
		}
	}
	if name, ok := claims["name"]; ok {
		if nameStr, strOk := name.(string); strOk {
			sessionJwt.UserName = nameStr
		}
	}

	if (sessionJwt.UserId == Id{}) {
		return nil, errors.New("session token missing user id")
	}

	return sessionJwt, nil
}
