package session

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gbrlsnchs/jwt/v3"
)

type (
	// CustomPayload - payload for JWT
	CustomPayload struct {
		jwt.Payload
		UserName      string `json:"usr,omitempty"` // Username payload for JWT
		Domain        string `json:"dom,omitempty"` // Domain payload for JWT
		ApplicationID string `json:"app,omitempty"` // Application payload for JWT
		DeviceID      string `json:"dev,omitempty"` // Device id payload for JWT
		TenantID      string `json:"tnt,omitempty"` // Tenant id payload for JWT
	}

	// Claims to sign into a token
	Claims struct {
		Issuer        string
		Subject       string
		Audience      []string
		ID            string
		UserName      string
		Domain        string
		ApplicationID string
		DeviceID      string
		TenantID      string
		ExpiresAt     time.Time
		NotBefore     time.Time
		IssuedAt      time.Time
	}

	// JWTStore turns a bearer token into a session
	JWTStore struct {
		Token         string
		Secret        string
		ValidateTimes bool
		TokenName     string // Header name for the forwarded token
	}
)

// Sign builds a JWT token using HMAC256 algorithm
func Sign(c Claims, secretKey string) (string, error) {
	if len(secretKey) == 0 {
		return "", fmt.Errorf(`secret key not set`)
	}
	numeric := func(t time.Time) *jwt.Time {
		if t.IsZero() {
			return nil
		}
		return jwt.NumericDate(t)
	}
	pl := CustomPayload{
		Payload: jwt.Payload{
			Issuer:         c.Issuer,
			Subject:        c.Subject,
			Audience:       jwt.Audience(c.Audience),
			ExpirationTime: numeric(c.ExpiresAt),
			NotBefore:      numeric(c.NotBefore),
			IssuedAt:       numeric(c.IssuedAt),
			JWTID:          c.ID,
		},
		UserName:      c.UserName,
		Domain:        c.Domain,
		ApplicationID: c.ApplicationID,
		DeviceID:      c.DeviceID,
		TenantID:      c.TenantID,
	}
	token, err := jwt.Sign(pl, jwt.NewHS256([]byte(secretKey)))
	if err != nil {
		return "", err
	}
	return string(token), nil
}

// ParseJwt validates a token and returns its payload using HMAC256 algorithm
func ParseJwt(token, secretKey string, validateTimes bool) (*CustomPayload, error) {
	if len(secretKey) == 0 {
		return nil, fmt.Errorf(`secret key not set`)
	}
	var (
		pl  CustomPayload
		err error
	)
	HMAC := jwt.NewHS256([]byte(secretKey))

	// Validate claims "iat", "exp" and "nbf".
	if validateTimes {
		now := time.Now()
		validator := jwt.ValidatePayload(
			&pl.Payload,
			jwt.IssuedAtValidator(now),
			jwt.ExpirationTimeValidator(now),
			jwt.NotBeforeValidator(now))
		_, err = jwt.Verify([]byte(token), HMAC, &pl, validator)
	} else {
		_, err = jwt.Verify([]byte(token), HMAC, &pl)
	}
	if err != nil {
		return nil, err
	}
	return &pl, nil
}

// FromJWT validates token and builds a session from it. The token itself
// becomes the user token.
func FromJWT(token, secretKey string, validateTimes bool) (*Session, error) {
	pl, err := ParseJwt(token, secretKey, validateTimes)
	if err != nil {
		return nil, err
	}
	s := &Session{
		UserInfo: &UserInfo{
			UserID:    ID(pl.Subject),
			UserName:  pl.UserName,
			UserToken: token,
		},
	}
	if pl.TenantID != "" {
		s.TenantInfo = &TenantInfo{TenantID: ID(pl.TenantID)}
	}
	return s, nil
}

// BearerToken extracts the token of an Authorization: Bearer header
func BearerToken(r *http.Request) (string, error) {
	var (
		jwth string
		jwtp []string
	)
	if jwth = r.Header.Get("Authorization"); len(jwth) == 0 {
		return "", fmt.Errorf(`authorization header not set`)
	}
	if jwtp = strings.Fields(jwth); len(jwtp) < 2 {
		return "", fmt.Errorf(`invalid authorization header`)
	}
	if !strings.EqualFold(jwtp[0], "bearer") {
		return "", fmt.Errorf(`invalid authorization bearer`)
	}
	return jwtp[1], nil
}

// FromRequest builds a session from the bearer token of r
func FromRequest(r *http.Request, secretKey string, validateTimes bool) (*Session, error) {
	token, err := BearerToken(r)
	if err != nil {
		return nil, err
	}
	return FromJWT(token, secretKey, validateTimes)
}

// Load validates the held token. An empty token is no session.
func (js *JWTStore) Load(context.Context) (*Session, error) {
	if js.Token == "" {
		return nil, nil
	}
	s, err := FromJWT(js.Token, js.Secret, js.ValidateTimes)
	if err != nil {
		return nil, err
	}
	s.UserInfo.TokenName = js.TokenName
	return s, nil
}
