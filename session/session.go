// Package session reads the persisted login session of the dashboard user.
//
// The session is the object the editor keeps under StorageKey: tenant info
// and user info including the access token used on the own backend.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// StorageKey is the key the session snapshot is persisted under
const StorageKey = "GO_SYSTEM_STORE"

// DefaultTokenName is the auth header name used when the session does not name one
const DefaultTokenName = "token"

// Errors
var (
	ErrNoToken = errors.New("session has no token")
)

type (
	// ID accepts either a JSON string or a JSON number
	ID string

	// TenantInfo identifies the tenant of the signed-in user
	TenantInfo struct {
		TenantID ID `json:"tenantId,omitempty"`
	}

	// UserInfo describes the signed-in user
	UserInfo struct {
		UserID    ID     `json:"userId,omitempty"`
		UserName  string `json:"userName,omitempty"`
		NickName  string `json:"nickName,omitempty"`
		UserToken string `json:"userToken,omitempty"`
		TokenName string `json:"tokenName,omitempty"` // Header name carrying the token
	}

	// Session is the persisted session snapshot
	Session struct {
		TenantInfo *TenantInfo `json:"tenantInfo,omitempty"`
		UserInfo   *UserInfo   `json:"userInfo,omitempty"`
	}

	// Store loads the current session. A missing session is (nil, nil).
	Store interface {
		Load(ctx context.Context) (*Session, error)
	}

	// Saver persists a session
	Saver interface {
		Save(ctx context.Context, s *Session) error
	}

	// StoreFunc adapts a function to Store
	StoreFunc func(ctx context.Context) (*Session, error)
)

// Load calls f
func (f StoreFunc) Load(ctx context.Context) (*Session, error) {
	return f(ctx)
}

// UnmarshalJSON accepts strings and numbers
func (id *ID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// TenantID returns the tenant id or an empty string
func (s *Session) TenantID() string {
	if s == nil || s.TenantInfo == nil {
		return ""
	}
	return string(s.TenantInfo.TenantID)
}

// AuthHeader returns the auth header name and its bearer value. ok is false
// when the session has no user info.
func (s *Session) AuthHeader() (name, value string, ok bool) {
	if s == nil || s.UserInfo == nil {
		return "", "", false
	}
	name = s.UserInfo.TokenName
	if name == "" {
		name = DefaultTokenName
	}
	return name, "Bearer " + s.UserInfo.UserToken, true
}

// Decode parses a persisted session. Empty input and JSON null give (nil, nil).
func Decode(b []byte) (*Session, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	s := &Session{}
	if err := json.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

// Encode serializes a session for persistence
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	return json.Marshal(s)
}
