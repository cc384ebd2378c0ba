package repository

import "context"

// AuthSession is an authenticated session against the record store.
type AuthSession struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// AuthRepository authenticates against the record store.
type AuthRepository interface {
	AuthenticateWithPassword(ctx context.Context, identity, password string) (*AuthSession, error)
	Refresh(ctx context.Context, token string) (*AuthSession, error)
}
