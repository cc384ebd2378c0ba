package repository

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	domainRepo "github.com/CeeFeS/TinyPlanvas/internal/domain/repository"
	pkgErrors "github.com/CeeFeS/TinyPlanvas/pkg/errors"
)

// authRepository implements repository.AuthRepository over the record
// store's auth endpoints. A successful authentication installs the token on
// the shared client so every subsequent record request carries it.
type authRepository struct {
	client *Client
}

// NewAuthRepository creates an auth repository.
func NewAuthRepository(client *Client) domainRepo.AuthRepository {
	return &authRepository{client: client}
}

type authResponse struct {
	Token  string `json:"token"`
	Record struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"record"`
}

func (r *authRepository) AuthenticateWithPassword(ctx context.Context, identity, password string) (*domainRepo.AuthSession, error) {
	body := map[string]string{"identity": identity, "password": password}
	var resp authResponse
	if err := r.client.do(ctx, http.MethodPost, "/api/auth/with-password", nil, body, &resp); err != nil {
		return nil, err
	}
	return r.install(resp)
}

func (r *authRepository) Refresh(ctx context.Context, token string) (*domainRepo.AuthSession, error) {
	r.client.SetToken(token)
	var resp authResponse
	if err := r.client.do(ctx, http.MethodPost, "/api/auth/refresh", nil, nil, &resp); err != nil {
		return nil, err
	}
	return r.install(resp)
}

func (r *authRepository) install(resp authResponse) (*domainRepo.AuthSession, error) {
	if resp.Token == "" {
		return nil, pkgErrors.NewAppError(pkgErrors.ErrUnauthenticated, "auth response carried no token", nil)
	}
	if expired, err := tokenExpired(resp.Token, time.Now()); err != nil {
		return nil, err
	} else if expired {
		return nil, pkgErrors.NewAppError(pkgErrors.ErrUnauthenticated, "auth token already expired", nil)
	}

	r.client.SetToken(resp.Token)
	return &domainRepo.AuthSession{
		Token:    resp.Token,
		UserID:   resp.Record.ID,
		UserName: resp.Record.Name,
	}, nil
}

// tokenExpired checks the token's exp claim without verifying the signature;
// the store verifies it on every request, this only avoids installing a
// token that is already dead.
func tokenExpired(token string, now time.Time) (bool, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false, pkgErrors.NewAppError(pkgErrors.ErrUnauthenticated, "malformed auth token", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return false, pkgErrors.NewAppError(pkgErrors.ErrUnauthenticated, "malformed exp claim", err)
	}
	if exp == nil {
		return false, nil
	}
	return exp.Before(now), nil
}
