package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vancomm/minefield/internal/config"
)

const (
	authCookie = "auth"
	signCookie = "sign"
)

// Cookies carries a player token split in two: the header and payload in a
// script-readable "auth" cookie and the signature in an HttpOnly "sign" cookie.
type Cookies struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
	jwt      *JWT
}

func NewCookies(cfg config.CookiesConfig, j *JWT, production bool) *Cookies {
	c := &Cookies{
		Domain:   cfg.Domain,
		Secure:   production,
		SameSite: http.SameSiteLaxMode,
		jwt:      j,
	}
	if production {
		c.SameSite = http.SameSiteStrictMode
	}
	return c
}

func (c *Cookies) JWT() *JWT {
	return c.jwt
}

func (c *Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Path:     "/",
		Value:    "delete",
		MaxAge:   -1,
		Domain:   c.Domain,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     signCookie,
		Path:     "/",
		Value:    "delete",
		MaxAge:   -1,
		HttpOnly: true,
		Domain:   c.Domain,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

// Refresh signs a fresh token for the player and sets both cookies.
func (c *Cookies) Refresh(w http.ResponseWriter, playerId int64, username string) error {
	token, err := c.jwt.Sign(c.jwt.NewPlayerClaims(playerId, username))
	if err != nil {
		return fmt.Errorf("unable to sign jwt token: %w", err)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return fmt.Errorf("malformed JWT token generated")
	}
	header, payload, signature := parts[0], parts[1], parts[2]
	expires := time.Now().Add(c.jwt.tokenLifetime)
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Path:     "/",
		Value:    header + "." + payload,
		Expires:  expires,
		Domain:   c.Domain,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     signCookie,
		Path:     "/",
		Value:    signature,
		Expires:  expires,
		HttpOnly: true,
		Domain:   c.Domain,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
	return nil
}

func (c *Cookies) ParsePlayerClaims(r *http.Request) (*PlayerClaims, error) {
	auth, err := r.Cookie(authCookie)
	if err != nil {
		return nil, err
	}
	sign, err := r.Cookie(signCookie)
	if err != nil {
		return nil, err
	}
	token, err := c.jwt.ParseWithClaims(auth.Value+"."+sign.Value, &PlayerClaims{})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*PlayerClaims)
	if !ok {
		return nil, fmt.Errorf("malformed claims")
	}
	return claims, nil
}

type ctxKey int

const ctxPlayerClaims ctxKey = iota

// Middleware attaches the claims of a valid token to the request context.
// Stale or forged cookies are cleared and the request goes on anonymously.
func (c *Cookies) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := c.ParsePlayerClaims(r)
		if err != nil {
			if !errors.Is(err, http.ErrNoCookie) {
				Log.WithError(err).Debug("could not parse cookies - clear cookies")
				c.Clear(w)
			}
			next.ServeHTTP(w, r)
			return
		}
		ctx := WithClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func WithClaims(ctx context.Context, claims *PlayerClaims) context.Context {
	return context.WithValue(ctx, ctxPlayerClaims, claims)
}

func ClaimsFromContext(ctx context.Context) (*PlayerClaims, bool) {
	claims, ok := ctx.Value(ctxPlayerClaims).(*PlayerClaims)
	return claims, ok
}
