package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/vancomm/minefield/internal/config"
)

var Log = logrus.New()

var (
	ErrNoKeys          = errors.New("no JWT keys configured")
	ErrInvalidLifetime = errors.New("token lifetime must be positive")
)

type JWT struct {
	publicKey     *rsa.PublicKey
	privateKey    *rsa.PrivateKey
	signingMethod jwt.SigningMethod
	tokenLifetime time.Duration
}

func NewJWT(privateKey *rsa.PrivateKey, publicKey *rsa.PublicKey, lifetime time.Duration) *JWT {
	return &JWT{
		privateKey:    privateKey,
		publicKey:     publicKey,
		signingMethod: jwt.SigningMethodRS256,
		tokenLifetime: lifetime,
	}
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	if privateKeyStr, ok := os.LookupEnv("JWT_PRIVATE_KEY"); ok {
		return jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyStr))
	}
	privateKeyBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read JWT private key: %w", err)
	}
	return jwt.ParseRSAPrivateKeyFromPEM(privateKeyBytes)
}

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	if publicKeyStr, ok := os.LookupEnv("JWT_PUBLIC_KEY"); ok {
		return jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyStr))
	}
	publicKeyBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read JWT public key: %w", err)
	}
	return jwt.ParseRSAPublicKeyFromPEM(publicKeyBytes)
}

// LoadJWT reads the PEM key pair named by cfg. When no key is configured and
// ephemeral is set, a throwaway key pair is generated; tokens signed with it do
// not survive a restart.
func LoadJWT(cfg config.JwtConfig, ephemeral bool) (*JWT, error) {
	if cfg.TokenLifetime.Duration <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidLifetime, cfg.TokenLifetime)
	}
	_, inlinePrivate := os.LookupEnv("JWT_PRIVATE_KEY")
	if cfg.PrivateKeyPath == "" && !inlinePrivate {
		if !ephemeral {
			return nil, ErrNoKeys
		}
		Log.Warn("no JWT keys configured, generating an ephemeral key pair")
		privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, fmt.Errorf("unable to generate JWT key: %w", err)
		}
		return NewJWT(privateKey, &privateKey.PublicKey, cfg.TokenLifetime.Duration), nil
	}

	privateKey, err := loadPrivateKey(cfg.PrivateKeyPath)
	if err != nil {
		return nil, err
	}

	publicKey := &privateKey.PublicKey
	_, inlinePublic := os.LookupEnv("JWT_PUBLIC_KEY")
	if cfg.PublicKeyPath != "" || inlinePublic {
		if publicKey, err = loadPublicKey(cfg.PublicKeyPath); err != nil {
			return nil, err
		}
	}

	return NewJWT(privateKey, publicKey, cfg.TokenLifetime.Duration), nil
}

func (j *JWT) TokenLifetime() time.Duration {
	return j.tokenLifetime
}

func (j *JWT) Sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(j.signingMethod, claims).SignedString(j.privateKey)
}

func (j *JWT) ParseWithClaims(tokenString string, claims jwt.Claims) (*jwt.Token, error) {
	return jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			return j.publicKey, nil
		},
		jwt.WithValidMethods([]string{j.signingMethod.Alg()}),
	)
}

type PlayerClaims struct {
	PlayerId int64  `json:"player_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func (j *JWT) NewPlayerClaims(playerId int64, username string) *PlayerClaims {
	now := time.Now()
	return &PlayerClaims{
		PlayerId: playerId,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.tokenLifetime)),
		},
	}
}
