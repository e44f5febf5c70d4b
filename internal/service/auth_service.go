package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"reflow_oven/internal/repository"
)

const (
	defaultTokenTTL   = time.Hour
	minPasswordLength = 6
	tokenIssuer       = "reflow-oven"
)

// Domain errors for auth flows.
var (
	ErrInvalidUsername  = errors.New("username must be 3-32 characters of a-z, 0-9, '.', '_' or '-'")
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", minPasswordLength)
	ErrInvalidPassword  = errors.New("invalid password")
	ErrOperatorNotFound = errors.New("operator not found")
	ErrInvalidToken     = errors.New("invalid token")
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9._-]{3,32}$`)

// AuthConfig holds the token settings (auth.* in config).
type AuthConfig struct {
	SigningKey string
	TokenTTL   time.Duration
}

// AuthService registers operators and issues the tokens that guard the
// control endpoints.
type AuthService struct {
	operators repository.Operators
	key       []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewAuthService(repo repository.Operators, cfg AuthConfig) *AuthService {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &AuthService{operators: repo, key: []byte(cfg.SigningKey), ttl: ttl, now: time.Now}
}

// normalizeUsername lowercases and trims; sign-up and sign-in agree on it.
func normalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SignUp validates the credentials, hashes the password and stores a new
// operator.
func (s *AuthService) SignUp(ctx context.Context, username, password string) (int, error) {
	username = normalizeUsername(username)
	if !usernamePattern.MatchString(username) {
		return 0, ErrInvalidUsername
	}
	hash, err := hashPassword(password)
	if err != nil {
		return 0, err
	}
	return s.operators.Create(ctx, username, hash, s.now())
}

// Claims defines JWT claims. Subject carries the username.
type Claims struct {
	jwt.RegisteredClaims
	OperatorID int `json:"operator_id"`
}

// GenerateToken checks the credentials, records the sign-in and returns a
// signed token.
func (s *AuthService) GenerateToken(ctx context.Context, username, password string) (string, error) {
	username = normalizeUsername(username)
	op, err := s.operators.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if op == nil {
		return "", ErrOperatorNotFound
	}
	if err := verifyPassword(op.PasswordHash, password); err != nil {
		return "", ErrInvalidPassword
	}

	now := s.now()
	if err := s.operators.TouchSignIn(ctx, op.ID, now); err != nil {
		return "", fmt.Errorf("record sign-in: %w", err)
	}
	return s.issueToken(op.ID, username, now)
}

// ParseToken validates the token and returns the operator ID.
func (s *AuthService) ParseToken(accessToken string) (int, error) {
	token, err := jwt.ParseWithClaims(accessToken, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.key, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.OperatorID <= 0 {
		return 0, ErrInvalidToken
	}
	return claims.OperatorID, nil
}

func (s *AuthService) issueToken(operatorID int, username string, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		OperatorID: operatorID,
	})
	return token.SignedString(s.key)
}

func hashPassword(password string) (string, error) {
	if len(strings.TrimSpace(password)) < minPasswordLength {
		return "", ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func verifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
