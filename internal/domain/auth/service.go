package auth

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	platformauth "payslips/internal/auth"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Session struct {
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service checks the single configured operator credential and issues
// session tokens.
type Service struct {
	username     string
	passwordHash string
	secret       string
	ttl          time.Duration
}

// NewService takes either a bcrypt hash or a plain password; a plain
// password is hashed once here and not kept.
func NewService(username, password, passwordHash, secret string, ttl time.Duration) (*Service, error) {
	if passwordHash == "" {
		hashed, err := platformauth.HashPassword(password)
		if err != nil {
			return nil, err
		}
		passwordHash = hashed
	}
	return &Service{username: username, passwordHash: passwordHash, secret: secret, ttl: ttl}, nil
}

func (s *Service) Login(username, password string) (Session, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passErr := platformauth.CheckPassword(s.passwordHash, password)
	if !userOK || passErr != nil {
		slog.Warn("operator login rejected")
		return Session{}, ErrInvalidCredentials
	}

	expires := time.Now().Add(s.ttl)
	token, err := platformauth.GenerateToken(s.secret, platformauth.Claims{Username: s.username}, s.ttl)
	if err != nil {
		return Session{}, err
	}
	slog.Info("operator logged in", "username", s.username)
	return Session{Username: s.username, Token: token, ExpiresAt: expires}, nil
}

func (s *Service) Verify(token string) (*platformauth.Claims, error) {
	claims, err := platformauth.ParseToken(s.secret, token)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(claims.Username), []byte(s.username)) != 1 {
		return nil, ErrInvalidCredentials
	}
	return claims, nil
}

func (s *Service) TTL() time.Duration {
	return s.ttl
}
