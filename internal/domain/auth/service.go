package auth

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Account is what the login flow needs to know about an active employee.
type Account struct {
	EmployeeID   string
	PasswordHash string
	IsHR         bool
	HasReports   bool
}

type AccountStore interface {
	AccountByEmail(ctx context.Context, email string) (Account, error)
}

type Service struct {
	Accounts AccountStore
	Secret   string
	TokenTTL time.Duration
}

func NewService(accounts AccountStore, secret string, ttl time.Duration) *Service {
	return &Service{Accounts: accounts, Secret: secret, TokenTTL: ttl}
}

type LoginResult struct {
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expiresAt"`
	EmployeeID string    `json:"employeeId"`
	IsHR       bool      `json:"isHr"`
	Role       string    `json:"role"`
}

// Login verifies the password and issues a bearer token. Unknown, inactive
// and wrong-password accounts all yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	account, err := s.Accounts.AccountByEmail(ctx, email)
	if err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err := CheckPassword(account.PasswordHash, password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	role := RoleFor(account.IsHR, account.HasReports)
	token, err := GenerateToken(s.Secret, Claims{EmployeeID: account.EmployeeID, IsHR: account.IsHR, Role: role}, s.TokenTTL)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{
		Token:      token,
		ExpiresAt:  time.Now().Add(s.TokenTTL),
		EmployeeID: account.EmployeeID,
		IsHR:       account.IsHR,
		Role:       role,
	}, nil
}
