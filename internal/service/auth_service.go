package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shinyyama/ecograd-backend/internal/model"
	"github.com/shinyyama/ecograd-backend/internal/repository"
	"github.com/shinyyama/ecograd-backend/internal/security"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid username or password", ErrUnauthorized)
	errUsernameTaken      = fmt.Errorf("%w: username already exists", ErrConflict)
)

type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

type AuthService interface {
	Signup(ctx context.Context, username, password string) (*model.User, error)
	Login(ctx context.Context, username, password string) (*Session, error)
	LookupUserID(ctx context.Context, username string) (uint64, error)
	Me(ctx context.Context, userID uint64) (*model.User, error)
}

type authService struct {
	users  repository.UserRepository
	tokens *security.TokenService
	hasher *security.PasswordHasher
}

func NewAuthService(users repository.UserRepository, tokens *security.TokenService, hasher *security.PasswordHasher) AuthService {
	return &authService{users: users, tokens: tokens, hasher: hasher}
}

func validatePassword(pw string) error {
	var letter, digit bool
	for _, r := range pw {
		switch {
		case r < unicode.MaxASCII && unicode.IsLetter(r):
			letter = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	if utf8.RuneCountInString(pw) < 4 || !letter || !digit {
		return invalid("password must be at least 4 characters and contain both letters and numbers")
	}
	return nil
}

func (s *authService) Signup(ctx context.Context, username, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if utf8.RuneCountInString(username) < 3 {
		return nil, invalid("username must be at least 3 characters long")
	}
	if len(username) > 255 {
		return nil, invalid("username is too long")
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	_, err := s.users.FindByUsername(ctx, username)
	if err == nil {
		return nil, errUsernameTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storeErr(err)
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	u := &model.User{Username: username, PasswordHash: hashed}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errUsernameTaken
		}
		return nil, storeErr(err)
	}
	return u, nil
}

func (s *authService) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, storeErr(err)
	}
	if err := s.hasher.Verify(password, u.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}
	tok, exp, err := s.tokens.Issue(u.ID, u.Username)
	if err != nil {
		return nil, err
	}
	return &Session{Token: tok, ExpiresAt: exp, User: u}, nil
}

func (s *authService) LookupUserID(ctx context.Context, username string) (uint64, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, invalid("username is required")
	}
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return 0, storeErr(err)
	}
	return u.ID, nil
}

func (s *authService) Me(ctx context.Context, userID uint64) (*model.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	return u, nil
}
