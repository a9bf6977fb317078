package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/skv43r/transaction-service/internal/auth"
	"github.com/skv43r/transaction-service/internal/domain"
	"github.com/skv43r/transaction-service/internal/infrastructure/database"
	"github.com/skv43r/transaction-service/internal/repository/accounts_repo"
)

type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

type ChangePasswordRequest struct {
	Username    string
	OldPassword string
	NewPassword string
}

type UserService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.Account, error)
	Login(ctx context.Context, username, password string) (string, error)
	ChangePassword(ctx context.Context, req ChangePasswordRequest) error
	ListUsers(ctx context.Context, skip, limit int) ([]domain.Account, error)
	GetUser(ctx context.Context, id int64) (*domain.Account, error)
	// Identify resolves a bearer token to the account it was issued for.
	Identify(ctx context.Context, token string) (*domain.Account, error)
}

type userService struct {
	db          *sqlx.DB
	accountRepo accounts_repo.AccountRepository
	hasher      *auth.PasswordHasher
	tokens      *auth.TokenManager
	logger      *zap.Logger
}

func NewUserService(
	db *sqlx.DB,
	accountRepo accounts_repo.AccountRepository,
	hasher *auth.PasswordHasher,
	tokens *auth.TokenManager,
	logger *zap.Logger,
) UserService {
	return &userService{
		db:          db,
		accountRepo: accountRepo,
		hasher:      hasher,
		tokens:      tokens,
		logger:      logger,
	}
}

func (s *userService) Register(ctx context.Context, req RegisterRequest) (*domain.Account, error) {
	hashed, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	account := &domain.Account{
		Username:       req.Username,
		Email:          req.Email,
		HashedPassword: hashed,
		Balance:        domain.StartingBalance,
	}
	if err := s.accountRepo.CreateAccountTx(ctx, s.db, account); err != nil {
		if errors.Is(err, domain.ErrUsernameTaken) || errors.Is(err, domain.ErrEmailTaken) {
			s.logger.Warn("Registration rejected", zap.String("username", req.Username), zap.Error(err))
			return nil, err
		}
		s.logger.Error("Failed to register user", zap.String("username", req.Username), zap.Error(err))
		return nil, err
	}

	s.logger.Info("User registered", zap.Int64("user_id", account.ID), zap.String("username", account.Username))
	return account, nil
}

func (s *userService) Login(ctx context.Context, username, password string) (string, error) {
	account, err := s.authenticate(ctx, s.db, username, password)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			err = domain.ErrInvalidCredentials
		}
		if errors.Is(err, domain.ErrInvalidCredentials) {
			s.logger.Warn("Login failed", zap.String("username", username))
		}
		return "", err
	}

	token, err := s.tokens.Issue(account)
	if err != nil {
		return "", err
	}
	s.logger.Info("User logged in", zap.Int64("user_id", account.ID))
	return token, nil
}

func (s *userService) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	err := database.RunInTx(ctx, s.db, nil, func(tx *sqlx.Tx) error {
		account, err := s.authenticate(ctx, tx, req.Username, req.OldPassword)
		if err != nil {
			return err
		}
		hashed, err := s.hasher.Hash(req.NewPassword)
		if err != nil {
			return err
		}
		return s.accountRepo.UpdatePasswordTx(ctx, tx, account.ID, hashed)
	})
	if err != nil {
		s.logger.Warn("Password change failed", zap.String("username", req.Username), zap.Error(err))
		return err
	}

	s.logger.Info("Password changed", zap.String("username", req.Username))
	return nil
}

// authenticate loads username and checks password against its hash. An unknown
// user is reported as domain.ErrAccountNotFound so callers can decide whether
// to disclose it.
func (s *userService) authenticate(ctx context.Context, querier domain.Querier, username, password string) (*domain.Account, error) {
	account, err := s.accountRepo.GetAccountByUsernameTx(ctx, querier, username)
	if err != nil {
		return nil, err
	}
	ok, err := s.hasher.Verify(account.HashedPassword, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}
	return account, nil
}

func (s *userService) ListUsers(ctx context.Context, skip, limit int) ([]domain.Account, error) {
	if skip < 0 || limit <= 0 {
		return nil, domain.ErrInvalidPage
	}
	return s.accountRepo.ListAccountsTx(ctx, s.db, skip, limit)
}

func (s *userService) GetUser(ctx context.Context, id int64) (*domain.Account, error) {
	return s.accountRepo.GetAccountTx(ctx, s.db, id)
}

func (s *userService) Identify(ctx context.Context, token string) (*domain.Account, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	account, err := s.accountRepo.GetAccountByUsernameTx(ctx, s.db, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token subject %s: %w", claims.Subject, err)
	}
	return account, nil
}
