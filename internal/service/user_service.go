package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"annotation-service/internal/entity"
	"annotation-service/internal/keyspace"
	"annotation-service/internal/storage"
)

// UserService manages accounts and answers the admin predicate.
type UserService struct {
	engine storage.Engine
	cost   int
	opts   options
}

func NewUserService(engine storage.Engine, opts ...Option) *UserService {
	return &UserService{engine: engine, cost: bcrypt.DefaultCost, opts: buildOptions(opts)}
}

// WithCost lowers the bcrypt cost (tests).
func (s *UserService) WithCost(cost int) *UserService {
	s.cost = cost
	return s
}

func ParseRole(value string) (entity.UserRole, error) {
	switch entity.UserRole(value) {
	case "", entity.RoleUser:
		return entity.RoleUser, nil
	case entity.RoleAdmin:
		return entity.RoleAdmin, nil
	default:
		return "", validationf("unknown role %q", value)
	}
}

// Create stores a new user with a hashed password.
func (s *UserService) Create(ctx context.Context, username, password string, role entity.UserRole) (*entity.User, error) {
	if err := validateIDs(username); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, validationf("password is required")
	}
	if _, err := ParseRole(string(role)); err != nil {
		return nil, err
	}
	exists, err := storage.Exists(ctx, s.engine, keyspace.UserKey(username))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: user %s", ErrAlreadyExists, username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &entity.User{
		Username:         username,
		Password:         string(hash),
		Role:             role,
		LastAssignedJobs: map[string]string{},
	}
	if user.Role == "" {
		user.Role = entity.RoleUser
	}
	if err := storage.PutRecord(ctx, s.engine, keyspace.UserKey(username), user); err != nil {
		return nil, fmt.Errorf("write user: %w", err)
	}
	s.opts.logger.Info("user created", "user", username, "role", user.Role)
	return user, nil
}

// Register is Create on behalf of an admin caller.
func (s *UserService) Register(ctx context.Context, caller, username, password string, role entity.UserRole) (*entity.User, error) {
	if err := requireAdmin(ctx, s, caller); err != nil {
		return nil, err
	}
	return s.Create(ctx, username, password, role)
}

func (s *UserService) Get(ctx context.Context, username string) (*entity.User, error) {
	if err := validateIDs(username); err != nil {
		return nil, err
	}
	return loadUser(ctx, s.engine, username)
}

// IsAdmin reports false for unknown users.
func (s *UserService) IsAdmin(ctx context.Context, username string) (bool, error) {
	if keyspace.Validate(username) != nil {
		return false, nil
	}
	user, err := loadUser(ctx, s.engine, username)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.IsAdmin(), nil
}

// Authenticate checks a password against the stored hash.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*entity.User, error) {
	user, err := s.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, ErrForbidden
	}
	return user, nil
}
