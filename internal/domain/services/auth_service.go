package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"iot-device-service/internal/domain/models"
	"iot-device-service/internal/domain/repository"
	"iot-device-service/pkg/logger"
	"iot-device-service/pkg/utils"
)

// InterfaceAuthService 注册、登录与令牌校验
type InterfaceAuthService interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

// RegisterInput 注册参数
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// AuthResult 用户与新签发的令牌对
type AuthResult struct {
	User   *models.User `json:"user"`
	Tokens *TokenPair   `json:"tokens"`
}

// AuthService 提供认证相关服务
type AuthService struct {
	users repository.UserRepository
	jwt   InterfaceJWTService
}

// NewAuthService 创建认证服务
func NewAuthService(users repository.UserRepository, jwtService InterfaceJWTService) *AuthService {
	return &AuthService{users: users, jwt: jwtService}
}

// Register 创建用户并签发令牌
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := models.NormalizeEmail(input.Email)

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, models.ErrDuplicateEmail
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	hash, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:     strings.TrimSpace(input.Name),
		Email:    email,
		Password: hash,
		Role:     models.RoleUser,
	}
	// 并发注册同一邮箱时由唯一索引兜底
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	logger.L().Info("user registered", zap.String("user_id", user.ID.String()))
	return s.issue(user)
}

// Login 邮箱不存在与密码错误返回同一个错误
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// 仍做一次哈希比较，使两种失败耗时相近
			utils.CheckPasswordHash(password, dummyHash())
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}

	if !utils.CheckPasswordHash(password, user.Password) {
		return nil, models.ErrInvalidCredentials
	}
	return s.issue(user)
}

// Refresh 用 refresh 令牌换取新的令牌对
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	userID, err := s.jwt.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, models.ErrUnauthenticated
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthenticated
		}
		return nil, err
	}
	return s.issue(user)
}

// Authenticate 校验 access 令牌并加载用户
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	userID, err := s.jwt.ParseAccessToken(accessToken)
	if err != nil {
		return nil, models.ErrUnauthenticated
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthenticated
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	tokens, err := s.jwt.GenerateTokenPair(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Tokens: tokens}, nil
}

var (
	dummyHashOnce  sync.Once
	dummyHashValue string
)

func dummyHash() string {
	dummyHashOnce.Do(func() {
		dummyHashValue, _ = utils.HashPassword("timing-equalizer")
	})
	return dummyHashValue
}
