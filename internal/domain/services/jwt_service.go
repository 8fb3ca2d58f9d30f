package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"iot-device-service/internal/infrastructure/config"
)

// 令牌类型，写入 typ 声明，防止 refresh 令牌被当作 access 使用
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var errWrongTokenType = errors.New("wrong token type")

// InterfaceJWTService 定义JWT服务接口
type InterfaceJWTService interface {
	GenerateTokenPair(userID uuid.UUID) (*TokenPair, error)
	ParseAccessToken(tokenString string) (uuid.UUID, error)
	ParseRefreshToken(tokenString string) (uuid.UUID, error)
}

// TokenInfo 单个令牌及其过期时间
type TokenInfo struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// TokenPair 登录与注册返回的令牌对，不落库
type TokenPair struct {
	Access  TokenInfo `json:"access"`
	Refresh TokenInfo `json:"refresh"`
}

// JWTClaims 定义JWT令牌的声明结构，sub 为用户ID
type JWTClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// JWTService 提供JWT相关服务
type JWTService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

// NewJWTService 创建一个新的JWT服务
func NewJWTService(cfg *config.Config) *JWTService {
	return &JWTService{
		accessSecret:  []byte(cfg.JWT.AccessSecret),
		refreshSecret: []byte(cfg.JWT.RefreshSecret),
		accessTTL:     cfg.JWT.AccessTTL.Duration(),
		refreshTTL:    cfg.JWT.RefreshTTL.Duration(),
		issuer:        cfg.JWT.Issuer,
		now:           time.Now,
	}
}

// GenerateTokenPair 生成 access 与 refresh 令牌
func (s *JWTService) GenerateTokenPair(userID uuid.UUID) (*TokenPair, error) {
	access, err := s.sign(userID, TokenTypeAccess, s.accessSecret, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(userID, TokenTypeRefresh, s.refreshSecret, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

func (s *JWTService) sign(userID uuid.UUID, typ string, secret []byte, ttl time.Duration) (TokenInfo, error) {
	now := s.now()
	expires := now.Add(ttl)

	claims := &JWTClaims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return TokenInfo{}, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return TokenInfo{Token: token, Expires: expires}, nil
}

// ParseAccessToken 校验 access 令牌并返回用户ID
func (s *JWTService) ParseAccessToken(tokenString string) (uuid.UUID, error) {
	return s.parse(tokenString, TokenTypeAccess, s.accessSecret)
}

// ParseRefreshToken 校验 refresh 令牌并返回用户ID
func (s *JWTService) ParseRefreshToken(tokenString string) (uuid.UUID, error) {
	return s.parse(tokenString, TokenTypeRefresh, s.refreshSecret)
}

func (s *JWTService) parse(tokenString, typ string, secret []byte) (uuid.UUID, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	claims := &JWTClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	if !token.Valid {
		return uuid.Nil, errors.New("invalid token")
	}
	if claims.Type != typ {
		return uuid.Nil, errWrongTokenType
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid subject: %w", err)
	}
	return userID, nil
}
