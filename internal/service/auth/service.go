// Package auth 签发和校验管理员 JWT
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ashwinyue/convlog/internal/config"
)

var (
	// ErrInvalidToken 令牌无效或已过期
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingSecret 未配置 JWT 密钥
	ErrMissingSecret = errors.New("jwt secret is not configured")
)

// Claims 令牌中的身份信息
type Claims struct {
	Subject string
	Role    string
}

// Service 令牌服务
type Service struct {
	secret    []byte
	adminRole string
	ttl       time.Duration
}

// NewService 创建令牌服务
func NewService(cfg *config.AuthConfig) *Service {
	s := &Service{
		secret:    []byte(cfg.JWTSecret),
		adminRole: cfg.AdminRole,
		ttl:       time.Duration(cfg.TokenTTL) * time.Hour,
	}
	if s.adminRole == "" {
		s.adminRole = "admin"
	}
	if s.ttl <= 0 {
		s.ttl = 24 * time.Hour
	}
	return s
}

// AdminRole 管理员角色名
func (s *Service) AdminRole() string {
	return s.adminRole
}

// GenerateToken 生成访问令牌，ttl 为 0 时使用配置的有效期
func (s *Service) GenerateToken(subject, role string, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = s.ttl
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  now.Add(ttl).Unix(),
		"iat":  now.Unix(),
		"type": "access",
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// ValidateToken 验证令牌
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	if len(s.secret) == 0 {
		return nil, ErrMissingSecret
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if tokenType, _ := claims["type"].(string); tokenType != "access" {
		return nil, ErrInvalidToken
	}

	subject, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	return &Claims{Subject: subject, Role: role}, nil
}

// IsAdmin 是否为管理员
func (s *Service) IsAdmin(c *Claims) bool {
	return c != nil && c.Role == s.adminRole
}
