package models

import (
	"errors"
	"fmt"
)

// 领域错误，由 response 包统一翻译为HTTP响应
var (
	// ErrNotFound 资源不存在或不属于当前用户
	ErrNotFound       = errors.New("not found")
	ErrDeviceNotFound = fmt.Errorf("device %w", ErrNotFound)
	ErrUserNotFound   = fmt.Errorf("user %w", ErrNotFound)

	ErrDuplicateEmail     = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrUnauthenticated    = errors.New("please authenticate")
	ErrNoUpdateFields     = errors.New("at least one updatable field is required")
)
