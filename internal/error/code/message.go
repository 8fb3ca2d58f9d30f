package code

// 错误码消息映射
var codeMessageMap = map[int]string{
	// 通用错误码
	ErrSuccess:         "Success",
	ErrUnknown:         "Internal server error",
	ErrBind:            "Malformed request body",
	ErrValidation:      "Validation failed",
	ErrTokenInvalid:    "Please authenticate",
	ErrTooManyRequests: "Too many requests, please try again later",
	ErrNotFound:        "Not found",

	// 用户相关错误码
	ErrUserNotFound:          "User not found",
	ErrUserAlreadyExist:      "Email already taken",
	ErrUserPasswordIncorrect: "Incorrect email or password",

	// 设备相关错误码
	ErrDeviceNotFound:       "Device not found",
	ErrDeviceNoUpdateFields: "At least one of name, type or status must be provided",

	// 数据库相关错误码
	ErrDatabase:            "Database error",
	ErrDatabaseUnavailable: "Database unavailable",
}

// 错误码HTTP状态码映射
var codeStatusMap = map[int]int{
	// 通用错误码
	ErrSuccess:         StatusOK,
	ErrUnknown:         StatusInternalServerError,
	ErrBind:            StatusBadRequest,
	ErrValidation:      StatusBadRequest,
	ErrTokenInvalid:    StatusUnauthorized,
	ErrTooManyRequests: StatusTooManyRequests,
	ErrNotFound:        StatusNotFound,

	// 用户相关错误码
	ErrUserNotFound:          StatusNotFound,
	ErrUserAlreadyExist:      StatusBadRequest,
	ErrUserPasswordIncorrect: StatusUnauthorized,

	// 设备相关错误码
	ErrDeviceNotFound:       StatusNotFound,
	ErrDeviceNoUpdateFields: StatusBadRequest,

	// 数据库相关错误码
	ErrDatabase:            StatusInternalServerError,
	ErrDatabaseUnavailable: StatusServiceUnavailable,
}

// GetMessage 获取错误码对应的消息
func GetMessage(code int) string {
	if msg, ok := codeMessageMap[code]; ok {
		return msg
	}
	return codeMessageMap[ErrUnknown]
}

// GetStatus 获取错误码对应的HTTP状态码
func GetStatus(code int) int {
	if status, ok := codeStatusMap[code]; ok {
		return status
	}
	return StatusInternalServerError
}
