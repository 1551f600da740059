package domain

import "errors"

// ErrorKind 业务错误分类，传输层据此选择状态码
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindAuth
	KindDirectory
	KindNotFound
)

// Error 对外可见的业务错误，Msg 直接作为响应正文
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

var (
	// 参数校验
	ErrInvalidLimit   = newError(KindValidation, "Invalid limit")
	ErrInvalidOffset  = newError(KindValidation, "Invalid offset")
	ErrInvalidAddress = newError(KindValidation, "Invalid address")
	ErrInvalidName    = newError(KindValidation, "Invalid address name")
	ErrMissingFields  = newError(KindValidation, "Invalid subject or message")
	ErrTooLong        = newError(KindValidation, "Subject or message too long")

	// 令牌
	ErrTokenMissing = newError(KindAuth, "No token")
	ErrTokenInvalid = newError(KindAuth, "Invalid token")
	ErrTokenExpired = newError(KindAuth, "Token expired")

	// 地址目录
	ErrStaleAddress = newError(KindDirectory, "Invalid address")
	ErrNameTaken    = newError(KindDirectory, "Please retry a new address")

	// 资源不存在
	ErrAddressNotFound    = newError(KindNotFound, "Address not found")
	ErrAttachmentNotFound = newError(KindNotFound, "Not found")
)

// KindOf 返回错误的分类，非业务错误返回 0
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
