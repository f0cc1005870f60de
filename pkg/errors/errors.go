package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error 带错误码的结构化错误
type Error struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	HTTPStatus int               `json:"-"`
	GRPCCode   codes.Code        `json:"-"`
	Cause      error             `json:"-"`
	Details    map[string]string `json:"details,omitempty"`
	Stack      string            `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 按错误码匹配, 供 errors.Is 使用
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetails 添加详情
func (e *Error) WithDetails(details map[string]string) *Error {
	newErr := e.Copy()
	if newErr.Details == nil {
		newErr.Details = make(map[string]string, len(details))
	}
	for k, v := range details {
		newErr.Details[k] = v
	}
	return newErr
}

// WithDetail 添加单个详情
func (e *Error) WithDetail(key, value string) *Error {
	return e.WithDetails(map[string]string{key: value})
}

// Detail 读取详情, 不存在时返回空串
func (e *Error) Detail(key string) string {
	if e.Details == nil {
		return ""
	}
	return e.Details[key]
}

// WithMessage 替换错误消息
func (e *Error) WithMessage(message string) *Error {
	newErr := e.Copy()
	newErr.Message = message
	return newErr
}

// WithMessagef 格式化替换错误消息
func (e *Error) WithMessagef(format string, args ...interface{}) *Error {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// Copy 复制错误
func (e *Error) Copy() *Error {
	newErr := &Error{
		Code:       e.Code,
		Message:    e.Message,
		HTTPStatus: e.HTTPStatus,
		GRPCCode:   e.GRPCCode,
		Cause:      e.Cause,
		Stack:      e.Stack,
	}
	if e.Details != nil {
		newErr.Details = make(map[string]string, len(e.Details))
		for k, v := range e.Details {
			newErr.Details[k] = v
		}
	}
	return newErr
}

// JSON 返回 JSON 格式
func (e *Error) JSON() string {
	data, _ := json.Marshal(e)
	return string(data)
}

// MarshalJSON 实现 json.Marshaler
func (e *Error) MarshalJSON() ([]byte, error) {
	type Alias Error
	return json.Marshal(&struct {
		*Alias
		Error string `json:"error,omitempty"`
	}{
		Alias: (*Alias)(e),
		Error: e.Error(),
	})
}

// New 创建新错误
func New(code, message string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		GRPCCode:   codes.Internal,
	}
}

// NewWithStatus 创建带状态码的错误
func NewWithStatus(code, message string, httpStatus int, grpcCode codes.Code) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		GRPCCode:   grpcCode,
	}
}

// Wrap 包装错误
func Wrap(err *Error, cause error) *Error {
	newErr := err.Copy()
	newErr.Cause = cause
	newErr.Stack = getStack()
	return newErr
}

// WrapWithCause 包装错误并添加原因和信息
func WrapWithCause(err *Error, cause error, format string, args ...interface{}) *Error {
	newErr := err.Copy()
	newErr.Message = fmt.Sprintf("%s: %s", err.Message, fmt.Sprintf(format, args...))
	newErr.Cause = cause
	newErr.Stack = getStack()
	return newErr
}

// getStack 获取调用栈
func getStack() string {
	var pcs [32]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var builder strings.Builder
	for {
		frame, more := frames.Next()
		builder.WriteString(fmt.Sprintf("%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line))
		if !more {
			break
		}
	}
	return builder.String()
}

// FromError 从标准错误转换
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var codedErr *Error
	if errors.As(err, &codedErr) {
		return codedErr
	}

	return Wrap(ErrInternal, err)
}

// 通用错误码
var (
	ErrInternal       = NewWithStatus("INTERNAL_ERROR", "internal error", http.StatusInternalServerError, codes.Internal)
	ErrInvalidRequest = NewWithStatus("INVALID_REQUEST", "invalid request", http.StatusBadRequest, codes.InvalidArgument)
)

// 类型声明错误 (构造期, 不可恢复)
var (
	ErrInvalidTypeName     = NewWithStatus("INVALID_TYPE_NAME", "invalid type name", http.StatusBadRequest, codes.InvalidArgument)
	ErrDuplicateField      = NewWithStatus("DUPLICATE_FIELD", "duplicate field name", http.StatusBadRequest, codes.InvalidArgument)
	ErrCircularReference   = NewWithStatus("CIRCULAR_TYPE_REFERENCE", "circular type reference", http.StatusBadRequest, codes.InvalidArgument)
	ErrMissingPrimaryType  = NewWithStatus("MISSING_PRIMARY_TYPE", "missing primary type", http.StatusBadRequest, codes.InvalidArgument)
	ErrAmbiguousPrimary    = NewWithStatus("AMBIGUOUS_PRIMARY_TYPE", "ambiguous primary type", http.StatusBadRequest, codes.InvalidArgument)
	ErrUnknownType         = NewWithStatus("UNKNOWN_TYPE", "unknown type", http.StatusBadRequest, codes.InvalidArgument)
	ErrInvalidNumericWidth = NewWithStatus("INVALID_NUMERIC_WIDTH", "invalid numeric width", http.StatusBadRequest, codes.InvalidArgument)
	ErrInvalidBytesWidth   = NewWithStatus("INVALID_BYTES_WIDTH", "invalid bytes width", http.StatusBadRequest, codes.InvalidArgument)
)

// 数值错误 (单次调用, 调用方可修正)
var (
	ErrValueOutOfBounds    = NewWithStatus("VALUE_OUT_OF_BOUNDS", "value out-of-bounds", http.StatusBadRequest, codes.OutOfRange)
	ErrInvalidBytesLength  = NewWithStatus("INVALID_BYTES_LENGTH", "invalid length for bytes", http.StatusBadRequest, codes.InvalidArgument)
	ErrArrayLengthMismatch = NewWithStatus("ARRAY_LENGTH_MISMATCH", "array length mismatch", http.StatusBadRequest, codes.InvalidArgument)
	ErrInvalidValue        = NewWithStatus("INVALID_VALUE", "invalid value", http.StatusBadRequest, codes.InvalidArgument)
	ErrMissingField        = NewWithStatus("MISSING_FIELD", "missing field", http.StatusBadRequest, codes.InvalidArgument)
	ErrUnexpectedField     = NewWithStatus("UNEXPECTED_FIELD", "unexpected field", http.StatusBadRequest, codes.InvalidArgument)
)

// 域错误
var (
	ErrInvalidDomainKey = NewWithStatus("INVALID_DOMAIN_KEY", "invalid typed-data domain key", http.StatusBadRequest, codes.InvalidArgument)
	ErrInvalidAddress   = NewWithStatus("INVALID_ADDRESS", "invalid address", http.StatusBadRequest, codes.InvalidArgument)
	ErrInvalidSalt      = NewWithStatus("INVALID_SALT", "invalid salt", http.StatusBadRequest, codes.InvalidArgument)
)

// 载荷 / 解析 / 签名错误
var (
	ErrPrimaryTypeMismatch = NewWithStatus("PRIMARY_TYPE_MISMATCH", "primary type mismatch", http.StatusBadRequest, codes.InvalidArgument)
	ErrDomainTypeMismatch  = NewWithStatus("DOMAIN_TYPE_MISMATCH", "EIP712Domain declaration does not match domain", http.StatusBadRequest, codes.InvalidArgument)
	ErrNameResolution      = NewWithStatus("NAME_RESOLUTION_FAILED", "name resolution failed", http.StatusBadGateway, codes.Unavailable)
	ErrInvalidSignature    = NewWithStatus("INVALID_SIGNATURE", "invalid signature", http.StatusBadRequest, codes.InvalidArgument)
	ErrSignatureMismatch   = NewWithStatus("SIGNATURE_MISMATCH", "signature does not match signer", http.StatusUnauthorized, codes.Unauthenticated)
	ErrSignatureExpired    = NewWithStatus("SIGNATURE_EXPIRED", "signature has expired", http.StatusBadRequest, codes.InvalidArgument)
	ErrNameNotFound        = NewWithStatus("NAME_NOT_FOUND", "name not found", http.StatusNotFound, codes.NotFound)
)

// ToGRPCError 转换为 gRPC 错误
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}

	var codedErr *Error
	if errors.As(err, &codedErr) {
		return status.Error(codedErr.GRPCCode, codedErr.Error())
	}

	return status.Error(codes.Internal, err.Error())
}

// ToHTTPStatus 获取 HTTP 状态码
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var codedErr *Error
	if errors.As(err, &codedErr) && codedErr.HTTPStatus != 0 {
		return codedErr.HTTPStatus
	}

	return http.StatusInternalServerError
}

// Is 判断错误类型
func Is(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	return errors.Is(err, target)
}

// As 提取错误类型
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// GetCode 获取错误码
func GetCode(err error) string {
	if err == nil {
		return ""
	}
	var codedErr *Error
	if errors.As(err, &codedErr) {
		return codedErr.Code
	}
	return "UNKNOWN"
}

// GetDetail 获取错误详情字段
func GetDetail(err error, key string) string {
	var codedErr *Error
	if errors.As(err, &codedErr) {
		return codedErr.Detail(key)
	}
	return ""
}

// IsSchemaError 判断是否为类型声明错误
func IsSchemaError(err error) bool {
	for _, target := range schemaErrors {
		if Is(err, target) {
			return true
		}
	}
	return false
}

var schemaErrors = []*Error{
	ErrInvalidTypeName, ErrDuplicateField, ErrCircularReference, ErrMissingPrimaryType,
	ErrAmbiguousPrimary, ErrUnknownType, ErrInvalidNumericWidth, ErrInvalidBytesWidth,
}

// IsInvalidArgument 判断是否为参数错误
func IsInvalidArgument(err error) bool {
	var codedErr *Error
	if !errors.As(err, &codedErr) {
		return false
	}
	return codedErr.GRPCCode == codes.InvalidArgument || codedErr.GRPCCode == codes.OutOfRange
}
