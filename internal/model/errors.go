package model

import (
	"errors"
	"fmt"
)

// 同步引擎的错误分类（调用方统一用 errors.Is 判断）
var (
	ErrAuthentication       = errors.New("sync: authentication failed")
	ErrUnsupportedOperation = errors.New("sync: unsupported operation")
	ErrRateLimited          = errors.New("sync: rate limited")
	ErrTransientNetwork     = errors.New("sync: transient network error")
	ErrValidation           = errors.New("sync: validation failed")
	ErrNotFound             = errors.New("sync: not found")
	ErrAlreadyRegistered    = errors.New("sync: platform already registered")
	ErrRegistryFrozen       = errors.New("sync: registry is frozen")
	ErrAlreadyInProgress    = errors.New("sync: already in progress")
	ErrInvalidTransition    = errors.New("sync: invalid status transition")
)

// 错误原因码，写入 PlatformResponse.Error 与 SyncMapping.LastError
const (
	ReasonUnsupportedOperation = "unsupported_operation"
	ReasonRateLimited          = "rate_limited"
	ReasonNetworkError         = "network_error"
	ReasonAuthentication       = "authentication_failed"
	ReasonValidation           = "validation_error"
	ReasonNotFound             = "not_found"
	ReasonUnexpected           = "unexpected_error"
	ReasonCancelled            = "cancelled"
	ReasonAlreadyInProgress    = "already_in_progress"
	ReasonAlreadySynced        = "already_synced"
	ReasonAwaitingVerification = "awaiting_verification"
	ReasonNotDiscovered        = "not_discovered"
)

// ValidationError 规范记录缺失字段或字段非法
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Message)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError 按 Kind+Key 查询不到
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ReasonError 把原因码转换为对应的哨兵错误，便于上层 errors.Is
func ReasonError(reason string) error {
	switch reason {
	case ReasonUnsupportedOperation:
		return ErrUnsupportedOperation
	case ReasonRateLimited:
		return ErrRateLimited
	case ReasonNetworkError:
		return ErrTransientNetwork
	case ReasonAuthentication:
		return ErrAuthentication
	case ReasonValidation:
		return ErrValidation
	case ReasonNotFound:
		return ErrNotFound
	case ReasonAlreadyInProgress:
		return ErrAlreadyInProgress
	case "":
		return nil
	default:
		return fmt.Errorf("sync: %s", reason)
	}
}
