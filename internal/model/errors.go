package model

import (
	"errors"
	"fmt"
)

// 失敗分類のセンチネルエラー。errors.Isで判定する。
var (
	// ErrNetwork はレスポンスを受信できなかった通信失敗。
	ErrNetwork = errors.New("network error")
	// ErrUnauthorized は認証失敗（401）。
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidResponse はレスポンスがJSONとして解釈できない、または必要な値を含まない。
	ErrInvalidResponse = errors.New("invalid response")
	// ErrValidation は送信前の入力検証エラー。
	ErrValidation = errors.New("validation error")
	// ErrBusy は同じビューで別の読み込みが進行中。
	ErrBusy = errors.New("another load is in progress")
	// ErrNotLoggedIn はセッションが存在しない。
	ErrNotLoggedIn = errors.New("not logged in")
)

// DefaultFailureMessage はサーバーがメッセージを返さなかった場合の既定文言。
const DefaultFailureMessage = "request failed"

// RequestError はリモートAPI呼び出しの失敗を表す。
// Statusが0の場合はレスポンスを受信できなかったことを示す。
type RequestError struct {
	Endpoint string
	Method   string
	Status   int
	Message  string
	Err      error
}

// Error はerrorインターフェースを実装する。
func (e *RequestError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %s", e.Method, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Endpoint, e.Status, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsUnauthorized はエラーが認証失敗に起因する場合にtrueを返す。
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(field, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrValidation, field, reason)
}

// APIError はユーザー向けに表示するエラー情報。
// 原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, network, server
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNetwork         = "NETWORK_ERROR"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeNotLoggedIn     = "NOT_LOGGED_IN"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeInvalidResponse = "INVALID_RESPONSE"
	ErrCodeRequestFailed   = "REQUEST_FAILED"
	ErrCodeBusy            = "BUSY"
)

// Describe はエラーをユーザー向けのAPIErrorに変換する。
// 既知の分類に該当しない場合は汎用の失敗として扱う。
func Describe(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, ErrNotLoggedIn):
		return &APIError{
			Code:     ErrCodeNotLoggedIn,
			Message:  "You are not logged in.",
			Category: "auth",
			Action:   "Run `shequ login <email> <password>` first.",
		}
	case errors.Is(err, ErrUnauthorized):
		msg := "Your session has expired and was cleared."
		if m := serverMessage(err); m != "" {
			msg = m
		}
		return &APIError{
			Code:     ErrCodeUnauthorized,
			Message:  msg,
			Category: "auth",
			Action:   "Log in again.",
		}
	case errors.Is(err, ErrValidation):
		return &APIError{
			Code:     ErrCodeValidation,
			Message:  err.Error(),
			Category: "validation",
			Action:   "Check the command arguments.",
		}
	case errors.Is(err, ErrNetwork):
		return &APIError{
			Code:     ErrCodeNetwork,
			Message:  "Could not reach the community server.",
			Category: "network",
			Action:   "Check your connection and SHEQU_SERVER_ORIGIN, then try again.",
		}
	case errors.Is(err, ErrInvalidResponse):
		return &APIError{
			Code:     ErrCodeInvalidResponse,
			Message:  "The server returned an unexpected response.",
			Category: "server",
			Action:   "Try again later.",
		}
	case errors.Is(err, ErrBusy):
		return &APIError{
			Code:     ErrCodeBusy,
			Message:  err.Error(),
			Category: "validation",
			Action:   "Wait for the current load to finish.",
		}
	}

	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return &APIError{
			Code:     ErrCodeRequestFailed,
			Message:  reqErr.Message,
			Category: "server",
			Action:   "Try again later.",
		}
	}

	return &APIError{
		Code:     ErrCodeRequestFailed,
		Message:  err.Error(),
		Category: "system",
		Action:   "Try again later.",
	}
}

// serverMessage はRequestErrorにサーバー由来のメッセージがあれば返す。
func serverMessage(err error) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr.Message != DefaultFailureMessage {
		return reqErr.Message
	}
	return ""
}
