package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ProxyErrorBadInput        = "PROXY_BAD_INPUT"
	ProxyErrorUnauthenticated = "PROXY_UNAUTHENTICATED"
	ProxyErrorNotFound        = "PROXY_NOT_FOUND"
	ProxyErrorGateway         = "PROXY_GATEWAY_ERROR"
	ProxyErrorConflict        = "PROXY_CONFLICT"
	ProxyErrorInternal        = "PROXY_INTERNAL_ERROR"
)

func proxyErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureProxyErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "signature"), strings.Contains(msg, "api key"),
		strings.Contains(msg, "timestamp has expired"):
		return newProxyError(err.Error(), goerrors.CategoryAuth, ProxyErrorUnauthenticated)
	case strings.Contains(msg, "not found"):
		return newProxyError(err.Error(), goerrors.CategoryNotFound, ProxyErrorNotFound)
	case strings.Contains(msg, "paypal"), strings.Contains(msg, "gateway"):
		return newProxyError(err.Error(), goerrors.CategoryExternal, ProxyErrorGateway)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"),
		strings.Contains(msg, "malformed"):
		return newProxyError(err.Error(), goerrors.CategoryBadInput, ProxyErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureProxyErrorEnvelope(mapped)
}

func newProxyError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureProxyErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureProxyErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = proxyHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultProxyTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultProxyTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ProxyErrorBadInput
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ProxyErrorUnauthenticated
	case goerrors.CategoryNotFound:
		return ProxyErrorNotFound
	case goerrors.CategoryExternal, goerrors.CategoryOperation:
		return ProxyErrorGateway
	case goerrors.CategoryConflict:
		return ProxyErrorConflict
	default:
		return ProxyErrorInternal
	}
}

func proxyHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal, goerrors.CategoryOperation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
