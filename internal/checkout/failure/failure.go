// Package failure classifies failed order submissions into the kinds the
// checkout UI reacts to.
package failure

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"

	"github.com/angelmondragon/storefront-checkout/internal/storefront"
)

type Kind string

const (
	KindValidation Kind = "validation_error"
	KindAuth       Kind = "auth_error"
	KindNetwork    Kind = "network_error"
	KindTimeout    Kind = "timeout_error"
	KindServer     Kind = "server_error"
	KindUnknown    Kind = "unknown_error"
)

const (
	msgNetwork       = "Network connection failed. Please check your internet connection."
	msgTimeout       = "Request timed out. Please check your internet connection and try again."
	msgAuth          = "Authentication failed. Please sign in again."
	msgBadRequest    = "Invalid order information. Please check your details."
	msgUnprocessable = "Validation error. Please check all required fields."
	msgServer        = "Server error occurred. Please try again later."
	msgUnknown       = "Order failed. Please try again."
)

// Error is a classified submission failure.
type Error struct {
	Kind      Kind   `json:"kind"`
	Retryable bool   `json:"retryable"`
	Message   string `json:"message"`
	// Status is the backend HTTP status, zero for transport failures.
	Status int    `json:"status,omitempty"`
	Detail string `json:"detail,omitempty"`
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.cause.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Validation builds a local, non-retryable validation failure.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Auth builds an auth failure detected without a backend round trip.
func Auth(cause error) *Error {
	return &Error{Kind: KindAuth, Message: msgAuth, Status: http.StatusUnauthorized, cause: cause}
}

// Classify maps err to a Kind. A nil err yields nil.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	var statusErr *storefront.StatusError
	if errors.As(err, &statusErr) {
		return fromStatus(statusErr, err)
	}

	if isTimeout(err) {
		return &Error{Kind: KindTimeout, Retryable: true, Message: msgTimeout, cause: err}
	}
	if isNetwork(err) {
		return &Error{Kind: KindNetwork, Retryable: true, Message: msgNetwork, cause: err}
	}
	return &Error{Kind: KindUnknown, Message: msgUnknown, cause: err}
}

func fromStatus(se *storefront.StatusError, cause error) *Error {
	out := &Error{Status: se.StatusCode, Detail: se.Detail, cause: cause}
	switch {
	case se.StatusCode == http.StatusUnauthorized:
		out.Kind = KindAuth
		out.Message = msgAuth
	case se.StatusCode == http.StatusBadRequest || se.StatusCode == http.StatusUnprocessableEntity:
		out.Kind = KindValidation
		switch {
		case se.Detail != "":
			out.Message = se.Detail
		case se.StatusCode == http.StatusBadRequest:
			out.Message = msgBadRequest
		default:
			out.Message = msgUnprocessable
		}
	case se.StatusCode >= http.StatusInternalServerError:
		out.Kind = KindServer
		out.Retryable = true
		out.Message = msgServer
	default:
		out.Kind = KindUnknown
		out.Message = msgUnknown
	}
	return out
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isNetwork(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var (
		opErr  *net.OpError
		dnsErr *net.DNSError
		urlErr *url.Error
	)
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr), errors.As(err, &urlErr):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.ENETUNREACH):
		return true
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return true
	}
	return false
}
