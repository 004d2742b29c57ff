package failure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/angelmondragon/storefront-checkout/internal/storefront"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyStatusCodes(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		kind      Kind
		retryable bool
		message   string
	}{
		{"401", &storefront.StatusError{StatusCode: 401, Detail: "Could not validate credentials"}, KindAuth, false, msgAuth},
		{"400 with detail", &storefront.StatusError{StatusCode: 400, Detail: "Insufficient stock"}, KindValidation, false, "Insufficient stock"},
		{"422 with detail", &storefront.StatusError{StatusCode: 422, Detail: "field required"}, KindValidation, false, "field required"},
		{"400 bare", &storefront.StatusError{StatusCode: 400}, KindValidation, false, msgBadRequest},
		{"422 bare", &storefront.StatusError{StatusCode: 422}, KindValidation, false, msgUnprocessable},
		{"500", &storefront.StatusError{StatusCode: 500}, KindServer, true, msgServer},
		{"503", &storefront.StatusError{StatusCode: 503, Detail: "maintenance"}, KindServer, true, msgServer},
		{"404", &storefront.StatusError{StatusCode: 404, Detail: "Store not found"}, KindUnknown, false, msgUnknown},
		{"403", &storefront.StatusError{StatusCode: 403}, KindUnknown, false, msgUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			assert.Equal(t, tc.kind, got.Kind)
			assert.Equal(t, tc.retryable, got.Retryable)
			assert.Equal(t, tc.message, got.Message)
		})
	}
}

func TestClassifyTransportFailures(t *testing.T) {
	wrapped := func(err error) error {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "POST /store/acme/orders")
	}
	cases := []struct {
		name string
		err  error
		kind Kind
	}{
		{"deadline", wrapped(&url.Error{Op: "Post", URL: "http://x", Err: context.DeadlineExceeded}), KindTimeout},
		{"net timeout", wrapped(timeoutErr{}), KindTimeout},
		{"refused", wrapped(&net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}), KindNetwork},
		{"dns", wrapped(&net.DNSError{Err: "no such host", Name: "backend"}), KindNetwork},
		{"reset", wrapped(fmt.Errorf("read: %w", syscall.ECONNRESET)), KindNetwork},
		{"eof", wrapped(io.ErrUnexpectedEOF), KindNetwork},
		{"canceled", wrapped(&url.Error{Op: "Post", URL: "http://x", Err: context.Canceled}), KindUnknown},
		{"other", errors.New("boom"), KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			assert.Equal(t, tc.kind, got.Kind)
			assert.Equal(t, tc.kind == KindTimeout || tc.kind == KindNetwork, got.Retryable)
			assert.ErrorIs(t, got, tc.err)
		})
	}
}

func TestClassifyPassesThroughClassifiedErrors(t *testing.T) {
	local := Validation("Cart is empty")
	assert.Same(t, local, Classify(fmt.Errorf("submit: %w", local)))
	assert.Nil(t, Classify(nil))

	auth := Auth(errors.New("token expired"))
	assert.Equal(t, KindAuth, auth.Kind)
	assert.False(t, auth.Retryable)
}
