package gateway

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Credentials are the per-store gateway secrets, loaded from the store
// record, never from env or code.
type Credentials struct {
	ClientId     string
	ClientSecret string
	BaseUrl      string
	NotifyUrl    string
}

// Customer identifies the paying user to the gateway. Phone must be E.164.
type Customer struct {
	Id    string
	Name  string
	Phone string
}

// Session is the handle the client needs to complete payment out-of-band.
type Session struct {
	SessionId      string
	GatewayOrderId string
}

// Client is the translation layer to the payment provider. Implementations
// do no persistence; callers own transaction scope and state mapping.
type Client interface {
	CreateSession(ctx context.Context, creds Credentials, orderNumber string, amount decimal.Decimal, customer Customer) (*Session, error)
	FetchStatus(ctx context.Context, creds Credentials, orderNumber string) (string, error)
}

// GatewayError wraps any provider-side failure: timeout, non-2xx response,
// or a response missing the session fields. Checkout treats all of them the
// same way, rolling the whole order back.
type GatewayError struct {
	Op     string
	Status int
	Reason string
}

func (e *GatewayError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("gateway %s failed with status %d: %s", e.Op, e.Status, e.Reason)
	}
	return fmt.Sprintf("gateway %s failed: %s", e.Op, e.Reason)
}
