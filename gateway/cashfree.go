package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const cashfreeApiVersion = "2022-09-01"

type cashfreeClient struct {
	http *http.Client
}

// NewCashfreeClient returns a Client speaking the Cashfree orders API. The
// timeout bounds how long a checkout transaction can be held open by the
// gateway round-trip.
func NewCashfreeClient(timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &cashfreeClient{
		http: &http.Client{Timeout: timeout},
	}
}

type cashfreeOrderRequest struct {
	OrderCurrency   string                  `json:"order_currency"`
	OrderAmount     float64                 `json:"order_amount"`
	OrderId         string                  `json:"order_id"`
	CustomerDetails cashfreeCustomerDetails `json:"customer_details"`
	OrderMeta       map[string]interface{}  `json:"order_meta"`
}

type cashfreeCustomerDetails struct {
	CustomerId    string `json:"customer_id"`
	CustomerPhone string `json:"customer_phone"`
	CustomerName  string `json:"customer_name"`
}

type cashfreeOrderResponse struct {
	CfOrderId        json.Number `json:"cf_order_id"`
	PaymentSessionId string      `json:"payment_session_id"`
	OrderStatus      string      `json:"order_status"`
	Message          string      `json:"message"`
}

func (c *cashfreeClient) CreateSession(ctx context.Context, creds Credentials, orderNumber string,
	amount decimal.Decimal, customer Customer) (*Session, error) {

	payload := cashfreeOrderRequest{
		OrderCurrency: "INR",
		OrderAmount:   amount.InexactFloat64(),
		OrderId:       orderNumber,
		CustomerDetails: cashfreeCustomerDetails{
			CustomerId:    customer.Id,
			CustomerPhone: customer.Phone,
			CustomerName:  customer.Name,
		},
		OrderMeta: map[string]interface{}{
			"notify_url": creds.NotifyUrl,
		},
	}

	var parsed cashfreeOrderResponse
	if err := c.do(ctx, creds, http.MethodPost, "/orders", &payload, &parsed, "create session"); err != nil {
		return nil, err
	}
	if parsed.PaymentSessionId == "" || parsed.CfOrderId.String() == "" {
		return nil, &GatewayError{Op: "create session", Reason: "response missing session or order id"}
	}
	return &Session{
		SessionId:      parsed.PaymentSessionId,
		GatewayOrderId: parsed.CfOrderId.String(),
	}, nil
}

func (c *cashfreeClient) FetchStatus(ctx context.Context, creds Credentials, orderNumber string) (string, error) {
	var parsed cashfreeOrderResponse
	if err := c.do(ctx, creds, http.MethodGet, "/orders/"+orderNumber, nil, &parsed, "fetch status"); err != nil {
		return "", err
	}
	if parsed.OrderStatus == "" {
		return "", &GatewayError{Op: "fetch status", Reason: "response missing order status"}
	}
	return parsed.OrderStatus, nil
}

func (c *cashfreeClient) do(ctx context.Context, creds Credentials, method string, path string,
	payload interface{}, out interface{}, op string) error {

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	endpoint := strings.TrimRight(creds.BaseUrl, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-version", cashfreeApiVersion)
	req.Header.Set("x-client-id", creds.ClientId)
	req.Header.Set("x-client-secret", creds.ClientSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return &GatewayError{Op: op, Reason: err.Error()}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &GatewayError{Op: op, Status: resp.StatusCode, Reason: strings.TrimSpace(string(raw))}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &GatewayError{Op: op, Reason: fmt.Sprintf("malformed response: %v", err)}
	}
	return nil
}
