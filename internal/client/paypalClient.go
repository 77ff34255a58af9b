package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docview-paywall/internal/config"
	"docview-paywall/internal/model"

	"github.com/shopspring/decimal"
)

var (
	ErrMissingPaypalOrder  = errors.New("paypal payment requires an approved order id")
	ErrCurrencyUnsupported = errors.New("currency not accepted by paypal")
)

// paypalCurrencies are the currencies PayPal Checkout settles in, with the
// decimal places it accepts for each.
var paypalCurrencies = map[string]int32{
	"AUD": 2, "BRL": 2, "CAD": 2, "CHF": 2, "CNY": 2, "CZK": 2, "DKK": 2, "EUR": 2,
	"GBP": 2, "HKD": 2, "HUF": 0, "ILS": 2, "JPY": 0, "MXN": 2, "MYR": 2, "NOK": 2,
	"NZD": 2, "PHP": 2, "PLN": 2, "SEK": 2, "SGD": 2, "THB": 2, "TWD": 0, "USD": 2,
}

// PaypalPricing turns a package price into a PayPal order amount. Prices in a
// currency PayPal cannot take (VND) are converted into SettleCurrency at Rate.
type PaypalPricing struct {
	SettleCurrency string
	Rate           decimal.Decimal // settle units per major unit of the source currency
}

func NewPaypalPricing(paypalCfg *config.Paypal) (PaypalPricing, error) {
	p := PaypalPricing{SettleCurrency: strings.ToUpper(paypalCfg.SettleCurrency)}
	if paypalCfg.SettleRate == "" {
		return p, nil
	}

	rate, err := decimal.NewFromString(paypalCfg.SettleRate)
	if err != nil {
		return p, fmt.Errorf("parse paypal settle rate: %w", err)
	}
	if !rate.IsPositive() {
		return p, fmt.Errorf("paypal settle rate must be positive, got %s", rate)
	}
	p.Rate = rate
	return p, nil
}

func (p PaypalPricing) Convert(amount int64, currency string) (decimal.Decimal, string, error) {
	currency = strings.ToUpper(currency)
	major := MajorUnits(amount, currency)
	if places, ok := paypalCurrencies[currency]; ok {
		return major.Round(places), currency, nil
	}

	places, ok := paypalCurrencies[p.SettleCurrency]
	if !ok || !p.Rate.IsPositive() {
		return decimal.Zero, "", fmt.Errorf("%w: %s", ErrCurrencyUnsupported, currency)
	}

	converted := major.Mul(p.Rate).Round(places)
	if !converted.IsPositive() {
		return decimal.Zero, "", fmt.Errorf("%w: %s %s rounds to zero %s", ErrCurrencyUnsupported, major, currency, p.SettleCurrency)
	}
	return converted, p.SettleCurrency, nil
}

type PaypalClient interface {
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error)
	CaptureOrder(ctx context.Context, orderID string) (*model.PaypalOrder, error)
}

type paypalClientImpl struct {
	httpClient         *http.Client
	baseApiURL         string
	paypalClientID     string
	paypalClientSecret string
}

type CreateOrderRequest struct {
	ReferenceID string // document:package
	CustomID    string // paywall session id
	Amount      decimal.Decimal
	Currency    string
	ReturnURL   string
	CancelURL   string
}

type CreateOrderResponse struct {
	OrderID    string `json:"order_id"`
	ApproveURL string `json:"approve_url"`
}

func NewPaypalClient(paypalCfg *config.Paypal) PaypalClient {
	return newPaypalClient(paypalCfg, &http.Client{
		Timeout: 30 * time.Second,
	})
}

func newPaypalClient(paypalCfg *config.Paypal, httpClient *http.Client) *paypalClientImpl {
	return &paypalClientImpl{
		httpClient:         httpClient,
		baseApiURL:         strings.TrimRight(paypalCfg.BaseApiURL, "/"),
		paypalClientID:     paypalCfg.ClientID,
		paypalClientSecret: paypalCfg.ClientSecret,
	}
}

func (c *paypalClientImpl) getAccessToken(ctx context.Context) (string, error) {
	auth := base64.StdEncoding.EncodeToString(
		[]byte(c.paypalClientID + ":" + c.paypalClientSecret),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseApiURL+"/v1/oauth2/token",
		bytes.NewBufferString("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("paypal oauth error %d: %s", resp.StatusCode, string(b))
	}

	var res struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("decode oauth response: %w", err)
	}
	if res.AccessToken == "" {
		return "", errors.New("paypal oauth returned empty access token")
	}

	return res.AccessToken, nil
}

func (c *paypalClientImpl) CreateOrder(ctx context.Context, in *CreateOrderRequest) (*CreateOrderResponse, error) {
	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get paypal access token: %w", err)
	}

	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"reference_id": in.ReferenceID,
				"custom_id":    in.CustomID,
				"amount": map[string]string{
					"currency_code": strings.ToUpper(in.Currency),
					"value":         in.Amount.StringFixed(in.Amount.Exponent() * -1),
				},
			},
		},
		"application_context": map[string]string{
			"return_url":          in.ReturnURL,
			"cancel_url":          in.CancelURL, // visitor cancelled on paypal, back to the paywall
			"shipping_preference": "NO_SHIPPING",
		},
	}

	var order model.PaypalOrder
	if err := c.post(ctx, accessToken, c.baseApiURL+"/v2/checkout/orders", payload, &order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	return &CreateOrderResponse{
		OrderID:    order.ID,
		ApproveURL: _extractApproveURL(order.Links),
	}, nil
}

func (c *paypalClientImpl) CaptureOrder(ctx context.Context, orderID string) (*model.PaypalOrder, error) {
	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get paypal access token: %w", err)
	}

	url := fmt.Sprintf(
		"%s/v2/checkout/orders/%s/capture",
		c.baseApiURL,
		orderID,
	)

	var order model.PaypalOrder
	if err := c.post(ctx, accessToken, url, nil, &order); err != nil {
		return nil, fmt.Errorf("paypal capture: %w", err)
	}

	return &order, nil
}

func (c *paypalClientImpl) post(ctx context.Context, accessToken, url string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal req payload: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("paypal error %d: %s", resp.StatusCode, string(b))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode paypal response: %w", err)
	}
	return nil
}

func _extractApproveURL(links []model.PaypalLink) string {
	for _, link := range links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			return link.Href
		}
	}
	return ""
}

// PaypalGateway completes a purchase by capturing an order the visitor
// already approved on PayPal.
type PaypalGateway struct {
	client PaypalClient
}

func NewPaypalGateway(client PaypalClient) *PaypalGateway {
	return &PaypalGateway{client: client}
}

func (g *PaypalGateway) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResponse, error) {
	if strings.TrimSpace(req.Details.PaypalOrderID) == "" {
		return nil, ErrMissingPaypalOrder
	}

	order, err := g.client.CaptureOrder(ctx, req.Details.PaypalOrderID)
	if err != nil {
		return nil, err
	}

	want := PaypalReferenceID(req.DocumentID, req.PackageID)
	for _, pu := range order.PurchaseUnits {
		if pu.ReferenceID != "" && pu.ReferenceID != want {
			return nil, fmt.Errorf("paypal order %s was created for %s, not %s", order.ID, pu.ReferenceID, want)
		}
	}

	capture, ok := order.FirstCapture()
	if !ok {
		return nil, fmt.Errorf("paypal order %s has no capture (status %s)", order.ID, order.Status)
	}
	if capture.Status != "COMPLETED" && capture.Status != "PENDING" {
		return nil, fmt.Errorf("paypal capture %s status %s", capture.ID, capture.Status)
	}

	return &ChargeResponse{
		TransactionID: capture.ID,
		Provider:      "paypal",
	}, nil
}

func PaypalReferenceID(documentID, packageID string) string {
	return documentID + ":" + packageID
}
