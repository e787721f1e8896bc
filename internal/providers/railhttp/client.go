// Package railhttp contains the concrete HTTP clients for the card rails.
// Requests ride fasthttp with a hard per-call deadline; an elapsed deadline
// surfaces providers.ErrProviderUnavailable so callers leave the owning
// transaction pending instead of guessing an outcome.
package railhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/paygrid-payments-engine/internal/config"
	"github.com/paygrid-payments-engine/internal/providers"
)

// Client is a generic card-rail HTTP client. Both supported card rails
// speak JSON over the same envelope shape, so one implementation covers
// them with per-rail paths.
type Client struct {
	name      string
	baseURL   string
	secretKey string
	timeout   time.Duration
	http      *fasthttp.Client
	logger    *slog.Logger

	paths railPaths
}

type railPaths struct {
	charge    string
	authorize string
	verify    string // verify endpoint, reference appended
	binCheck  string // bin lookup endpoint, bin appended
}

// NewPaystackClient builds the client for the Paystack card rail
func NewPaystackClient(logger *slog.Logger, cfg config.RailConfig, timeout time.Duration) *Client {
	return &Client{
		name:      "paystack",
		baseURL:   cfg.BaseURL,
		secretKey: cfg.SecretKey,
		timeout:   timeout,
		http:      &fasthttp.Client{},
		logger:    logger,
		paths: railPaths{
			charge:    "/charge",
			authorize: "/charge/submit_%s",
			verify:    "/transaction/verify/",
			binCheck:  "/decision/bin/",
		},
	}
}

// NewFlutterwaveClient builds the client for the Flutterwave card rail
func NewFlutterwaveClient(logger *slog.Logger, cfg config.RailConfig, timeout time.Duration) *Client {
	return &Client{
		name:      "flutterwave",
		baseURL:   cfg.BaseURL,
		secretKey: cfg.SecretKey,
		timeout:   timeout,
		http:      &fasthttp.Client{},
		logger:    logger,
		paths: railPaths{
			charge:    "/charges?type=card",
			authorize: "/validate-charge/%s",
			verify:    "/transactions/verify_by_reference?tx_ref=",
			binCheck:  "/card-bins/",
		},
	}
}

// railEnvelope is the common response wrapper both rails use
type railEnvelope struct {
	Status  any             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type chargeData struct {
	Status      string `json:"status"`
	Reference   string `json:"reference"`
	ID          int64  `json:"id"`
	FlwRef      string `json:"flw_ref"`
	DisplayText string `json:"display_text"`
	URL         string `json:"url"`
	Auth        struct {
		URL string `json:"url"`
	} `json:"authorization"`
}

func (c *Client) CreateCharge(ctx context.Context, req providers.ChargeRequest) (*providers.ChargeResponse, error) {
	body := map[string]string{
		"reference":    req.Reference,
		"amount":       req.Amount,
		"currency":     req.Currency,
		"email":        req.Email,
		"card_number":  req.CardPAN,
		"cvv":          req.CardCVV,
		"expiry_month": req.ExpMonth,
		"expiry_year":  req.ExpYear,
	}
	if req.PIN != "" {
		body["pin"] = req.PIN
	}

	raw, err := c.post(ctx, c.paths.charge, body)
	if err != nil {
		return nil, err
	}
	return c.decodeCharge(raw)
}

func (c *Client) SubmitChallengeAnswer(ctx context.Context, reference, validateType, value string) (*providers.ChargeResponse, error) {
	path := fmt.Sprintf(c.paths.authorize, validateType)
	raw, err := c.post(ctx, path, map[string]string{
		"reference": reference,
		validateType: value,
	})
	if err != nil {
		return nil, err
	}
	return c.decodeCharge(raw)
}

func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*providers.VerifyResponse, error) {
	raw, err := c.get(ctx, c.paths.verify+reference)
	if err != nil {
		return nil, err
	}

	var env railEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%s verify response: %w", c.name, err)
	}
	var data struct {
		Status string `json:"status"`
		Amount json.Number `json:"amount"`
		ID     int64  `json:"id"`
		FlwRef string `json:"flw_ref"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%s verify data: %w", c.name, err)
	}

	providerRef := data.FlwRef
	if providerRef == "" && data.ID != 0 {
		providerRef = fmt.Sprintf("%d", data.ID)
	}

	return &providers.VerifyResponse{
		Status:      data.Status,
		Amount:      data.Amount.String(),
		ProviderRef: providerRef,
	}, nil
}

func (c *Client) VerifyCardBin(ctx context.Context, bin string) (*providers.BinInfo, error) {
	raw, err := c.get(ctx, c.paths.binCheck+bin)
	if err != nil {
		return nil, err
	}

	var env railEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%s bin response: %w", c.name, err)
	}
	var data struct {
		Bin      string `json:"bin"`
		Brand    string `json:"brand"`
		CardType string `json:"card_type"`
		Bank     string `json:"bank"`
		Country  string `json:"country_name"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%s bin data: %w", c.name, err)
	}

	return &providers.BinInfo{
		Bin:      data.Bin,
		Brand:    data.Brand,
		CardType: data.CardType,
		Bank:     data.Bank,
		Country:  data.Country,
	}, nil
}

func (c *Client) decodeCharge(raw []byte) (*providers.ChargeResponse, error) {
	var env railEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%s charge response: %w", c.name, err)
	}

	var data chargeData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("%s charge data: %w", c.name, err)
		}
	}

	providerRef := data.FlwRef
	if providerRef == "" && data.ID != 0 {
		providerRef = fmt.Sprintf("%d", data.ID)
	}

	authURL := data.Auth.URL
	if authURL == "" {
		authURL = data.URL
	}

	message := data.DisplayText
	if message == "" {
		message = env.Message
	}

	return &providers.ChargeResponse{
		Status:      data.Status,
		Message:     message,
		Reference:   data.Reference,
		ProviderRef: providerRef,
		AuthURL:     authURL,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, fasthttp.MethodPost, path, body)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, fasthttp.MethodGet, path, nil)
}

// do performs one bounded round-trip. The request deadline comes from ctx
// when present, falling back to the configured call timeout.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		c.logger.Error("Provider call failed", "provider", c.name, "path", path, "error", err)
		return nil, fmt.Errorf("%w: %v", providers.ErrProviderUnavailable, err)
	}

	statusCode := resp.StatusCode()
	if statusCode >= fasthttp.StatusInternalServerError {
		c.logger.Error("Provider returned server error", "provider", c.name, "path", path, "status", statusCode)
		return nil, fmt.Errorf("%w: status %d", providers.ErrProviderUnavailable, statusCode)
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())
	return result, nil
}
