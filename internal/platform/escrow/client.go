// Package escrow is the HTTP client for a remote base escrow engine. It
// implements forward.Engine for submissions and domain.Registry for reads.
package escrow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/alanyoungcy/auctioneer/internal/crypto"
	"github.com/alanyoungcy/auctioneer/internal/domain"
	"github.com/alanyoungcy/auctioneer/internal/forward"
)

const instructionsPath = "/v1/instructions"

// Config for Client. Operator signs every submitted instruction; HMAC may be
// nil for engines that only check the operator signature.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	HMAC      *crypto.HMACAuth
	Operator  *crypto.Signer
	CacheSize int
}

// Client talks to the engine's REST API. Mints and metadata never change
// once created, so they are cached.
type Client struct {
	baseURL    string
	httpClient *http.Client
	hmac       *crypto.HMACAuth
	operator   *crypto.Signer
	immutable  *lru.ARCCache
	now        func() time.Time
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("escrow: base url is required")
	}
	if cfg.Operator == nil {
		return nil, fmt.Errorf("escrow: operator signer is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 4096
	}
	cache, err := lru.NewARC(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("escrow: cache: %w", err)
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		hmac:       cfg.HMAC,
		operator:   cfg.Operator,
		immutable:  cache,
		now:        time.Now,
	}, nil
}

// Invoke submits ix. A rejection carrying an engine code comes back as
// *domain.EngineError.
func (c *Client) Invoke(ctx context.Context, ix forward.Instruction) error {
	body, err := json.Marshal(ix)
	if err != nil {
		return fmt.Errorf("escrow: marshal instruction: %w", err)
	}
	ts := c.now().Unix()
	sig, err := c.operator.SignInstruction(body, ts)
	if err != nil {
		return fmt.Errorf("escrow: sign instruction: %w", err)
	}
	headers := map[string]string{
		crypto.HeaderOperator:    c.operator.Address().Hex(),
		crypto.HeaderOperatorSig: sig,
	}
	if c.hmac != nil {
		for k, v := range c.hmac.HeadersAt(http.MethodPost, instructionsPath, string(body), ts) {
			headers[k] = v
		}
	} else {
		headers[crypto.HeaderTimestamp] = strconv.FormatInt(ts, 10)
	}
	_, err = c.do(ctx, http.MethodPost, instructionsPath, body, headers)
	if err != nil {
		return fmt.Errorf("escrow: invoke %s: %w", ix.Op, err)
	}
	return nil
}

func (c *Client) AuctionHouse(ctx context.Context, addr domain.Address) (domain.AuctionHouse, error) {
	var ah domain.AuctionHouse
	err := c.getJSON(ctx, "/v1/auction-houses/"+addr.String(), &ah)
	return ah, err
}

func (c *Client) TokenAccount(ctx context.Context, addr domain.Address) (domain.TokenAccount, error) {
	var ta domain.TokenAccount
	err := c.getJSON(ctx, "/v1/token-accounts/"+addr.String(), &ta)
	return ta, err
}

func (c *Client) Mint(ctx context.Context, addr domain.Address) (domain.Mint, error) {
	path := "/v1/mints/" + addr.String()
	if v, ok := c.immutable.Get(path); ok {
		return v.(domain.Mint), nil
	}
	var m domain.Mint
	if err := c.getJSON(ctx, path, &m); err != nil {
		return domain.Mint{}, err
	}
	c.immutable.Add(path, m)
	return m, nil
}

func (c *Client) Metadata(ctx context.Context, mint domain.Address) (domain.Address, error) {
	path := "/v1/metadata/" + mint.String()
	if v, ok := c.immutable.Get(path); ok {
		return v.(domain.Address), nil
	}
	var out struct {
		Address domain.Address `json:"address"`
	}
	if err := c.getJSON(ctx, path, &out); err != nil {
		return domain.ZeroAddress, err
	}
	c.immutable.Add(path, out.Address)
	return out.Address, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	var headers map[string]string
	if c.hmac != nil {
		headers = c.hmac.HeadersAt(http.MethodGet, path, "", c.now().Unix())
	}
	body, err := c.do(ctx, http.MethodGet, path, nil, headers)
	if err != nil {
		return fmt.Errorf("escrow: get %s: %w", path, err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("escrow: decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, headers map[string]string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

type rejection struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// checkHTTPStatus maps non-2xx answers. A body with an engine code always
// wins so program errors pass through untouched.
func checkHTTPStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	var rej rejection
	if json.Unmarshal(body, &rej) == nil && rej.Code != "" {
		return &domain.EngineError{Code: rej.Code, Message: rej.Message}
	}
	msg := strings.TrimSpace(string(body))
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, msg)
	default:
		return fmt.Errorf("HTTP %d: %s", status, msg)
	}
}
