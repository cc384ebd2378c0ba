package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	domainErrors "github.com/CeeFeS/TinyPlanvas/internal/domain/errors"
	"github.com/CeeFeS/TinyPlanvas/internal/domain/model"
	pkgErrors "github.com/CeeFeS/TinyPlanvas/pkg/errors"
)

const defaultPageSize = 500

// Client is the shared HTTP client for the record store. All repositories
// go through it; it owns the base URL, the auth token and the status-code
// to error mapping.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger

	mu    sync.RWMutex
	token string
}

// NewClient creates a record store client.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

// SetToken installs the auth token used on subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the currently installed auth token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// BaseURL returns the record store base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type listEnvelope struct {
	Items      json.RawMessage `json:"items"`
	TotalItems int             `json:"totalItems"`
}

// do issues one JSON request. A nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgErrors.NewAppError(pkgErrors.ErrInternal, "failed to encode request body", err)
		}
		reader = bytes.NewReader(encoded)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return pkgErrors.NewAppError(pkgErrors.ErrInternal, "failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgErrors.NewAppError(pkgErrors.ErrUnavailable, "record store unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.statusError(method, path, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgErrors.NewAppError(pkgErrors.ErrInternal, "failed to decode response body", err)
	}
	return nil
}

func (c *Client) statusError(method, path string, resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	c.logger.Debug("record store request failed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.ByteString("body", payload))

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return pkgErrors.NewAppError(pkgErrors.ErrUnauthenticated, "authentication required", nil)
	case http.StatusForbidden:
		return pkgErrors.NewAppError(pkgErrors.ErrUnauthorized, "operation not permitted", nil)
	case http.StatusNotFound:
		return pkgErrors.NewAppError(pkgErrors.ErrNotFound, "record not found", domainErrors.ErrRecordNotFound)
	case http.StatusConflict:
		return pkgErrors.NewAppError(pkgErrors.ErrConflict, "record conflict", nil)
	default:
		return pkgErrors.NewAppError(pkgErrors.ErrInternal,
			fmt.Sprintf("record store returned status %d", resp.StatusCode), nil)
	}
}

func recordsPath(collection model.Collection) string {
	return "/api/collections/" + string(collection) + "/records"
}

func recordPath(collection model.Collection, id string) string {
	return recordsPath(collection) + "/" + url.PathEscape(id)
}

// listAll fetches every record of a collection matching the filter, paging
// through the store's list envelope.
func listAll[T any](ctx context.Context, c *Client, collection model.Collection, filter string) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("perPage", strconv.Itoa(defaultPageSize))
		if filter != "" {
			query.Set("filter", filter)
		}

		var envelope listEnvelope
		if err := c.do(ctx, http.MethodGet, recordsPath(collection), query, nil, &envelope); err != nil {
			return nil, err
		}
		var batch []T
		if err := json.Unmarshal(envelope.Items, &batch); err != nil {
			return nil, pkgErrors.NewAppError(pkgErrors.ErrInternal, "failed to decode records", err)
		}
		all = append(all, batch...)

		if len(batch) == 0 || page*defaultPageSize >= envelope.TotalItems {
			return all, nil
		}
	}
}

// eq builds a `field="value"` filter clause.
func eq(field, value string) string {
	return fmt.Sprintf("%s=%q", field, value)
}

// and joins filter clauses conjunctively.
func and(clauses ...string) string {
	return strings.Join(clauses, " && ")
}

// orEq builds a disjunction of equality clauses over one field.
func orEq(field string, values []string) string {
	clauses := make([]string, 0, len(values))
	for _, v := range values {
		clauses = append(clauses, eq(field, v))
	}
	return strings.Join(clauses, " || ")
}
