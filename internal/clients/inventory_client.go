// internal/clients/inventory_client.go
package clients

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

	"shelfsort/internal/auth"
	"shelfsort/internal/catalog"
)

// InventoryClient implements catalog.Service against a remote inventory
// server.
type InventoryClient struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ catalog.Service = (*InventoryClient)(nil)

// NewInventoryClient returns a client for baseURL. token, if set, is sent
// as a bearer token on every request.
func NewInventoryClient(baseURL, token string, httpClient *http.Client) *InventoryClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &InventoryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

// StatusError is returned for non-2xx responses. Code carries the
// server's error code when the body had one.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the error code, or failing that the status, back to the
// catalog sentinel errors so callers can use errors.Is on either side of
// the wire.
func (e *StatusError) Unwrap() error {
	if err := catalog.ErrorForCode(e.Code); err != nil {
		return err
	}
	switch e.StatusCode {
	case http.StatusNotFound:
		return catalog.ErrBookNotFound
	case http.StatusConflict:
		return catalog.ErrInsufficientCopies
	case http.StatusTooManyRequests:
		return catalog.ErrRateLimited
	case http.StatusServiceUnavailable:
		return catalog.ErrRunLogDisabled
	case http.StatusUnauthorized:
		return auth.ErrUnauthorized
	}
	return nil
}

func (c *InventoryClient) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *InventoryClient) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return resp, nil
}

func statusError(resp *http.Response) *StatusError {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	statusErr := &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}

	var body catalog.ErrorBody
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") &&
		json.Unmarshal(msg, &body) == nil && body.Error != "" {
		statusErr.Code = body.Code
		statusErr.Message = body.Error
	}
	return statusErr
}

func (c *InventoryClient) Books(ctx context.Context, limit int) ([]catalog.Book, error) {
	var books []catalog.Book
	err := c.do(ctx, http.MethodGet, "/books?limit="+strconv.Itoa(limit), nil, &books)
	return books, err
}

func (c *InventoryClient) Sort(ctx context.Context, algorithm catalog.Algorithm, order catalog.Order) (*catalog.SortResult, error) {
	req := map[string]string{"algorithm": string(algorithm), "order": string(order)}
	var result catalog.SortResult
	if err := c.do(ctx, http.MethodPost, "/sort", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *InventoryClient) Search(ctx context.Context, algorithm catalog.Algorithm, ids []int) (*catalog.SearchResult, error) {
	q := url.Values{"algorithm": {string(algorithm)}}
	for _, id := range ids {
		q.Add("id", strconv.Itoa(id))
	}
	if len(ids) == 0 {
		q.Set("probes", "0")
	}
	var result catalog.SearchResult
	if err := c.do(ctx, http.MethodGet, "/search?"+q.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *InventoryClient) ProbeIDs(ctx context.Context, n int) ([]int, error) {
	var ids []int
	err := c.do(ctx, http.MethodGet, "/probes?n="+strconv.Itoa(n), nil, &ids)
	return ids, err
}

func (c *InventoryClient) TotalValue(ctx context.Context) (float64, error) {
	var resp struct {
		TotalValue float64 `json:"total_value"`
	}
	err := c.do(ctx, http.MethodGet, "/reports/value", nil, &resp)
	return resp.TotalValue, err
}

func (c *InventoryClient) HighlyRated(ctx context.Context, threshold float64) ([]catalog.Book, error) {
	var books []catalog.Book
	path := "/reports/rated?threshold=" + strconv.FormatFloat(threshold, 'f', -1, 64)
	err := c.do(ctx, http.MethodGet, path, nil, &books)
	return books, err
}

func (c *InventoryClient) Purchase(ctx context.Context, bookID, quantity int) (*catalog.PurchaseReceipt, error) {
	req := map[string]int{"book_id": bookID, "quantity": quantity}
	var receipt catalog.PurchaseReceipt
	if err := c.do(ctx, http.MethodPost, "/purchase", req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *InventoryClient) ExportCSV(ctx context.Context, w io.Writer) error {
	resp, err := c.send(ctx, http.MethodGet, "/export.csv", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *InventoryClient) Regenerate(ctx context.Context, seed int64) error {
	return c.do(ctx, http.MethodPost, "/regenerate", map[string]int64{"seed": seed}, nil)
}

func (c *InventoryClient) Runs(ctx context.Context, limit int) ([]catalog.Run, error) {
	var runs []catalog.Run
	err := c.do(ctx, http.MethodGet, "/runs?limit="+strconv.Itoa(limit), nil, &runs)
	return runs, err
}

func (c *InventoryClient) RunSummary(ctx context.Context) ([]catalog.RunStats, error) {
	var stats []catalog.RunStats
	err := c.do(ctx, http.MethodGet, "/runs/summary", nil, &stats)
	return stats, err
}
