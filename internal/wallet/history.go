package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lorisra/ottera/internal/reliability"
)

// Amount is a dual-denominated value: in-app tokens plus fiat.
type Amount struct {
	OTT float64 `json:"OTT"`
	USD float64 `json:"USD"`
}

// Transaction is one ledger entry in the payment history.
type Transaction struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Amount    Amount    `json:"amount"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryPage is one page of a user's payment history plus running totals.
type HistoryPage struct {
	Transactions   []Transaction `json:"transactions"`
	TotalReceived  Amount        `json:"total_received"`
	TotalSent      Amount        `json:"total_sent"`
	BalanceSummary Amount        `json:"balanceSummary"`
	TotalCount     int           `json:"totalCount"`
}

// HistoryClient fetches paginated payment history from the ledger service.
type HistoryClient struct {
	baseURL string
	client  *http.Client
}

func NewHistoryClient(baseURL string) *HistoryClient {
	return &HistoryClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Page fetches one history page. Page numbers are 1-based and clamped by the
// caller's pager; the ledger rejects out-of-range pages itself.
func (c *HistoryClient) Page(ctx context.Context, userID string, page, pageSize int) (HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/history?"+q.Encode(), nil)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("ledger request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return HistoryPage{}, &reliability.ClassifiedError{
			Kind:      reliability.KindForHTTPStatus(res.StatusCode),
			Code:      fmt.Sprintf("ledger_http_%d", res.StatusCode),
			Status:    res.StatusCode,
			Retryable: reliability.IsRetryableHTTPStatus(res.StatusCode),
			Err:       fmt.Errorf("ledger status %d: %s", res.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var out HistoryPage
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return HistoryPage{}, fmt.Errorf("decode ledger response: %w", err)
	}
	return out, nil
}
