package feed

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/punchamoorthee/reconops/internal/domain"
)

// Client is the contract a bank-statement provider integration must satisfy.
// Implementations must return, per transaction, a globally unique id, the
// amount in minor units, the counterparty string as printed by the bank, and
// the value date.
type Client interface {
	ListCreditTransactions(ctx context.Context, accountRef string, start, end time.Time) ([]domain.BankTransaction, error)
}

// HTTPClient talks to an account-scraping provider over its JSON search API.
// Requests are authenticated with an HMAC-SHA256 signature over the link id
// and a millisecond timestamp, carried in bearer/link/timestamp headers.
type HTTPClient struct {
	baseURL   string
	linkID    string
	secretKey string
	http      *http.Client
}

func NewHTTPClient(baseURL, linkID, secretKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:   baseURL,
		linkID:    linkID,
		secretKey: secretKey,
		http:      &http.Client{Timeout: timeout},
	}
}

type searchRequest struct {
	AccountRef string `json:"account_ref"`
	StartDate  string `json:"start_date"` // yyyyMMdd
	EndDate    string `json:"end_date"`
	TradeType  string `json:"trade_type"` // "I" restricts to incoming credits
	Order      string `json:"order"`
}

type searchItem struct {
	TID       string `json:"tid"`
	TradeDate string `json:"trdate"`
	AccIn     string `json:"accIn"`
	Briefs    string `json:"briefs"`
	Remark1   string `json:"remark1"`
	Remark2   string `json:"remark2"`
}

type searchResponse struct {
	List []searchItem `json:"list"`
}

func (c *HTTPClient) ListCreditTransactions(ctx context.Context, accountRef string, start, end time.Time) ([]domain.BankTransaction, error) {
	payload, err := json.Marshal(searchRequest{
		AccountRef: accountRef,
		StartDate:  start.Format("20060102"),
		EndDate:    end.Format("20060102"),
		TradeType:  "I",
		Order:      "D",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/bank/search", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	c.sign(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed search failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed search failed: status %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("feed response decode failed: %w", err)
	}

	txs := make([]domain.BankTransaction, 0, len(out.List))
	for _, item := range out.List {
		tx, err := item.toDomain()
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// sign adds the provider auth headers: an HMAC-SHA256 over linkID+timestamp.
func (c *HTTPClient) sign(req *http.Request) {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(c.linkID + ts))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("Authorization", "Bearer "+sig)
	req.Header.Set("x-fd-linkid", c.linkID)
	req.Header.Set("x-fd-timestamp", ts)
	req.Header.Set("Content-Type", "application/json")
}

// toDomain converts one provider row, parsing the amount string to int64 at
// the boundary so no string-typed money survives into the core.
func (i searchItem) toDomain() (domain.BankTransaction, error) {
	amount, err := strconv.ParseInt(i.AccIn, 10, 64)
	if err != nil {
		return domain.BankTransaction{}, fmt.Errorf("unparseable amount %q for tid %s: %w", i.AccIn, i.TID, err)
	}
	valueDate, err := time.Parse("20060102", i.TradeDate)
	if err != nil {
		return domain.BankTransaction{}, fmt.Errorf("unparseable trade date %q for tid %s: %w", i.TradeDate, i.TID, err)
	}

	// Banks populate whichever remark field their format uses; take the
	// first non-empty one, same as the statement UI does.
	name := i.Briefs
	if name == "" {
		name = i.Remark2
	}
	if name == "" {
		name = i.Remark1
	}

	return domain.BankTransaction{
		TransactionID:    i.TID,
		Direction:        "credit",
		Amount:           amount,
		CounterpartyName: name,
		ValueDate:        valueDate,
	}, nil
}
