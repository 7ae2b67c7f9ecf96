// Package fakturoid talks to the Fakturoid v2 API: cache-aware
// paginated reads of the account's existing data, and the create/pay
// writes the transfer performs.
package fakturoid

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/peterhellberg/link"
	"go.uber.org/zap"

	"github.com/mdrbohlav/transfer-idoklad2fakturoid/apierror"
	"github.com/mdrbohlav/transfer-idoklad2fakturoid/cache"
)

const (
	BaseURL = "https://app.fakturoid.cz/api/v2"

	userAgent = "transfer_idoklad2fakturoid (m.drbohlav1@gmail.com)"
)

type Client struct {
	// AccountURL is the account-scoped API root, derived from the
	// account slug. Tests point it at a local server.
	AccountURL string
	Email      string
	APIKey     string
	HTTPClient *http.Client
	Log        *zap.SugaredLogger
}

func NewClient(slug, email, apiKey string, log *zap.SugaredLogger) *Client {
	return &Client{
		AccountURL: fmt.Sprintf("%s/accounts/%s", BaseURL, slug),
		Email:      email,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		Log:        log,
	}
}

// GetAccount fetches the account detail, revalidating against the
// cached copy when one exists.
func (c *Client) GetAccount(pages map[int]*cache.Entry) (Account, error) {
	c.Log.Infof("Fakturoid: loading account")

	body, _, err := c.fetchPage(ensureEntry(pages, 1), "/account.json")
	if err != nil {
		return Account{}, err
	}

	var account Account
	if err := json.Unmarshal(body, &account); err != nil {
		return Account{}, fmt.Errorf("decoding account: %w", err)
	}
	return account, nil
}

func (c *Client) GetInvoices(pages map[int]*cache.Entry) ([]Record, error) {
	return listPages[Record](c, pages, "invoices", "invoices.json")
}

func (c *Client) GetExpenses(pages map[int]*cache.Entry) ([]Record, error) {
	return listPages[Record](c, pages, "expenses", "expenses.json")
}

func (c *Client) GetSubjects(pages map[int]*cache.Entry) ([]Subject, error) {
	return listPages[Subject](c, pages, "subjects", "subjects.json")
}

func (c *Client) GetBankAccounts(pages map[int]*cache.Entry) ([]BankAccount, error) {
	return listPages[BankAccount](c, pages, "bank_accounts", "bank_accounts.json")
}

// listPages walks a paginated collection, serving unchanged pages from
// the cache. The total page count is learned from the Link rel="last"
// header whenever the server sends one.
func listPages[T any](c *Client, pages map[int]*cache.Entry, resource, path string) ([]T, error) {
	c.Log.Infof("Fakturoid: loading %s", resource)

	var result []T
	totalPages := 1

	for page := 1; page <= totalPages; page++ {
		body, last, err := c.fetchPage(ensureEntry(pages, page), fmt.Sprintf("/%s?page=%d", path, page))
		if err != nil {
			return nil, err
		}
		if last > 0 {
			totalPages = last
		}

		var items []T
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("decoding %s page %d: %w", resource, page, err)
		}
		result = append(result, items...)

		c.Log.Infof("loaded page %d of %d, so far %d %s", page, totalPages, len(result), resource)
	}

	return result, nil
}

func ensureEntry(pages map[int]*cache.Entry, page int) *cache.Entry {
	entry := pages[page]
	if entry == nil {
		entry = &cache.Entry{}
		pages[page] = entry
	}
	if entry.Headers == nil {
		entry.Headers = map[string]string{}
	}
	return entry
}

// fetchPage performs one conditional GET. 200 stores body and
// validator and returns the body; 304 returns the cached body when one
// exists, otherwise strips the stale validator and reloads the page
// once. The rel="last" page number is returned when the response
// carried one.
func (c *Client) fetchPage(entry *cache.Entry, path string) (json.RawMessage, int, error) {
	lastPage := 0

	for reloaded := false; ; {
		req, err := http.NewRequest(http.MethodGet, c.AccountURL+path, nil)
		if err != nil {
			return nil, 0, err
		}
		c.decorate(req)
		for k, v := range entry.Headers {
			req.Header.Set(k, v)
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return nil, 0, err
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, 0, err
		}

		if etag := resp.Header.Get("ETag"); etag != "" {
			entry.Headers["If-None-Match"] = etag
		}
		if last := lastFromLink(resp); last > 0 {
			lastPage = last
		}

		switch resp.StatusCode {
		case http.StatusOK:
			entry.Data = json.RawMessage(body)
			return entry.Data, lastPage, nil
		case http.StatusNotModified:
			if entry.Data != nil {
				c.Log.Debugf("cache hit for %s", path)
				return entry.Data, lastPage, nil
			}
			if reloaded {
				return nil, 0, &apierror.RequestError{
					Method:     http.MethodGet,
					Path:       path,
					StatusCode: resp.StatusCode,
					Body:       "not modified after forced reload",
				}
			}
			// Validator without a body: force a full reload.
			c.Log.Debugf("cache miss, reloading %s", path)
			delete(entry.Headers, "If-None-Match")
			reloaded = true
		default:
			return nil, 0, &apierror.RequestError{
				Method:     http.MethodGet,
				Path:       path,
				StatusCode: resp.StatusCode,
				Body:       string(body),
			}
		}
	}
}

func lastFromLink(resp *http.Response) int {
	last, ok := link.ParseResponse(resp)["last"]
	if !ok {
		return 0
	}
	u, err := url.Parse(last.URI)
	if err != nil {
		return 0
	}
	page, err := strconv.Atoi(u.Query().Get("page"))
	if err != nil {
		return 0
	}
	return page
}

// CreateSubject creates a contact and returns it with its assigned id.
func (c *Client) CreateSubject(subject Subject) (Subject, error) {
	body, err := c.post("/subjects.json", subject, http.StatusCreated)
	if err != nil {
		return Subject{}, err
	}

	var created Subject
	if err := json.Unmarshal(body, &created); err != nil {
		return Subject{}, fmt.Errorf("decoding created subject: %w", err)
	}
	return created, nil
}

// CreateInvoice creates an invoice and returns its id and number.
func (c *Client) CreateInvoice(invoice Invoice) (Record, error) {
	return c.createRecord("/invoices.json", invoice)
}

// CreateExpense creates an expense and returns its id and number.
func (c *Client) CreateExpense(expense Expense) (Record, error) {
	return c.createRecord("/expenses.json", expense)
}

func (c *Client) createRecord(path string, payload any) (Record, error) {
	body, err := c.post(path, payload, http.StatusCreated)
	if err != nil {
		return Record{}, err
	}

	var created Record
	if err := json.Unmarshal(body, &created); err != nil {
		return Record{}, fmt.Errorf("decoding created record: %w", err)
	}
	return created, nil
}

// PayInvoice fires the pay event on an invoice with the given paid-at
// date.
func (c *Client) PayInvoice(id int, paidAt string) error {
	path := fmt.Sprintf("/invoices/%d/fire.json?event=pay", id)
	_, err := c.post(path, map[string]string{"paid_at": paidAt}, http.StatusOK)
	return err
}

// PayExpense fires the pay event on an expense with the given paid-on
// date.
func (c *Client) PayExpense(id int, paidOn string) error {
	path := fmt.Sprintf("/expenses/%d/fire.json?event=pay", id)
	_, err := c.post(path, map[string]string{"paid_on": paidOn}, http.StatusOK)
	return err
}

func (c *Client) post(path string, payload any, wantStatus int) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.AccountURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	c.decorate(req)
	req.Header.Set("Content-Type", "application/json")

	c.Log.Debugf("POST %s", path)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != wantStatus {
		return nil, &apierror.RequestError{
			Method:     http.MethodPost,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	return body, nil
}

func (c *Client) decorate(req *http.Request) {
	req.SetBasicAuth(c.Email, c.APIKey)
	req.Header.Set("User-Agent", userAgent)
}
