// Package idoklad reads issued and received invoices from the iDoklad
// API, including their PDF renderings and uploaded attachments.
package idoklad

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/mdrbohlav/transfer-idoklad2fakturoid/apierror"
)

const (
	TokenURL = "https://identity.idoklad.cz/server/connect/token"
	BaseURL  = "https://api.idoklad.cz/v2"

	pageSize = 50
)

func tokenConfig(clientID, clientSecret string) *clientcredentials.Config {
	return &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     TokenURL,
		Scopes:       []string{"idoklad_api"},
	}
}

// NewTokenClient returns an http.Client that acquires an OAuth2
// client-credentials token on first use, injects it as a bearer token
// and refreshes it when it expires.
func NewTokenClient(ctx context.Context, clientID, clientSecret string) *http.Client {
	return tokenConfig(clientID, clientSecret).Client(ctx)
}

// VerifyCredentials fetches a token once to prove the client id and
// secret are valid.
func VerifyCredentials(ctx context.Context, clientID, clientSecret string) error {
	_, err := tokenConfig(clientID, clientSecret).Token(ctx)
	return err
}

type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	Filter     string
	Log        *zap.SugaredLogger
}

// NewClient wraps an authenticated http.Client (see NewTokenClient).
// filter is an optional server-side filter expression appended to list
// requests.
func NewClient(httpClient *http.Client, filter string, log *zap.SugaredLogger) *Client {
	return &Client{
		HTTPClient: httpClient,
		BaseURL:    BaseURL,
		Filter:     filter,
		Log:        log,
	}
}

// listResponse is iDoklad's paginated envelope.
type listResponse struct {
	Data       []Record `json:"Data"`
	TotalItems int      `json:"TotalItems"`
	TotalPages int      `json:"TotalPages"`
}

// GetInvoices fetches all issued invoices matching the filter.
func (c *Client) GetInvoices() ([]Record, error) {
	return c.getRecords("IssuedInvoices/Expand", "issued")
}

// GetExpenses fetches all received invoices matching the filter.
func (c *Client) GetExpenses() ([]Record, error) {
	return c.getRecords("ReceivedInvoices/Expand", "received")
}

func (c *Client) getRecords(path, label string) ([]Record, error) {
	c.Log.Infof("iDoklad: loading %s invoices", label)

	var result []Record
	totalPages := 1

	for page := 1; page <= totalPages; page++ {
		params := url.Values{}
		if c.Filter != "" {
			params.Set("filter", c.Filter)
		}
		params.Set("page", strconv.Itoa(page))
		params.Set("pagesize", strconv.Itoa(pageSize))

		wholePath := "/" + path + "?" + params.Encode()
		c.Log.Debugf("loading page %d", page)

		body, err := c.get(wholePath)
		if err != nil {
			return nil, err
		}

		var resp listResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decoding %s page %d: %w", path, page, err)
		}

		result = append(result, resp.Data...)
		c.Log.Infof("loaded %d of %d %s invoices", len(result), resp.TotalItems, label)

		// Total page count comes from the first page's metadata.
		if page == 1 {
			totalPages = resp.TotalPages
		}
	}

	return result, nil
}

// GetPDF fetches the PDF rendering of a record as a base64 string.
func (c *Client) GetPDF(t RecordType, id int) (string, error) {
	res, err := resourcePath(t)
	if err != nil {
		return "", err
	}
	return c.getBase64(fmt.Sprintf("/%s/%d/GetPdf?language=1", res, id))
}

// GetAttachment fetches the uploaded attachment of a record as a
// base64 string.
func (c *Client) GetAttachment(t RecordType, id int) (string, error) {
	res, err := resourcePath(t)
	if err != nil {
		return "", err
	}
	return c.getBase64(fmt.Sprintf("/%s/%d/GetAttachment", res, id))
}

func resourcePath(t RecordType) (string, error) {
	switch t {
	case TypeInvoice:
		return "IssuedInvoices", nil
	case TypeExpense:
		return "ReceivedInvoices", nil
	default:
		return "", &UnknownRecordTypeError{Type: string(t)}
	}
}

// getBase64 decodes an endpoint whose body is a JSON-encoded string.
func (c *Client) getBase64(path string) (string, error) {
	body, err := c.get(path)
	if err != nil {
		return "", err
	}

	var payload string
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decoding %s: %w", path, err)
	}
	return payload, nil
}

func (c *Client) get(path string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &apierror.RequestError{
			Method:     http.MethodGet,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	return body, nil
}
