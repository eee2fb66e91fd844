// Package sheets reads spreadsheets through the Google Drive and Sheets REST APIs.
package sheets

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	apperrors "sheetflow/internal/errors"
	"sheetflow/ports"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// ErrAuth is returned when the API keeps refusing the credential after re-consent
var ErrAuth = apperrors.New(apperrors.CodeUnauthorized, "sheets authorization failed")

// Config holds the API endpoints
type Config struct {
	SheetsBaseURL string
	DriveBaseURL  string
	Timeout       time.Duration
	PageSize      int
}

// DefaultConfig returns the public Google endpoints
func DefaultConfig() Config {
	return Config{
		SheetsBaseURL: "https://sheets.googleapis.com/v4",
		DriveBaseURL:  "https://www.googleapis.com/drive/v3",
		Timeout:       30 * time.Second,
		PageSize:      100,
	}
}

// Client implements ports.SheetSource
type Client struct {
	config     Config
	creds      ports.CredentialSource
	httpClient *http.Client
}

// NewClient creates a client authenticating with creds
func NewClient(config Config, creds ports.CredentialSource) *Client {
	def := DefaultConfig()
	if config.SheetsBaseURL == "" {
		config.SheetsBaseURL = def.SheetsBaseURL
	}
	if config.DriveBaseURL == "" {
		config.DriveBaseURL = def.DriveBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.PageSize <= 0 {
		config.PageSize = def.PageSize
	}
	return &Client{
		config:     config,
		creds:      creds,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// ListSpreadsheets lists every spreadsheet the credential can see, newest first
func (c *Client) ListSpreadsheets(ctx context.Context) ([]ports.Spreadsheet, error) {
	var out []ports.Spreadsheet
	pageToken := ""
	for {
		params := url.Values{}
		params.Set("q", fmt.Sprintf("mimeType='%s' and trashed=false", spreadsheetMimeType))
		params.Set("orderBy", "modifiedTime desc")
		params.Set("pageSize", fmt.Sprint(c.config.PageSize))
		params.Set("fields", "nextPageToken,files(id,name,modifiedTime,webViewLink,owners(displayName,emailAddress))")
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		body, err := c.get(ctx, c.config.DriveBaseURL+"/files?"+params.Encode())
		if err != nil {
			return nil, fmt.Errorf("failed to list spreadsheets: %w", err)
		}

		gjson.GetBytes(body, "files").ForEach(func(_, file gjson.Result) bool {
			sheet := ports.Spreadsheet{
				ID:           file.Get("id").String(),
				Name:         file.Get("name").String(),
				ModifiedTime: file.Get("modifiedTime").Time(),
				WebViewLink:  file.Get("webViewLink").String(),
			}
			for _, owner := range file.Get("owners").Array() {
				name := owner.Get("displayName").String()
				if name == "" {
					name = owner.Get("emailAddress").String()
				}
				sheet.Owners = append(sheet.Owners, name)
			}
			out = append(out, sheet)
			return true
		})

		pageToken = gjson.GetBytes(body, "nextPageToken").String()
		if pageToken == "" {
			return out, nil
		}
	}
}

// ListTabs lists the tabs of a spreadsheet in display order
func (c *Client) ListTabs(ctx context.Context, spreadsheetID string) ([]ports.Tab, error) {
	endpoint := fmt.Sprintf("%s/spreadsheets/%s?fields=%s",
		c.config.SheetsBaseURL, url.PathEscape(spreadsheetID), url.QueryEscape("sheets.properties(sheetId,title)"))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to list tabs of %s: %w", spreadsheetID, err)
	}

	var tabs []ports.Tab
	for _, props := range gjson.GetBytes(body, "sheets.#.properties").Array() {
		tabs = append(tabs, ports.Tab{
			ID:   int(props.Get("sheetId").Int()),
			Name: props.Get("title").String(),
		})
	}
	return tabs, nil
}

// GetValues returns the formatted display values of a whole tab
func (c *Client) GetValues(ctx context.Context, spreadsheetID, tabName string) ([][]string, error) {
	endpoint := fmt.Sprintf("%s/spreadsheets/%s/values/%s?valueRenderOption=FORMATTED_VALUE&majorDimension=ROWS",
		c.config.SheetsBaseURL, url.PathEscape(spreadsheetID), url.PathEscape(quoteRange(tabName)))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to read values of %s/%s: %w", spreadsheetID, tabName, err)
	}

	rows := gjson.GetBytes(body, "values").Array()
	values := make([][]string, len(rows))
	for i, row := range rows {
		cells := row.Array()
		values[i] = make([]string, len(cells))
		for j, cell := range cells {
			values[i][j] = cell.String()
		}
	}
	return values, nil
}

// quoteRange turns a tab name into an A1 range covering the whole tab
func quoteRange(tabName string) string {
	return "'" + strings.ReplaceAll(tabName, "'", "''") + "'"
}

// get performs an authorized GET. A 401 or 403 triggers exactly one
// re-consent and retry.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	cred, err := c.creds.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain credential: %w", err)
	}

	body, status, err := c.do(ctx, endpoint, cred)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		log.Printf("[SheetsClient] status %d, asking for consent again", status)
		cred, err = c.creds.Reconsent(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: re-consent failed: %v", ErrAuth, err)
		}
		body, status, err = c.do(ctx, endpoint, cred)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return nil, fmt.Errorf("%w: status %d: %s", ErrAuth, status, apiMessage(body))
		}
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", status, apiMessage(body))
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, endpoint string, cred ports.Credential) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// apiMessage extracts the Google error message, falling back to the raw body
func apiMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		return msg.String()
	}
	return strings.TrimSpace(string(body))
}
