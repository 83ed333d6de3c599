package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// ErrRateLimited marks a write rejected by the per-minute quota. Callers may retry it.
var ErrRateLimited = errors.New("spreadsheet rate limit exceeded")

// valueInputRaw stores strings verbatim so names such as "=cmd" are never evaluated.
const valueInputRaw = "RAW"

// Client writes value ranges into a single spreadsheet.
type Client struct {
	svc           *gsheets.Service
	spreadsheetID string
}

// NewClient builds a Sheets client authenticated with a service-account JSON file.
func NewClient(ctx context.Context, spreadsheetID, credentialsFile string) (*Client, error) {
	if spreadsheetID == "" {
		return nil, errors.New("spreadsheet id is required")
	}
	raw, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read sheets credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, raw, gsheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse sheets credentials: %w", err)
	}
	svc, err := gsheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// NewClientWithService wraps an already configured service, e.g. one pointed at a test endpoint.
func NewClientWithService(svc *gsheets.Service, spreadsheetID string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID}
}

// WriteRange overwrites one A1 range of sheetName in a single batched call.
func (c *Client) WriteRange(ctx context.Context, sheetName, a1Range string, values [][]interface{}) error {
	target := QualifiedRange(sheetName, a1Range)
	req := &gsheets.BatchUpdateValuesRequest{
		ValueInputOption: valueInputRaw,
		Data: []*gsheets.ValueRange{{
			Range:          target,
			MajorDimension: "ROWS",
			Values:         values,
		}},
	}
	if _, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		if IsRateLimited(err) {
			return fmt.Errorf("write %s: %w: %v", target, ErrRateLimited, err)
		}
		return fmt.Errorf("write %s: %w", target, err)
	}
	return nil
}

// IsRateLimited reports whether err is a quota rejection from the Sheets API.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	if apiErr.Code != http.StatusForbidden {
		return false
	}
	for _, item := range apiErr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded", "quotaExceeded":
			return true
		}
	}
	return false
}

// QualifiedRange prefixes an A1 range with a quoted sheet name.
func QualifiedRange(sheetName, a1Range string) string {
	quoted := "'" + strings.ReplaceAll(sheetName, "'", "''") + "'"
	return quoted + "!" + a1Range
}

// ColumnName converts a zero-based column index into its A1 letters (0 → A, 26 → AA).
func ColumnName(index int) string {
	if index < 0 {
		return ""
	}
	var name []byte
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		name = append([]byte{byte('A' + (n-1)%26)}, name...)
	}
	return string(name)
}
