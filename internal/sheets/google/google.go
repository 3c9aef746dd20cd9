package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"dentalstudio/internal/core"
	ports "dentalstudio/internal/sheets"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Options configures the Sheets client.
type Options struct {
	SpreadsheetID string
	// SheetName is the base name without year (e.g. "Comisiones"); the
	// client prefixes the current year.
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc              *gsheet.Service
	spreadsheetID    string
	commissionsSheet string
}

var _ ports.CommissionExpenseWriter = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	credentialsJSON, err := loadCredentials(opts)
	if err != nil {
		return nil, err
	}

	creds, err := googleoauth.CredentialsFromJSON(ctx, credentialsJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}
	// WithHTTPClient ignores credential options, so the token source wraps the pooled client.
	base := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(oauth2.NewClient(base, creds.TokenSource)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", spreadsheetID)

	return newWithService(svc, spreadsheetID, opts.SheetName, time.Now().Year()), nil
}

func newWithService(svc *gsheet.Service, spreadsheetID, sheetName string, year int) *Client {
	base := strings.TrimSpace(sheetName)
	if base == "" {
		base = "Comisiones"
	}
	return &Client{
		svc:              svc,
		spreadsheetID:    spreadsheetID,
		commissionsSheet: yearPrefixedName(base, year),
	}
}

// loadCredentials prefers inline JSON over a credentials file.
func loadCredentials(opts Options) ([]byte, error) {
	switch {
	case strings.TrimSpace(opts.ServiceAccountJSON) != "":
		return []byte(opts.ServiceAccountJSON), nil
	case strings.TrimSpace(opts.ServiceAccountFile) != "":
		data, err := os.ReadFile(opts.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// SheetName returns the year-prefixed sheet the client writes to.
func (c *Client) SheetName() string { return c.commissionsSheet }

// Append writes the expense on the first empty row of the commissions sheet.
// Columns: A date, B doctor, C description, D amount, E quotation, F payment, G expense id.
func (c *Client) Append(ctx context.Context, e core.CommissionExpense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:A", c.commissionsSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get sheet dimensions for %s: %w", c.commissionsSheet, err)
	}
	nextRow := len(resp.Values) + 1

	dataRange := fmt.Sprintf("%s!A%d:G%d", c.commissionsSheet, nextRow, nextRow)
	vr := &gsheet.ValueRange{Values: [][]any{expenseRow(e)}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to update %s: %w", dataRange, err)
	}
	return dataRange, nil
}

func expenseRow(e core.CommissionExpense) []any {
	return []any{
		e.Date.Format("02/01/2006"),
		e.DoctorName,
		e.Description,
		e.Amount,
		e.QuotationID,
		e.PaymentID,
		e.ID,
	}
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
