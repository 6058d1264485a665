package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"demand_forecast/internal/model"
)

// DefaultBaseURL is the Google Sheets API root.
const DefaultBaseURL = "https://sheets.googleapis.com/"

// Client talks to one worksheet of a Google spreadsheet through the
// Sheets v4 API.
type Client struct {
	BaseURL       string
	SpreadsheetID string
	Worksheet     string
	Auth          TokenSource
	// Timeout bounds each remote call. Zero means only the caller's context applies.
	Timeout time.Duration
	HTTP    *http.Client
}

// NewClient returns a client with the default endpoint and a 30s call timeout.
func NewClient(spreadsheetID, worksheet string, auth TokenSource) *Client {
	return &Client{
		BaseURL:       DefaultBaseURL,
		SpreadsheetID: spreadsheetID,
		Worksheet:     worksheet,
		Auth:          auth,
		Timeout:       30 * time.Second,
		HTTP:          &http.Client{},
	}
}

// FetchAll returns every row of the worksheet, header first.
func (c *Client) FetchAll(ctx context.Context) ([][]string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	svc, header, err := c.service(ctx, "fetch")
	if err != nil {
		return nil, err
	}
	call := svc.Spreadsheets.Values.Get(c.SpreadsheetID, QuoteSheetName(c.Worksheet)).
		MajorDimension("ROWS").
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx)
	copyHeader(call.Header(), header)

	vr, err := call.Do()
	if err != nil {
		return nil, remoteError(ctx, "fetch", err)
	}

	rows := make([][]string, len(vr.Values))
	for i, row := range vr.Values {
		rows[i] = make([]string, len(row))
		for j, v := range row {
			if v != nil {
				rows[i][j] = fmt.Sprint(v)
			}
		}
	}
	return rows, nil
}

// UpdateCells writes all rectangles in a single batch request.
func (c *Client) UpdateCells(ctx context.Context, updates []RangeUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req := &sheetsapi.BatchUpdateValuesRequest{ValueInputOption: "USER_ENTERED"}
	for _, u := range updates {
		values := make([][]any, len(u.Values))
		for i, row := range u.Values {
			values[i] = make([]any, len(row))
			for j, v := range row {
				values[i][j] = v
			}
		}
		req.Data = append(req.Data, &sheetsapi.ValueRange{
			Range:          u.A1(c.Worksheet),
			MajorDimension: "ROWS",
			Values:         values,
		})
	}

	svc, header, err := c.service(ctx, "update")
	if err != nil {
		return err
	}
	call := svc.Spreadsheets.Values.BatchUpdate(c.SpreadsheetID, req).Context(ctx)
	copyHeader(call.Header(), header)

	if _, err := call.Do(); err != nil {
		return remoteError(ctx, "update", err)
	}
	return nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return ctx, func() {}
}

// service builds the API service and the per-call auth header. The token is
// obtained before any request so that credential problems are reported as
// such rather than as a failed sheet call.
func (c *Client) service(ctx context.Context, op string) (*sheetsapi.Service, http.Header, error) {
	header := make(http.Header)
	if c.Auth != nil {
		token, err := c.Auth.Token(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, nil, &model.TimeoutError{Op: op, Err: err}
			}
			return nil, nil, &model.RemoteError{Op: op, Message: "obtaining access token", Err: err}
		}
		if token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	svc, err := sheetsapi.NewService(ctx,
		option.WithHTTPClient(httpClient),
		option.WithEndpoint(c.endpoint()),
	)
	if err != nil {
		return nil, nil, &model.RemoteError{Op: op, Message: "creating sheets service", Err: err}
	}
	return svc, header, nil
}

func (c *Client) endpoint() string {
	if c.BaseURL == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(c.BaseURL, "/") + "/"
}

func copyHeader(dst, src http.Header) {
	for k, v := range src {
		dst[k] = v
	}
}

// remoteError maps an API failure onto the error taxonomy: 429 is rate
// limiting, an expired deadline is a timeout, anything else is a remote failure.
func remoteError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &model.TimeoutError{Op: op, Err: err}
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return &model.RemoteError{Op: op, Err: err}
	}
	switch gerr.Code {
	case http.StatusTooManyRequests:
		return &model.RateLimitedError{Message: apiMessage(gerr)}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &model.RemoteError{Op: op, StatusCode: gerr.Code, Message: "authentication failed, check the sheet credential"}
	}
	return &model.RemoteError{Op: op, StatusCode: gerr.Code, Message: apiMessage(gerr)}
}

func apiMessage(e *googleapi.Error) string {
	if e.Message != "" {
		return e.Message
	}
	return strings.TrimSpace(e.Body)
}
