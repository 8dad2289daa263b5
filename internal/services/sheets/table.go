// Package sheets implements jobsource.Table over the Google Sheets v4 API.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"studiocast/internal/config"
	"studiocast/internal/jobsource"
	"studiocast/internal/services"
)

// Table reads and writes one worksheet.
type Table struct {
	svc           *gsheets.Service
	spreadsheetID string
	worksheet     string
}

// New builds a table from the google config section. Extra client options
// are appended after the credentials option.
func New(ctx context.Context, cfg *config.Config, opts ...option.ClientOption) (*Table, error) {
	clientOpts := []option.ClientOption{option.WithScopes(gsheets.SpreadsheetsScope)}
	if path := strings.TrimSpace(cfg.Google.CredentialsFile); path != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(path))
	}
	clientOpts = append(clientOpts, opts...)
	svc, err := gsheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "sheets", "init client", "", err)
	}
	return NewWithService(svc, cfg.Google.SpreadsheetID, cfg.Google.Worksheet), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheets.Service, spreadsheetID, worksheet string) *Table {
	return &Table{svc: svc, spreadsheetID: strings.TrimSpace(spreadsheetID), worksheet: strings.TrimSpace(worksheet)}
}

// Read returns every row of the worksheet as strings, header first.
func (t *Table) Read(ctx context.Context) ([][]string, error) {
	resp, err := t.svc.Spreadsheets.Values.Get(t.spreadsheetID, t.sheetRange("")).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("read rows", err)
	}
	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		rows[i] = make([]string, len(row))
		for j, v := range row {
			rows[i][j] = fmt.Sprint(v)
		}
	}
	return rows, nil
}

// Cell returns one cell; empty when the range has no value.
func (t *Table) Cell(ctx context.Context, row, col int) (string, error) {
	resp, err := t.svc.Spreadsheets.Values.Get(t.spreadsheetID, t.sheetRange(A1(row, col))).
		Context(ctx).
		Do()
	if err != nil {
		return "", classify(fmt.Sprintf("read %s", A1(row, col)), err)
	}
	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		return "", nil
	}
	return fmt.Sprint(resp.Values[0][0]), nil
}

// Write applies all updates in one batch request.
func (t *Table) Write(ctx context.Context, updates []jobsource.CellUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	data := make([]*gsheets.ValueRange, 0, len(updates))
	for _, u := range updates {
		data = append(data, &gsheets.ValueRange{
			Range:  t.sheetRange(A1(u.Row, u.Col)),
			Values: [][]interface{}{{u.Value}},
		})
	}
	_, err := t.svc.Spreadsheets.Values.BatchUpdate(t.spreadsheetID, &gsheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}).Context(ctx).Do()
	if err != nil {
		return classify("write cells", err)
	}
	return nil
}

func (t *Table) sheetRange(cells string) string {
	name := t.worksheet
	if name == "" {
		return cells
	}
	quoted := "'" + strings.ReplaceAll(name, "'", "''") + "'"
	if cells == "" {
		return quoted
	}
	return quoted + "!" + cells
}

// A1 converts 1-based coordinates to A1 notation.
func A1(row, col int) string {
	return ColumnName(col) + fmt.Sprint(row)
}

// ColumnName converts a 1-based column index to letters (1 → A, 27 → AA).
func ColumnName(col int) string {
	if col < 1 {
		return ""
	}
	var out []byte
	for col > 0 {
		col--
		out = append([]byte{byte('A' + col%26)}, out...)
		col /= 26
	}
	return string(out)
}

// classify maps API failures: auth and missing-sheet errors are configuration
// problems, throttling and server errors are transient.
func classify(operation string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return services.Wrap(services.ErrConfiguration, "sheets", operation, fmt.Sprintf("status %d", gerr.Code), err)
		}
	}
	return services.Wrap(services.ErrTransientIO, "sheets", operation, "", err)
}
