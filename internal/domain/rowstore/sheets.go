package rowstore

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsConfig selects the spreadsheet and how to authenticate against it.
type SheetsConfig struct {
	SpreadsheetID   string
	CredentialsFile string
	Timeout         time.Duration
}

type sheetsStore struct {
	svc     *sheets.Service
	id      string
	timeout time.Duration
}

// NewSheets connects to the Google Sheets values API. Extra options are
// appended after the credentials, so tests can point the client elsewhere.
func NewSheets(ctx context.Context, cfg SheetsConfig, opts ...option.ClientOption) (Store, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id required")
	}
	base := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if cfg.CredentialsFile != "" {
		base = append(base, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	svc, err := sheets.NewService(ctx, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &sheetsStore{svc: svc, id: cfg.SpreadsheetID, timeout: cfg.Timeout}, nil
}

func (s *sheetsStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *sheetsStore) GetRows(ctx context.Context, rangeSpec string) ([][]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.svc.Spreadsheets.Values.Get(s.id, rangeSpec).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheets get %s: %w", rangeSpec, err)
	}
	rows := make([][]string, len(resp.Values))
	for i, raw := range resp.Values {
		row := make([]string, len(raw))
		for j, v := range raw {
			if v != nil {
				row[j] = fmt.Sprint(v)
			}
		}
		rows[i] = row
	}
	return rows, nil
}

func (s *sheetsStore) UpdateRow(ctx context.Context, rangeSpec string, values []string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	_, err := s.svc.Spreadsheets.Values.
		Update(s.id, rangeSpec, &sheets.ValueRange{Values: [][]interface{}{row}}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets update %s: %w", rangeSpec, err)
	}
	return nil
}

func (s *sheetsStore) Close() error {
	return nil
}
