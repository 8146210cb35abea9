// Package sheets stores records in a Google Sheets tab, one row per record:
// id, date, title, amount, category, notes. Row 1 is a header.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"spesesync/internal/core"
	"spesesync/internal/remote"
)

const lastColumn = "F"

var header = []any{"ID", "Date", "Title", "Amount", "Category", "Notes"}

// values is the subset of the Sheets values API the store needs.
type values interface {
	get(ctx context.Context, rng string) ([][]any, error)
	update(ctx context.Context, rng string, rows [][]any) error
	append(ctx context.Context, rng string, rows [][]any) error
	clear(ctx context.Context, rng string) error
}

// Store implements remote.Store on a single sheet. Writes are serialized so
// that row lookups and the writes that depend on them do not interleave.
type Store struct {
	api   values
	sheet string
	mu    sync.Mutex
}

var _ remote.Store = (*Store)(nil)

// Config selects the spreadsheet and credentials.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// New connects to the Sheets API with service-account credentials.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	sheet := yearPrefixedName(cfg.SheetName, time.Now().Year())
	slog.InfoContext(ctx, "Google Sheets remote store ready", "sheet", sheet)
	return newStore(&serviceValues{svc: svc, spreadsheetID: cfg.SpreadsheetID}, sheet), nil
}

func newStore(api values, sheet string) *Store {
	if strings.TrimSpace(sheet) == "" {
		sheet = "Expenses"
	}
	return &Store{api: api, sheet: sheet}
}

func loadCredentials(cfg Config) ([]byte, error) {
	jsonCreds := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if jsonCreds == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case jsonCreds != "":
		return []byte(jsonCreds), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// Create writes r, overwriting the row of an existing record with the same id.
func (s *Store) Create(ctx context.Context, r core.Record) (core.Record, error) {
	if err := s.upsert(ctx, r); err != nil {
		return core.Record{}, fmt.Errorf("create %s: %w", r.ID, err)
	}
	return r, nil
}

func (s *Store) Replace(ctx context.Context, id string, r core.Record) (core.Record, error) {
	r.ID = id
	if err := s.upsert(ctx, r); err != nil {
		return core.Record{}, fmt.Errorf("replace %s: %w", id, err)
	}
	return r, nil
}

// Remove blanks the record's row. Blank rows are skipped when listing, so
// row numbers of other records stay stable.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, _, err := s.findRow(ctx, id)
	if err != nil {
		return fmt.Errorf("remove %s: %w", id, err)
	}
	if row == 0 {
		return nil
	}
	if err := s.api.clear(ctx, s.rowRange(row)); err != nil {
		return fmt.Errorf("remove %s: %w", id, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, q remote.ListQuery) (remote.ListResult, error) {
	rows, err := s.api.get(ctx, fmt.Sprintf("%s!A:%s", s.sheet, lastColumn))
	if err != nil {
		return remote.ListResult{}, fmt.Errorf("list: %w", err)
	}
	records := make([]core.Record, 0, len(rows))
	for i, row := range rows {
		r, ok := parseRow(row)
		if !ok {
			if i > 0 && len(row) > 0 {
				slog.DebugContext(ctx, "Skipping unparseable sheet row", "sheet", s.sheet, "row", i+1)
			}
			continue
		}
		records = append(records, r)
	}
	return remote.Paginate(records, q), nil
}

func (s *Store) upsert(ctx context.Context, r core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, n, err := s.findRow(ctx, r.ID)
	if err != nil {
		return err
	}
	if row > 0 {
		return s.api.update(ctx, s.rowRange(row), [][]any{toRow(r)})
	}
	if n == 0 {
		if err := s.api.update(ctx, s.rowRange(1), [][]any{header}); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	return s.api.append(ctx, fmt.Sprintf("%s!A:%s", s.sheet, lastColumn), [][]any{toRow(r)})
}

// findRow returns the 1-based row holding id (0 when absent) and the number
// of rows currently in column A.
func (s *Store) findRow(ctx context.Context, id string) (int, int, error) {
	col, err := s.api.get(ctx, s.sheet+"!A:A")
	if err != nil {
		return 0, 0, fmt.Errorf("read ids: %w", err)
	}
	for i, row := range col {
		if len(row) > 0 && strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1, len(col), nil
		}
	}
	return 0, len(col), nil
}

func (s *Store) rowRange(row int) string {
	return fmt.Sprintf("%s!A%d:%s%d", s.sheet, row, lastColumn, row)
}

func toRow(r core.Record) []any {
	return []any{r.ID, r.Date, r.Title, core.FormatCents(r.AmountCents()), r.Category, r.Notes}
}

func parseRow(row []any) (core.Record, bool) {
	cols := make([]string, 6)
	for i := 0; i < len(row) && i < len(cols); i++ {
		cols[i] = strings.TrimSpace(fmt.Sprint(row[i]))
	}
	if cols[0] == "" || cols[0] == "ID" {
		return core.Record{}, false
	}
	amount, err := core.ParseAmount(cols[3])
	if err != nil {
		return core.Record{}, false
	}
	return core.Record{
		ID:       cols[0],
		Date:     cols[1],
		Title:    cols[2],
		Amount:   amount,
		Category: cols[4],
		Notes:    cols[5],
	}, true
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a
// 4-digit year.
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

type serviceValues struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (v *serviceValues) get(ctx context.Context, rng string) ([][]any, error) {
	resp, err := v.svc.Spreadsheets.Values.Get(v.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (v *serviceValues) update(ctx context.Context, rng string, rows [][]any) error {
	_, err := v.svc.Spreadsheets.Values.Update(v.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

func (v *serviceValues) append(ctx context.Context, rng string, rows [][]any) error {
	_, err := v.svc.Spreadsheets.Values.Append(v.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append %s: %w", rng, err)
	}
	return nil
}

func (v *serviceValues) clear(ctx context.Context, rng string) error {
	_, err := v.svc.Spreadsheets.Values.Clear(v.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	return nil
}
