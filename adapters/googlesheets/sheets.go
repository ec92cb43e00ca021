package googlesheets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ideamans/go-sheetdash"
)

// ValueInputOption makes the API parse values the way typed input is parsed,
// so "12.5" lands as a number and "=SUM(A1:A3)" as a formula.
const ValueInputOption = "USER_ENTERED"

// Adapter implements sheetdash.Adapter for one Google spreadsheet
type Adapter struct {
	service       *sheets.Service
	spreadsheetID string
	logger        *slog.Logger
}

var _ sheetdash.Adapter = (*Adapter)(nil)

// New creates a Google Sheets adapter with the provided client options.
// When config names the spreadsheet instead of giving its id, the id is
// looked up through Drive with the same options.
func New(ctx context.Context, config Config, opts ...option.ClientOption) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	id := config.SpreadsheetID
	if id == "" {
		id, err = FindSpreadsheet(ctx, config.SpreadsheetName, opts...)
		if err != nil {
			return nil, err
		}
		logger.Info("resolved spreadsheet", "name", config.SpreadsheetName, "id", id)
	}

	return &Adapter{service: service, spreadsheetID: id, logger: logger}, nil
}

// SpreadsheetID returns the document the adapter writes to
func (a *Adapter) SpreadsheetID() string {
	return a.spreadsheetID
}

// Worksheet implements sheetdash.Adapter. Titles compare
// case-insensitively, as Sheets itself does when naming tabs.
func (a *Adapter) Worksheet(ctx context.Context, title string) (*sheetdash.Worksheet, error) {
	resp, err := a.service.Spreadsheets.Get(a.spreadsheetID).
		Fields("sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	want := strings.TrimSpace(title)
	for _, sheet := range resp.Sheets {
		if sheet.Properties == nil || !strings.EqualFold(strings.TrimSpace(sheet.Properties.Title), want) {
			continue
		}
		return worksheetFrom(sheet.Properties), nil
	}
	return nil, fmt.Errorf("%w: %s", sheetdash.ErrWorksheetNotFound, title)
}

// AddWorksheet implements sheetdash.Adapter
func (a *Adapter) AddWorksheet(ctx context.Context, title string, rows, cols int) (*sheetdash.Worksheet, error) {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title: title,
					GridProperties: &sheets.GridProperties{
						RowCount:    int64(rows),
						ColumnCount: int64(cols),
					},
				},
			},
		}},
	}

	resp, err := a.service.Spreadsheets.BatchUpdate(a.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to add worksheet %q: %w", title, err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return nil, fmt.Errorf("failed to add worksheet %q: empty reply", title)
	}

	ws := worksheetFrom(resp.Replies[0].AddSheet.Properties)
	a.logger.Debug("worksheet added", "title", ws.Title, "id", ws.ID, "rows", ws.Rows, "cols", ws.Cols)
	return ws, nil
}

// DeleteWorksheet implements sheetdash.Adapter
func (a *Adapter) DeleteWorksheet(ctx context.Context, id int64) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteSheet: &sheets.DeleteSheetRequest{
				SheetId:         id,
				ForceSendFields: []string{"SheetId"},
			},
		}},
	}

	if _, err := a.service.Spreadsheets.BatchUpdate(a.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete worksheet %d: %w", id, err)
	}
	a.logger.Debug("worksheet deleted", "id", id)
	return nil
}

// BatchUpdateValues implements sheetdash.Adapter
func (a *Adapter) BatchUpdateValues(ctx context.Context, data []*sheets.ValueRange) error {
	req := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: ValueInputOption,
		Data:             data,
	}
	if _, err := a.service.Spreadsheets.Values.BatchUpdate(a.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to batch update values: %w", err)
	}
	return nil
}

// BatchUpdate implements sheetdash.Adapter
func (a *Adapter) BatchUpdate(ctx context.Context, requests []*sheets.Request) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}
	if _, err := a.service.Spreadsheets.BatchUpdate(a.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to batch update: %w", err)
	}
	return nil
}

func worksheetFrom(p *sheets.SheetProperties) *sheetdash.Worksheet {
	ws := &sheetdash.Worksheet{ID: p.SheetId, Title: p.Title}
	if p.GridProperties != nil {
		ws.Rows = int(p.GridProperties.RowCount)
		ws.Cols = int(p.GridProperties.ColumnCount)
	}
	return ws
}

// ErrSpreadsheetNotFound is returned when no spreadsheet has the given name
var ErrSpreadsheetNotFound = errors.New("spreadsheet not found")

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// FindSpreadsheet returns the id of the most recently modified spreadsheet
// visible to the credentials whose name is exactly name.
func FindSpreadsheet(ctx context.Context, name string, opts ...option.ClientOption) (string, error) {
	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create drive service: %w", err)
	}

	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(name), spreadsheetMimeType)

	page := ""
	for {
		call := service.Files.List().
			Q(q).
			OrderBy("modifiedTime desc").
			Fields("nextPageToken", "files(id,name)").
			Context(ctx)
		if page != "" {
			call.PageToken(page)
		}

		list, err := call.Do()
		if err != nil {
			return "", fmt.Errorf("failed to search spreadsheet %q: %w", name, err)
		}
		for _, f := range list.Files {
			if f.Name == name {
				return f.Id, nil
			}
		}

		if page = list.NextPageToken; page == "" {
			break
		}
	}
	return "", fmt.Errorf("%w: %s", ErrSpreadsheetNotFound, name)
}
