package googlesheets

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ideamans/go-sheetdash"
)

// fakeSheets serves the handful of Sheets v4 endpoints the adapter uses
type fakeSheets struct {
	mu       sync.Mutex
	sheets   string   // JSON body for spreadsheets.get
	fail     []int    // statuses returned before succeeding, consumed in order
	requests []string // "METHOD path" log
	bodies   [][]byte
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.bodies = append(f.bodies, body)

	if len(f.fail) > 0 {
		status := f.fail[0]
		f.fail = f.fail[1:]
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(`{"error": {"code": ` + itoa(status) + `, "message": "injected"}}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/v4/spreadsheets/test-id":
		w.Write([]byte(f.sheets))
	case r.Method == http.MethodPost && r.URL.Path == "/v4/spreadsheets/test-id:batchUpdate":
		var req sheets.BatchUpdateSpreadsheetRequest
		json.Unmarshal(body, &req)
		if len(req.Requests) == 1 && req.Requests[0].AddSheet != nil {
			p := req.Requests[0].AddSheet.Properties
			w.Write([]byte(`{"replies": [{"addSheet": {"properties": {"sheetId": 42, "title": "` + p.Title +
				`", "gridProperties": {"rowCount": ` + itoa(int(p.GridProperties.RowCount)) +
				`, "columnCount": ` + itoa(int(p.GridProperties.ColumnCount)) + `}}}}]}`))
			return
		}
		w.Write([]byte(`{"spreadsheetId": "test-id"}`))
	case r.Method == http.MethodPost && r.URL.Path == "/v4/spreadsheets/test-id/values:batchUpdate":
		w.Write([]byte(`{"spreadsheetId": "test-id"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func newTestAdapter(t *testing.T, fake *fakeSheets) *Adapter {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	a, err := New(context.Background(), Config{SpreadsheetID: "test-id"},
		option.WithEndpoint(server.URL), option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("Failed to create adapter: %v", err)
	}
	return a
}

const twoSheets = `{"sheets": [
	{"properties": {"sheetId": 0, "title": "Overview - Yearly", "gridProperties": {"rowCount": 8, "columnCount": 24}}},
	{"properties": {"sheetId": 7, "title": "2024 - Categories", "gridProperties": {"rowCount": 20, "columnCount": 17}}}
]}`

func TestAdapter_Worksheet(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		wantID  int64
		wantErr error
	}{
		{"exact title", "2024 - Categories", 7, nil},
		{"case and spaces differ", " overview - yearly ", 0, nil},
		{"missing title", "Overview - Monthly", 0, sheetdash.ErrWorksheetNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAdapter(t, &fakeSheets{sheets: twoSheets})

			ws, err := a.Worksheet(context.Background(), tt.title)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Worksheet() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Worksheet() error = %v", err)
			}
			if ws.ID != tt.wantID {
				t.Errorf("Worksheet().ID = %d, want %d", ws.ID, tt.wantID)
			}
		})
	}
}

func TestAdapter_AddAndDeleteWorksheet(t *testing.T) {
	fake := &fakeSheets{}
	a := newTestAdapter(t, fake)
	ctx := context.Background()

	ws, err := a.AddWorksheet(ctx, "2025 - Categories", 12, 17)
	if err != nil {
		t.Fatalf("AddWorksheet() error = %v", err)
	}
	if ws.ID != 42 || ws.Title != "2025 - Categories" || ws.Rows != 12 || ws.Cols != 17 {
		t.Errorf("AddWorksheet() = %+v", ws)
	}

	if err := a.DeleteWorksheet(ctx, 0); err != nil {
		t.Fatalf("DeleteWorksheet() error = %v", err)
	}

	// sheetId 0 is a real sheet and must be sent explicitly.
	var req map[string]interface{}
	if err := json.Unmarshal(fake.bodies[1], &req); err != nil {
		t.Fatal(err)
	}
	del := req["requests"].([]interface{})[0].(map[string]interface{})["deleteSheet"].(map[string]interface{})
	if id, ok := del["sheetId"]; !ok || id.(float64) != 0 {
		t.Errorf("deleteSheet = %v, want sheetId 0", del)
	}
}

func TestAdapter_BatchUpdateValuesUsesUserEntered(t *testing.T) {
	fake := &fakeSheets{}
	a := newTestAdapter(t, fake)

	err := a.BatchUpdateValues(context.Background(), []*sheets.ValueRange{
		{Range: "'Overview - Yearly'!B2", Values: [][]interface{}{{"Year", "Net Pay"}, {"2024", 1234.5}}},
	})
	if err != nil {
		t.Fatalf("BatchUpdateValues() error = %v", err)
	}

	var req sheets.BatchUpdateValuesRequest
	if err := json.Unmarshal(fake.bodies[0], &req); err != nil {
		t.Fatal(err)
	}
	if req.ValueInputOption != "USER_ENTERED" {
		t.Errorf("ValueInputOption = %q", req.ValueInputOption)
	}
	if len(req.Data) != 1 || req.Data[0].Range != "'Overview - Yearly'!B2" {
		t.Errorf("Data = %+v", req.Data)
	}
}

func TestAdapter_ErrorsKeepStatus(t *testing.T) {
	a := newTestAdapter(t, &fakeSheets{fail: []int{http.StatusBadRequest}})

	err := a.BatchUpdate(context.Background(), []*sheets.Request{{}})
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Code != http.StatusBadRequest {
		t.Fatalf("BatchUpdate() error = %v, want googleapi 400", err)
	}
	if sheetdash.StatusCode(err) != http.StatusBadRequest {
		t.Errorf("StatusCode() = %d", sheetdash.StatusCode(err))
	}
}

func TestAdapter_RetriedThroughBatcher(t *testing.T) {
	tests := []struct {
		name      string
		fail      []int
		wantCalls int
		wantErr   bool
	}{
		{"503 then success", []int{503}, 2, false},
		{"429 until exhausted", []int{429, 429, 429}, 3, true},
		{"400 is fatal", []int{400}, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeSheets{fail: append([]int(nil), tt.fail...)}
			a := newTestAdapter(t, fake)

			b := sheetdash.New(a, &sheetdash.Config{
				MaxRetries: 3,
				Sleep:      func(context.Context, time.Duration) error { return nil },
			})
			b.QueueValues("Sheet1!A1", sheetdash.Literal{{"x"}})

			err := b.Flush(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Flush() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(fake.requests) != tt.wantCalls {
				t.Errorf("calls = %d, want %d", len(fake.requests), tt.wantCalls)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := (&Config{}).Validate(); err == nil {
		t.Error("empty config should not validate")
	}
	if err := (&Config{SpreadsheetName: "Spending Dashboard"}).Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestFindSpreadsheet(t *testing.T) {
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/drive/v3/files" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		query = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			w.Write([]byte(`{"nextPageToken": "p2", "files": [{"id": "other", "name": "Spending Dashboard (copy)"}]}`))
			return
		}
		w.Write([]byte(`{"files": [{"id": "sheet-123", "name": "Bob's Spending"}]}`))
	}))
	defer server.Close()

	id, err := FindSpreadsheet(context.Background(), "Bob's Spending",
		option.WithEndpoint(server.URL+"/drive/v3/"), option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("FindSpreadsheet() error = %v", err)
	}
	if id != "sheet-123" {
		t.Errorf("FindSpreadsheet() = %q, want sheet-123", id)
	}
	if !strings.Contains(query, `name = 'Bob\'s Spending'`) {
		t.Errorf("q = %q", query)
	}

	_, err = FindSpreadsheet(context.Background(), "Nope",
		option.WithEndpoint(server.URL+"/drive/v3/"), option.WithoutAuthentication())
	if !errors.Is(err, ErrSpreadsheetNotFound) {
		t.Errorf("FindSpreadsheet(missing) error = %v, want ErrSpreadsheetNotFound", err)
	}
}
