package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pennywise/internal/core"
)

func TestParseDateRange(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantFrom string
		wantTo   string
		wantErr  bool
	}{
		{"open", "", "", "", false},
		{"both", "from=2025-01-01&to=2025-01-31", "2025-01-01", "2025-01-31", false},
		{"from only", "from=2025-03-01", "2025-03-01", "", false},
		{"same day", "from=2025-03-01&to=2025-03-01", "2025-03-01", "2025-03-01", false},
		{"reversed", "from=2025-02-01&to=2025-01-01", "", "", true},
		{"bad format", "from=01-02-2025", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/expenses?"+tt.query, nil)
			dr, err := parseDateRange(r)
			if tt.wantErr {
				if !core.IsValidation(err) {
					t.Fatalf("error = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDateRange() error = %v", err)
			}
			if got := dr.From.String(); tt.wantFrom != "" && got != tt.wantFrom {
				t.Errorf("from = %q, want %q", got, tt.wantFrom)
			}
			if got := dr.To.String(); tt.wantTo != "" && got != tt.wantTo {
				t.Errorf("to = %q, want %q", got, tt.wantTo)
			}
			if tt.wantFrom == "" && !dr.From.IsZero() {
				t.Errorf("from = %v, want open", dr.From)
			}
			if tt.wantTo == "" && !dr.To.IsZero() {
				t.Errorf("to = %v, want open", dr.To)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantBad   bool
		wantField string
	}{
		{"valid", `{"income_ids":["aaaaaaaa-0000-0000-0000-000000000001"]}`, false, ""},
		{"trailing data", `{"income_ids":[]} {}`, true, ""},
		{"unknown field", `{"ids":[]}`, true, ""},
		{"syntax", `{"income_ids":[`, true, ""},
		{"wrong type", `{"income_ids":5}`, false, "income_ids"},
		{"string for list", `{"income_ids":"all"}`, true, ""},
		{"empty", "  ", true, ""},
		{"too large", `{"income_ids":["` + strings.Repeat("a", maxBodyBytes) + `"]}`, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var req linkRequest
			err := decodeJSON(httptest.NewRecorder(), r, &req)
			if tt.wantBad != errors.Is(err, errBadRequest) {
				t.Fatalf("error = %v, wantBad %v", err, tt.wantBad)
			}
			if tt.wantField != "" {
				var ve *core.ValidationError
				if !errors.As(err, &ve) || ve.Field != tt.wantField {
					t.Errorf("error = %v, want validation on %q", err, tt.wantField)
				}
			}
			if tt.name == "valid" && (err != nil || len(req.IncomeIDs) != 1) {
				t.Errorf("decoded = %+v, %v", req, err)
			}
		})
	}
}
