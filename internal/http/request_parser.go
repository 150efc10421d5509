// This file decodes request bodies and query parameters into domain values.
// Every parser returns a *core.ValidationError or errBadRequest so handlers
// can pass failures straight to writeError.

package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pennywise/internal/core"
	"pennywise/internal/importer"
)

// maxBodyBytes bounds every request body. Imports are the largest payload.
const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("malformed request")

// decodeJSON reads one JSON object into dst, rejecting unknown fields and
// trailing data. The body is read in full first: the decoder does not surface
// reader errors, so the size limit is checked before decoding.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w: body larger than %d bytes", errBadRequest, maxErr.Limit)
		}
		return fmt.Errorf("%w: read body: %v", errBadRequest, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("%w: empty body", errBadRequest)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &syntaxErr):
			return fmt.Errorf("%w: invalid JSON at offset %d", errBadRequest, syntaxErr.Offset)
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return fmt.Errorf("%w: truncated JSON", errBadRequest)
		case errors.As(err, &typeErr):
			return core.NewValidationError(jsonFieldName(dst, typeErr.Field), "has the wrong type")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return fmt.Errorf("%w: %s", errBadRequest, strings.TrimPrefix(err.Error(), "json: "))
		default:
			// Date and decimal unmarshalers report their own errors.
			return core.NewValidationError("body", err.Error())
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", errBadRequest)
	}
	return nil
}

// jsonFieldName maps a Go field name reported by the decoder to the JSON key
// of the matching top-level field of dst.
func jsonFieldName(dst any, goName string) string {
	t := reflect.TypeOf(dst)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return goName
	}
	f, ok := t.FieldByName(goName)
	if !ok {
		return goName
	}
	key, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if key == "" || key == "-" {
		return goName
	}
	return key
}

// pathUUID parses a path wildcard. A malformed ID is reported as not found,
// the same as an ID that belongs to nobody.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, core.ErrNotFound
	}
	return id, nil
}

// parseDateRange reads the optional ?from= and ?to= bounds.
func parseDateRange(r *http.Request) (core.DateRange, error) {
	var dr core.DateRange
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *core.Date
	}{{"from", &dr.From}, {"to", &dr.To}} {
		raw := strings.TrimSpace(q.Get(p.name))
		if raw == "" {
			continue
		}
		d, err := core.ParseDate(raw)
		if err != nil {
			return core.DateRange{}, core.NewValidationError(p.name, "must be a YYYY-MM-DD date")
		}
		*p.dst = d
	}
	if !dr.From.IsZero() && !dr.To.IsZero() && dr.To.Before(dr.From.Time) {
		return core.DateRange{}, core.NewValidationError("to", "must not be before from")
	}
	return dr, nil
}

// parsePositiveInt reads an optional positive integer query parameter. A
// missing parameter yields 0.
func parsePositiveInt(r *http.Request, name string, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > max {
		return 0, core.NewValidationError(name, fmt.Sprintf("must be an integer between 1 and %d", max))
	}
	return n, nil
}

// parseMatchMode reads ?match=. An empty value keeps the configured mode.
func parseMatchMode(r *http.Request) (core.BudgetMatchMode, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("match"))
	if raw == "" {
		return "", nil
	}
	mode := core.BudgetMatchMode(raw)
	if !mode.IsValid() {
		return "", core.NewValidationError("match", fmt.Sprintf("must be %q or %q", core.MatchCategory, core.MatchCategoryAndTitle))
	}
	return mode, nil
}

// entryRequest is the body of expense and income writes.
type entryRequest struct {
	Title    string          `json:"title"`
	Amount   decimal.Decimal `json:"amount"`
	Category core.Category   `json:"category"`
	Date     core.Date       `json:"date"`
	Note     string          `json:"note"`
}

func (req entryRequest) expense() core.Expense {
	return core.Expense{
		Title:    strings.TrimSpace(req.Title),
		Amount:   core.NormalizeAmount(req.Amount),
		Category: req.Category,
		Date:     req.Date,
		Note:     strings.TrimSpace(req.Note),
	}
}

func (req entryRequest) income() core.Income {
	return core.Income{
		Title:    strings.TrimSpace(req.Title),
		Amount:   core.NormalizeAmount(req.Amount),
		Category: req.Category,
		Date:     req.Date,
		Note:     strings.TrimSpace(req.Note),
	}
}

type goalRequest struct {
	Name          string           `json:"name"`
	TargetAmount  decimal.Decimal  `json:"target_amount"`
	MonthlySaving decimal.Decimal  `json:"monthly_saving"`
	ManualSaved   *decimal.Decimal `json:"saved_amount_manual"`
	TargetDate    *core.Date       `json:"target_date"`
	Priority      core.Priority    `json:"priority"`
}

func (req goalRequest) goal() core.Goal {
	g := core.Goal{
		Name:          strings.TrimSpace(req.Name),
		TargetAmount:  core.NormalizeAmount(req.TargetAmount),
		MonthlySaving: core.NormalizeAmount(req.MonthlySaving),
		TargetDate:    req.TargetDate,
		Priority:      req.Priority,
	}
	if req.ManualSaved != nil {
		saved := core.NormalizeAmount(*req.ManualSaved)
		g.ManualSaved = &saved
	}
	return g
}

type budgetRequest struct {
	Name      string          `json:"name"`
	Category  core.Category   `json:"category"`
	Amount    decimal.Decimal `json:"amount"`
	StartDate core.Date       `json:"start_date"`
	EndDate   core.Date       `json:"end_date"`
}

func (req budgetRequest) budget() core.Budget {
	return core.Budget{
		Name:      strings.TrimSpace(req.Name),
		Category:  req.Category,
		Amount:    core.NormalizeAmount(req.Amount),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
}

type linkRequest struct {
	IncomeIDs []uuid.UUID `json:"income_ids"`
}

// importRequest carries an aggregator page. When Currency is set, rows in any
// other currency are skipped.
type importRequest struct {
	Currency     string                 `json:"currency"`
	Transactions []importer.Transaction `json:"transactions"`
}
