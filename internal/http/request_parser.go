// This file implements decoding and validation of request data.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"carteira/internal/core"
	"carteira/internal/services"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters, using
// now as the default.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{Year: now.Year(), Month: int(now.Month())}
	var err error
	if v := strings.TrimSpace(query.Get("year")); v != "" {
		if params.Year, err = strconv.Atoi(v); err != nil {
			return MonthParams{}, core.Invalidf("year", "year %q is not a number", v)
		}
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		if params.Month, err = strconv.Atoi(v); err != nil {
			return MonthParams{}, core.Invalidf("month", "month %q is not a number", v)
		}
	}
	return params, nil
}

// ParseListFilter reads a listing filter from the query. Without year and
// month the listing is not bounded by date.
func ParseListFilter(query url.Values) (services.ListFilter, error) {
	f := services.ListFilter{
		AccountIDs:  splitList(query["account"]),
		CategoryIDs: splitList(query["category"]),
		Search:      sanitizeInput(query.Get("q")),
	}
	if query.Get("year") != "" || query.Get("month") != "" {
		mp, err := ParseMonthParams(query, time.Now())
		if err != nil {
			return services.ListFilter{}, err
		}
		f.Year, f.Month = mp.Year, mp.Month
	}
	if v := strings.TrimSpace(query.Get("uncleared")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return services.ListFilter{}, core.Invalidf("uncleared", "uncleared %q is not a boolean", v)
		}
		f.UnclearedOnly = b
	}
	return f, nil
}

// transactionRequest is the body of POST and PUT /api/transactions.
type transactionRequest struct {
	core.Details
	Repeat core.RepeatSpec `json:"repeat"`
	Scope  string          `json:"scope"`
}

func (t transactionRequest) details() core.Details {
	d := t.Details
	d.Description = sanitizeInput(d.Description)
	d.Note = sanitizeInput(d.Note)
	return d
}

type clearedRequest struct {
	IDs     []string `json:"ids"`
	Cleared bool     `json:"cleared"`
}

type deleteRequest struct {
	IDs []string `json:"ids"`
}

// decodeJSON reads exactly one JSON value from the body into dst. Syntax
// problems are a *requestError; field-level decoding failures such as a
// bad amount or date are ValidationErrors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return classifyDecodeError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return &requestError{msg: "request body must hold a single JSON object"}
	}
	return nil
}

// requestError is a malformed request, answered with 400.
type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func classifyDecodeError(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		return &requestError{msg: "request body is empty"}
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return &requestError{msg: "request body is not valid JSON"}
	case errors.As(err, &maxErr):
		return &requestError{msg: fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)}
	case errors.As(err, &typeErr):
		return core.Invalidf(typeErr.Field, "expected %s", typeErr.Type)
	case strings.HasPrefix(err.Error(), "json: unknown field"):
		return &requestError{msg: err.Error()}
	case errors.Is(err, core.ErrInvalidAmount):
		return core.Invalid("amount", err)
	default:
		return core.Invalid("", err)
	}
}

// parseScope reads the scope from the query, falling back to fallback.
func parseScope(r *http.Request, fallback string) (core.Scope, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("scope"))
	if raw == "" {
		raw = strings.TrimSpace(fallback)
	}
	return core.ParseScope(raw)
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
