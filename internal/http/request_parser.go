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

	"github.com/gorilla/mux"

	"cashflow/internal/core"
	"cashflow/internal/services"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads the request body into v. Malformed JSON is a bad request;
// values rejected by a field decoder keep their validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if core.IsValidationError(err) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", errBadRequest)
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w: request body too large", errBadRequest)
		}
		return fmt.Errorf("%w: malformed JSON: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON body", errBadRequest)
	}
	return nil
}

// pathVar returns a route variable.
func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

// parseDateValue parses an optional YYYY-MM-DD value. Empty yields the zero date.
func parseDateValue(name, s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

// parsePathDate parses a required date route variable.
func parsePathDate(r *http.Request, name string) (core.Date, error) {
	raw := pathVar(r, name)
	if raw == "" {
		return core.Date{}, fmt.Errorf("%w: missing %s", errBadRequest, name)
	}
	return parseDateValue(name, raw)
}

// parsePathMonth parses a required YYYY-MM route variable.
func parsePathMonth(r *http.Request, name string) (core.Month, error) {
	m, err := core.ParseMonth(pathVar(r, name))
	if err != nil {
		return core.Month{}, fmt.Errorf("%s: %w", name, err)
	}
	return m, nil
}

// ParsePeriodQuery reads period, start and end from the query string.
func ParsePeriodQuery(query url.Values) (services.PeriodQuery, error) {
	start, err := parseDateValue("start", query.Get("start"))
	if err != nil {
		return services.PeriodQuery{}, err
	}
	end, err := parseDateValue("end", query.Get("end"))
	if err != nil {
		return services.PeriodQuery{}, err
	}
	return services.PeriodQuery{
		Period: strings.TrimSpace(query.Get("period")),
		Start:  start,
		End:    end,
	}, nil
}

// parseLimit reads a positive limit, capped at max. Missing means zero.
func parseLimit(query url.Values, max int) (int, error) {
	v := strings.TrimSpace(query.Get("limit"))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", errBadRequest)
	}
	return min(n, max), nil
}
