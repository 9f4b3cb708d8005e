package v1

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tinoosan/bankledger/internal/ledger"
)

type ctxKey string

const ctxKeyListTransactions ctxKey = "validatedListTransactions"

// validateListTransactions parses the listing query parameters into a
// ledger.TransactionFilter and stores it in the request context for the handler.
func (s *Server) validateListTransactions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, err := parseTransactionFilter(r.URL.Query())
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		if err := f.Validate(); err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyListTransactions, f)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func listFilter(r *http.Request) ledger.TransactionFilter {
	f, _ := r.Context().Value(ctxKeyListTransactions).(ledger.TransactionFilter)
	return f
}

// parseTransactionFilter reads start_date, end_date, type, min_amount,
// max_amount, account_id, order, limit and offset. Dates are RFC 3339 or
// YYYY-MM-DD; a bare end_date covers that whole day.
func parseTransactionFilter(q url.Values) (ledger.TransactionFilter, error) {
	var f ledger.TransactionFilter
	if raw := q.Get("start_date"); raw != "" {
		t, err := parseDate(raw, false)
		if err != nil {
			return f, fmt.Errorf("invalid start_date: %w", err)
		}
		f.From = &t
	}
	if raw := q.Get("end_date"); raw != "" {
		t, err := parseDate(raw, true)
		if err != nil {
			return f, fmt.Errorf("invalid end_date: %w", err)
		}
		f.To = &t
	}
	f.Kind = ledger.TransactionKind(strings.ToLower(q.Get("type")))
	if raw := q.Get("min_amount"); raw != "" {
		a, err := ledger.ParseAmount(raw)
		if err != nil {
			return f, fmt.Errorf("invalid min_amount: %w", err)
		}
		f.MinAmount = &a
	}
	if raw := q.Get("max_amount"); raw != "" {
		a, err := ledger.ParseAmount(raw)
		if err != nil {
			return f, fmt.Errorf("invalid max_amount: %w", err)
		}
		f.MaxAmount = &a
	}
	for _, raw := range q["account_id"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return f, fmt.Errorf("invalid account_id %q", part)
			}
			f.AccountIDs = append(f.AccountIDs, id)
		}
	}
	f.Order = ledger.Order(q.Get("order"))
	var err error
	if f.Limit, err = intParam(q, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = intParam(q, "offset"); err != nil {
		return f, err
	}
	return f, nil
}

func parseDate(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("want RFC 3339 or YYYY-MM-DD, got %q", raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func intParam(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return n, nil
}

// pathID parses a positive int64 route parameter.
func pathID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil && id > 0
}
