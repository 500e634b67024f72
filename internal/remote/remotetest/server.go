// Package remotetest provides an in-memory PostgREST-style backend for tests.
package remotetest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"schedule-sync-backend/internal/model"
)

// Request records one call the server received.
type Request struct {
	Method string
	Table  string
	IDs    []string
}

// FailFunc decides whether a request should fail. It returns the status to
// respond with, or 0 to serve the request normally.
type FailFunc func(r Request) int

// Server is a fake backend. Rows are kept per table in insertion order and
// writes are upserts keyed on "id". Tables known to the model only accept
// their own column names, as a real schema would.
type Server struct {
	*httptest.Server
	APIKey string

	mu       sync.Mutex
	tables   map[string][]map[string]any
	requests []Request
	failFn   FailFunc
	maxRows  int
}

// NewServer starts a fake backend. Close it when done.
func NewServer(apiKey string) *Server {
	s := &Server{APIKey: apiKey, tables: make(map[string][]map[string]any)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// FailWith installs fn as the failure policy; nil clears it.
func (s *Server) FailWith(fn FailFunc) {
	s.mu.Lock()
	s.failFn = fn
	s.mu.Unlock()
}

// SetMaxRows caps every read at n rows, like PostgREST's db-max-rows.
// Zero removes the cap.
func (s *Server) SetMaxRows(n int) {
	s.mu.Lock()
	s.maxRows = n
	s.mu.Unlock()
}

// Requests returns the write requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Rows returns a copy of the rows stored for table.
func (s *Server) Rows(table string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.tables[table]))
	copy(out, s.tables[table])
	return out
}

// Seed stores records (anything that encodes as a JSON array of objects).
// Model records are stored under their column names.
func (s *Server) Seed(table string, records any) {
	data, err := json.Marshal(records)
	if err != nil {
		panic(err)
	}
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		panic(err)
	}
	if cols, err := model.Columns(model.Table(table)); err == nil {
		for i, row := range rows {
			renamed := make(map[string]any, len(row))
			for k, v := range row {
				if c, ok := cols[k]; ok {
					k = c
				}
				renamed[k] = v
			}
			rows[i] = renamed
		}
	}
	s.mu.Lock()
	s.upsert(table, rows)
	s.mu.Unlock()
}

func (s *Server) upsert(table string, rows []map[string]any) {
	for _, row := range rows {
		id := fmt.Sprint(row["id"])
		replaced := false
		for i, existing := range s.tables[table] {
			if fmt.Sprint(existing["id"]) == id {
				s.tables[table][i] = row
				replaced = true
				break
			}
		}
		if !replaced {
			s.tables[table] = append(s.tables[table], row)
		}
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	table, ok := strings.CutPrefix(r.URL.Path, "/rest/v1/")
	if !ok || table == "" {
		http.NotFound(w, r)
		return
	}
	if r.Header.Get("apikey") != s.APIKey || r.Header.Get("Authorization") != "Bearer "+s.APIKey {
		http.Error(w, `{"message":"invalid api key"}`, http.StatusUnauthorized)
		return
	}

	body, _ := io.ReadAll(r.Body)
	req := Request{Method: r.Method, Table: table}
	switch r.Method {
	case http.MethodPost:
		var rows []map[string]any
		if err := json.Unmarshal(body, &rows); err != nil {
			http.Error(w, `{"message":"body must be an array"}`, http.StatusBadRequest)
			return
		}
		for _, row := range rows {
			req.IDs = append(req.IDs, fmt.Sprint(row["id"]))
		}
		if col, ok := unknownColumn(table, rows); ok {
			http.Error(w, fmt.Sprintf(`{"code":"PGRST204","message":"Could not find the '%s' column of '%s' in the schema cache"}`, col, table), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		fail := s.failFn
		s.mu.Unlock()
		if fail != nil {
			if status := fail(req); status != 0 {
				http.Error(w, `{"message":"injected failure"}`, status)
				return
			}
		}
		if r.URL.Query().Get("on_conflict") != "id" {
			http.Error(w, `{"message":"on_conflict=id required"}`, http.StatusConflict)
			return
		}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.upsert(table, rows)
		s.mu.Unlock()
		w.WriteHeader(http.StatusCreated)

	case http.MethodDelete:
		req.IDs = parseIn(r.URL.Query().Get("id"))
		s.mu.Lock()
		fail := s.failFn
		s.mu.Unlock()
		if fail != nil {
			if status := fail(req); status != 0 {
				http.Error(w, `{"message":"injected failure"}`, status)
				return
			}
		}
		drop := make(map[string]bool, len(req.IDs))
		for _, id := range req.IDs {
			drop[id] = true
		}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		kept := s.tables[table][:0]
		for _, row := range s.tables[table] {
			if !drop[fmt.Sprint(row["id"])] {
				kept = append(kept, row)
			}
		}
		s.tables[table] = kept
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)

	case http.MethodGet:
		s.mu.Lock()
		fail := s.failFn
		s.mu.Unlock()
		if fail != nil {
			if status := fail(req); status != 0 {
				http.Error(w, `{"message":"injected failure"}`, status)
				return
			}
		}
		if col, ok := unknownColumn(table, []map[string]any{filterColumns(r)}); ok {
			http.Error(w, fmt.Sprintf(`{"code":"42703","message":"column %s.%s does not exist"}`, table, col), http.StatusBadRequest)
			return
		}
		rows, offset, total := s.query(table, r)
		count := "*"
		if strings.Contains(r.Header.Get("Prefer"), "count=exact") {
			count = strconv.Itoa(total)
		}
		if len(rows) == 0 {
			w.Header().Set("Content-Range", "*/"+count)
		} else {
			w.Header().Set("Content-Range", fmt.Sprintf("%d-%d/%s", offset, offset+len(rows)-1, count))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rows)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// query returns the page of matching rows, its starting offset and the
// total number of matches before paging.
func (s *Server) query(table string, r *http.Request) ([]map[string]any, int, int) {
	s.mu.Lock()
	maxRows := s.maxRows
	rows := make([]map[string]any, 0, len(s.tables[table]))
	params := r.URL.Query()
	for _, row := range s.tables[table] {
		match := true
		for col, vals := range params {
			if reserved[col] {
				continue
			}
			want, ok := strings.CutPrefix(vals[0], "eq.")
			if ok && fmt.Sprint(row[col]) != want {
				match = false
				break
			}
		}
		if match {
			rows = append(rows, row)
		}
	}
	s.mu.Unlock()

	if order := params.Get("order"); order != "" {
		col, dir, _ := strings.Cut(order, ".")
		sort.SliceStable(rows, func(i, j int) bool {
			a, b := fmt.Sprint(rows[i][col]), fmt.Sprint(rows[j][col])
			if dir == "desc" {
				return a > b
			}
			return a < b
		})
	}
	total := len(rows)
	off, err := strconv.Atoi(params.Get("offset"))
	if err != nil || off < 0 {
		off = 0
	}
	if off > len(rows) {
		off = len(rows)
	}
	rows = rows[off:]
	if lim, err := strconv.Atoi(params.Get("limit")); err == nil && lim >= 0 && lim < len(rows) {
		rows = rows[:lim]
	}
	if maxRows > 0 && maxRows < len(rows) {
		rows = rows[:maxRows]
	}
	return rows, off, total
}

var reserved = map[string]bool{"select": true, "order": true, "limit": true, "offset": true}

// filterColumns collects the columns a read filters or orders on.
func filterColumns(r *http.Request) map[string]any {
	cols := make(map[string]any)
	for col := range r.URL.Query() {
		if !reserved[col] {
			cols[col] = nil
		}
	}
	if order := r.URL.Query().Get("order"); order != "" {
		col, _, _ := strings.Cut(order, ".")
		cols[col] = nil
	}
	return cols
}

// unknownColumn reports the first key in rows that is not a column of table.
// Tables outside the model accept anything.
func unknownColumn(table string, rows []map[string]any) (string, bool) {
	cols, err := model.Columns(model.Table(table))
	if err != nil {
		return "", false
	}
	known := make(map[string]bool, len(cols))
	for _, c := range cols {
		known[c] = true
	}
	for _, row := range rows {
		for k := range row {
			if !known[k] {
				return k, true
			}
		}
	}
	return "", false
}

// parseIn decodes in.("a","b") into its values.
func parseIn(s string) []string {
	s = strings.TrimPrefix(s, "in.(")
	s = strings.TrimSuffix(s, ")")
	var (
		out     []string
		cur     strings.Builder
		inQuote bool
		escaped bool
	)
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			inQuote = !inQuote
		case r == ',' && !inQuote:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 || len(out) > 0 {
		out = append(out, cur.String())
	}
	return out
}
