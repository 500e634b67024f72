package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"schedule-sync-backend/config"
	"schedule-sync-backend/internal/apperror"
	"schedule-sync-backend/internal/model"
)

// RESTGateway talks to a PostgREST-style API (as hosted by Supabase).
type RESTGateway struct {
	baseURL string
	apiKey   string
	pageSize int
	client   *http.Client
	log      logrus.FieldLogger
}

// DefaultPageSize matches PostgREST's usual max-rows setting.
const DefaultPageSize = 1000

// NewRESTGateway creates a gateway rooted at cfg.BaseURL + "/rest/v1".
func NewRESTGateway(cfg config.RemoteConfig, client *http.Client, log logrus.FieldLogger) *RESTGateway {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &RESTGateway{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/") + "/rest/v1",
		apiKey:   cfg.APIKey,
		pageSize: pageSize,
		client:   client,
		log:      log.WithField("component", "remote.rest"),
	}
}

func (g *RESTGateway) endpoint(table model.Table, params url.Values) string {
	u := g.baseURL + "/" + url.PathEscape(string(table))
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (g *RESTGateway) do(ctx context.Context, method, target string, body []byte, prefer string) ([]byte, http.Header, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, nil, apperror.RemoteRejected(0, fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("apikey", g.apiKey)
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, nil, apperror.RemoteUnavailable(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, apperror.RemoteUnavailable(fmt.Errorf("failed to read response body: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		g.log.WithFields(logrus.Fields{
			"method": method,
			"status": resp.StatusCode,
		}).Warn("Remote request failed")
		return nil, nil, classifyStatus(resp.StatusCode, respBody)
	}
	return respBody, resp.Header, nil
}

// Fetch implements Gateway. Rows are read in pages of pageSize so a
// server-side max-rows cap cannot truncate the result; q.Limit, when set,
// caps the total. Without an explicit order the pages are ordered by id.
func (g *RESTGateway) Fetch(ctx context.Context, table model.Table, q Query, dest any) error {
	params := url.Values{}
	params.Set("select", "*")
	if q.OrderBy != "" {
		dir := "asc"
		if q.Desc {
			dir = "desc"
		}
		params.Set("order", q.OrderBy+"."+dir)
	} else {
		params.Set("order", "id.asc")
	}
	for col, val := range q.Filters {
		params.Set(col, "eq."+val)
	}

	var rows []row
	offset := q.Offset
	for {
		size := g.pageSize
		if q.Limit > 0 && q.Limit-len(rows) < size {
			size = q.Limit - len(rows)
		}
		params.Set("limit", strconv.Itoa(size))
		params.Set("offset", strconv.Itoa(offset))

		body, header, err := g.do(ctx, http.MethodGet, g.endpoint(table, params), nil, "count=exact")
		if err != nil {
			return err
		}
		var page []row
		if err := json.Unmarshal(body, &page); err != nil {
			return apperror.RemoteRejected(http.StatusOK, fmt.Sprintf("unexpected %s payload: %v", table, err))
		}
		rows = append(rows, page...)
		offset += len(page)

		if len(page) == 0 || (q.Limit > 0 && len(rows) >= q.Limit) {
			break
		}
		if total, ok := rangeTotal(header.Get("Content-Range")); ok && offset >= total {
			break
		}
	}

	if err := decodeRows(table, rows, dest); err != nil {
		return apperror.RemoteRejected(http.StatusOK, fmt.Sprintf("unexpected %s payload: %v", table, err))
	}
	return nil
}

// rangeTotal reads the total from a Content-Range header such as "0-99/250".
// An unknown total ("*") reports false.
func rangeTotal(h string) (int, bool) {
	_, total, ok := strings.Cut(h, "/")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Upsert implements Gateway. Records are written under their column names.
func (g *RESTGateway) Upsert(ctx context.Context, table model.Table, records any) error {
	body, err := encodeRows(table, records)
	if err != nil {
		return apperror.RemoteRejected(0, fmt.Sprintf("failed to encode %s: %v", table, err))
	}
	params := url.Values{}
	params.Set("on_conflict", "id")
	_, _, err = g.do(ctx, http.MethodPost, g.endpoint(table, params), body, "resolution=merge-duplicates,return=minimal")
	return err
}

// Delete implements Gateway.
func (g *RESTGateway) Delete(ctx context.Context, table model.Table, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	params := url.Values{}
	params.Set("id", "in.("+quoteList(ids)+")")
	_, _, err := g.do(ctx, http.MethodDelete, g.endpoint(table, params), nil, "return=minimal")
	return err
}

// quoteList renders ids as a PostgREST list with every value double-quoted.
func quoteList(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		id = strings.ReplaceAll(id, `\`, `\\`)
		id = strings.ReplaceAll(id, `"`, `\"`)
		quoted[i] = `"` + id + `"`
	}
	return strings.Join(quoted, ",")
}
