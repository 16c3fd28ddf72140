// Package airtable implements store.Store on top of the Airtable REST API.
package airtable

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/shortlister/internal/store"
)

const (
	apiURL    = "https://api.airtable.com/v0"
	userAgent = "spigell/shortlister"
	// Max value for list per page.
	pageSize = 100
	// Max records per write request.
	batchSize = 10
	// Airtable allows 5 requests per second per base.
	requestsPerSecond = 5
)

type Client struct {
	token   string
	baseID  string
	logger  *zap.Logger
	limiter *rate.Limiter

	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

var _ store.Store = (*Client)(nil)

func New(logger *zap.Logger, token, baseID string) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("airtable api key is required")
	}
	baseID = strings.TrimSpace(baseID)
	if baseID == "" {
		return nil, errors.New("airtable base id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		token:   token,
		baseID:  baseID,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		UserAgent: userAgent,
		APIURL:    apiURL,
	}, nil
}

// List returns every record of the table matching filter, following pagination.
func (c *Client) List(ctx context.Context, table string, filter store.Filter, fields ...string) ([]store.Record, error) {
	q := url.Values{}
	q.Set("pageSize", strconv.Itoa(pageSize))
	if formula := filter.Formula(); formula != "" {
		q.Set("filterByFormula", formula)
	}
	for i, field := range fields {
		q.Set(fmt.Sprintf("fields[%d]", i), field)
	}

	var records []store.Record
	for {
		page, err := c.listPage(ctx, table, q)
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", table, err)
		}
		records = append(records, page.Records...)

		if page.Offset == "" {
			break
		}

		c.logger.Debug("additional request needed",
			zap.String("table", table),
			zap.Int("records_so_far", len(records)),
		)
		q.Set("offset", page.Offset)
	}

	return records, nil
}

func (c *Client) Create(ctx context.Context, table string, fields map[string]any) (store.Record, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	payload := writeRequest{Records: []writeRecord{{Fields: fields}}}

	rec, err := c.writeOne(ctx, http.MethodPost, table, payload)
	if err != nil {
		return store.Record{}, fmt.Errorf("create in %q: %w", table, err)
	}
	return rec, nil
}

// Update patches the record: fields that are not sent keep their values.
func (c *Client) Update(ctx context.Context, table, id string, fields map[string]any) (store.Record, error) {
	payload := writeRequest{Records: []writeRecord{{ID: id, Fields: fields}}}

	rec, err := c.writeOne(ctx, http.MethodPatch, table, payload)
	if err != nil {
		return store.Record{}, fmt.Errorf("update %s in %q: %w", id, table, err)
	}
	return rec, nil
}

// Delete removes records in batches of ten, the API limit per request.
func (c *Client) Delete(ctx context.Context, table string, ids []string) error {
	for start := 0; start < len(ids); start += batchSize {
		end := min(start+batchSize, len(ids))

		q := url.Values{}
		for _, id := range ids[start:end] {
			q.Add("records[]", id)
		}

		if err := c.do(ctx, http.MethodDelete, c.tableURL(table), q, nil, nil); err != nil {
			return fmt.Errorf("delete from %q: %w", table, err)
		}
	}

	return nil
}

func (c *Client) tableURL(table string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(c.APIURL, "/"), c.baseID, url.PathEscape(table))
}
