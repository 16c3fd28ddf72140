package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/shortlister/internal/store"
)

const contentType = "application/json"

type listResponse struct {
	Records []store.Record
	Offset  string
}

type writeRecord struct {
	ID     string         `json:"id,omitempty"`
	Fields map[string]any `json:"fields"`
}

type writeRequest struct {
	Records []writeRecord `json:"records"`
}

// APIError is returned for non-2xx responses and carries the Airtable error envelope.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	switch {
	case e.Type != "" && e.Message != "":
		return fmt.Sprintf("airtable: status %d: %s: %s", e.StatusCode, e.Type, e.Message)
	case e.Type != "":
		return fmt.Sprintf("airtable: status %d: %s", e.StatusCode, e.Type)
	case e.Message != "":
		return fmt.Sprintf("airtable: status %d: %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("airtable: status %d", e.StatusCode)
	}
}

func (c *Client) listPage(ctx context.Context, table string, q url.Values) (*listResponse, error) {
	var raw map[string]any
	if err := c.do(ctx, http.MethodGet, c.tableURL(table), q, nil, &raw); err != nil {
		return nil, err
	}

	var response listResponse
	if err := decodeEnvelope(raw, &response); err != nil {
		return nil, err
	}

	c.logger.Debug("got response from airtable",
		zap.String("table", table),
		zap.Int("records", len(response.Records)),
		zap.Bool("has_more", response.Offset != ""),
	)

	return &response, nil
}

func (c *Client) writeOne(ctx context.Context, method, table string, payload writeRequest) (store.Record, error) {
	var raw map[string]any
	if err := c.do(ctx, method, c.tableURL(table), nil, payload, &raw); err != nil {
		return store.Record{}, err
	}

	var response listResponse
	if err := decodeEnvelope(raw, &response); err != nil {
		return store.Record{}, err
	}
	if len(response.Records) == 0 {
		return store.Record{}, errors.New("airtable returned no records")
	}

	return response.Records[0], nil
}

// decodeEnvelope maps a generic JSON body onto typed records.
func decodeEnvelope(raw map[string]any, target *listResponse) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("decode airtable response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, q url.Values, body any, target any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if q != nil {
		req.URL.RawQuery = q.Encode()
	}
	req = c.setHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	c.logger.Debug("make request", zap.String("method", method), zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp.StatusCode, data)
	}

	if target == nil || len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, target)
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)

	return req
}

// parseError understands both envelope shapes Airtable uses:
// {"error": {"type": "...", "message": "..."}} and {"error": "NOT_FOUND"}.
func parseError(status int, data []byte) error {
	apiErr := &APIError{StatusCode: status}

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || len(envelope.Error) == 0 {
		apiErr.Message = http.StatusText(status)
		return apiErr
	}

	var detailed struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &detailed); err == nil {
		apiErr.Type = detailed.Type
		apiErr.Message = detailed.Message
		return apiErr
	}

	var code string
	if err := json.Unmarshal(envelope.Error, &code); err == nil {
		apiErr.Type = code
	}
	return apiErr
}
