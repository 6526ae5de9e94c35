package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
)

type client struct {
	base   string
	token  string
	artist string
	http   *http.Client
}

type apiError struct {
	Status     int
	Message    string   `json:"error"`
	Field      string   `json:"field"`
	BookingIDs []string `json:"booking_ids"`
}

func (e *apiError) Error() string {
	msg := fmt.Sprintf("%d: %s", e.Status, e.Message)
	if e.Field != "" {
		msg += " (field " + e.Field + ")"
	}
	if len(e.BookingIDs) > 0 {
		msg += " bookings: " + strings.Join(e.BookingIDs, ", ")
	}
	return msg
}

func (c *client) path(parts ...string) string {
	escaped := make([]string, 0, len(parts)+2)
	escaped = append(escaped, "schedule", url.PathEscape(c.artist))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return strings.TrimRight(c.base, "/") + "/" + strings.Join(escaped, "/")
}

// do sends body as JSON (when non-nil) and returns the raw response body of a 2xx answer.
func (c *client) do(ctx context.Context, method, target string, body any, headers map[string]string) ([]byte, error) {
	var r io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return nil, apiErr
	}
	return data, nil
}

// printJSON re-indents a JSON body; anything else is copied through.
func printJSON(w io.Writer, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		_, err = w.Write(data)
		return err
	}
	out.WriteByte('\n')
	_, err := out.WriteTo(w)
	return err
}
