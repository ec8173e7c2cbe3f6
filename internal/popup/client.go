package popup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/ibeckermayer/tweetsaver/internal/router"
)

// ErrNotRunning is returned when nothing answers on the settings address.
var ErrNotRunning = errors.New("tweetsaver is not running")

// TriggerSave asks a running instance listening on addr to save the post in
// its page session. source is SourceShortcut or SourceContext.
func TriggerSave(ctx context.Context, addr, source string) (router.Response, error) {
	q := url.Values{"source": {source}}
	out, err := call(ctx, addr, "/api/save", q, nil)
	if err != nil {
		return out, err
	}
	if !out.Success && out.Error != "" {
		return out, fmt.Errorf("save failed: %s", out.Error)
	}
	return out, nil
}

// UpdateConfig hands new credentials to a running instance listening on
// addr, which persists them and switches to them immediately.
func UpdateConfig(ctx context.Context, addr, apiKey, baseURL string) (router.Response, error) {
	body, err := json.Marshal(map[string]string{"apiKey": apiKey, "baseUrl": baseURL})
	if err != nil {
		return router.Response{}, err
	}
	out, err := call(ctx, addr, "/api/config", nil, body)
	if err != nil {
		return out, err
	}
	if !out.Success && out.Error != "" {
		return out, fmt.Errorf("update failed: %s", out.Error)
	}
	return out, nil
}

// call POSTs body to path on addr and decodes the router response.
func call(ctx context.Context, addr, path string, query url.Values, body []byte) (router.Response, error) {
	u := url.URL{Scheme: "http", Host: addr, Path: path, RawQuery: query.Encode()}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), rd)
	if err != nil {
		return router.Response{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return router.Response{}, fmt.Errorf("%w at %s: %v", ErrNotRunning, addr, err)
	}
	defer resp.Body.Close()

	var out router.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return router.Response{}, fmt.Errorf("failed to decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	return out, nil
}
