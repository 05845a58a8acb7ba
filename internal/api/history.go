package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/rickgao/mse-data/internal/model"
)

// FetchHistory posts the window's date range and returns the raw table rows.
// Failures after all retries come back as *FetchError.
func (c *Client) FetchHistory(ctx context.Context, w model.FetchWindow) ([][]string, error) {
	form := url.Values{}
	for k, v := range w.FormValues() {
		form.Set(k, v)
	}

	body, attempts, err := c.doWithRetry(ctx, kindHistory, http.MethodPost, form)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &FetchError{Window: w, Attempts: attempts, Err: err}
	}

	rows, err := ExtractRows(bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{Window: w, Attempts: attempts, Err: err}
	}

	c.logger.Debug("fetched history window",
		"window", w.String(),
		"rows", len(rows),
		"attempts", attempts,
	)

	return rows, nil
}

// ListCodes fetches the listing page and returns every option of the
// security selector. Failures come back as *DiscoveryError.
func (c *Client) ListCodes(ctx context.Context) ([]string, error) {
	body, _, err := c.doWithRetry(ctx, kindListing, http.MethodGet, nil)
	if err != nil {
		return nil, &DiscoveryError{URL: c.baseURL, Err: err}
	}

	codes, err := ExtractCodes(bytes.NewReader(body))
	if err != nil {
		return nil, &DiscoveryError{URL: c.baseURL, Err: err}
	}

	return codes, nil
}
