// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/keyfold/keyfold/internal/logger"
	"github.com/keyfold/keyfold/models"
)

type httpBackendAdapter struct {
	client *resty.Client
	logger *logger.Logger
}

// NewHTTPBackendAdapter constructs the HTTP/REST implementation of
// [BackendAdapter] for a keyfold sync server. The access token is attached
// as a bearer token on every request.
func NewHTTPBackendAdapter(cfg models.HTTPBackendConfig, timeout time.Duration, log *logger.Logger) (BackendAdapter, error) {
	baseURL, err := normalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetAuthToken(cfg.AccessToken).
		SetHeader("Content-Type", "application/json")

	return &httpBackendAdapter{client: client, logger: log}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

func (h *httpBackendAdapter) Kind() models.BackendKind {
	return models.BackendHTTP
}

// Verify implements [BackendAdapter]. It GETs the vault root; any 2xx means
// reachable and authenticated.
func (h *httpBackendAdapter) Verify(ctx context.Context) error {
	resp, err := h.client.R().
		SetContext(ctx).
		Get("/api/v1/ping")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return mapHTTPError(resp)
}

// Push implements [BackendAdapter]. POST /api/v1/vaults/{vault}/changes.
func (h *httpBackendAdapter) Push(ctx context.Context, req models.PushRequest) (models.PushResponse, error) {
	var ack models.PushResponse

	resp, err := h.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&ack).
		Post("/api/v1/vaults/" + url.PathEscape(req.VaultID) + "/changes")
	if err != nil {
		return models.PushResponse{}, fmt.Errorf("%w: push request: %w", ErrUnavailable, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.PushResponse{}, err
	}

	return ack, nil
}

// Pull implements [BackendAdapter]. GET /api/v1/vaults/{vault}/changes with
// the watermark and limit as query parameters.
func (h *httpBackendAdapter) Pull(ctx context.Context, vaultID string, after models.HLC, limit int) (models.PullResponse, error) {
	var pull models.PullResponse

	req := h.client.R().
		SetContext(ctx).
		SetQueryParam("after", after.String()).
		SetResult(&pull)
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}

	resp, err := req.Get("/api/v1/vaults/" + url.PathEscape(vaultID) + "/changes")
	if err != nil {
		return models.PullResponse{}, fmt.Errorf("%w: pull request: %w", ErrUnavailable, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.PullResponse{}, err
	}

	return pull, nil
}

// PullTableColumn implements [BackendAdapter]. Same endpoint as Pull but
// filtered to one table/column pair, unbounded by watermark.
func (h *httpBackendAdapter) PullTableColumn(ctx context.Context, vaultID, table, column string) (models.PullResponse, error) {
	var pull models.PullResponse

	resp, err := h.client.R().
		SetContext(ctx).
		SetQueryParam("table", table).
		SetQueryParam("column", column).
		SetResult(&pull).
		Get("/api/v1/vaults/" + url.PathEscape(vaultID) + "/changes")
	if err != nil {
		return models.PullResponse{}, fmt.Errorf("%w: pull table column request: %w", ErrUnavailable, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.PullResponse{}, err
	}

	return pull, nil
}

// FetchWrappedKey implements [BackendAdapter].
// GET /api/v1/vaults/{vault}/key; 404 means no key uploaded yet.
func (h *httpBackendAdapter) FetchWrappedKey(ctx context.Context, vaultID string) (models.WrappedKey, bool, error) {
	var key models.WrappedKey

	resp, err := h.client.R().
		SetContext(ctx).
		SetResult(&key).
		Get("/api/v1/vaults/" + url.PathEscape(vaultID) + "/key")
	if err != nil {
		return models.WrappedKey{}, false, fmt.Errorf("%w: fetch wrapped key: %w", ErrUnavailable, err)
	}
	if err = mapHTTPError(resp); err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return models.WrappedKey{}, false, nil
		}
		return models.WrappedKey{}, false, err
	}

	return key, true, nil
}

// UploadWrappedKey implements [BackendAdapter].
// PUT /api/v1/vaults/{vault}/key.
func (h *httpBackendAdapter) UploadWrappedKey(ctx context.Context, key models.WrappedKey) error {
	resp, err := h.client.R().
		SetContext(ctx).
		SetBody(key).
		Put("/api/v1/vaults/" + url.PathEscape(key.VaultID) + "/key")
	if err != nil {
		return fmt.Errorf("%w: upload wrapped key: %w", ErrUnavailable, err)
	}
	return mapHTTPError(resp)
}

func (h *httpBackendAdapter) Close() {}
