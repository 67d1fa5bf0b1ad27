package client

import (
	"context"
	"net/http"

	"github.com/nijaru/videochat/models"
)

// HealthCheck queries <host>/health. The endpoint lives at the host root,
// outside the versioned API prefix.
func (c *Client) HealthCheck(ctx context.Context) (*models.HealthResponse, error) {
	const op = "Client.HealthCheck"

	var out models.HealthResponse
	if err := c.doJSON(ctx, op, FallbackHealth, http.MethodGet, c.rootURL("/health"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ServiceInfo returns the banner served at the host root.
func (c *Client) ServiceInfo(ctx context.Context) (*models.ServiceInfo, error) {
	const op = "Client.ServiceInfo"

	var out models.ServiceInfo
	if err := c.doJSON(ctx, op, FallbackUnknown, http.MethodGet, c.rootURL("/"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
