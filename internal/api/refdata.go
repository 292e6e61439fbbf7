package api

import (
	"context"
	"net/url"

	"github.com/fieldexpense/claimsync/internal/model"
)

// ListCategories fetches the full category lookup table.
func (c *Client) ListCategories(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	if err := c.getJSON(ctx, "/categories", nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// ListClients fetches clients, optionally filtered server-side by search.
// An empty search returns the full list.
func (c *Client) ListClients(ctx context.Context, search string) ([]model.Client, error) {
	var query url.Values
	if search != "" {
		query = url.Values{"search": {search}}
	}
	var clients []model.Client
	if err := c.getJSON(ctx, "/clients", query, &clients); err != nil {
		return nil, err
	}
	return clients, nil
}

// CreateClient registers a new client by name and returns the created record.
func (c *Client) CreateClient(ctx context.Context, name string) (*model.Client, error) {
	payload := struct {
		Name string `json:"name"`
	}{Name: name}

	var created model.Client
	if err := c.postJSON(ctx, "/clients", payload, nil, &created); err != nil {
		return nil, err
	}
	return &created, nil
}
