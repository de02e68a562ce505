// Package client is a Go client for the contacts JSON API.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"gitlab.com/dirk.krummacker/location-contacts/pkg/model"
)

// APIError is returned for every response with an unexpected status code.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("contacts api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("contacts api: status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 answer.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client calls the API on behalf of the user the token was issued for.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the service at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ListContacts returns all contacts of the user, most recently created first.
func (c *Client) ListContacts(ctx context.Context) ([]model.Contact, error) {
	var contacts []model.Contact
	err := c.do(ctx, http.MethodGet, "/contacts", nil, http.StatusOK, &contacts)
	return contacts, err
}

// CreateContact creates a contact. Latitude and longitude must be set.
func (c *Client) CreateContact(ctx context.Context, input model.NewContact) (model.Contact, error) {
	var contact model.Contact
	err := c.do(ctx, http.MethodPost, "/contacts", input, http.StatusCreated, &contact)
	return contact, err
}

// GetContact returns a single contact.
func (c *Client) GetContact(ctx context.Context, id string) (model.Contact, error) {
	var contact model.Contact
	err := c.do(ctx, http.MethodGet, "/contacts/"+url.PathEscape(id), nil, http.StatusOK, &contact)
	return contact, err
}

// UpdateContact overwrites the fields set in the patch.
func (c *Client) UpdateContact(ctx context.Context, id string, patch model.ContactPatch) (model.Contact, error) {
	var contact model.Contact
	err := c.do(ctx, http.MethodPatch, "/contacts/"+url.PathEscape(id), patch, http.StatusOK, &contact)
	return contact, err
}

// DeleteContact deletes a contact. Deleting a missing contact is not an error.
func (c *Client) DeleteContact(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/contacts/"+url.PathEscape(id), nil, http.StatusNoContent, nil)
}

// ListNear returns the contacts within radiusKm of the point, nearest first. A radius of zero or
// less leaves the choice to the server.
func (c *Client) ListNear(ctx context.Context, lat, lng, radiusKm float64) ([]model.NearbyContact, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lng", strconv.FormatFloat(lng, 'f', -1, 64))
	if radiusKm > 0 {
		params.Set("radius", strconv.FormatFloat(radiusKm, 'f', -1, 64))
	}
	var contacts []model.NearbyContact
	err := c.do(ctx, http.MethodGet, "/contacts/near?"+params.Encode(), nil, http.StatusOK, &contacts)
	return contacts, err
}

// Seed asks the service to create its schema.
func (c *Client) Seed(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/seed", nil, http.StatusOK, nil)
}

// Healthy returns nil when the service and its database are up.
func (c *Client) Healthy(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, http.StatusOK, nil)
}

func (c *Client) do(ctx context.Context, method string, path string, body any, expected int, result any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(encoded)
	}
	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if response.StatusCode != expected {
		var answer struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(payload, &answer)
		return &APIError{StatusCode: response.StatusCode, Message: answer.Message}
	}
	if result == nil {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(payload, result), "decode %s %s", method, path)
}
