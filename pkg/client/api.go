package client

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
)

// SearchPlace looks up a place by free-text query.
//
// Coalesced callers share the returned record; treat it as read-only.
func (c *Client) SearchPlace(ctx context.Context, query string) (*PlaceRecord, error) {
	if err := c.checkConfig(); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty place query", ErrInvalidArgument)
	}
	return getJSON[PlaceRecord](ctx, c, PathPlaces, url.Values{"query": {query}})
}

// GetPlaceDetails looks up a place by its upstream ID.
//
// Coalesced callers share the returned record; treat it as read-only.
func (c *Client) GetPlaceDetails(ctx context.Context, placeID string) (*PlaceRecord, error) {
	if err := c.checkConfig(); err != nil {
		return nil, err
	}
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		return nil, fmt.Errorf("%w: empty place id", ErrInvalidArgument)
	}
	return getJSON[PlaceRecord](ctx, c, PathPlaces, url.Values{"placeId": {placeID}})
}

// GetWeather returns the current weather for a location.
//
// Coalesced callers share the returned record; treat it as read-only.
func (c *Client) GetWeather(ctx context.Context, location string) (*WeatherRecord, error) {
	if err := c.checkConfig(); err != nil {
		return nil, err
	}
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("%w: empty weather location", ErrInvalidArgument)
	}
	return getJSON[WeatherRecord](ctx, c, PathWeather, url.Values{"location": {location}})
}

// GetExchangeRate returns the exchange rate for the configured currency.
//
// Coalesced callers share the returned record; treat it as read-only.
func (c *Client) GetExchangeRate(ctx context.Context) (*ExchangeRecord, error) {
	if err := c.checkConfig(); err != nil {
		return nil, err
	}
	return getJSON[ExchangeRecord](ctx, c, PathExchangeRate, url.Values{"currency": {c.config.Currency}})
}

// SubscribeNewsletter subscribes email to the newsletter.
func (c *Client) SubscribeNewsletter(ctx context.Context, email string) (*Ack, error) {
	if err := c.checkConfig(); err != nil {
		return nil, err
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	return c.post(ctx, PathNewsletter, struct {
		Email string `json:"email"`
	}{Email: email})
}

// SubmitContact sends a contact form submission.
func (c *Client) SubmitContact(ctx context.Context, req ContactRequest) (*Ack, error) {
	if err := c.checkConfig(); err != nil {
		return nil, err
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	req.Email = email
	req.Name = strings.TrimSpace(req.Name)
	req.Subject = strings.TrimSpace(req.Subject)
	req.Message = strings.TrimSpace(req.Message)

	switch {
	case req.Name == "":
		return nil, fmt.Errorf("%w: contact name is required", ErrInvalidArgument)
	case req.Subject == "":
		return nil, fmt.Errorf("%w: contact subject is required", ErrInvalidArgument)
	case req.Message == "":
		return nil, fmt.Errorf("%w: contact message is required", ErrInvalidArgument)
	}

	return c.post(ctx, PathContact, req)
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidArgument)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: malformed email %q", ErrInvalidArgument, email)
	}
	return email, nil
}
