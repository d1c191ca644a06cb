package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// GeoPoint is a latitude/longitude pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Review is a single user review attached to a place.
type Review struct {
	Author string  `json:"author"`
	Rating float64 `json:"rating"`
	Text   string  `json:"text"`
	Time   string  `json:"time,omitempty"`
}

// PlaceRecord is a place as returned by /api/places.
type PlaceRecord struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	Rating      float64   `json:"rating"`
	ReviewCount int       `json:"reviewCount"`
	Location    *GeoPoint `json:"location,omitempty"`
	Reviews     []Review  `json:"reviews,omitempty"`
}

func (p *PlaceRecord) validate() error {
	if p.Name == "" {
		return errors.New("place name is empty")
	}
	if p.Rating < 0 || p.Rating > 5 {
		return fmt.Errorf("place rating %v out of range [0,5]", p.Rating)
	}
	if p.ReviewCount < 0 {
		return fmt.Errorf("negative review count %d", p.ReviewCount)
	}
	return nil
}

// WeatherRecord is the current weather for a location.
type WeatherRecord struct {
	Location     string    `json:"location"`
	TemperatureC float64   `json:"temperature"`
	Condition    string    `json:"condition"`
	Humidity     int       `json:"humidity"`
	WindKph      float64   `json:"windKph"`
	Icon         string    `json:"icon,omitempty"`
	ObservedAt   time.Time `json:"observedAt"`
}

func (w *WeatherRecord) validate() error {
	if w.Location == "" {
		return errors.New("weather location is empty")
	}
	if w.Humidity < 0 || w.Humidity > 100 {
		return fmt.Errorf("humidity %d out of range [0,100]", w.Humidity)
	}
	return nil
}

// ExchangeRecord is an exchange rate from Base into Currency.
type ExchangeRecord struct {
	Base      string    `json:"base"`
	Currency  string    `json:"currency"`
	Rate      float64   `json:"rate"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (e *ExchangeRecord) validate() error {
	if e.Currency == "" {
		return errors.New("exchange currency is empty")
	}
	if e.Rate <= 0 {
		return fmt.Errorf("exchange rate %v must be positive", e.Rate)
	}
	return nil
}

// Ack acknowledges a newsletter subscription or contact submission.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (a *Ack) validate() error {
	return nil
}

// ContactRequest is the body of a contact form submission.
type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// payload is implemented by every response shape.
type payload[T any] interface {
	*T
	validate() error
}

// decode unmarshals and validates a response body into its typed record.
func decode[T any, P payload[T]](endpoint string, data []byte) (*T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	if err == nil {
		err = P(&v).validate()
	}
	if err != nil {
		travelErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return nil, &DecodeError{Endpoint: endpoint, Err: err}
	}
	return &v, nil
}
