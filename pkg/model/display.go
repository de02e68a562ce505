package model

import (
	"fmt"
	"math"
	"strings"
)

// CoordinateScale matches the eight fractional digits of the latitude and longitude columns.
const CoordinateScale = 1e8

// RoundCoordinate rounds a coordinate to the precision the database stores.
func RoundCoordinate(v float64) float64 {
	return math.Round(v*CoordinateScale) / CoordinateScale
}

// DisplayName is the name shown for a contact in lists: first and last name if either is known,
// otherwise the email address, otherwise the phone number.
func (c *Contact) DisplayName() string {
	first, last := deref(c.FirstName), deref(c.LastName)
	if first != "" || last != "" {
		return strings.TrimSpace(first + " " + last)
	}
	if email := deref(c.Email); email != "" {
		return email
	}
	if phone := deref(c.PhoneNumber); phone != "" {
		return phone
	}
	return "Unnamed Contact"
}

// LocationLabel is the captured place name, or the raw coordinates with four decimals.
func (c *Contact) LocationLabel() string {
	if name := deref(c.LocationName); name != "" {
		return name
	}
	return fmt.Sprintf("%.4f, %.4f", c.Latitude, c.Longitude)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
