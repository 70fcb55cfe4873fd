package domain

import (
	"net/mail"
	"strings"
)

type ShippingDetails struct {
	Name        string `json:"name" bson:"name"`
	Email       string `json:"email" bson:"email"`
	AddressLine string `json:"address_line" bson:"address_line"`
	City        string `json:"city" bson:"city"`
	State       string `json:"state" bson:"state"`
	Zip         string `json:"zip" bson:"zip"`
	Country     string `json:"country" bson:"country"`
}

// Validate reports every missing field at once so the form can show them inline.
func (s ShippingDetails) Validate() error {
	v := &ValidationError{}
	required := []struct {
		field, value string
	}{
		{"name", s.Name},
		{"address_line", s.AddressLine},
		{"city", s.City},
		{"state", s.State},
		{"zip", s.Zip},
		{"country", s.Country},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			v.Add(r.field, "is required")
		}
	}

	email := strings.TrimSpace(s.Email)
	switch {
	case email == "":
		v.Add("email", "is required")
	case !validEmail(email):
		v.Add("email", "is not a valid address")
	}
	return v.OrNil()
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndex(s, "@")
	return at > 0 && strings.Contains(s[at+1:], ".")
}
