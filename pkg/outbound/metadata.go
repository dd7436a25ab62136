package outbound

import (
	"encoding/json"
	"strings"
)

// Defaults substituted for absent metadata fields.
const (
	DefaultFirstName = "there"
	DefaultCity      = "your area"
	DefaultAddress   = "your property"
)

// CallContext is the structured record for one outbound call. Immutable
// once constructed.
type CallContext struct {
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name"`
	City        string `json:"city"`
	Address     string `json:"address"`
	RealtorName string `json:"realtor_name"`
}

type rawMetadata struct {
	PhoneNumber string `json:"phone_number"`
	Phone       string `json:"phone"`
	FirstName   string `json:"first_name"`
	City        string `json:"city"`
	Address     string `json:"address"`
	RealtorName string `json:"realtor_name"`
}

// ParseMetadata normalizes caller-supplied input into a CallContext. The
// input is either a JSON object with optional keys phone_number|phone,
// first_name, city, address, realtor_name, or a bare phone number.
// Malformed JSON degrades to the bare-phone-number path; this never fails.
func ParseMetadata(raw string) CallContext {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, "{") {
		var m rawMetadata
		if err := json.Unmarshal([]byte(trimmed), &m); err == nil {
			phone := m.PhoneNumber
			if phone == "" {
				phone = m.Phone
			}
			if phone == "" {
				phone = trimmed
			}
			return withDefaults(CallContext{
				PhoneNumber: phone,
				FirstName:   m.FirstName,
				City:        m.City,
				Address:     m.Address,
				RealtorName: m.RealtorName,
			})
		}
	}

	return withDefaults(CallContext{PhoneNumber: trimmed})
}

// WithRealtorDefault fills in the realtor name when metadata omitted it.
func (c CallContext) WithRealtorDefault(name string) CallContext {
	if c.RealtorName == "" {
		c.RealtorName = name
	}
	return c
}

func withDefaults(c CallContext) CallContext {
	if c.FirstName == "" {
		c.FirstName = DefaultFirstName
	}
	if c.City == "" {
		c.City = DefaultCity
	}
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	return c
}
