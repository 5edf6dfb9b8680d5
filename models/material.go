package models

import "encoding/json"

// Material is one entry of the read-only product reference catalog.
type Material struct {
	SKU               string `json:"sku"`
	Description       string `json:"description"`
	Category          string `json:"category"`
	DefaultPriceCents int64  `json:"-"`
}

// MarshalJSON exposes the default price as a decimal string.
func (m Material) MarshalJSON() ([]byte, error) {
	type materialAlias Material // prevent recursion
	return json.Marshal(&struct {
		materialAlias
		DefaultPrice string `json:"defaultPrice"`
	}{
		materialAlias: materialAlias(m),
		DefaultPrice:  FormatCents(m.DefaultPriceCents),
	})
}

// SystemConfig is one key/value row of platform-level configuration,
// editable only by platform admins.
type SystemConfig struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}
