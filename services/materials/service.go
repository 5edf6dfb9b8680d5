// Package materials serves the read-only product reference catalog. The
// catalog ships with a built-in dataset and can be replaced by a JSON file
// pointed at through configuration.
package materials

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"exportdesk/models"
)

// defaultCatalog is the built-in seafood reference dataset.
var defaultCatalog = []models.Material{
	{SKU: "SKU-101", Description: "Salmón Atlántico Entero HG", Category: "Salmón", DefaultPriceCents: 850},
	{SKU: "SKU-102", Description: "Salmón Filete Trim D", Category: "Salmón", DefaultPriceCents: 1200},
	{SKU: "SKU-103", Description: "Salmón Filete Trim C", Category: "Salmón", DefaultPriceCents: 1050},
	{SKU: "SKU-104", Description: "Salmón Filete Trim E", Category: "Salmón", DefaultPriceCents: 1400},
	{SKU: "SKU-105", Description: "Salmón Porción 150g", Category: "Salmón", DefaultPriceCents: 650},
	{SKU: "SKU-201", Description: "Trucha Arcoíris Entero HG", Category: "Trucha", DefaultPriceCents: 700},
	{SKU: "SKU-202", Description: "Trucha Filete Trim D", Category: "Trucha", DefaultPriceCents: 950},
	{SKU: "SKU-301", Description: "Choritos Enteros Cocidos", Category: "Moluscos", DefaultPriceCents: 400},
	{SKU: "SKU-302", Description: "Choritos Media Concha", Category: "Moluscos", DefaultPriceCents: 550},
}

// Service holds the loaded catalog. Immutable after construction.
type Service struct {
	catalog []models.Material
	bySKU   map[string]models.Material
}

// catalogEntry is the on-disk JSON shape, with the price as a decimal string.
type catalogEntry struct {
	SKU          string `json:"sku"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	DefaultPrice string `json:"defaultPrice"`
}

// NewService loads the catalog from path, or falls back to the built-in
// dataset when path is empty.
func NewService(path string, log *slog.Logger) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}

	catalog := defaultCatalog
	if path != "" {
		loaded, err := loadCatalog(path)
		if err != nil {
			return nil, err
		}
		catalog = loaded
		log.Info("material catalog loaded", "path", path, "entries", len(catalog))
	}

	bySKU := make(map[string]models.Material, len(catalog))
	for _, m := range catalog {
		bySKU[m.SKU] = m
	}
	return &Service{catalog: catalog, bySKU: bySKU}, nil
}

func loadCatalog(path string) ([]models.Material, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read material catalog: %w", err)
	}
	var entries []catalogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse material catalog: %w", err)
	}

	catalog := make([]models.Material, 0, len(entries))
	for _, e := range entries {
		cents, err := models.ParseCents(e.DefaultPrice)
		if err != nil {
			return nil, fmt.Errorf("material %s: bad price %q: %w", e.SKU, e.DefaultPrice, err)
		}
		catalog = append(catalog, models.Material{
			SKU:               e.SKU,
			Description:       e.Description,
			Category:          e.Category,
			DefaultPriceCents: cents,
		})
	}
	return catalog, nil
}

// List returns the catalog, optionally filtered by category, sorted by SKU.
func (s *Service) List(category string) []models.Material {
	out := make([]models.Material, 0, len(s.catalog))
	for _, m := range s.catalog {
		if category != "" && !strings.EqualFold(m.Category, category) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out
}

// Get returns one catalog entry by SKU.
func (s *Service) Get(sku string) (models.Material, bool) {
	m, ok := s.bySKU[sku]
	return m, ok
}
