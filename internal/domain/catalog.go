package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// LegacyCategoryRow is one tuple of the legacy categories dump
type LegacyCategoryRow struct {
	LegacyID int
	Name     string
	Slug     string
}

// LegacyProductRow is one decoded tuple of the legacy products dump.
// It is never persisted directly.
type LegacyProductRow struct {
	LegacyCategoryID int
	Name             string
	Slug             string
	Price            decimal.Decimal
	Stock            int
	Details          string
}

// Category represents a storefront category
type Category struct {
	ID          int64   `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Slug        string  `json:"slug" yaml:"slug"`
	Description *string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Product represents a storefront product
type Product struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	Slug             string          `json:"slug"`
	Description      string          `json:"description"`
	Price            decimal.Decimal `json:"price"`
	Stock            int             `json:"stock"`
	Images           []string        `json:"images"`
	CategoryID       int64           `json:"category_id"`
	Unit             string          `json:"unit"`
	IsLot            bool            `json:"is_lot"`
	Verified         bool            `json:"verified"`
	Source           string          `json:"source"`
	LegacyCategoryID *int            `json:"legacy_category_id,omitempty"`
}

// ImageCandidate is a scored image file for a product
type ImageCandidate struct {
	Path  string
	Score int
}

// Unit values written on product creation
const (
	UnitPiece       = "piece"
	UnitSquareMeter = "m2"
)

// Source tags derived from product names
const (
	SourceOXTrade = "OX Trade"
	SourceHammam  = "Hammam Living"
	SourceUnknown = "Unknown"
)

// EncodeImages serializes an image list the way it is stored
func EncodeImages(images []string) (string, error) {
	if images == nil {
		images = []string{}
	}
	data, err := json.Marshal(images)
	if err != nil {
		return "", fmt.Errorf("failed to encode images: %w", err)
	}
	return string(data), nil
}

// DecodeImages parses a stored image list. An empty column decodes to nil.
func DecodeImages(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var images []string
	if err := json.Unmarshal([]byte(raw), &images); err != nil {
		return nil, fmt.Errorf("failed to decode images %q: %w", raw, err)
	}
	return images, nil
}

// HasOnlyPlaceholder reports whether a product still carries just the
// placeholder sentinel (or no image at all).
func (p *Product) HasOnlyPlaceholder(placeholder string) bool {
	if len(p.Images) == 0 {
		return true
	}
	return len(p.Images) == 1 && p.Images[0] == placeholder
}
