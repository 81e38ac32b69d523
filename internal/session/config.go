package session

import (
	"encoding/json"
	"log/slog"

	"github.com/inamate/stickers/internal/checkout"
	"github.com/inamate/stickers/internal/scene"
)

// Default canvas size when the host page does not set one.
const (
	DefaultCanvasWidth  = 400
	DefaultCanvasHeight = 500
)

// CatalogItem is one sticker image the shopper may place.
type CatalogItem struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title,omitempty"`
	ImageRef string `json:"imageRef"`
}

// Config is what the host page passes when mounting the configurator.
type Config struct {
	ProductID    string              `json:"productId"`
	ProductTitle string              `json:"productTitle,omitempty"`
	ProductImage string              `json:"productImage,omitempty"`
	VariantID    string              `json:"variantId"`
	CanvasWidth  float64             `json:"canvasWidth,omitempty"`
	CanvasHeight float64             `json:"canvasHeight,omitempty"`
	Stickers     []CatalogItem       `json:"stickers,omitempty"`
	Placed       []scene.StickerSpec `json:"placed,omitempty"` // canvas coordinates
	Design       json.RawMessage     `json:"design,omitempty"` // serialized scene to resume
}

// Product returns the product the design is attached to at checkout.
func (c Config) Product() checkout.Product {
	return checkout.Product{
		ID:        c.ProductID,
		Title:     c.ProductTitle,
		Image:     c.ProductImage,
		VariantID: c.VariantID,
	}
}

func (c Config) withDefaults() Config {
	if c.CanvasWidth == 0 {
		c.CanvasWidth = DefaultCanvasWidth
	}
	if c.CanvasHeight == 0 {
		c.CanvasHeight = DefaultCanvasHeight
	}
	return c
}

// catalog drops unusable entries and indexes the rest by image.
func catalog(items []CatalogItem, log *slog.Logger) ([]CatalogItem, map[string]CatalogItem) {
	kept := make([]CatalogItem, 0, len(items))
	byImage := make(map[string]CatalogItem, len(items))
	ids := make(map[string]struct{}, len(items))
	for i, item := range items {
		if item.ImageRef == "" {
			log.Warn("dropping catalog sticker without image", "index", i, "id", item.ID)
			continue
		}
		if item.ID != "" {
			if _, dup := ids[item.ID]; dup {
				log.Warn("dropping duplicate catalog sticker", "index", i, "id", item.ID)
				continue
			}
			ids[item.ID] = struct{}{}
		}
		kept = append(kept, item)
		byImage[item.ImageRef] = item
	}
	return kept, byImage
}
