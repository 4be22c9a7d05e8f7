// Package view maps catalog data onto the cards the storefront renders.
package view

import (
	"fmt"
	"io"
	"strings"

	app "storefront/src/app"
	"storefront/src/client"
)

type (
	CollectionCard struct {
		Name        string
		Slug        string
		Href        string
		Description string
		Image       string
	}

	ProductCard struct {
		Name   string
		Slug   string
		Price  string
		Image  string
		Status string
	}

	CollectionPage struct {
		Title       string
		Description string
		Banner      string
		TypeName    string
		TypeHref    string
		Products    []ProductCard
	}
)

func NewCollectionCard(c app.Collection) CollectionCard {
	card := CollectionCard{
		Name:  c.Name,
		Slug:  c.Slug,
		Href:  "/collections/" + c.Slug,
		Image: client.ImageURLPtr(c.Thumbnail),
	}
	if c.Description != nil {
		card.Description = *c.Description
	}
	return card
}

func NewCollectionCards(collections []app.Collection) []CollectionCard {
	cards := make([]CollectionCard, 0, len(collections))
	for _, c := range collections {
		cards = append(cards, NewCollectionCard(c))
	}
	return cards
}

// NewProductCard uses the first image by position.
func NewProductCard(p app.Product) ProductCard {
	image := ""
	best := 0
	for i, img := range p.Images {
		if i == 0 || img.Position < best {
			image, best = img.Path, img.Position
		}
	}
	return ProductCard{
		Name:   p.Name,
		Slug:   p.Slug,
		Price:  p.Price.StringFixed(2),
		Image:  client.ImageURL(image),
		Status: p.Status,
	}
}

func NewCollectionPage(c app.Collection) CollectionPage {
	page := CollectionPage{
		Title:    c.Name,
		Banner:   client.ImageURLPtr(c.Banner),
		Products: make([]ProductCard, 0, len(c.Products)),
	}
	if c.MetaTitle != nil && *c.MetaTitle != "" {
		page.Title = *c.MetaTitle
	}
	if c.Description != nil {
		page.Description = *c.Description
	}
	if c.CollectionType != nil {
		page.TypeName = c.CollectionType.Name
		page.TypeHref = "/collections?type=" + c.CollectionType.Slug
	}
	for _, p := range c.Products {
		page.Products = append(page.Products, NewProductCard(p))
	}
	return page
}

// RenderCollectionCards writes one line per card.
func RenderCollectionCards(w io.Writer, cards []CollectionCard) error {
	for _, card := range cards {
		line := fmt.Sprintf("%-24s %-32s %s", card.Slug, card.Name, card.Image)
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	return nil
}

func RenderCollectionPage(w io.Writer, page CollectionPage) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", page.Title)
	if page.TypeName != "" {
		fmt.Fprintf(&b, "type: %s\n", page.TypeName)
	}
	if page.Description != "" {
		fmt.Fprintf(&b, "%s\n", page.Description)
	}
	fmt.Fprintf(&b, "banner: %s\n", page.Banner)
	for _, p := range page.Products {
		fmt.Fprintf(&b, "  %-24s %10s  %s\n", p.Name, p.Price, p.Image)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
