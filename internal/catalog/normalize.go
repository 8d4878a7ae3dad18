package catalog

import "strings"

// Card is a service with every display field populated. Renderers consume
// cards only and never look at raw records.
type Card struct {
	ID           string
	Name         string
	Category     Category
	Icon         string
	Description  string
	Price        string
	Keywords     string
	Image        string
	Images       []string
	Features     []string
	ProductTypes []ProductType
	Status       Status
}

// HasImage reports whether the card has at least one image reference.
func (c Card) HasImage() bool { return len(c.Images) > 0 }

// Normalize projects a raw record into a Card. It reports false for records
// without a name, which callers skip.
func Normalize(s Service) (Card, bool) {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return Card{}, false
	}

	category := s.Category
	if !category.Valid() {
		category = CategoryOther
	}

	price := strings.TrimSpace(s.Price)
	if price == "" {
		price = DefaultPrice
	}

	status := s.Status
	if !status.Valid() {
		status = StatusAvailable
	}

	images := nonEmpty(s.Images)
	image := strings.TrimSpace(s.Image)
	if len(images) == 0 && image != "" {
		images = []string{image}
	}
	if image == "" && len(images) > 0 {
		image = images[0]
	}

	return Card{
		ID:           s.ID,
		Name:         name,
		Category:     category,
		Icon:         category.Icon(),
		Description:  s.Description,
		Price:        price,
		Keywords:     s.Keywords,
		Image:        image,
		Images:       images,
		Features:     nonEmpty(s.Features),
		ProductTypes: namedTiers(s.ProductTypes),
		Status:       status,
	}, true
}

// NormalizeAll normalizes a list, dropping nameless records and keeping order.
func NormalizeAll(services []Service) []Card {
	cards := make([]Card, 0, len(services))
	for _, s := range services {
		if c, ok := Normalize(s); ok {
			cards = append(cards, c)
		}
	}
	return cards
}

// Prepare trims and defaults a record before it is persisted. Required
// fields are name, description and category.
func Prepare(s Service) (Service, error) {
	s.Name = strings.TrimSpace(s.Name)
	s.Description = strings.TrimSpace(s.Description)
	s.Category = Category(strings.TrimSpace(string(s.Category)))

	if s.Name == "" || s.Description == "" || s.Category == "" {
		return s, invalidf("Please provide name, description, and category")
	}
	return fillDefaults(s)
}

// fillDefaults applies the optional-field defaults shared by create and update.
func fillDefaults(s Service) (Service, error) {
	if s.Category == "" {
		s.Category = CategoryOther
	}
	if !s.Category.Valid() {
		return s, invalidf("unknown category %q", s.Category)
	}
	if s.Status == "" {
		s.Status = StatusAvailable
	}
	if !s.Status.Valid() {
		return s, invalidf("unknown status %q", s.Status)
	}
	if strings.TrimSpace(s.Price) == "" {
		s.Price = DefaultPrice
	}
	s.Images = nonEmpty(s.Images)
	s.Features = nonEmpty(s.Features)
	s.ProductTypes = namedTiers(s.ProductTypes)
	return s, nil
}

// Apply merges a patch onto s. Empty text for name, category, description,
// price or status keeps the prior value; keywords, image, features and
// product types are replaced whenever present.
func Apply(s Service, p Patch) (Service, error) {
	if p.Name != nil && strings.TrimSpace(*p.Name) != "" {
		s.Name = strings.TrimSpace(*p.Name)
	}
	if p.Category != nil && *p.Category != "" {
		s.Category = *p.Category
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) != "" {
		s.Description = strings.TrimSpace(*p.Description)
	}
	if p.Price != nil && strings.TrimSpace(*p.Price) != "" {
		s.Price = *p.Price
	}
	if p.Status != nil && *p.Status != "" {
		s.Status = *p.Status
	}
	if p.Keywords != nil {
		s.Keywords = *p.Keywords
	}
	if p.Image != nil {
		s.Image = *p.Image
	}
	if p.Features != nil {
		s.Features = *p.Features
	}
	if p.ProductTypes != nil {
		s.ProductTypes = *p.ProductTypes
	}
	return fillDefaults(s)
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func namedTiers(in []ProductType) []ProductType {
	out := make([]ProductType, 0, len(in))
	for _, pt := range in {
		if strings.TrimSpace(pt.Name) == "" {
			continue
		}
		out = append(out, pt)
	}
	return out
}
