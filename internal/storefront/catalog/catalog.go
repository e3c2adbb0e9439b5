// Package catalog loads the storefront product list from a YAML file.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/ltec/orderrelay/internal/domain/cart"
)

var (
	// ErrInvalidCatalog is returned when the catalog fails validation
	ErrInvalidCatalog = errors.New("catalog: invalid catalog")
	// ErrCatalogNotFound is returned when the catalog file does not exist
	ErrCatalogNotFound = errors.New("catalog: catalog file not found")
	// ErrProductNotFound is returned by Find for unknown ids
	ErrProductNotFound = errors.New("catalog: product not found")
)

// Product is one sellable item
type Product struct {
	ID       string          `yaml:"id"`
	Name     string          `yaml:"name"`
	Price    decimal.Decimal `yaml:"-"`
	RawPrice string          `yaml:"price"`
	Image    string          `yaml:"image"`
	Category string          `yaml:"category"`
}

// CartProduct converts p for cart.Store.Add
func (p Product) CartProduct() cart.Product {
	return cart.Product{ID: p.ID, Name: p.Name, Price: p.Price, Image: p.Image}
}

// Catalog is an immutable product list indexed by id
type Catalog struct {
	products []Product
	byID     map[string]int
}

type file struct {
	Products []Product `yaml:"products"`
}

// LoadFromFile reads and validates a catalog file
func LoadFromFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCatalogNotFound, path)
		}
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses and validates catalog YAML
func LoadFromBytes(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	c := &Catalog{byID: make(map[string]int, len(f.Products))}
	for i, p := range f.Products {
		if p.ID == "" {
			return nil, fmt.Errorf("%w: products[%d].id is required", ErrInvalidCatalog, i)
		}
		if p.Name == "" {
			return nil, fmt.Errorf("%w: product %q has no name", ErrInvalidCatalog, p.ID)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate product id %q", ErrInvalidCatalog, p.ID)
		}
		price, err := decimal.NewFromString(p.RawPrice)
		if err != nil || price.IsNegative() {
			return nil, fmt.Errorf("%w: product %q has invalid price %q", ErrInvalidCatalog, p.ID, p.RawPrice)
		}
		p.Price = price
		c.byID[p.ID] = len(c.products)
		c.products = append(c.products, p)
	}
	return c, nil
}

// Products returns the products in file order
func (c *Catalog) Products() []Product {
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out
}

// Find looks a product up by id
func (c *Catalog) Find(id string) (Product, error) {
	i, ok := c.byID[id]
	if !ok {
		return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return c.products[i], nil
}

// Categories returns the distinct categories, sorted
func (c *Catalog) Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range c.products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; !ok {
			seen[p.Category] = struct{}{}
			out = append(out, p.Category)
		}
	}
	sort.Strings(out)
	return out
}
