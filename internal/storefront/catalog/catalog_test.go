package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
products:
  - id: gaming-pc-pro
    name: Gaming PC Pro
    price: "450000"
    image: images/gaming-pc-pro.jpg
    category: desktops
  - id: wireless-mouse
    name: Wireless Mouse
    price: 6500.50
    category: accessories
`

func TestLoadFromBytes(t *testing.T) {
	c, err := LoadFromBytes([]byte(sample))
	require.NoError(t, err)

	products := c.Products()
	require.Len(t, products, 2)
	assert.Equal(t, "gaming-pc-pro", products[0].ID)
	assert.Equal(t, "450000", products[0].Price.String())
	assert.Equal(t, "6500.5", products[1].Price.String())
	assert.Equal(t, []string{"accessories", "desktops"}, c.Categories())

	p, err := c.Find("wireless-mouse")
	require.NoError(t, err)
	assert.Equal(t, "Wireless Mouse", p.Name)

	cp := p.CartProduct()
	assert.Equal(t, "wireless-mouse", cp.ID)
	assert.True(t, cp.Price.Equal(p.Price))

	_, err = c.Find("missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestLoadFromBytes_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing id", "products:\n  - name: X\n    price: 1\n"},
		{"missing name", "products:\n  - id: x\n    price: 1\n"},
		{"duplicate id", "products:\n  - {id: x, name: X, price: 1}\n  - {id: x, name: Y, price: 2}\n"},
		{"bad price", "products:\n  - {id: x, name: X, price: abc}\n"},
		{"negative price", "products:\n  - {id: x, name: X, price: -5}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalidCatalog)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ErrCatalogNotFound)

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	c, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Len(t, c.Products(), 2)
}

func TestShippedCatalogLoads(t *testing.T) {
	c, err := LoadFromFile(filepath.Join("..", "..", "..", "configs", "catalog.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, c.Products())
}
