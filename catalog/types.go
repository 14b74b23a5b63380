package catalog

import "time"

// Display types as Odoo reports them on product.attribute.
const (
	DisplayRadio    = "radio"
	DisplaySelect   = "select"
	DisplayCheckbox = "check_box"
)

type Category struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	ParentID   *int   `json:"parent_id,omitempty"`
	ParentName string `json:"parent_name,omitempty"`
	Sequence   int    `json:"sequence"`
	ImageURL   string `json:"image_url,omitempty"`
}

type Attribute struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	CreateVariant string `json:"create_variant"`
	DisplayType   string `json:"display_type"`
}

type AttributeValue struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	AttributeID   int    `json:"attribute_id"`
	AttributeName string `json:"attribute_name,omitempty"`
}

// ResolvedValue is one selectable option on a product attribute line. The id
// is the template attribute value id; BaseValueID points at the global
// AttributeValue it derives from. Linked* fields are set when the option
// represents an up-sell product reached through a packaging record.
type ResolvedValue struct {
	ID                 int     `json:"id"`
	Name               string  `json:"name"`
	PriceExtra         float64 `json:"price_extra"`
	BaseValueID        int     `json:"base_value_id"`
	BaseValueName      string  `json:"base_value_name"`
	PackagingID        int     `json:"product_packaging_id,omitempty"`
	LinkedProductID    int     `json:"linked_product_id,omitempty"`
	LinkedProductName  string  `json:"linked_product_name,omitempty"`
	LinkedProductPrice float64 `json:"linked_product_price,omitempty"`
}

type AttributeLine struct {
	AttributeID   int             `json:"attribute_id"`
	AttributeName string          `json:"attribute_name"`
	DisplayType   string          `json:"display_type"`
	CreateVariant string          `json:"create_variant"`
	Values        []ResolvedValue `json:"values"`
}

type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type Product struct {
	ID             int             `json:"id"`
	Name           string          `json:"name"`
	CategoryID     int             `json:"category_id"`
	CategoryName   string          `json:"category_name,omitempty"`
	ListPrice      float64         `json:"list_price"`
	Description    string          `json:"description,omitempty"`
	Barcode        string          `json:"barcode,omitempty"`
	ImageURL       string          `json:"image_url,omitempty"`
	TemplateID     int             `json:"template_id"`
	AttributeLines []AttributeLine `json:"attribute_lines"`
	HasAttributes  bool            `json:"has_attributes"`
	PriceRange     PriceRange      `json:"price_range"`
}

// ProductAttributes is the per-product denormalized attribute document, keyed
// by product id (as a string) in the persisted productAttributes collection.
type ProductAttributes struct {
	ProductID      int             `json:"product_id"`
	ProductName    string          `json:"product_name"`
	TemplateID     int             `json:"template_id"`
	AttributeLines []AttributeLine `json:"attribute_lines"`
}

// Snapshot is the complete denormalized catalog produced by one reload. It is
// immutable once written; a new reload replaces it wholesale.
type Snapshot struct {
	Categories        []Category                   `json:"categories"`
	Products          []Product                    `json:"products"`
	Attributes        []Attribute                  `json:"attributes"`
	AttributeValues   []AttributeValue             `json:"attribute_values"`
	ProductAttributes map[string]ProductAttributes `json:"product_attributes"`
	UpdatedAt         time.Time                    `json:"updated_at"`
}

func (s *Snapshot) Metadata() Metadata {
	return Metadata{
		LastUpdated:                 s.UpdatedAt,
		CategoriesCount:             len(s.Categories),
		ProductsCount:               len(s.Products),
		AttributesCount:             len(s.Attributes),
		AttributeValuesCount:        len(s.AttributeValues),
		ProductsWithAttributesCount: len(s.ProductAttributes),
	}
}

type Metadata struct {
	LastUpdated                 time.Time `json:"last_updated"`
	CategoriesCount             int       `json:"categories_count"`
	ProductsCount               int       `json:"products_count"`
	AttributesCount             int       `json:"attributes_count"`
	AttributeValuesCount        int       `json:"attribute_values_count"`
	ProductsWithAttributesCount int       `json:"products_with_attributes_count"`
	CacheSizeBytes              int64     `json:"cache_size_bytes,omitempty"`
	Backend                     string    `json:"cache_backend,omitempty"`
	Environment                 string    `json:"environment,omitempty"`
}

// Anomaly records a non-fatal resolution defect: an upstream reference that
// could not be mapped. The offending value keeps flowing (minus the broken
// reference) instead of failing the product.
type Anomaly struct {
	Kind        string `json:"kind"`
	TemplateID  int    `json:"template_id"`
	AttributeID int    `json:"attribute_id"`
	ValueID     int    `json:"value_id"`
	Detail      string `json:"detail"`
}

const (
	AnomalyUnknownBaseValue    = "unknown_base_value"
	AnomalyUnresolvedPackaging = "unresolved_packaging"
)
