package catalog

import (
	"fmt"
	"strconv"

	"github.com/hqtrung/foodapp-odoo-bridge/metrics"
)

// Result carries the resolver output together with the anomalies accumulated
// along the way. Anomalies are expected and non-fatal; they exist for
// observability, not control flow.
type Result struct {
	Categories        []Category
	Products          []Product
	Attributes        []Attribute
	AttributeValues   []AttributeValue
	ProductAttributes map[string]ProductAttributes
	Anomalies         []Anomaly
}

// Resolver reconciles the many-to-many upstream attribute model into
// per-product attribute lines.
//
// Template attribute values grouped by (template, attribute) are treated as
// the source of truth. The attribute lines fetched in the same pass are NOT
// consulted for value sets: their value_ids have been observed to reference
// stale or cross-template records upstream. This is a documented workaround,
// not a guaranteed upstream invariant.
type Resolver struct{}

func NewResolver() *Resolver {
	return &Resolver{}
}

// group keeps per-attribute template values in upstream encounter order so a
// resolved product is deterministic for identical input.
type group struct {
	attributeID int
	values      []TemplateValue
}

func (r *Resolver) Resolve(raw *RawCatalog) *Result {
	res := &Result{
		Categories:        raw.Categories,
		Attributes:        raw.Attributes,
		AttributeValues:   raw.AttributeValues,
		ProductAttributes: make(map[string]ProductAttributes),
	}

	attributesByID := make(map[int]Attribute, len(raw.Attributes))
	for _, attr := range raw.Attributes {
		attributesByID[attr.ID] = attr
	}
	valuesByID := make(map[int]AttributeValue, len(raw.AttributeValues))
	for _, val := range raw.AttributeValues {
		valuesByID[val.ID] = val
	}

	groupsByTemplate := make(map[int][]*group)
	groupIndex := make(map[[2]int]*group)
	for _, tval := range raw.TemplateValues {
		if tval.TemplateID == 0 || tval.AttributeID == 0 {
			continue
		}
		key := [2]int{tval.TemplateID, tval.AttributeID}
		g, ok := groupIndex[key]
		if !ok {
			g = &group{attributeID: tval.AttributeID}
			groupIndex[key] = g
			groupsByTemplate[tval.TemplateID] = append(groupsByTemplate[tval.TemplateID], g)
		}
		g.values = append(g.values, tval)
	}

	for _, product := range raw.Products {
		groups, ok := groupsByTemplate[product.TemplateID]
		if product.TemplateID == 0 || !ok {
			continue
		}

		var lines []AttributeLine
		for _, g := range groups {
			attribute, known := attributesByID[g.attributeID]
			if !known {
				continue
			}

			var lineValues []ResolvedValue
			for _, tval := range g.values {
				base, found := valuesByID[tval.BaseValueID]
				if tval.BaseValueID == 0 || !found {
					res.anomaly(Anomaly{
						Kind:        AnomalyUnknownBaseValue,
						TemplateID:  tval.TemplateID,
						AttributeID: tval.AttributeID,
						ValueID:     tval.ID,
						Detail:      fmt.Sprintf("template value %q has no known base attribute value", tval.Name),
					})
					continue
				}

				value := ResolvedValue{
					ID:            tval.ID,
					Name:          tval.Name,
					PriceExtra:    tval.PriceExtra,
					BaseValueID:   base.ID,
					BaseValueName: base.Name,
				}
				if tval.PackagingID != 0 {
					r.attachLinkedProduct(raw, tval, &value, res)
				}
				lineValues = append(lineValues, value)
			}

			if len(lineValues) > 0 {
				lines = append(lines, AttributeLine{
					AttributeID:   attribute.ID,
					AttributeName: attribute.Name,
					DisplayType:   attribute.DisplayType,
					CreateVariant: attribute.CreateVariant,
					Values:        lineValues,
				})
			}
		}

		if len(lines) > 0 {
			res.ProductAttributes[strconv.Itoa(product.ID)] = ProductAttributes{
				ProductID:      product.ID,
				ProductName:    product.Name,
				TemplateID:     product.TemplateID,
				AttributeLines: lines,
			}
		}
	}

	res.Products = r.enrichProducts(raw.Products, res.ProductAttributes)
	return res
}

// attachLinkedProduct follows packaging -> linked product -> linked template
// price. A broken link is recorded and the value keeps flowing without it.
func (r *Resolver) attachLinkedProduct(raw *RawCatalog, tval TemplateValue, value *ResolvedValue, res *Result) {
	pkg, ok := raw.Packagings[tval.PackagingID]
	if !ok || pkg.ProductID == 0 {
		res.anomaly(Anomaly{
			Kind:        AnomalyUnresolvedPackaging,
			TemplateID:  tval.TemplateID,
			AttributeID: tval.AttributeID,
			ValueID:     tval.ID,
			Detail:      fmt.Sprintf("packaging %d missing or without product", tval.PackagingID),
		})
		return
	}
	linked, ok := raw.LinkedProducts[pkg.ProductID]
	if !ok {
		res.anomaly(Anomaly{
			Kind:        AnomalyUnresolvedPackaging,
			TemplateID:  tval.TemplateID,
			AttributeID: tval.AttributeID,
			ValueID:     tval.ID,
			Detail:      fmt.Sprintf("packaging %d points at unknown product %d", pkg.ID, pkg.ProductID),
		})
		return
	}

	value.PackagingID = pkg.ID
	value.LinkedProductID = linked.ID
	value.LinkedProductName = linked.Name
	value.LinkedProductPrice = raw.LinkedTemplatePrices[linked.TemplateID]
}

// enrichProducts attaches resolved lines and computes the price range. For a
// checkbox line the customer may tick every option so the deltas sum; for any
// other display type only the single largest delta applies. Extras add up
// across lines on top of the base price.
func (r *Resolver) enrichProducts(products []Product, productAttributes map[string]ProductAttributes) []Product {
	enriched := make([]Product, 0, len(products))
	for _, product := range products {
		if pa, ok := productAttributes[strconv.Itoa(product.ID)]; ok {
			product.AttributeLines = pa.AttributeLines
			product.HasAttributes = true

			var maxExtra float64
			for _, line := range pa.AttributeLines {
				if line.DisplayType == DisplayCheckbox {
					for _, val := range line.Values {
						maxExtra += val.PriceExtra
					}
				} else {
					var lineMax float64
					for _, val := range line.Values {
						if val.PriceExtra > lineMax {
							lineMax = val.PriceExtra
						}
					}
					maxExtra += lineMax
				}
			}
			product.PriceRange = PriceRange{Min: product.ListPrice, Max: product.ListPrice + maxExtra}
		} else {
			product.AttributeLines = []AttributeLine{}
			product.HasAttributes = false
			product.PriceRange = PriceRange{Min: product.ListPrice, Max: product.ListPrice}
		}
		enriched = append(enriched, product)
	}
	return enriched
}

func (res *Result) anomaly(a Anomaly) {
	res.Anomalies = append(res.Anomalies, a)
	metrics.ResolutionAnomalies.WithLabelValues(a.Kind).Inc()
}
