package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hqtrung/foodapp-odoo-bridge/odoo"
)

const (
	fetchMaxRetries     = 3
	fetchInitialBackoff = 200 * time.Millisecond
	fetchMaxBackoff     = 5 * time.Second
)

// Executor runs a single batched model call against the upstream service.
// *odoo.SessionPool satisfies it.
type Executor interface {
	ExecuteKw(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, error)
}

// RawCatalog holds the entity sets of one fetch pass before resolution.
type RawCatalog struct {
	Categories           []Category
	Products             []Product
	TemplatePrices       map[int]float64
	Attributes           []Attribute
	AttributeValues      []AttributeValue
	TemplateLines        []TemplateLine
	TemplateValues       []TemplateValue
	Packagings           map[int]Packaging
	LinkedProducts       map[int]LinkedProduct
	LinkedTemplatePrices map[int]float64
}

// TemplateLine declares that an attribute applies to a template. It is kept
// as a traversal hint only; the value sets it references have been observed
// to drift across templates upstream, so resolution never trusts ValueIDs.
type TemplateLine struct {
	ID          int
	TemplateID  int
	AttributeID int
	ValueIDs    []int
}

// TemplateValue is the authoritative per-template attribute value record,
// carrying the price delta and the optional packaging link.
type TemplateValue struct {
	ID          int
	Name        string
	PriceExtra  float64
	TemplateID  int
	AttributeID int
	BaseValueID int
	PackagingID int
}

type Packaging struct {
	ID        int
	ProductID int
}

type LinkedProduct struct {
	ID         int
	Name       string
	TemplateID int
}

// Fetcher pulls the catalog from the upstream service as a fixed sequence of
// batched search_read calls, each filtered by the ids collected from the
// previous step. Any step failing aborts the whole fetch.
type Fetcher struct {
	exec Executor
}

func NewFetcher(exec Executor) *Fetcher {
	return &Fetcher{exec: exec}
}

func (f *Fetcher) searchRead(ctx context.Context, step, model string, domain []interface{}, fields []string) ([]odoo.Row, error) {
	if domain == nil {
		domain = []interface{}{}
	}
	var rows []odoo.Row
	operation := func() error {
		reply, err := f.exec.ExecuteKw(ctx, model, "search_read",
			[]interface{}{domain},
			map[string]interface{}{"fields": fields})
		if err != nil {
			// Credential rejections are not transient; surface them as-is.
			if errors.Is(err, odoo.ErrAuthFailed) {
				return backoff.Permanent(err)
			}
			return err
		}
		rows = odoo.Rows(reply)
		return nil
	}

	strategy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(fetchInitialBackoff),
				backoff.WithMaxInterval(fetchMaxBackoff),
			),
			fetchMaxRetries,
		),
		ctx,
	)

	err := backoff.RetryNotify(operation, strategy, func(err error, d time.Duration) {
		log.Printf("Retrying fetch step %q: %v (next attempt in %s)", step, err, d)
	})
	if err != nil {
		if errors.Is(err, odoo.ErrAuthFailed) {
			return nil, err
		}
		return nil, &odoo.FetchError{Step: step, Err: err}
	}
	return rows, nil
}

func inDomain(field string, ids []int) []interface{} {
	list := make([]interface{}, len(ids))
	for i, id := range ids {
		list[i] = id
	}
	return []interface{}{[]interface{}{field, "in", list}}
}

// Fetch runs the full batched read sequence. Results are all-or-nothing:
// an error from any step discards everything collected so far.
func (f *Fetcher) Fetch(ctx context.Context) (*RawCatalog, error) {
	raw := &RawCatalog{
		TemplatePrices:       make(map[int]float64),
		Packagings:           make(map[int]Packaging),
		LinkedProducts:       make(map[int]LinkedProduct),
		LinkedTemplatePrices: make(map[int]float64),
	}

	// Step 1: categories and the POS-eligible products.
	catRows, err := f.searchRead(ctx, "categories", "pos.category", nil,
		[]string{"id", "name", "parent_id", "sequence", "image_128"})
	if err != nil {
		return nil, err
	}
	for _, row := range catRows {
		cat := Category{
			ID:       odoo.AsInt(row["id"]),
			Name:     odoo.AsString(row["name"]),
			Sequence: odoo.AsInt(row["sequence"]),
		}
		if pid, pname, ok := odoo.Many2One(row["parent_id"]); ok {
			cat.ParentID = &pid
			cat.ParentName = pname
		}
		if odoo.AsString(row["image_128"]) != "" {
			cat.ImageURL = fmt.Sprintf("/images/categories/%d.jpg", cat.ID)
		}
		raw.Categories = append(raw.Categories, cat)
	}

	prodRows, err := f.searchRead(ctx, "products", "product.product",
		[]interface{}{[]interface{}{"available_in_pos", "=", true}},
		[]string{"id", "name", "pos_categ_id", "description_sale", "image_512", "barcode", "product_tmpl_id"})
	if err != nil {
		return nil, err
	}
	templateIDSet := make(map[int]bool)
	for _, row := range prodRows {
		prod := Product{
			ID:          odoo.AsInt(row["id"]),
			Name:        odoo.AsString(row["name"]),
			Description: odoo.AsString(row["description_sale"]),
			Barcode:     odoo.AsString(row["barcode"]),
		}
		if cid, cname, ok := odoo.Many2One(row["pos_categ_id"]); ok {
			prod.CategoryID = cid
			prod.CategoryName = cname
		}
		if tid, _, ok := odoo.Many2One(row["product_tmpl_id"]); ok {
			prod.TemplateID = tid
			templateIDSet[tid] = true
		}
		if odoo.AsString(row["image_512"]) != "" {
			prod.ImageURL = fmt.Sprintf("/images/products/%d.jpg", prod.ID)
		}
		raw.Products = append(raw.Products, prod)
	}

	templateIDs := make([]int, 0, len(templateIDSet))
	for id := range templateIDSet {
		templateIDs = append(templateIDs, id)
	}

	// Step 2: template base prices (several products may share one template).
	if len(templateIDs) > 0 {
		tmplRows, err := f.searchRead(ctx, "template_prices", "product.template",
			inDomain("id", templateIDs), []string{"id", "list_price"})
		if err != nil {
			return nil, err
		}
		for _, row := range tmplRows {
			raw.TemplatePrices[odoo.AsInt(row["id"])] = odoo.AsFloat(row["list_price"])
		}
	}
	for i := range raw.Products {
		raw.Products[i].ListPrice = raw.TemplatePrices[raw.Products[i].TemplateID]
	}

	// Step 3: global attributes and attribute values.
	attrRows, err := f.searchRead(ctx, "attributes", "product.attribute", nil,
		[]string{"id", "name", "create_variant", "display_type"})
	if err != nil {
		return nil, err
	}
	for _, row := range attrRows {
		raw.Attributes = append(raw.Attributes, Attribute{
			ID:            odoo.AsInt(row["id"]),
			Name:          odoo.AsString(row["name"]),
			CreateVariant: odoo.AsString(row["create_variant"]),
			DisplayType:   odoo.AsString(row["display_type"]),
		})
	}

	valRows, err := f.searchRead(ctx, "attribute_values", "product.attribute.value", nil,
		[]string{"id", "name", "attribute_id"})
	if err != nil {
		return nil, err
	}
	for _, row := range valRows {
		val := AttributeValue{
			ID:   odoo.AsInt(row["id"]),
			Name: odoo.AsString(row["name"]),
		}
		if aid, aname, ok := odoo.Many2One(row["attribute_id"]); ok {
			val.AttributeID = aid
			val.AttributeName = aname
		}
		raw.AttributeValues = append(raw.AttributeValues, val)
	}

	// Step 4: per-template attribute lines (hint only, see TemplateLine).
	if len(templateIDs) > 0 {
		lineRows, err := f.searchRead(ctx, "template_lines", "product.template.attribute.line",
			inDomain("product_tmpl_id", templateIDs),
			[]string{"id", "product_tmpl_id", "attribute_id", "value_ids"})
		if err != nil {
			return nil, err
		}
		for _, row := range lineRows {
			line := TemplateLine{
				ID:       odoo.AsInt(row["id"]),
				ValueIDs: odoo.IDList(row["value_ids"]),
			}
			if tid, _, ok := odoo.Many2One(row["product_tmpl_id"]); ok {
				line.TemplateID = tid
			}
			if aid, _, ok := odoo.Many2One(row["attribute_id"]); ok {
				line.AttributeID = aid
			}
			raw.TemplateLines = append(raw.TemplateLines, line)
		}
	}

	// Step 5: template attribute values with price deltas — the authoritative
	// source of which values a template actually carries.
	if len(templateIDs) > 0 {
		tvalRows, err := f.searchRead(ctx, "template_values", "product.template.attribute.value",
			inDomain("product_tmpl_id", templateIDs),
			[]string{"id", "name", "price_extra", "product_tmpl_id", "attribute_id", "product_attribute_value_id", "product_packaging_id"})
		if err != nil {
			return nil, err
		}
		for _, row := range tvalRows {
			tval := TemplateValue{
				ID:         odoo.AsInt(row["id"]),
				Name:       odoo.AsString(row["name"]),
				PriceExtra: odoo.AsFloat(row["price_extra"]),
			}
			if tid, _, ok := odoo.Many2One(row["product_tmpl_id"]); ok {
				tval.TemplateID = tid
			}
			if aid, _, ok := odoo.Many2One(row["attribute_id"]); ok {
				tval.AttributeID = aid
			}
			if vid, _, ok := odoo.Many2One(row["product_attribute_value_id"]); ok {
				tval.BaseValueID = vid
			}
			if pid, _, ok := odoo.Many2One(row["product_packaging_id"]); ok {
				tval.PackagingID = pid
			}
			raw.TemplateValues = append(raw.TemplateValues, tval)
		}
	}

	// Step 6: packaging records and the products/prices they link to.
	var packagingIDs []int
	for _, tval := range raw.TemplateValues {
		if tval.PackagingID != 0 {
			packagingIDs = append(packagingIDs, tval.PackagingID)
		}
	}
	if len(packagingIDs) > 0 {
		pkgRows, err := f.searchRead(ctx, "packagings", "product.packaging",
			inDomain("id", packagingIDs), []string{"id", "product_id"})
		if err != nil {
			return nil, err
		}
		var linkedProductIDs []int
		for _, row := range pkgRows {
			pkg := Packaging{ID: odoo.AsInt(row["id"])}
			if pid, _, ok := odoo.Many2One(row["product_id"]); ok {
				pkg.ProductID = pid
				linkedProductIDs = append(linkedProductIDs, pid)
			}
			raw.Packagings[pkg.ID] = pkg
		}

		if len(linkedProductIDs) > 0 {
			linkedRows, err := f.searchRead(ctx, "linked_products", "product.product",
				inDomain("id", linkedProductIDs), []string{"id", "name", "product_tmpl_id"})
			if err != nil {
				return nil, err
			}
			var linkedTemplateIDs []int
			for _, row := range linkedRows {
				lp := LinkedProduct{
					ID:   odoo.AsInt(row["id"]),
					Name: odoo.AsString(row["name"]),
				}
				if tid, _, ok := odoo.Many2One(row["product_tmpl_id"]); ok {
					lp.TemplateID = tid
					linkedTemplateIDs = append(linkedTemplateIDs, tid)
				}
				raw.LinkedProducts[lp.ID] = lp
			}

			if len(linkedTemplateIDs) > 0 {
				ltRows, err := f.searchRead(ctx, "linked_template_prices", "product.template",
					inDomain("id", linkedTemplateIDs), []string{"id", "list_price"})
				if err != nil {
					return nil, err
				}
				for _, row := range ltRows {
					raw.LinkedTemplatePrices[odoo.AsInt(row["id"])] = odoo.AsFloat(row["list_price"])
				}
			}
		}
	}

	log.Printf("Fetched %d categories, %d products, %d attributes, %d template values",
		len(raw.Categories), len(raw.Products), len(raw.Attributes), len(raw.TemplateValues))
	return raw, nil
}
