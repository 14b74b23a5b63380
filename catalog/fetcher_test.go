package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hqtrung/foodapp-odoo-bridge/odoo"
)

// fakeExecutor serves canned search_read replies keyed by model. Models hit
// more than once in a pass (product.product, product.template) are served in
// call order.
type fakeExecutor struct {
	replies map[string][]interface{} // model -> queue of replies
	calls   []string                 // models in invocation order
	failOn  string                   // model whose first call fails
	failErr error
	failed  bool
}

func (f *fakeExecutor) ExecuteKw(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	f.calls = append(f.calls, model)
	if model == f.failOn && !f.failed {
		f.failed = true
		return nil, f.failErr
	}
	queue := f.replies[model]
	if len(queue) == 0 {
		return []interface{}{}, nil
	}
	reply := queue[0]
	f.replies[model] = queue[1:]
	return reply, nil
}

func row(fields map[string]interface{}) interface{} { return fields }

func m2o(id int, name string) []interface{} {
	return []interface{}{int64(id), name}
}

func newFakeUpstream() *fakeExecutor {
	return &fakeExecutor{
		replies: map[string][]interface{}{
			"pos.category": {[]interface{}{
				row(map[string]interface{}{"id": int64(1), "name": "Burgers", "parent_id": false, "sequence": int64(1), "image_128": "iVBOR"}),
				row(map[string]interface{}{"id": int64(2), "name": "Sides", "parent_id": m2o(1, "Burgers"), "sequence": int64(2), "image_128": false}),
			}},
			"product.product": {
				// POS products
				[]interface{}{
					row(map[string]interface{}{"id": int64(101), "name": "Classic Burger", "pos_categ_id": m2o(1, "Burgers"), "description_sale": false, "image_512": "iVBOR", "barcode": false, "product_tmpl_id": m2o(11, "Classic Burger")}),
				},
				// linked products for packagings
				[]interface{}{
					row(map[string]interface{}{"id": int64(201), "name": "French Fries", "product_tmpl_id": m2o(21, "French Fries")}),
				},
			},
			"product.template": {
				[]interface{}{row(map[string]interface{}{"id": int64(11), "list_price": 20000.0})},
				[]interface{}{row(map[string]interface{}{"id": int64(21), "list_price": 9000.0})},
			},
			"product.attribute": {[]interface{}{
				row(map[string]interface{}{"id": int64(1), "name": "Size", "create_variant": "no_variant", "display_type": "radio"}),
			}},
			"product.attribute.value": {[]interface{}{
				row(map[string]interface{}{"id": int64(10), "name": "Large", "attribute_id": m2o(1, "Size")}),
			}},
			"product.template.attribute.line": {[]interface{}{
				row(map[string]interface{}{"id": int64(301), "product_tmpl_id": m2o(11, ""), "attribute_id": m2o(1, "Size"), "value_ids": []interface{}{int64(10)}}),
			}},
			"product.template.attribute.value": {[]interface{}{
				row(map[string]interface{}{"id": int64(1001), "name": "Large", "price_extra": 1500.0, "product_tmpl_id": m2o(11, ""), "attribute_id": m2o(1, "Size"), "product_attribute_value_id": m2o(10, "Large"), "product_packaging_id": m2o(500, "Fries pack")}),
			}},
			"product.packaging": {[]interface{}{
				row(map[string]interface{}{"id": int64(500), "product_id": m2o(201, "French Fries")}),
			}},
		},
	}
}

func TestFetchFullPipeline(t *testing.T) {
	exec := newFakeUpstream()
	raw, err := NewFetcher(exec).Fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, raw.Categories, 2)
	assert.Nil(t, raw.Categories[0].ParentID)
	assert.Equal(t, "/images/categories/1.jpg", raw.Categories[0].ImageURL)
	require.NotNil(t, raw.Categories[1].ParentID)
	assert.Equal(t, 1, *raw.Categories[1].ParentID)
	assert.Empty(t, raw.Categories[1].ImageURL, "category without image data gets no URL")

	require.Len(t, raw.Products, 1)
	burger := raw.Products[0]
	assert.Equal(t, 11, burger.TemplateID)
	assert.Equal(t, 20000.0, burger.ListPrice, "base price comes from the template, not the variant")
	assert.Empty(t, burger.Description, "boolean false upstream decodes to empty string")
	assert.Equal(t, "/images/products/101.jpg", burger.ImageURL)

	require.Len(t, raw.TemplateValues, 1)
	assert.Equal(t, 500, raw.TemplateValues[0].PackagingID)
	assert.Equal(t, Packaging{ID: 500, ProductID: 201}, raw.Packagings[500])
	assert.Equal(t, LinkedProduct{ID: 201, Name: "French Fries", TemplateID: 21}, raw.LinkedProducts[201])
	assert.Equal(t, 9000.0, raw.LinkedTemplatePrices[21])

	assert.Equal(t, []string{
		"pos.category",
		"product.product",
		"product.template",
		"product.attribute",
		"product.attribute.value",
		"product.template.attribute.line",
		"product.template.attribute.value",
		"product.packaging",
		"product.product",
		"product.template",
	}, exec.calls)
}

func TestFetchSkipsTemplateStepsWithoutProducts(t *testing.T) {
	exec := &fakeExecutor{replies: map[string][]interface{}{}}
	raw, err := NewFetcher(exec).Fetch(context.Background())
	require.NoError(t, err)

	assert.Empty(t, raw.Products)
	assert.Equal(t, []string{
		"pos.category",
		"product.product",
		"product.attribute",
		"product.attribute.value",
	}, exec.calls, "template-scoped steps are skipped when no template ids were collected")
}

func TestFetchAuthFailureIsNotRetried(t *testing.T) {
	exec := newFakeUpstream()
	exec.failOn = "pos.category"
	exec.failErr = odoo.ErrAuthFailed

	_, err := NewFetcher(exec).Fetch(context.Background())
	assert.ErrorIs(t, err, odoo.ErrAuthFailed)

	var fetchErr *odoo.FetchError
	assert.False(t, errors.As(err, &fetchErr), "auth failures surface bare, without step wrapping")
	assert.Equal(t, []string{"pos.category"}, exec.calls, "credential rejections must not be retried")
}

func TestFetchRetriesTransientFailure(t *testing.T) {
	exec := newFakeUpstream()
	exec.failOn = "product.attribute"
	exec.failErr = errors.New("connection reset")

	raw, err := NewFetcher(exec).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, raw.Attributes, 1)
}

func TestFetchWrapsStepFailure(t *testing.T) {
	boom := errors.New("marshal error")
	// persistentFailExecutor keeps the step failing past the retry budget.
	persist := &persistentFailExecutor{
		inner:  &fakeExecutor{replies: map[string][]interface{}{}},
		failOn: "product.product",
		err:    boom,
	}

	_, err := NewFetcher(persist).Fetch(context.Background())
	require.Error(t, err)

	var fetchErr *odoo.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "products", fetchErr.Step)
	assert.ErrorIs(t, err, boom)
}

type persistentFailExecutor struct {
	inner  *fakeExecutor
	failOn string
	err    error
}

func (p *persistentFailExecutor) ExecuteKw(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	if model == p.failOn {
		return nil, p.err
	}
	return p.inner.ExecuteKw(ctx, model, method, args, kwargs)
}
