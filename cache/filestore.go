package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hqtrung/foodapp-odoo-bridge/catalog"
)

const (
	categoriesFile        = "categories.json"
	productsFile          = "products.json"
	attributesFile        = "attributes.json"
	attributeValuesFile   = "attribute_values.json"
	productAttributesFile = "product_attributes.json"
	metadataFile          = "metadata.json"
)

// FileStore persists each collection as its own JSON document on local disk.
// Each document is written atomically (temp file + rename); there is no TTL,
// freshness is the orchestrator's concern.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: creating cache dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) writeJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &BackendError{Backend: "local", Op: "write " + name, Err: err}
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return &BackendError{Backend: "local", Op: "write " + name, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &BackendError{Backend: "local", Op: "write " + name, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &BackendError{Backend: "local", Op: "write " + name, Err: err}
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return &BackendError{Backend: "local", Op: "write " + name, Err: err}
	}
	return nil
}

// readJSON loads a document into v. A missing file is not an error; v keeps
// its zero value, which callers interpret as an empty collection.
func (s *FileStore) readJSON(name string, v interface{}) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &BackendError{Backend: "local", Op: "read " + name, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &BackendError{Backend: "local", Op: "read " + name, Err: err}
	}
	return nil
}

func (s *FileStore) Write(_ context.Context, snapshot *catalog.Snapshot) (catalog.Metadata, error) {
	writes := []struct {
		name string
		data interface{}
	}{
		{categoriesFile, snapshot.Categories},
		{productsFile, snapshot.Products},
		{attributesFile, snapshot.Attributes},
		{attributeValuesFile, snapshot.AttributeValues},
		{productAttributesFile, snapshot.ProductAttributes},
	}
	for _, w := range writes {
		if err := s.writeJSON(w.name, w.data); err != nil {
			return catalog.Metadata{}, err
		}
	}

	meta := snapshot.Metadata()
	if err := s.writeJSON(metadataFile, meta); err != nil {
		return catalog.Metadata{}, err
	}
	return meta, nil
}

func (s *FileStore) ReadCategories(_ context.Context) ([]catalog.Category, error) {
	var categories []catalog.Category
	if err := s.readJSON(categoriesFile, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *FileStore) ReadProducts(_ context.Context) ([]catalog.Product, error) {
	var products []catalog.Product
	if err := s.readJSON(productsFile, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *FileStore) ReadProductsByCategory(ctx context.Context, categoryID int) ([]catalog.Product, error) {
	products, err := s.ReadProducts(ctx)
	if err != nil {
		return nil, err
	}
	var filtered []catalog.Product
	for _, p := range products {
		if p.CategoryID == categoryID {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

func (s *FileStore) ReadAttributes(_ context.Context) ([]catalog.Attribute, error) {
	var attributes []catalog.Attribute
	if err := s.readJSON(attributesFile, &attributes); err != nil {
		return nil, err
	}
	return attributes, nil
}

func (s *FileStore) ReadAttributeValues(_ context.Context) ([]catalog.AttributeValue, error) {
	var values []catalog.AttributeValue
	if err := s.readJSON(attributeValuesFile, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (s *FileStore) ReadProductAttributes(_ context.Context) (map[string]catalog.ProductAttributes, error) {
	productAttributes := make(map[string]catalog.ProductAttributes)
	if err := s.readJSON(productAttributesFile, &productAttributes); err != nil {
		return nil, err
	}
	return productAttributes, nil
}

func (s *FileStore) ReadMetadata(_ context.Context) (catalog.Metadata, error) {
	var meta catalog.Metadata
	if err := s.readJSON(metadataFile, &meta); err != nil {
		return catalog.Metadata{}, err
	}
	meta.CacheSizeBytes = s.cacheSize()
	return meta, nil
}

func (s *FileStore) IsEmpty(ctx context.Context) bool {
	categories, err := s.ReadCategories(ctx)
	if err != nil {
		return true
	}
	products, err := s.ReadProducts(ctx)
	if err != nil {
		return true
	}
	return len(categories) == 0 || len(products) == 0
}

func (s *FileStore) cacheSize() int64 {
	var total int64
	for _, name := range []string{categoriesFile, productsFile} {
		if info, err := os.Stat(filepath.Join(s.dir, name)); err == nil {
			total += info.Size()
		}
	}
	return total
}
