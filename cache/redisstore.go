package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/hqtrung/foodapp-odoo-bridge/catalog"
)

const (
	categoriesKey        = "categories"
	productsKey          = "products"
	attributesKey        = "attributes"
	attributeValuesKey   = "attribute_values"
	productAttributesKey = "product_attributes"
	metadataKey          = "metadata"
)

// envelope is the stored document shape: the payload plus the write
// timestamp the TTL check runs against.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Updated time.Time       `json:"updated"`
}

// RedisStore persists the snapshot collections as JSON documents under a key
// prefix. Staleness is enforced on read: a document older than the TTL is
// reported as empty so the orchestrator falls back instead of serving stale
// data silently.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	// now is swapped out by tests.
	now func() time.Time
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *RedisStore) key(collection string) string {
	return s.prefix + ":" + collection
}

func (s *RedisStore) Write(ctx context.Context, snapshot *catalog.Snapshot) (catalog.Metadata, error) {
	updated := s.now().UTC()

	docs := []struct {
		key  string
		data interface{}
	}{
		{categoriesKey, snapshot.Categories},
		{productsKey, snapshot.Products},
		{attributesKey, snapshot.Attributes},
		{attributeValuesKey, snapshot.AttributeValues},
		{productAttributesKey, snapshot.ProductAttributes},
	}

	pipe := s.client.TxPipeline()
	for _, doc := range docs {
		payload, err := json.Marshal(doc.data)
		if err != nil {
			return catalog.Metadata{}, &BackendError{Backend: "remote", Op: "write " + doc.key, Err: err}
		}
		env, err := json.Marshal(envelope{Data: payload, Updated: updated})
		if err != nil {
			return catalog.Metadata{}, &BackendError{Backend: "remote", Op: "write " + doc.key, Err: err}
		}
		pipe.Set(ctx, s.key(doc.key), env, 0)
	}

	meta := snapshot.Metadata()
	metaPayload, err := json.Marshal(meta)
	if err != nil {
		return catalog.Metadata{}, &BackendError{Backend: "remote", Op: "write " + metadataKey, Err: err}
	}
	pipe.Set(ctx, s.key(metadataKey), metaPayload, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return catalog.Metadata{}, &BackendError{Backend: "remote", Op: "write", Err: err}
	}

	log.Printf("Cache saved to redis: %d categories, %d products", meta.CategoriesCount, meta.ProductsCount)
	return meta, nil
}

// readCollection loads one document into v. Missing keys and expired
// documents leave v at its zero value without error.
func (s *RedisStore) readCollection(ctx context.Context, collection string, v interface{}) error {
	data, err := s.client.Get(ctx, s.key(collection)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return &BackendError{Backend: "remote", Op: "read " + collection, Err: err}
	}

	var env envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return &BackendError{Backend: "remote", Op: "read " + collection, Err: err}
	}
	if s.expired(env.Updated) {
		log.Printf("Redis cache for %s expired (updated %s)", collection, env.Updated.Format(time.RFC3339))
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return &BackendError{Backend: "remote", Op: "read " + collection, Err: err}
	}
	return nil
}

func (s *RedisStore) expired(updated time.Time) bool {
	if updated.IsZero() {
		return true
	}
	return s.now().Sub(updated) > s.ttl
}

func (s *RedisStore) ReadCategories(ctx context.Context) ([]catalog.Category, error) {
	var categories []catalog.Category
	if err := s.readCollection(ctx, categoriesKey, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *RedisStore) ReadProducts(ctx context.Context) ([]catalog.Product, error) {
	var products []catalog.Product
	if err := s.readCollection(ctx, productsKey, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *RedisStore) ReadProductsByCategory(ctx context.Context, categoryID int) ([]catalog.Product, error) {
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

func (s *RedisStore) ReadAttributes(ctx context.Context) ([]catalog.Attribute, error) {
	var attributes []catalog.Attribute
	if err := s.readCollection(ctx, attributesKey, &attributes); err != nil {
		return nil, err
	}
	return attributes, nil
}

func (s *RedisStore) ReadAttributeValues(ctx context.Context) ([]catalog.AttributeValue, error) {
	var values []catalog.AttributeValue
	if err := s.readCollection(ctx, attributeValuesKey, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (s *RedisStore) ReadProductAttributes(ctx context.Context) (map[string]catalog.ProductAttributes, error) {
	productAttributes := make(map[string]catalog.ProductAttributes)
	if err := s.readCollection(ctx, productAttributesKey, &productAttributes); err != nil {
		return nil, err
	}
	return productAttributes, nil
}

// ReadMetadata is exempt from the TTL check: the operator wants to see when
// the last reload happened even when the data itself has gone stale.
func (s *RedisStore) ReadMetadata(ctx context.Context) (catalog.Metadata, error) {
	var meta catalog.Metadata
	data, err := s.client.Get(ctx, s.key(metadataKey)).Result()
	if err != nil {
		if err == redis.Nil {
			return meta, nil
		}
		return meta, &BackendError{Backend: "remote", Op: "read " + metadataKey, Err: err}
	}
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return catalog.Metadata{}, &BackendError{Backend: "remote", Op: "read " + metadataKey, Err: err}
	}
	return meta, nil
}

func (s *RedisStore) IsEmpty(ctx context.Context) bool {
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

// Clear removes every cache document under the prefix.
func (s *RedisStore) Clear(ctx context.Context) error {
	keys := []string{
		s.key(categoriesKey), s.key(productsKey), s.key(attributesKey),
		s.key(attributeValuesKey), s.key(productAttributesKey), s.key(metadataKey),
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return &BackendError{Backend: "remote", Op: "clear", Err: err}
	}
	log.Printf("Cache cleared from redis (prefix %s)", s.prefix)
	return nil
}

func (s *RedisStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return &BackendError{Backend: "remote", Op: "ping", Err: err}
	}
	return nil
}
