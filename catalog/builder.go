package catalog

import (
	"context"
	"log"
	"time"
)

// Builder turns one fetch pass into an immutable Snapshot.
type Builder struct {
	fetcher  *Fetcher
	resolver *Resolver
}

func NewBuilder(exec Executor) *Builder {
	return &Builder{
		fetcher:  NewFetcher(exec),
		resolver: NewResolver(),
	}
}

// BuildSnapshot fetches and resolves the full catalog. On error no snapshot
// is produced; partial results never escape.
func (b *Builder) BuildSnapshot(ctx context.Context) (*Snapshot, []Anomaly, error) {
	raw, err := b.fetcher.Fetch(ctx)
	if err != nil {
		return nil, nil, err
	}

	res := b.resolver.Resolve(raw)
	if len(res.Anomalies) > 0 {
		log.Printf("Resolution dropped %d upstream references (see catalog_resolution_anomalies_total)", len(res.Anomalies))
	}

	snapshot := &Snapshot{
		Categories:        res.Categories,
		Products:          res.Products,
		Attributes:        res.Attributes,
		AttributeValues:   res.AttributeValues,
		ProductAttributes: res.ProductAttributes,
		UpdatedAt:         time.Now().UTC(),
	}
	return snapshot, res.Anomalies, nil
}
