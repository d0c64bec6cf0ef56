// Package inventory lists the compute instances a check evaluates.
package inventory

import (
	"context"

	"go.uber.org/zap"

	"github.com/YumeNoTenshi/utilwatch/internal/models"
	"github.com/YumeNoTenshi/utilwatch/pkg/cloud"
)

// Lister is the inventory side of a cloud.Provider.
type Lister interface {
	ListInstances(ctx context.Context, filter cloud.InstanceFilter) ([]models.Instance, error)
}

type Fetcher struct {
	lister Lister
	log    *zap.Logger
}

func NewFetcher(lister Lister, logger *zap.Logger) *Fetcher {
	return &Fetcher{lister: lister, log: logger.With(zap.String("component", "inventory"))}
}

// Fetch returns at most filter.MaxInstances instances in backend order. A
// backend failure yields an empty result so the run reports zero instances.
func (f *Fetcher) Fetch(ctx context.Context, filter cloud.InstanceFilter) []models.Instance {
	instances, err := f.lister.ListInstances(ctx, filter)
	if err != nil {
		f.log.Warn("inventory query failed",
			zap.Error(err),
			zap.String("code", cloud.ErrorCode(err)),
			zap.String("tag_key", filter.TagKey),
			zap.String("tag_value", filter.TagValue),
		)
		return nil
	}
	if filter.MaxInstances > 0 && len(instances) > filter.MaxInstances {
		instances = instances[:filter.MaxInstances]
	}
	return instances
}
