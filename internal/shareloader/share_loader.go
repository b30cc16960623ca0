// Package shareloader batches share-list lookups made while serving one
// request.
package shareloader

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"

	"github.com/rpattn/advfilters/internal/repository"
)

type ShareLoader struct {
	Loader *dataloader.Loader
}

func NewShareLoader(repo repository.FilterSpecRepository) *ShareLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		results := make([]*dataloader.Result, len(keys))

		ids := make([]uuid.UUID, 0, len(keys))
		parsed := make([]uuid.UUID, len(keys))
		for i, k := range keys {
			id, err := uuid.Parse(k.String())
			if err != nil {
				results[i] = &dataloader.Result{Error: fmt.Errorf("invalid filter id: %w", err)}
				continue
			}
			parsed[i] = id
			ids = append(ids, id)
		}

		shares, err := repo.ListShares(ctx, ids)
		for i := range keys {
			if results[i] != nil {
				continue
			}
			if err != nil {
				results[i] = &dataloader.Result{Error: err}
				continue
			}
			users := shares[parsed[i]]
			if users == nil {
				users = []string{}
			}
			results[i] = &dataloader.Result{Data: users}
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(2*time.Millisecond))
	return &ShareLoader{Loader: loader}
}

// Load returns the share list of one filter.
func (l *ShareLoader) Load(ctx context.Context, id uuid.UUID) ([]string, error) {
	data, err := l.Loader.Load(ctx, dataloader.StringKey(id.String()))()
	if err != nil {
		return nil, err
	}
	return data.([]string), nil
}

// LoadMany returns share lists in the order of ids.
func (l *ShareLoader) LoadMany(ctx context.Context, ids []uuid.UUID) ([][]string, error) {
	keys := make(dataloader.Keys, len(ids))
	for i, id := range ids {
		keys[i] = dataloader.StringKey(id.String())
	}
	data, errs := l.Loader.LoadMany(ctx, keys)()
	out := make([][]string, len(ids))
	for i := range ids {
		if i < len(errs) && errs[i] != nil {
			return nil, errs[i]
		}
		out[i] = data[i].([]string)
	}
	return out, nil
}

type ctxKey string

const shareLoaderKey ctxKey = "shareLoader"

// ContextWithLoader stores loader on ctx.
func ContextWithLoader(ctx context.Context, loader *ShareLoader) context.Context {
	return context.WithValue(ctx, shareLoaderKey, loader)
}

// FromContext returns the request's loader, if any.
func FromContext(ctx context.Context) *ShareLoader {
	if l, ok := ctx.Value(shareLoaderKey).(*ShareLoader); ok {
		return l
	}
	return nil
}
