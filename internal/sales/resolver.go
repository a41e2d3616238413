package sales

import (
	"context"
	"errors"
	"fmt"
)

const (
	SourceShopMapping = "shop_mapping"
	SourceFirstUser   = "first_user"
)

// Resolver returns the user owning a shop, or nil when it has no answer.
type Resolver interface {
	ResolveOwner(ctx context.Context, shopDomain string) (*string, error)
}

// Attribution is the outcome of resolving an order's owner.
type Attribution struct {
	UserID *string
	Source string
}

// Link is one named step of a ChainResolver.
type Link struct {
	Source   string
	Resolver Resolver
}

// ChainResolver asks each link in order and keeps the first non-empty answer.
// Errors from earlier links do not stop later ones.
type ChainResolver struct {
	Links []Link
}

func (c *ChainResolver) Resolve(ctx context.Context, shopDomain string) (Attribution, error) {
	var errs []error
	for _, l := range c.Links {
		if l.Resolver == nil {
			continue
		}
		id, err := l.Resolver.ResolveOwner(ctx, shopDomain)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", l.Source, err))
			continue
		}
		if id != nil && *id != "" {
			return Attribution{UserID: id, Source: l.Source}, nil
		}
	}
	return Attribution{}, errors.Join(errs...)
}

// FirstUserResolver attributes every sale to the store's "first user".
// Single-tenant stopgap until every shop has an owner mapping.
type FirstUserResolver struct {
	Store Store
}

func (r *FirstUserResolver) ResolveOwner(ctx context.Context, _ string) (*string, error) {
	return r.Store.FirstUserID(ctx)
}
