// Package resolvers dispatches source URLs to the first resolver that handles them.
package resolvers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/quantmind-br/ghsnap/internal/domain"
	"github.com/quantmind-br/ghsnap/internal/utils"
)

// Chain holds resolvers ordered by priority, lowest first.
// Resolvers with equal priority keep their registration order.
type Chain struct {
	mu        sync.RWMutex
	resolvers []domain.Resolver
	logger    *utils.Logger
}

// NewChain creates a chain from resolvers
func NewChain(logger *utils.Logger, resolvers ...domain.Resolver) *Chain {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	c := &Chain{logger: logger.WithComponent("chain")}
	for _, r := range resolvers {
		c.Register(r)
	}
	return c
}

// Register adds r to the chain. Nil resolvers are ignored.
func (c *Chain) Register(r domain.Resolver) {
	if r == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resolvers = append(c.resolvers, r)
	sort.SliceStable(c.resolvers, func(i, j int) bool {
		return c.resolvers[i].Priority() < c.resolvers[j].Priority()
	})
}

// Resolvers returns the registered resolvers in dispatch order
func (c *Chain) Resolvers() []domain.Resolver {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Resolver(nil), c.resolvers...)
}

// Names returns the resolver names in dispatch order
func (c *Chain) Names() []string {
	resolvers := c.Resolvers()
	names := make([]string, len(resolvers))
	for i, r := range resolvers {
		names[i] = r.Name()
	}
	return names
}

// FindMatching returns the first resolver that can handle u, or nil
func (c *Chain) FindMatching(u *url.URL) domain.Resolver {
	for _, r := range c.Resolvers() {
		if r.CanHandle(u) {
			return r
		}
	}
	return nil
}

// Resolve hands u to the resolvers in order. A resolver that reports
// domain.ErrNotApplicable passes u on to the next one; any other failure
// stops the chain and is returned as a *domain.ResolveError.
func (c *Chain) Resolve(ctx context.Context, u *url.URL) (*domain.Snapshot, error) {
	if u == nil {
		return nil, domain.ErrInvalidURL
	}

	for _, r := range c.Resolvers() {
		if !r.CanHandle(u) {
			continue
		}

		c.logger.Debug().
			Str("resolver", r.Name()).
			Str("url", u.String()).
			Msg("Dispatching URL")

		snapshot, err := r.Resolve(ctx, u)
		if errors.Is(err, domain.ErrNotApplicable) {
			continue
		}
		if err != nil {
			return nil, domain.NewResolveError(r.Name(), u.String(), err)
		}
		return snapshot, nil
	}

	return nil, fmt.Errorf("%s: %w", u.String(), domain.ErrNoResolver)
}

// ResolveString parses rawURL and resolves it
func (c *Chain) ResolveString(ctx context.Context, rawURL string) (*domain.Snapshot, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidURL, err)
	}
	return c.Resolve(ctx, u)
}
