package typeddata

import (
	"context"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/errors"
)

// maxConcurrentLookups bounds in-flight resolver calls per ResolveNames.
const maxConcurrentLookups = 8

// NameResolver maps a human readable name (an ENS name, an address book
// alias) to an address.
type NameResolver interface {
	ResolveName(ctx context.Context, name string) (common.Address, error)
}

// NameResolverFunc adapts a function to NameResolver.
type NameResolverFunc func(ctx context.Context, name string) (common.Address, error)

// ResolveName calls f.
func (f NameResolverFunc) ResolveName(ctx context.Context, name string) (common.Address, error) {
	return f(ctx, name)
}

// ResolveNames builds an Encoder for types and resolves names in the domain
// and value. See Encoder.ResolveNames.
func ResolveNames(ctx context.Context, domain map[string]any, types Types, value map[string]any, resolver NameResolver) (Domain, map[string]any, error) {
	enc, err := NewEncoder(types)
	if err != nil {
		return Domain{}, nil, err
	}
	return enc.ResolveNames(ctx, domain, value, resolver)
}

// ResolveNames replaces every address-typed string that is not 0x hex with
// the address resolver returns for it. The domain's verifyingContract is
// included. Names match case-insensitively: each distinct name is looked up
// once, under its lexically smallest spelling, and lookups run concurrently.
// No substitution happens unless every lookup succeeds. The inputs are not
// modified.
func (e *Encoder) ResolveNames(ctx context.Context, domain map[string]any, value map[string]any, resolver NameResolver) (Domain, map[string]any, error) {
	// normalized name -> spelling sent to the resolver
	pending := make(map[string]string)
	collect := func(v any) {
		name, ok := unresolvedName(v)
		if !ok {
			return
		}
		key := nameKey(name)
		if prev, seen := pending[key]; !seen || name < prev {
			pending[key] = name
		}
	}
	collect(domain["verifyingContract"])
	_, err := e.Visit(value, func(typ string, v any) (any, error) {
		if typ == "address" {
			collect(v)
		}
		return v, nil
	})
	if err != nil {
		return Domain{}, nil, err
	}

	resolved, err := e.lookupAll(ctx, resolver, pending)
	if err != nil {
		return Domain{}, nil, err
	}
	substitute := func(v any) any {
		if name, ok := unresolvedName(v); ok {
			return resolved[nameKey(name)]
		}
		return v
	}

	rawDomain := make(map[string]any, len(domain))
	for k, v := range domain {
		rawDomain[k] = v
	}
	if v, ok := rawDomain["verifyingContract"]; ok {
		rawDomain["verifyingContract"] = substitute(v)
	}
	d, err := DomainFromMap(rawDomain)
	if err != nil {
		return Domain{}, nil, err
	}

	out, err := e.Visit(value, func(typ string, v any) (any, error) {
		if typ == "address" {
			return substitute(v), nil
		}
		return v, nil
	})
	if err != nil {
		return Domain{}, nil, err
	}
	return d, out.(map[string]any), nil
}

// lookupAll resolves pending and returns addresses keyed by nameKey.
func (e *Encoder) lookupAll(ctx context.Context, resolver NameResolver, pending map[string]string) (map[string]common.Address, error) {
	if len(pending) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(pending))
	for _, name := range pending {
		names = append(names, name)
	}
	sort.Strings(names)

	if resolver == nil {
		return nil, errors.ErrNameResolution.
			WithMessagef("name resolution failed: no resolver configured for %q", names[0]).
			WithDetail("name", names[0])
	}

	results := make([]common.Address, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			addr, err := resolver.ResolveName(gctx, name)
			if err != nil {
				return errors.WrapWithCause(errors.ErrNameResolution, err, "resolve %q", name).
					WithDetail("name", name)
			}
			if addr == (common.Address{}) {
				return errors.ErrNameResolution.
					WithMessagef("name resolution failed: %q resolved to the zero address", name).
					WithDetail("name", name)
			}
			results[i] = addr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.Debug("name resolution failed", zap.Strings("names", names), zap.Error(err))
		return nil, err
	}

	out := make(map[string]common.Address, len(names))
	for i, name := range names {
		out[nameKey(name)] = results[i]
	}
	return out, nil
}

// unresolvedName reports whether v is a string that must go through the
// resolver. Hex-looking strings are left to address validation.
func unresolvedName(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return "", false
	}
	return s, true
}

// nameKey folds the spellings of one name together.
func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
