// Package resolve dereferences linked references and consumed-input refs to
// committed state bodies, consulting the local vault first and then the
// owning parties over the network in deterministic order.
package resolve

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"xdao.co/txfin/tx"
	"xdao.co/txfin/vault"
)

// Fetcher retrieves committed state from a remote party. FetchHead serves
// the latest committed version of a lineage; FetchState serves one exact
// committed version from history. Implementations must never serve
// unfinalized outputs.
type Fetcher interface {
	FetchHead(ctx context.Context, linearID uuid.UUID) (tx.StateBody, error)
	FetchState(ctx context.Context, ref tx.StateRef) (tx.StateBody, error)
}

// Resolver resolves references against the local vault, a cache and a fixed
// ordered list of remote fetchers.
//
// Fallback order is the slice order in remotes; callers MUST supply a fixed
// order. This keeps resolution deterministic and the retrieval strategy
// explicit.
type Resolver struct {
	local   vault.Vault
	remotes []Fetcher

	mu    sync.RWMutex
	cache map[uuid.UUID]tx.StateBody
}

func New(local vault.Vault, remotes ...Fetcher) *Resolver {
	return &Resolver{
		local:   local,
		remotes: remotes,
		cache:   make(map[uuid.UUID]tx.StateBody),
	}
}

// Resolve dereferences a linked reference. The resolved body's kind must
// match the reference's expected kind, else the resolution fails with a
// KindTypeMismatch error; a reference no party can supply fails with
// KindUnresolved.
func (r *Resolver) Resolve(ctx context.Context, ref tx.LinkedReference) (tx.StateBody, error) {
	body, err := r.head(ctx, ref.ID)
	if err != nil {
		return tx.StateBody{}, err
	}
	if body.Kind != ref.ExpectedKind {
		return tx.StateBody{}, tx.NewError(tx.KindTypeMismatch, "TXF-RSV-102",
			"reference "+ref.String()+" resolved to kind "+body.Kind)
	}
	return body, nil
}

// ResolveInput dereferences a consumed-input ref to the exact committed
// version it names, from local history first, then remote parties. Exact
// lookup keeps validation deterministic for every participant: a recipient
// validating a finalized transaction sees the same input bodies the
// initiator did, even after the lineage head has moved on.
func (r *Resolver) ResolveInput(ctx context.Context, ref tx.StateRef) (tx.StateBody, error) {
	if r.local != nil {
		body, err := r.local.State(ref)
		if err == nil {
			return body, nil
		}
		if !vault.IsNotFound(err) {
			return tx.StateBody{}, err
		}
	}
	for _, remote := range r.remotes {
		body, err := remote.FetchState(ctx, ref)
		if err == nil {
			if body.Ref() != ref {
				return tx.StateBody{}, tx.NewError(tx.KindInternal, "TXF-RSV-104",
					"remote served "+body.Ref().String()+" for input "+ref.String())
			}
			return body, nil
		}
		if tx.IsKind(err, tx.KindUnresolved) {
			continue
		}
		return tx.StateBody{}, err
	}
	return tx.StateBody{}, tx.NewError(tx.KindUnresolved, "TXF-RSV-103",
		"no party can supply input "+ref.String())
}

// Head returns the latest committed version of a lineage, for proposal
// building: inputs must name the current head or the notary will refuse
// them as already consumed.
func (r *Resolver) Head(ctx context.Context, linearID uuid.UUID) (tx.StateBody, error) {
	return r.head(ctx, linearID)
}

// ResolveProposal dereferences everything validation needs, in the
// proposal's own (canonical) order.
func (r *Resolver) ResolveProposal(ctx context.Context, p *tx.Proposal) (*tx.ResolvedProposal, error) {
	rp := &tx.ResolvedProposal{Proposal: p}
	for _, ref := range p.Inputs {
		body, err := r.ResolveInput(ctx, ref)
		if err != nil {
			return nil, err
		}
		rp.InputBodies = append(rp.InputBodies, body)
	}
	for _, ref := range p.References {
		body, err := r.Resolve(ctx, ref)
		if err != nil {
			return nil, err
		}
		rp.ReferenceBodies = append(rp.ReferenceBodies, body)
	}
	return rp, nil
}

// Observe records a committed body in the cache when it is newer than the
// cached version.
func (r *Resolver) Observe(body tx.StateBody) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.cache[body.LinearID]; !ok || body.Version > cached.Version {
		r.cache[body.LinearID] = body
	}
}

// Invalidate drops the cached entry for a lineage. Called on commit for
// every consumed or advanced lineage.
func (r *Resolver) Invalidate(linearID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, linearID)
}

func (r *Resolver) head(ctx context.Context, linearID uuid.UUID) (tx.StateBody, error) {
	r.mu.RLock()
	cached, ok := r.cache[linearID]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	if r.local != nil {
		body, err := r.local.Head(linearID)
		if err == nil {
			r.Observe(body)
			return body, nil
		}
		if !vault.IsNotFound(err) {
			return tx.StateBody{}, err
		}
	}

	for _, remote := range r.remotes {
		body, err := remote.FetchHead(ctx, linearID)
		if err == nil {
			r.Observe(body)
			return body, nil
		}
		if tx.IsKind(err, tx.KindUnresolved) {
			continue
		}
		return tx.StateBody{}, err
	}
	return tx.StateBody{}, tx.NewError(tx.KindUnresolved, "TXF-RSV-101",
		"no party can supply state "+linearID.String())
}
