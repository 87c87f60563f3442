package cart

import (
	"errors"
	"strings"
)

var ErrUnknownPolicy = errors.New("unknown merge policy")

// MergePolicy decides the quantity of a product present in both the local
// (guest) cart and the server cart when a session logs in.
type MergePolicy interface {
	Name() string
	Resolve(local, remote int) int
}

type sumPolicy struct{}

func (sumPolicy) Name() string                  { return "sum" }
func (sumPolicy) Resolve(local, remote int) int { return local + remote }

type maxPolicy struct{}

func (maxPolicy) Name() string                  { return "max" }
func (maxPolicy) Resolve(local, remote int) int { return max(local, remote) }

var (
	SumPolicy MergePolicy = sumPolicy{}
	MaxPolicy MergePolicy = maxPolicy{}
	// DefaultPolicy adds guest quantities on top of the server cart.
	DefaultPolicy = SumPolicy
)

var policies = map[string]MergePolicy{
	SumPolicy.Name(): SumPolicy,
	MaxPolicy.Name(): MaxPolicy,
}

// PolicyByName resolves a policy name; empty selects DefaultPolicy.
func PolicyByName(name string) (MergePolicy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultPolicy, nil
	}
	p, ok := policies[name]
	if !ok {
		return nil, ErrUnknownPolicy
	}
	return p, nil
}

// MergeLines reconciles local lines into remote. Lines in both keep the
// remote snapshot with the policy's quantity; local-only lines are added.
// Lines with a quantity below 1 are ignored and no line exceeds MaxQuantity.
func MergeLines(remote, local []Line, policy MergePolicy) []Line {
	merged := indexLines(remote)
	for _, l := range local {
		if l.ProductID == "" || l.Quantity < 1 {
			continue
		}
		if existing, ok := merged[l.ProductID]; ok {
			existing.Quantity = min(policy.Resolve(l.Quantity, existing.Quantity), MaxQuantity)
			merged[l.ProductID] = existing
			continue
		}
		l.Quantity = min(l.Quantity, MaxQuantity)
		merged[l.ProductID] = l
	}
	return linesOf(merged)
}
