package aggregators

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/histfilter/histfilter/internal/models"
)

// Aggregator transforms one data point group into another and reports
// which group types it is able to handle.
type Aggregator interface {
	// Aggregate wraps group in the transformed sequence. A nil group
	// is a precondition violation and fails immediately.
	Aggregate(group models.DataPointGroup) (models.DataPointGroup, error)
	// CanAggregate reports whether this implementation handles the
	// given group type.
	CanAggregate(groupType string) bool
	// AggregatedGroupType returns the group type of the output
	// sequence when fed the given input group type.
	AggregatedGroupType(groupType string) string
}

// Configurable is implemented by aggregators whose behavior is driven
// by a FilterSpec fixed at construction time.
type Configurable interface {
	WithSpec(spec FilterSpec) Aggregator
}

// Provider constructs a fresh aggregator instance.
type Provider func() Aggregator

// GroupTypeResolver maps a raw storage type name to the logical group
// type of the points it stores.
type GroupTypeResolver interface {
	GroupTypeForStorageType(storageType string) (string, error)
}

// Default capacity of each memo map. Deployments see a handful of
// distinct group and storage types, so entries are effectively never
// evicted.
const defaultCacheSize = 128

// AggregatorMap resolves, per group type, which registered provider
// implements an operator. Resolution scans the providers in
// registration order and memoizes the first match, or the absence of
// one, so each distinct key is scanned at most once per map in the
// common case. Registration order is the only tie-break when several
// providers can handle a group type; no further ordering contract is
// imposed here. Both memo maps are safe for concurrent first use:
// a race may run the scan twice, but both scans converge on the same
// provider.
type AggregatorMap struct {
	providers    []Provider
	resolver     GroupTypeResolver
	groupTypes   *lru.Cache
	storageTypes *lru.Cache
}

// NewAggregatorMap builds a map over an ordered candidate list. The
// resolver is consulted only for storage-type lookups.
func NewAggregatorMap(resolver GroupTypeResolver, providers []Provider) (*AggregatorMap, error) {
	groupTypes, err := lru.New(defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("group type cache: %w", err)
	}
	storageTypes, err := lru.New(defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("storage type cache: %w", err)
	}
	return &AggregatorMap{
		providers:    append([]Provider(nil), providers...),
		resolver:     resolver,
		groupTypes:   groupTypes,
		storageTypes: storageTypes,
	}, nil
}

// ForGroupType returns the first registered provider whose aggregator
// can handle groupType, memoizing both hits and misses.
func (m *AggregatorMap) ForGroupType(groupType string) (Provider, bool) {
	if v, ok := m.groupTypes.Get(groupType); ok {
		p := v.(Provider)
		return p, p != nil
	}
	p := m.scan(groupType)
	m.groupTypes.Add(groupType, p)
	return p, p != nil
}

// ForStorageType maps a raw storage type to its group type through the
// resolver and delegates to the group-type lookup, returning an
// instantiated aggregator. Storage types the resolver cannot map are
// not memoized.
func (m *AggregatorMap) ForStorageType(storageType string) (Aggregator, bool) {
	if v, ok := m.storageTypes.Get(storageType); ok {
		p := v.(Provider)
		if p == nil {
			return nil, false
		}
		return p(), true
	}
	groupType, err := m.resolver.GroupTypeForStorageType(storageType)
	if err != nil {
		return nil, false
	}
	p, _ := m.ForGroupType(groupType)
	m.storageTypes.Add(storageType, p)
	if p == nil {
		return nil, false
	}
	return p(), true
}

func (m *AggregatorMap) scan(groupType string) Provider {
	for _, p := range m.providers {
		if p().CanAggregate(groupType) {
			return p
		}
	}
	return nil
}

// DelegatingAggregator routes every group it is handed to whichever
// registered aggregator handles the group type it was built for.
type DelegatingAggregator struct {
	groupType   string
	aggregators *AggregatorMap
}

func NewDelegatingAggregator(groupType string, aggregators *AggregatorMap) *DelegatingAggregator {
	return &DelegatingAggregator{groupType: groupType, aggregators: aggregators}
}

func (d *DelegatingAggregator) Aggregate(group models.DataPointGroup) (models.DataPointGroup, error) {
	p, ok := d.aggregators.ForGroupType(d.groupType)
	if !ok {
		return nil, fmt.Errorf("no aggregator registered for group type %q", d.groupType)
	}
	return p().Aggregate(group)
}

func (d *DelegatingAggregator) CanAggregate(groupType string) bool {
	_, ok := d.aggregators.ForGroupType(groupType)
	return ok
}

func (d *DelegatingAggregator) AggregatedGroupType(groupType string) string {
	if p, ok := d.aggregators.ForGroupType(groupType); ok {
		return p().AggregatedGroupType(groupType)
	}
	return groupType
}
