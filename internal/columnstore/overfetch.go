package columnstore

// DefaultOverfetch is the default `WITH (overfetch = N)` multiplier
// applied to similarity-filtered queries (spec.md §4.E), used when a
// query omits the clause and the collection config has no override.
const DefaultOverfetch = 10

// ResolveOverfetch picks the overfetch multiplier for one query: the
// query's explicit WITH clause wins, then the collection's configured
// default, then DefaultOverfetch.
func ResolveOverfetch(requested, collectionDefault int) int {
	if requested > 0 {
		return requested
	}
	if collectionDefault > 0 {
		return collectionDefault
	}
	return DefaultOverfetch
}
