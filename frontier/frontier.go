// Package frontier keeps the project URL sets that sequence work across
// passes: Target (claimed this pass), Wrong (to retry) and the catalog.
package frontier

// Store is the durable frontier. Implementations need not be safe for
// concurrent use; the harvest pipeline is single-threaded.
type Store interface {
	// AddTarget records that url needs at least one fetch this pass.
	AddTarget(url string) error

	// AddWrong records that an attempt on url failed.
	AddWrong(url string) error

	// Wrong returns the current Wrong set, deduplicated, in first-seen order.
	Wrong() ([]string, error)

	// DrainWrong calls replay once for every URL in the Wrong set as it was
	// when DrainWrong started, then clears the set, including any URLs
	// replay added.
	DrainWrong(replay func(url string)) error

	// DedupAgainstCatalog builds this pass's catalog from the discovered
	// URLs plus the Target set left by the previous pass, collapsing
	// duplicates, persists it, and clears Target. merged is the number of
	// Target URLs that were not already discovered.
	DedupAgainstCatalog(discovered []string) (catalog []string, merged int, err error)
}

// dedup collapses duplicates and blank entries, keeping first-seen order.
func dedup(urls []string) []string {
	out := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// mergeCatalog appends targets that are not in discovered.
func mergeCatalog(discovered, targets []string) ([]string, int) {
	catalog := dedup(discovered)
	inCatalog := make(map[string]struct{}, len(catalog))
	for _, u := range catalog {
		inCatalog[u] = struct{}{}
	}
	merged := 0
	for _, u := range dedup(targets) {
		if _, ok := inCatalog[u]; ok {
			continue
		}
		inCatalog[u] = struct{}{}
		catalog = append(catalog, u)
		merged++
	}
	return catalog, merged
}
