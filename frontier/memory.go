package frontier

// MemoryStore is an in-process Store.
type MemoryStore struct {
	targets []string
	wrong   []string
	catalog []string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) AddTarget(url string) error {
	m.targets = append(m.targets, url)
	return nil
}

func (m *MemoryStore) AddWrong(url string) error {
	m.wrong = append(m.wrong, url)
	return nil
}

func (m *MemoryStore) Wrong() ([]string, error) { return dedup(m.wrong), nil }

// Targets returns the Target set, deduplicated.
func (m *MemoryStore) Targets() []string { return dedup(m.targets) }

// Catalog returns the catalog built by the last DedupAgainstCatalog.
func (m *MemoryStore) Catalog() []string { return m.catalog }

func (m *MemoryStore) DrainWrong(replay func(url string)) error {
	for _, u := range dedup(m.wrong) {
		replay(u)
	}
	m.wrong = nil
	return nil
}

func (m *MemoryStore) DedupAgainstCatalog(discovered []string) ([]string, int, error) {
	catalog, merged := mergeCatalog(discovered, m.targets)
	m.catalog = catalog
	m.targets = nil
	return catalog, merged, nil
}
