package labels

var catalog = []string{
	"Green Light",
	"Red Light",
	"Speed Limit 10",
	"Speed Limit 100",
	"Speed Limit 110",
	"Speed Limit 120",
	"Speed Limit 20",
	"Speed Limit 30",
	"Speed Limit 40",
	"Speed Limit 50",
	"Speed Limit 60",
	"Speed Limit 70",
	"Speed Limit 80",
	"Speed Limit 90",
	"Stop",
	"Yield",
}

var catalogIndex = func() map[string]int {
	idx := make(map[string]int, len(catalog))
	for i, label := range catalog {
		idx[key(label)] = i
	}
	return idx
}()

// Catalog returns the recognized labels in display order.
func Catalog() []string {
	out := make([]string, len(catalog))
	copy(out, catalog)
	return out
}

// InCatalog reports whether label is a recognized label.
func InCatalog(label string) bool {
	_, ok := catalogIndex[key(label)]
	return ok
}

// CatalogIndex returns the display position of label, or -1.
func CatalogIndex(label string) int {
	if i, ok := catalogIndex[key(label)]; ok {
		return i
	}
	return -1
}

// Canonical returns the catalog spelling of label, or the trimmed input when it is not in the catalog.
func Canonical(label string) string {
	if i := CatalogIndex(label); i >= 0 {
		return catalog[i]
	}
	return key(label)
}
