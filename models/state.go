package models

// Status is the lifecycle stage of the query state for one filter key.
type Status int

const (
	StatusIdle Status = iota
	StatusLoadingFirstPage
	StatusReady
	StatusLoadingNextPage
	StatusExhausted
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoadingFirstPage:
		return "loading_first_page"
	case StatusReady:
		return "ready"
	case StatusLoadingNextPage:
		return "loading_next_page"
	case StatusExhausted:
		return "exhausted"
	case StatusErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Snapshot is a read-only view of the query state for the active filters.
type Snapshot struct {
	// Version increases with every transition of the coordinator.
	Version     uint64
	Key         string
	Filters     Filters
	Status      Status
	Pages       []PageResult
	NextPage    int
	HasNextPage bool
	Err         error
}

// IsLoadingFirstPage reports whether page 1 is being fetched.
func (s Snapshot) IsLoadingFirstPage() bool {
	return s.Status == StatusLoadingFirstPage
}

// IsLoadingNextPage reports whether a follow-up page is being fetched.
func (s Snapshot) IsLoadingNextPage() bool {
	return s.Status == StatusLoadingNextPage
}

// IsErrored reports whether the last fetch failed.
func (s Snapshot) IsErrored() bool {
	return s.Status == StatusErrored
}

// Items flattens all loaded pages in page order.
func (s Snapshot) Items() []Item {
	total := 0
	for _, page := range s.Pages {
		total += len(page.Items)
	}
	out := make([]Item, 0, total)
	for _, page := range s.Pages {
		out = append(out, page.Items...)
	}
	return out
}

// Categories returns the distinct categories of loaded items in first-seen order.
func (s Snapshot) Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, page := range s.Pages {
		for _, item := range page.Items {
			if _, ok := seen[item.Category]; ok {
				continue
			}
			seen[item.Category] = struct{}{}
			out = append(out, item.Category)
		}
	}
	return out
}
