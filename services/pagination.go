package services

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is the list envelope returned by every collection endpoint.
type Page[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// NormalizePage maps a limit outside 1..MaxPageSize to the default and a
// negative offset to zero.
func NormalizePage(limit, offset int) (int, int) {
	if limit < 1 || limit > MaxPageSize {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// listPage runs a list query and its count with already-normalized paging.
func listPage[T any](limit, offset int, list func() ([]T, error), count func() (int, error)) (*Page[T], error) {
	items, err := list()
	if err != nil {
		return nil, err
	}
	total, err := count()
	if err != nil {
		return nil, err
	}
	return &Page[T]{Items: items, Limit: limit, Offset: offset, Total: total}, nil
}
