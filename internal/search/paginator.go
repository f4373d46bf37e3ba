package search

import (
	"net/url"
	"strconv"

	"github.com/jonesrussell/marketplace/internal/domain"
)

// Paginator converts limit/offset parameters into index windows and builds
// the page envelope. MaxWindow bounds offset+limit; zero means
// DefaultMaxWindow.
type Paginator struct {
	DefaultLimit int
	MaxLimit     int
	MaxWindow    int
}

// DefaultMaxWindow matches the index's default max_result_window.
const DefaultMaxWindow = 10000

// Window parses limit and offset. A missing limit uses DefaultLimit, zero
// asks for the largest page, and anything above MaxLimit is clamped.
func (p Paginator) Window(limit, offset string) (size, from int, err error) {
	size = p.DefaultLimit
	if limit != "" {
		size, err = strconv.Atoi(limit)
		if err != nil || size < 0 {
			return 0, 0, &domain.ValidationError{Field: "limit", Message: "must be a non-negative integer"}
		}
		if size == 0 {
			size = p.MaxLimit
		}
	}
	if size > p.MaxLimit {
		size = p.MaxLimit
	}

	if offset != "" {
		from, err = strconv.Atoi(offset)
		if err != nil || from < 0 {
			return 0, 0, &domain.ValidationError{Field: "offset", Message: "must be a non-negative integer"}
		}
	}
	window := p.MaxWindow
	if window <= 0 {
		window = DefaultMaxWindow
	}
	if from > window-size {
		return 0, 0, &domain.ValidationError{Field: "offset", Message: "offset plus limit exceeds " + strconv.Itoa(window)}
	}
	return size, from, nil
}

// Meta builds the envelope of a page. next and previous keep the request's
// query string with an updated offset.
func (p Paginator) Meta(path string, query url.Values, limit, offset int, total int64) domain.PageMeta {
	meta := domain.PageMeta{Limit: limit, Offset: offset, TotalCount: total}

	if int64(offset+limit) < total {
		next := pageURI(path, query, limit, offset+limit)
		meta.Next = &next
	}
	if offset > 0 {
		prev := pageURI(path, query, limit, max(offset-limit, 0))
		meta.Previous = &prev
	}
	return meta
}

func pageURI(path string, query url.Values, limit, offset int) string {
	q := url.Values{}
	for k, v := range query {
		q[k] = append([]string(nil), v...)
	}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return path + "?" + q.Encode()
}
