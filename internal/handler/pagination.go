package handler

import (
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sakif/foodgram/internal/apperror"
)

// Paginator implements page-number pagination:
//
//	?page=<n>   1-based page number (default 1)
//	?limit=<n>  page size override, clamped to MaxPageSize
//
// Responses carry absolute next/previous links built from BaseURL.
type Paginator struct {
	BaseURL     string
	PageSize    int
	MaxPageSize int
}

// Page is the paginated response envelope.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

type pageRequest struct {
	page  int
	limit int
}

func (p pageRequest) offset() int { return (p.page - 1) * p.limit }

// parse reads page and limit. A malformed or non-positive page is a 404,
// a malformed limit falls back to the default size. A page whose offset
// does not fit in an int is a 404 too; it is past the end of any listing.
func (p Paginator) parse(r *http.Request) (pageRequest, error) {
	q := r.URL.Query()
	req := pageRequest{page: 1, limit: p.PageSize}

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return req, apperror.NotFound("page", raw)
		}
		req.page = n
	}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			req.limit = min(n, p.MaxPageSize)
		}
	}
	if req.page-1 > math.MaxInt/req.limit {
		return req, apperror.NotFound("page", q.Get("page"))
	}
	return req, nil
}

// buildPage wraps one page of results. Asking for a page past the end is a 404,
// except page 1 of an empty listing.
func buildPage[T any](p Paginator, r *http.Request, req pageRequest, items []T, count int) (Page[T], error) {
	if req.page > 1 && req.offset() >= count {
		return Page[T]{}, apperror.NotFound("page", strconv.Itoa(req.page))
	}
	if items == nil {
		items = []T{}
	}

	out := Page[T]{Count: count, Results: items}
	if req.offset()+len(items) < count {
		out.Next = p.link(r, req.page+1)
	}
	if req.page > 1 {
		out.Previous = p.link(r, req.page-1)
	}
	return out, nil
}

// link rebuilds the request URL with another page number, keeping every
// other query parameter. Page 1 drops the page parameter.
func (p Paginator) link(r *http.Request, page int) *string {
	q := r.URL.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}

	u := url.URL{Path: r.URL.Path, RawQuery: q.Encode()}
	s := p.BaseURL + u.String()
	return &s
}
