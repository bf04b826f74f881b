// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"fmt"
	"strings"
)

// Link points at one page of a listing.
type Link struct {
	Number int    `json:"number"`
	Href   string `json:"href"`
}

// Page holds the navigation links of a listing.
type Page struct {
	Self  Link  `json:"self"`
	First *Link `json:"first,omitempty"`
	Prev  *Link `json:"prev,omitempty"`
	Next  *Link `json:"next,omitempty"`
	Last  Link  `json:"last"`
}

// newPage builds the links for page of a listing at origin+path. first and
// prev appear after the first page; next appears whenever there is more
// than one page, including on the last one.
func newPage(origin, path string, take, page, total int) Page {
	lastPage := 0
	if take > 0 {
		lastPage = (total + take - 1) / take
	}
	base := strings.TrimSuffix(origin, "/") + path
	link := func(n int) Link {
		return Link{Number: n, Href: fmt.Sprintf("%s?take=%d&page=%d", base, take, n)}
	}

	p := Page{Self: link(page), Last: link(lastPage)}
	if page > 1 {
		first, prev := link(1), link(page-1)
		p.First, p.Prev = &first, &prev
	}
	if lastPage > 1 {
		next := link(page + 1)
		p.Next = &next
	}
	return p
}
