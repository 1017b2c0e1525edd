package core

import (
	"context"
	"math"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Transactor runs fn inside a storage transaction.
// Repositories called with the ctx passed to fn take part in the transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// Direction returns the sort direction as understood by document stores (1 / -1).
func (ord DBOrdering) Direction() int {
	if ord.Ascending {
		return 1
	}
	return -1
}

// Pagination is bound from the `page` and `limit` query params.
type Pagination struct {
	Page  int `query:"page" json:"page"`
	Limit int `query:"limit" json:"limit"`
}

// Clean applies defaults and bounds.
func (p *Pagination) Clean() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
}

func (p Pagination) Skip() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// PageInfo describes a page of results.
type PageInfo struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func NewPageInfo(p Pagination, total int) PageInfo {
	pages := 0
	if p.Limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	return PageInfo{Page: p.Page, Limit: p.Limit, Total: total, Pages: pages}
}

// Paginate returns the items of `page` (zero pagination returns everything).
func Paginate[T any](items []T, page Pagination) []T {
	if page.Limit <= 0 {
		return items
	}
	start := page.Skip()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// Location is the administrative address of a user jurisdiction or a project site.
type Location struct {
	State    string `json:"state" bson:"state"`
	District string `json:"district" bson:"district"`
	Block    string `json:"block,omitempty" bson:"block,omitempty"`
	Village  string `json:"village,omitempty" bson:"village,omitempty"`
}

func (l Location) Clean() Location {
	return Location{
		State:    CleanString(l.State),
		District: CleanString(l.District),
		Block:    CleanString(l.Block),
		Village:  CleanString(l.Village),
	}
}
