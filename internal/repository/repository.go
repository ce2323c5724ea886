package repository

import (
	"strings"

	"gorm.io/gorm"
)

// Page selects one page of a list query. Pages are 1-based.
type Page struct {
	Page    int
	PerPage int
}

func (p Page) normalized() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = 15
	}
	return p
}

func paginate(p Page) func(*gorm.DB) *gorm.DB {
	p = p.normalized()
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset((p.Page - 1) * p.PerPage).Limit(p.PerPage)
	}
}

// likePattern builds a case-insensitive substring pattern for LOWER(col) LIKE ?.
func likePattern(keyword string) string {
	return "%" + toLower(keyword) + "%"
}

func toLower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
