package models

import "math"

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	// MaxPage 保证 (Page-1)*Limit 不溢出
	MaxPage = 1000000
)

// PaginationQuery 分页参数，零值使用默认值
type PaginationQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1,max=1000000"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// Normalize 填充默认值并限制上限
func (q PaginationQuery) Normalize() PaginationQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return q
}

// Offset 当前页的起始偏移
func (q PaginationQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// PaginationResult 分页元信息
type PaginationResult struct {
	Page         int   `json:"page"`
	Limit        int   `json:"limit"`
	TotalPages   int   `json:"totalPages"`
	TotalResults int64 `json:"totalResults"`
}

// NewPaginationResult 根据总数计算总页数
func NewPaginationResult(total int64, q PaginationQuery) PaginationResult {
	return PaginationResult{
		Page:         q.Page,
		Limit:        q.Limit,
		TotalPages:   int(math.Ceil(float64(total) / float64(q.Limit))),
		TotalResults: total,
	}
}
