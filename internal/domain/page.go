package domain

import "strconv"

// MaxPageLimit 单页最大条数
const MaxPageLimit = 100

// Page 分页参数
type Page struct {
	Limit  int
	Offset int
}

// WantsCount 只有第一页才计算总数，其余页返回 0
func (p Page) WantsCount() bool {
	return p.Offset == 0
}

// ParsePage 解析查询参数中的 limit 和 offset，两者都必须提供
func ParsePage(limit, offset string) (Page, error) {
	l, err := strconv.Atoi(limit)
	if err != nil || l < 1 || l > MaxPageLimit {
		return Page{}, ErrInvalidLimit
	}
	o, err := strconv.Atoi(offset)
	if err != nil || o < 0 {
		return Page{}, ErrInvalidOffset
	}
	return Page{Limit: l, Offset: o}, nil
}
