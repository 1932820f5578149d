package repository

import "gorm.io/gorm"

// BaseRepository 各仓储共有的最小能力
type BaseRepository interface {
	// GetDB 返回底层数据库句柄
	GetDB() *gorm.DB
	// WithTx 返回绑定到指定事务的仓储
	WithTx(tx *gorm.DB) BaseRepository
}

// 列表查询的分页约定：页码从1起，默认每页20条。
// 机柜端sqlite查询量不大，上限100足够导出以外的所有场景。
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Pagination 分页参数，Total由查询方回填
type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

// NewPagination 创建并规整分页参数
func NewPagination(page, pageSize int) *Pagination {
	p := &Pagination{Page: page, PageSize: pageSize}
	p.Normalize()
	return p
}

// Normalize 把越界的页码和页大小拉回约定范围
func (p *Pagination) Normalize() {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
}

// Offset 计算偏移量
func (p *Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Scope 返回应用分页的gorm作用域
func (p *Pagination) Scope() func(db *gorm.DB) *gorm.DB {
	p.Normalize()
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(p.Offset()).Limit(p.PageSize)
	}
}

// BaseRepo 基础仓储实现，嵌入各具体仓储
type BaseRepo struct {
	db *gorm.DB
}

// NewBaseRepo 创建基础仓储
func NewBaseRepo(db *gorm.DB) *BaseRepo {
	return &BaseRepo{db: db}
}

// GetDB 返回底层数据库句柄
func (r *BaseRepo) GetDB() *gorm.DB {
	return r.db
}

// WithTx 返回绑定到指定事务的基础仓储
func (r *BaseRepo) WithTx(tx *gorm.DB) *BaseRepo {
	return &BaseRepo{db: tx}
}
