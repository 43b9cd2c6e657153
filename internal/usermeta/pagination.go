package usermeta

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// DefaultPage and DefaultLimit apply when a caller omits paging values
// entirely; clamping handles values that are present but out of range.
const (
	DefaultPage  = 1
	DefaultLimit = 25
	maxLimit     = 100
)

const opList = "usermeta.list"

// PageRequest carries caller-supplied paging and filter parameters.
// Out-of-range values are clamped, never rejected.
type PageRequest struct {
	Page  int
	Limit int
	Query string
	Role  Role
}

// PageResult is the paginated listing envelope.
type PageResult struct {
	Data       []Record `json:"data"`
	Total      int64    `json:"total"`
	Page       int      `json:"page"`
	Limit      int      `json:"limit"`
	TotalPages int64    `json:"totalPages"`
}

func clampPage(page int) int {
	if page < 1 {
		return DefaultPage
	}
	return page
}

func clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// ListPaginated returns one page of records, newest first, optionally
// filtered by a case-insensitive substring query and an exact role match.
func (s *Service) ListPaginated(ctx context.Context, request PageRequest) (PageResult, error) {
	page := clampPage(request.Page)
	limit := clampLimit(request.Limit)
	skip := (page - 1) * limit

	// Count and page fetch are independent reads; run them concurrently on
	// separate query builders so no statement state is shared.
	group, groupCtx := errgroup.WithContext(ctx)

	var total int64
	group.Go(func() error {
		return s.filteredQuery(groupCtx, request).Count(&total).Error
	})

	var records []Record
	group.Go(func() error {
		return s.filteredQuery(groupCtx, request).
			Order("created_at DESC, id DESC").
			Offset(skip).
			Limit(limit).
			Find(&records).Error
	})

	if err := group.Wait(); err != nil {
		s.logError(opList, "query_failed", err)
		return PageResult{}, newServiceError(opList, "query_failed", err)
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)
	if totalPages < 1 {
		totalPages = 1
	}

	if records == nil {
		records = []Record{}
	}
	return PageResult{
		Data:       records,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}

func (s *Service) filteredQuery(ctx context.Context, request PageRequest) *gorm.DB {
	tx := s.db.WithContext(ctx).Model(&Record{})
	if query := strings.TrimSpace(request.Query); query != "" {
		pattern := "%" + strings.ToLower(query) + "%"
		tx = tx.Where(
			"lower(first_name) LIKE ? OR lower(last_name) LIKE ? OR lower(uuid) LIKE ? OR lower(email) LIKE ?",
			pattern, pattern, pattern, pattern,
		)
	}
	if request.Role != "" {
		tx = tx.Where("role = ?", request.Role)
	}
	return tx
}
