package usermeta

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func seedRecords(t *testing.T, service *Service, count int) {
	t.Helper()
	base := time.Unix(1700000000, 0).UTC()
	for i := 1; i <= count; i++ {
		record := Record{
			UUID:        fmt.Sprintf("user-%02d", i),
			Role:        RoleUser,
			FirstName:   fmt.Sprintf("First%02d", i),
			LastName:    fmt.Sprintf("Last%02d", i),
			Email:       fmt.Sprintf("user%02d@example.com", i),
			Description: DefaultDescription,
			LastUpdated: base,
			Version:     1,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}
		if err := service.db.Create(&record).Error; err != nil {
			t.Fatalf("seed insert failed: %v", err)
		}
	}
}

func TestListPaginatedEmptyCollection(t *testing.T) {
	service := newTestService(t, nil)

	result, err := service.ListPaginated(context.Background(), PageRequest{Page: 1, Limit: 25})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if result.Total != 0 || result.Page != 1 || result.Limit != 25 {
		t.Fatalf("unexpected envelope: %+v", result)
	}
	if result.TotalPages != 1 {
		t.Fatalf("totalPages must never be zero, got %d", result.TotalPages)
	}
	if result.Data == nil || len(result.Data) != 0 {
		t.Fatalf("expected empty non-nil data, got %v", result.Data)
	}
}

func TestListPaginatedSecondPageDescending(t *testing.T) {
	service := newTestService(t, nil)
	seedRecords(t, service, 25)

	result, err := service.ListPaginated(context.Background(), PageRequest{Page: 2, Limit: 10})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if result.Total != 25 {
		t.Fatalf("expected total 25, got %d", result.Total)
	}
	if result.TotalPages != 3 {
		t.Fatalf("expected 3 pages, got %d", result.TotalPages)
	}
	if len(result.Data) != 10 {
		t.Fatalf("expected 10 records, got %d", len(result.Data))
	}
	// Newest first: page 2 of 25 records covers insertion order 15 down to 6.
	for i, record := range result.Data {
		expected := fmt.Sprintf("user-%02d", 15-i)
		if record.UUID != expected {
			t.Fatalf("position %d: expected %q, got %q", i, expected, record.UUID)
		}
	}
}

func TestListPaginatedClampsBounds(t *testing.T) {
	service := newTestService(t, nil)
	seedRecords(t, service, 3)

	cases := []struct {
		name          string
		page, limit   int
		expectedPage  int
		expectedLimit int
	}{
		{name: "zero limit", page: 1, limit: 0, expectedPage: 1, expectedLimit: 1},
		{name: "negative limit", page: 1, limit: -5, expectedPage: 1, expectedLimit: 1},
		{name: "oversized limit", page: 1, limit: 1000, expectedPage: 1, expectedLimit: 100},
		{name: "zero page", page: 0, limit: 10, expectedPage: 1, expectedLimit: 10},
		{name: "negative page", page: -3, limit: 10, expectedPage: 1, expectedLimit: 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := service.ListPaginated(context.Background(), PageRequest{Page: tc.page, Limit: tc.limit})
			if err != nil {
				t.Fatalf("list failed: %v", err)
			}
			if result.Page != tc.expectedPage || result.Limit != tc.expectedLimit {
				t.Fatalf("expected page=%d limit=%d, got page=%d limit=%d",
					tc.expectedPage, tc.expectedLimit, result.Page, result.Limit)
			}
		})
	}
}

func TestListPaginatedQueryFilter(t *testing.T) {
	service := newTestService(t, nil)
	seedRecords(t, service, 5)

	alice := Record{
		UUID:        "alice-uuid",
		Role:        RoleUser,
		FirstName:   "Alice",
		LastName:    "Walker",
		Email:       "alice@example.com",
		Description: DefaultDescription,
		LastUpdated: time.Unix(1700000500, 0).UTC(),
		Version:     1,
	}
	if err := service.db.Create(&alice).Error; err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}

	result, err := service.ListPaginated(context.Background(), PageRequest{Page: 1, Limit: 25, Query: "ALICE"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if result.Total != 1 || len(result.Data) != 1 {
		t.Fatalf("expected a single case-insensitive match, got total=%d len=%d", result.Total, len(result.Data))
	}
	if result.Data[0].UUID != "alice-uuid" {
		t.Fatalf("expected alice-uuid, got %q", result.Data[0].UUID)
	}

	// Substring match across the uuid column as well.
	byUUID, err := service.ListPaginated(context.Background(), PageRequest{Page: 1, Limit: 25, Query: "user-0"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if byUUID.Total != 5 {
		t.Fatalf("expected 5 uuid matches, got %d", byUUID.Total)
	}
}

func TestListPaginatedRoleFilter(t *testing.T) {
	service := newTestService(t, nil)
	seedRecords(t, service, 4)

	if _, err := service.UpdateRole(context.Background(), "user-02", RoleAdmin); err != nil {
		t.Fatalf("role update failed: %v", err)
	}

	result, err := service.ListPaginated(context.Background(), PageRequest{Page: 1, Limit: 25, Role: RoleAdmin})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if result.Total != 1 || len(result.Data) != 1 || result.Data[0].UUID != "user-02" {
		t.Fatalf("expected only the promoted record, got %+v", result.Data)
	}

	combined, err := service.ListPaginated(context.Background(), PageRequest{Page: 1, Limit: 25, Query: "user-0", Role: RoleUser})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if combined.Total != 3 {
		t.Fatalf("expected 3 remaining User records, got %d", combined.Total)
	}
}
