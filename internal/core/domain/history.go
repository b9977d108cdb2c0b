package domain

import (
	"strconv"
	"strings"
	"time"
)

// HistoryRecord is one persisted conversion.
type HistoryRecord struct {
	ID        int64
	OwnerID   int64
	Audio     []byte
	URL       string
	CreatedAt time.Time
}

// HistoryPage is one page of an owner's records plus the totals over all of them.
type HistoryPage struct {
	Records    []HistoryRecord
	TotalCount int
	TotalPages int
}

// RecordURL derives the retrieval URL for a record from the caller's origin.
func RecordURL(origin string, id int64) string {
	return strings.TrimRight(origin, "/") + "/music/" + strconv.FormatInt(id, 10)
}

// TotalPages is ceil(total/pageSize); a non-positive page size yields zero pages.
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// PageOffset converts a 1-based page into a row offset. Non-positive pages
// map to offset 1, which existing clients depend on.
func PageOffset(page, pageSize int) int {
	if page > 0 {
		return (page - 1) * pageSize
	}
	return 1
}
