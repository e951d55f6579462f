package handler

import (
	"encoding/base64"
	"strconv"

	"github.com/rezkam/dayplan/internal/ptr"
)

// MaxPageSize caps page_size on collection listings.
const MaxPageSize = 500

// generatePageToken creates a pagination token from an offset value.
// Returns nil if there are no more pages.
func generatePageToken(offset int, hasMore bool) *string {
	if !hasMore {
		return nil
	}
	token := base64.URLEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
	return &token
}

// parsePageToken decodes a pagination token to get the offset.
// Returns 0 if token is empty, invalid, or contains a negative value.
func parsePageToken(token string) int {
	if token == "" {
		return 0
	}
	decoded, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return 0
	}
	offset, err := strconv.Atoi(string(decoded))
	if err != nil || offset < 0 {
		return 0
	}
	return offset
}

// parsePageSize reads page_size; nil means the whole collection.
func parsePageSize(raw string) *int {
	size, err := strconv.Atoi(raw)
	if err != nil || size <= 0 {
		return nil
	}
	return ptr.To(min(size, MaxPageSize))
}

// paginate slices items for the requested page.
func paginate[T any](items []T, size *int, offset int) ([]T, *string) {
	if offset > len(items) {
		offset = len(items)
	}
	end := offset + ptr.Deref(size, len(items)-offset)
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end], generatePageToken(end, end < len(items))
}
