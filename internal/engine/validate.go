package engine

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"worklist/internal/domain"
)

func requireContext(pc domain.PermissionContext) error {
	switch {
	case strings.TrimSpace(pc.UserID) == "":
		return domain.Validation("user_id", "requester user id is required")
	case strings.TrimSpace(pc.TenantID) == "":
		return domain.Validation("tenant_id", "requester tenant id is required")
	case strings.TrimSpace(pc.LocationID) == "":
		return domain.Validation("location_id", "requester location id is required")
	}
	return nil
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return domain.Validation("title", "title is required")
	}
	if n := utf8.RuneCountInString(title); n > domain.MaxTitleLength {
		return domain.Validation("title", fmt.Sprintf("title must be at most %d characters, got %d", domain.MaxTitleLength, n))
	}
	return nil
}

func validateDescription(desc string) error {
	if n := utf8.RuneCountInString(desc); n > domain.MaxDescriptionLength {
		return domain.Validation("description", fmt.Sprintf("description must be at most %d characters, got %d", domain.MaxDescriptionLength, n))
	}
	return nil
}

func validateQuantity(qty int) error {
	if qty < 1 {
		return domain.Validation("quantity", "quantity must be a positive integer")
	}
	return nil
}

// normalizeAssignees trims ids and drops repeats, keeping first-seen order.
func normalizeAssignees(ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			return nil, domain.Validation("assignee_ids", "assignee ids must not be empty")
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}
