package middleware

import (
	"fmt"
	"regexp"
	"strings"
)

var tenantPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidateTenantID validates tenant ID format
func ValidateTenantID(tenant string) error {
	if tenant == "" {
		return fmt.Errorf("tenant ID cannot be empty")
	}
	if !tenantPattern.MatchString(tenant) {
		return fmt.Errorf("invalid tenant ID format (alphanumeric, dash, underscore only, max 64 chars)")
	}
	return nil
}

// ValidateChatLog rejects an absent or blank transcript
func ValidateChatLog(chatLog string) error {
	if strings.TrimSpace(chatLog) == "" {
		return fmt.Errorf("chat_log is required")
	}
	return nil
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// ValidatePage defaults page numbers below 1 to the first page
func ValidatePage(page int) int {
	if page <= 0 {
		return 1
	}
	return page
}
