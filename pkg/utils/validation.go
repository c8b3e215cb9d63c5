package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"tila/pkg/models"
)

// Identifier and text limits shared by the stores' column sizes
const (
	MaxUserIDLength     = 128
	MaxCategoryIDLength = 128
	MaxTitleLength      = 255
)

// ValidateUserID checks an opaque user id from a token or a path parameter
func ValidateUserID(userID string) error {
	return validateIdentifier("user id", userID, MaxUserIDLength)
}

// ValidateItem checks the fields of a newly created item
func ValidateItem(item *models.Item) error {
	if item == nil {
		return models.NewValidationError("item is required")
	}
	if err := validateIdentifier("category id", item.CategoryID, MaxCategoryIDLength); err != nil {
		return err
	}
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return models.NewValidationError("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return models.NewValidationError("title is too long")
	}
	return nil
}

func validateIdentifier(what, id string, max int) error {
	if strings.TrimSpace(id) == "" {
		return models.NewValidationError(what + " is required")
	}
	if len(id) > max {
		return models.NewValidationError(what + " is too long")
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return models.NewValidationError(what + " contains control characters")
		}
	}
	return nil
}
