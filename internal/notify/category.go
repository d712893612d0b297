package notify

import (
	"fmt"
	"strings"
	"time"
)

// Category classifies a notification.
type Category string

const (
	CategorySuccess Category = "success"
	CategoryError   Category = "error"
	CategoryWarning Category = "warning"
	CategoryInfo    Category = "info"
)

// Categories lists every valid category in display order.
var Categories = []Category{CategorySuccess, CategoryError, CategoryWarning, CategoryInfo}

// ParseCategory converts a case-insensitive name into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range Categories {
		if c == valid {
			return c, nil
		}
	}
	return "", fmt.Errorf("invalid category %q: must be one of %v", s, Categories)
}

// Politeness is a presentation hint: assertive notifications interrupt,
// polite ones wait for the reader.
type Politeness string

const (
	PolitenessPolite    Politeness = "polite"
	PolitenessAssertive Politeness = "assertive"
)

// Politeness returns the presentation hint for c. Only errors interrupt.
func (c Category) Politeness() Politeness {
	if c == CategoryError {
		return PolitenessAssertive
	}
	return PolitenessPolite
}

// Notification is a transient user-facing message.
type Notification struct {
	// ID is unique among all notifications ever reported by a Queue.
	ID string

	// Seq is the insertion order within the Queue.
	Seq int64

	Category Category
	Message  string

	// TTL is the auto-dismiss delay. Zero keeps the notification until
	// it is dismissed explicitly.
	TTL time.Duration

	Politeness Politeness
}
