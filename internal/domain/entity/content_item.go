package entity

import "time"

// ContentItem is a stored piece of text content that jobs augment.
type ContentItem struct {
	id        string
	content   string
	updatedAt time.Time
}

// NewContentItem creates a content item.
func NewContentItem(id, content string) *ContentItem {
	return &ContentItem{id: id, content: content, updatedAt: time.Now()}
}

// RestoreContentItem creates a ContentItem entity from stored data.
func RestoreContentItem(id, content string, updatedAt time.Time) *ContentItem {
	return &ContentItem{id: id, content: content, updatedAt: updatedAt}
}

func (c *ContentItem) ID() string {
	return c.id
}

func (c *ContentItem) Content() string {
	return c.content
}

func (c *ContentItem) UpdatedAt() time.Time {
	return c.updatedAt
}

// ReplaceContent swaps in augmented text.
func (c *ContentItem) ReplaceContent(content string) {
	c.content = content
	c.updatedAt = time.Now()
}
