package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/cuongbtq/partimer-be/internal/matching/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// MatchCursor marks the last match of a page in (sent_at, id) descending order
type MatchCursor struct {
	SentAt  time.Time
	MatchID int64
}

func DecodeMatchCursor(cursorStr string) (*MatchCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(string(decoded), "|")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var sentAt, matchID int64
	if _, err := fmt.Sscanf(parts[0], "%d", &sentAt); err != nil {
		return nil, fmt.Errorf("invalid sent_at in cursor: %w", err)
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &matchID); err != nil {
		return nil, fmt.Errorf("invalid match id in cursor: %w", err)
	}

	return &MatchCursor{
		SentAt:  time.Unix(0, sentAt).UTC(),
		MatchID: matchID,
	}, nil
}

func EncodeMatchCursor(cursor *MatchCursor) string {
	cs := fmt.Sprintf("%d|%d", cursor.SentAt.UnixNano(), cursor.MatchID)
	return base64.URLEncoding.EncodeToString([]byte(cs))
}

// after reports whether m sorts strictly after the cursor
func (c *MatchCursor) after(m domain.JobMatch) bool {
	if !m.SentAt.Equal(c.SentAt) {
		return m.SentAt.Before(c.SentAt)
	}
	return m.ID < c.MatchID
}

// paginate returns one page of matches, already ordered newest first, and
// the cursor of the next page when more remain
func paginate(matches []domain.JobMatch, cursor *MatchCursor, pageSize int) ([]domain.JobMatch, string) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	start := 0
	if cursor != nil {
		start = len(matches)
		for i, m := range matches {
			if cursor.after(m) {
				start = i
				break
			}
		}
	}

	page := matches[start:]
	if len(page) <= pageSize {
		return page, ""
	}

	page = page[:pageSize]
	last := page[len(page)-1]
	return page, EncodeMatchCursor(&MatchCursor{SentAt: last.SentAt, MatchID: last.ID})
}
