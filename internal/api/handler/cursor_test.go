package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/partimer-be/internal/matching/domain"
)

func TestMatchCursor_RoundTrip(t *testing.T) {
	c := &MatchCursor{SentAt: time.Date(2026, 3, 2, 10, 0, 0, 123, time.UTC), MatchID: 42}

	decoded, err := DecodeMatchCursor(EncodeMatchCursor(c))
	require.NoError(t, err)
	assert.True(t, c.SentAt.Equal(decoded.SentAt))
	assert.Equal(t, c.MatchID, decoded.MatchID)
}

func TestDecodeMatchCursor_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{name: "not base64", cursor: "%%%"},
		{name: "one part", cursor: "MTIz"},
		{name: "bad id", cursor: "MTIzfGFiYw=="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMatchCursor(tt.cursor)
			assert.Error(t, err)
		})
	}

	c, err := DecodeMatchCursor("")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestPaginate(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	// newest first, two rows share a timestamp
	matches := []domain.JobMatch{
		{ID: 5, SentAt: base.Add(3 * time.Minute)},
		{ID: 4, SentAt: base.Add(2 * time.Minute)},
		{ID: 3, SentAt: base.Add(2 * time.Minute)},
		{ID: 2, SentAt: base.Add(1 * time.Minute)},
		{ID: 1, SentAt: base},
	}

	var (
		seen   []int64
		cursor *MatchCursor
	)
	for page := 0; page < 5; page++ {
		items, next := paginate(matches, cursor, 2)
		for _, m := range items {
			seen = append(seen, m.ID)
		}
		if next == "" {
			break
		}
		var err error
		cursor, err = DecodeMatchCursor(next)
		require.NoError(t, err)
	}

	assert.Equal(t, []int64{5, 4, 3, 2, 1}, seen)
}

func TestPaginate_PageSizeBounds(t *testing.T) {
	matches := make([]domain.JobMatch, 150)
	for i := range matches {
		matches[i] = domain.JobMatch{ID: int64(150 - i)}
	}

	page, next := paginate(matches, nil, 0)
	assert.Len(t, page, defaultPageSize)
	assert.NotEmpty(t, next)

	page, _ = paginate(matches, nil, 1000)
	assert.Len(t, page, maxPageSize)
}
