package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC)

	encoded := Encode(ts, "42")
	assert.NotEmpty(t, encoded)

	cursor, err := Decode(encoded)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, ts, cursor.CreatedAt)
	assert.Equal(t, "42", cursor.ID)
}

func TestDecodeEmpty(t *testing.T) {
	cursor, err := Decode("")
	assert.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode("not-base64!!!")
	assert.ErrorIs(t, err, ErrInvalidCursor)

	// Valid base64 but no separator.
	_, err = Decode("bm9waXBl") // "nopipe"
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestComputePage(t *testing.T) {
	when := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	key := func(s string) (time.Time, string) { return when, s }

	// Fewer items than limit: no next page.
	result, cursor, hasMore := ComputePage([]string{"a", "b", "c"}, 5, key)
	assert.Len(t, result, 3)
	assert.Empty(t, cursor)
	assert.False(t, hasMore)

	// Exactly limit items: still no next page.
	result, cursor, hasMore = ComputePage([]string{"a", "b", "c"}, 3, key)
	assert.Len(t, result, 3)
	assert.Empty(t, cursor)
	assert.False(t, hasMore)

	// limit+1 items: trimmed, cursor points at the last returned item.
	result, cursor, hasMore = ComputePage([]string{"a", "b", "c", "d"}, 3, key)
	assert.Len(t, result, 3)
	assert.True(t, hasMore)

	c, err := Decode(cursor)
	require.NoError(t, err)
	assert.Equal(t, "c", c.ID)
}
