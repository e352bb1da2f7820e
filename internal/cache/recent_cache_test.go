package cache

import (
	"fmt"
	"testing"

	"github.com/logsift/logsift/internal/logs/model"
	"github.com/stretchr/testify/assert"
)

func TestRecentCache_FingerprintDeduplication(t *testing.T) {
	c, err := NewRecentCacheImpl(10)
	assert.NoError(t, err)

	assert.False(t, c.Seen("abc123"))
	c.MarkSeen("abc123")
	c.Wait()
	assert.True(t, c.Seen("abc123"))
	assert.False(t, c.Seen("def456"))
}

func TestRecentCache_RecentKeepsInsertionOrder(t *testing.T) {
	c, err := NewRecentCacheImpl(5)
	assert.NoError(t, err)

	for i := 0; i < 3; i++ {
		c.Add(model.LogEntry{Message: fmt.Sprintf("entry %d", i)})
	}

	recent := c.Recent(10)
	assert.Len(t, recent, 3)
	assert.Equal(t, "entry 0", recent[0].Message)
	assert.Equal(t, "entry 2", recent[2].Message)
}

func TestRecentCache_EvictsOldestBeyondCapacity(t *testing.T) {
	c, err := NewRecentCacheImpl(3)
	assert.NoError(t, err)

	for i := 0; i < 5; i++ {
		c.Add(model.LogEntry{Message: fmt.Sprintf("entry %d", i)})
	}

	recent := c.Recent(0)
	assert.Len(t, recent, 3)
	assert.Equal(t, "entry 2", recent[0].Message)
	assert.Equal(t, "entry 4", recent[2].Message)

	limited := c.Recent(2)
	assert.Len(t, limited, 2)
	assert.Equal(t, "entry 3", limited[0].Message)
}

func TestNewRecentCacheImpl_RejectsNonPositiveCapacity(t *testing.T) {
	_, err := NewRecentCacheImpl(0)
	assert.Error(t, err)
}
