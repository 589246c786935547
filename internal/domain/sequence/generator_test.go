package sequence

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boxledger/internal/core/apperror"
)

func TestFormatKey(t *testing.T) {
	assert.Equal(t, "202601150007", FormatKey("20260115", 7))
	assert.Equal(t, "202601151234", FormatKey("20260115", 1234))
	// Ordinals past the padded width keep growing rather than wrap.
	assert.Equal(t, "2026011512345", FormatKey("20260115", 12345))
}

func TestValidWorkDate(t *testing.T) {
	assert.True(t, ValidWorkDate("20260115"))
	assert.True(t, ValidWorkDate("20241231"))

	assert.False(t, ValidWorkDate(""))
	assert.False(t, ValidWorkDate("2026-01-15"))
	assert.False(t, ValidWorkDate("20260132"))
	assert.False(t, ValidWorkDate("20260230"))
	assert.False(t, ValidWorkDate("202601"))
}

func TestMemory_Validation(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Next(ctx, "", "20260115")
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	_, err = m.Next(ctx, DefaultNamespace, "notadate")
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestMemory_ConcurrentUniqueness(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	const workers = 50
	keys := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key, err := m.Next(ctx, DefaultNamespace, "20260115")
			if !assert.NoError(t, err) {
				return
			}
			keys <- key
		}()
	}
	wg.Wait()
	close(keys)

	seen := make(map[string]bool)
	for key := range keys {
		assert.False(t, seen[key], "duplicate key %s", key)
		seen[key] = true
	}
	assert.Len(t, seen, workers)
	assert.True(t, seen[FormatKey("20260115", workers)])
}

func TestMemory_IndependentNamespaces(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	k1, err := m.Next(ctx, DefaultNamespace, "20260115")
	require.NoError(t, err)
	k2, err := m.Next(ctx, "ADJ", "20260115")
	require.NoError(t, err)

	// Each namespace starts its own daily counter.
	assert.Equal(t, k1, k2)

	k3, err := m.Next(ctx, DefaultNamespace, "20260116")
	require.NoError(t, err)
	assert.Equal(t, FormatKey("20260116", 1), k3)
}
