package credential

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

func TestMemory_RoundTrip(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx, TokenSlot)
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Save(ctx, TokenSlot, "first"))
	require.NoError(t, s.Save(ctx, TokenSlot, "second"))
	got, err := s.Load(ctx, TokenSlot)
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	require.NoError(t, s.Delete(ctx, TokenSlot))
	require.NoError(t, s.Delete(ctx, TokenSlot))
	_, err = s.Load(ctx, TokenSlot)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
