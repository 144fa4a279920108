package uow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/spinhub/internal/postgres/pgtest"
	"github.com/kirinyoku/spinhub/internal/repository"
	postgresrepo "github.com/kirinyoku/spinhub/internal/repository/postgres"
	"github.com/kirinyoku/spinhub/internal/uow"
)

func TestUoW(t *testing.T) {
	store := postgresrepo.NewStore(pgtest.New(t))
	u := uow.NewUoW(store)
	ctx := context.Background()

	t.Run("hooks run after commit", func(t *testing.T) {
		var (
			id      int64
			visible bool
		)
		err := u.DoWithOpts(ctx, uow.RowLocking, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
			var err error
			id, err = store.Branches().With(tx).Create(ctx, "Committed", -1)
			if err != nil {
				return err
			}
			after(func(ctx context.Context) {
				// outside the transaction the row must already be visible
				_, err := store.Branches().Get(ctx, id)
				visible = err == nil
			})
			return nil
		})
		require.NoError(t, err)
		assert.True(t, visible)
	})

	t.Run("rollback skips hooks and writes", func(t *testing.T) {
		boom := errors.New("boom")
		var (
			id  int64
			ran bool
		)
		err := u.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
			var err error
			id, err = store.Branches().With(tx).Create(ctx, "Rolled back", -1)
			require.NoError(t, err)
			after(func(context.Context) { ran = true })
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.False(t, ran)

		_, err = store.Branches().Get(ctx, id)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("hooks outlive a cancelled request", func(t *testing.T) {
		reqCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		var hookErr error
		err := u.Do(reqCtx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
			after(func(context.Context) { cancel() })
			after(func(ctx context.Context) { hookErr = ctx.Err() })
			return nil
		})
		require.NoError(t, err)
		assert.NoError(t, hookErr)
	})
}
