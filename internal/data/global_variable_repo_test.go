package data

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probeworks/apiprobe/internal/core"
	"github.com/probeworks/apiprobe/internal/domain/model"
	"github.com/probeworks/apiprobe/internal/testutil"
)

func TestGlobalVariableRepo_Upsert(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewGlobalVariableRepo(db)

		created, err := repo.Upsert(ctx, core.UpsertGlobalVariableParams{
			Name:  "token",
			Value: "abc",
		})
		require.NoError(t, err)
		require.NotZero(t, created.ID)
		assert.Equal(t, model.VarTypeString, created.VarType)

		// Same name overwrites in place
		updated, err := repo.Upsert(ctx, core.UpsertGlobalVariableParams{
			Name:        "token",
			Value:       "def",
			VarType:     model.VarTypeToken,
			Description: "refreshed by login flow",
		})
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, "def", updated.Value)
		assert.Equal(t, model.VarTypeToken, updated.VarType)
		assert.Equal(t, "refreshed by login flow", updated.Description)

		_, err = repo.Upsert(ctx, core.UpsertGlobalVariableParams{Name: "  "})
		require.Error(t, err)
	})
}

func TestGlobalVariableRepo_GetByName(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewGlobalVariableRepo(db)

		_, err := repo.Upsert(ctx, core.UpsertGlobalVariableParams{Name: "env", Value: "staging"})
		require.NoError(t, err)

		got, err := repo.GetByName(ctx, "env")
		require.NoError(t, err)
		assert.Equal(t, "staging", got.Value)

		_, err = repo.GetByName(ctx, "missing")
		assert.ErrorIs(t, err, ErrVariableNotFound)
	})
}

func TestGlobalVariableRepo_ListAndDelete(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewGlobalVariableRepo(db)

		for _, name := range []string{"zeta", "alpha", "mid"} {
			_, err := repo.Upsert(ctx, core.UpsertGlobalVariableParams{Name: name, Value: "v"})
			require.NoError(t, err)
		}

		got, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "alpha", got[0].Name)
		assert.Equal(t, "mid", got[1].Name)
		assert.Equal(t, "zeta", got[2].Name)

		deleted, err := repo.Delete(ctx, "mid")
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = repo.Delete(ctx, "mid")
		require.NoError(t, err)
		assert.False(t, deleted)
	})
}
