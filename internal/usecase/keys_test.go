package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
	"github.com/fairyhunter13/ai-blog-cms/internal/service/keypool"
	"github.com/fairyhunter13/ai-blog-cms/internal/usecase"
)

func TestKeyService(t *testing.T) {
	ctx := context.Background()
	mgr := keypool.NewManager(keypool.NewMemoryStore())
	svc := usecase.NewKeyService(mgr)

	added, err := svc.Add(ctx, usecase.KeyInput{Name: "primary", Value: "AIzaSyExample1234"})
	require.NoError(t, err)
	assert.Equal(t, "*************1234", added.Key)

	_, err = svc.Add(ctx, usecase.KeyInput{Name: "primary", Value: "AIzaSyOther99999"})
	assert.ErrorIs(t, err, domain.ErrDuplicateName)

	_, err = svc.Add(ctx, usecase.KeyInput{Name: "backup", Value: "AIzaSyBackup5678"})
	require.NoError(t, err)

	cred, err := mgr.SelectCredential(ctx, "")
	require.NoError(t, err)
	require.NoError(t, mgr.RecordExhaustion(ctx, cred))

	keys, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.True(t, keys[1].QuotaExceeded, "exceeded keys are listed last")
	for _, k := range keys {
		assert.NotContains(t, k.Key, "AIza")
	}

	n, err := svc.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, svc.Remove(ctx, "backup"))
	assert.ErrorIs(t, svc.Remove(ctx, "backup"), domain.ErrNotFound)
	keys, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
	assert.False(t, keys[0].QuotaExceeded)
}
