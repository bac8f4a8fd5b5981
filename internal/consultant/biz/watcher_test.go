package biz

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazysoft/consultant/internal/model"
	"github.com/lazysoft/consultant/pkg/utils/errors"
)

const warrantyYAML = `key: warranty
title: Гарантія
priority: 2
tags: [support]
content:
  uk: Ми надаємо гарантійний сервіс 3 місяці після запуску.
  en: We provide a 3 month warranty service after launch.
`

func TestParseKnowledgeFile(t *testing.T) {
	f, err := ParseKnowledgeFile([]byte(warrantyYAML))
	require.NoError(t, err)
	assert.Equal(t, "warranty", f.Key)
	assert.Equal(t, 2, f.Priority)
	assert.Equal(t, []string{"support"}, f.Tags)
	assert.Nil(t, f.Active)

	tests := []struct {
		name string
		data string
	}{
		{"missing key", "title: T\ncontent:\n  uk: x\n"},
		{"missing content", "key: k\ntitle: T\n"},
		{"not yaml", "key: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseKnowledgeFile([]byte(tt.data))
			assert.ErrorIs(t, err, errors.ErrValidation)
		})
	}

	f, err = ParseKnowledgeFile([]byte("key: k\ntitle: T\npriority: 42\ncontent:\n  uk: x\n"))
	require.NoError(t, err)
	assert.Equal(t, 5, f.Priority)
}

func TestKnowledgeWatcher_SyncAndForget(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "warranty.yaml")
	require.NoError(t, os.WriteFile(path, []byte(warrantyYAML), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yml"), []byte("title: no key"), 0o600))

	w := NewKnowledgeWatcher(dir, env.store.Knowledge(), env.indexer)
	loaded, err := w.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)

	entry, err := env.store.Knowledge().GetByKey(ctx, "warranty")
	require.NoError(t, err)
	assert.Equal(t, model.SourceManual, entry.SourceType)
	assert.True(t, entry.AutoUpdate)
	assert.True(t, entry.Active)

	chunk, err := env.store.Vectors().Get(ctx, model.ChunkKey{Kind: model.KindKnowledge, ID: idString(entry.ID), Language: "en"})
	require.NoError(t, err)
	assert.Contains(t, chunk.ContentText, "warranty")

	// 修改内容后同一条目被更新。
	updated := "key: warranty\ntitle: Гарантія 6 місяців\ncontent:\n  uk: Гарантійний сервіс 6 місяців.\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))
	require.NoError(t, w.Sync(ctx, path))

	again, err := env.store.Knowledge().GetByKey(ctx, "warranty")
	require.NoError(t, err)
	assert.Equal(t, entry.ID, again.ID)
	assert.Equal(t, "Гарантія 6 місяців", again.Title)
	assert.Equal(t, 5, again.Priority)

	// 文件中的 key 变化时旧条目被删除。
	require.NoError(t, os.WriteFile(path, []byte("key: warranty-v2\ntitle: Гарантія\ncontent:\n  uk: Сервіс.\n"), 0o600))
	require.NoError(t, w.Sync(ctx, path))
	_, err = env.store.Knowledge().GetByKey(ctx, "warranty")
	assert.ErrorIs(t, err, errors.ErrEntityNotFound)

	v2, err := env.store.Knowledge().GetByKey(ctx, "warranty-v2")
	require.NoError(t, err)

	require.NoError(t, w.Forget(ctx, path))
	_, err = env.store.Knowledge().GetByKey(ctx, "warranty-v2")
	assert.ErrorIs(t, err, errors.ErrEntityNotFound)
	keys, err := env.store.Vectors().Keys(ctx, model.KindKnowledge)
	require.NoError(t, err)
	for _, k := range keys {
		assert.NotEqual(t, idString(v2.ID), k.ID)
	}

	assert.NoError(t, w.Forget(ctx, filepath.Join(dir, "unknown.yaml")))
}
