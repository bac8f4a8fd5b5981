package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/kart-io/logger"
	"gopkg.in/yaml.v3"

	"github.com/lazysoft/consultant/internal/consultant/store"
	"github.com/lazysoft/consultant/internal/model"
	"github.com/lazysoft/consultant/pkg/utils/errors"
)

// KnowledgeFile 知识目录中单个 YAML 文件的内容。
type KnowledgeFile struct {
	Key      string            `yaml:"key"`
	Title    string            `yaml:"title"`
	Content  map[string]string `yaml:"content"`
	Tags     []string          `yaml:"tags"`
	Priority int               `yaml:"priority"`
	// Active 缺省为 true。
	Active *bool `yaml:"active"`
}

// KnowledgeWatcher 监听知识目录，把 YAML 文件同步为手工知识条目并建立索引。
type KnowledgeWatcher struct {
	dir       string
	knowledge store.KnowledgeStore
	indexer   *Indexer

	mu      sync.Mutex
	keys    map[string]string // path -> key
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewKnowledgeWatcher creates a watcher for dir.
func NewKnowledgeWatcher(dir string, knowledge store.KnowledgeStore, indexer *Indexer) *KnowledgeWatcher {
	return &KnowledgeWatcher{
		dir:       dir,
		knowledge: knowledge,
		indexer:   indexer,
		keys:      make(map[string]string),
	}
}

func isKnowledgeFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// ParseKnowledgeFile 解析并校验知识文件。
func ParseKnowledgeFile(data []byte) (*KnowledgeFile, error) {
	var f KnowledgeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.ErrValidation.WithCause(err)
	}
	f.Key = strings.TrimSpace(f.Key)
	f.Title = strings.TrimSpace(f.Title)
	if f.Key == "" || f.Title == "" {
		return nil, errors.ErrValidation.WithMessage("knowledge file requires key and title")
	}
	if len(f.Content) == 0 {
		return nil, errors.ErrValidation.WithMessagef("knowledge %q has no content", f.Key)
	}
	if f.Priority < 1 || f.Priority > 10 {
		f.Priority = 5
	}
	return &f, nil
}

// LoadAll 同步目录中的全部知识文件，返回成功同步的文件数。
func (w *KnowledgeWatcher) LoadAll(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0, fmt.Errorf("read knowledge dir %s: %w", w.dir, err)
	}
	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !isKnowledgeFile(e.Name()) {
			continue
		}
		if err := w.Sync(ctx, filepath.Join(w.dir, e.Name())); err != nil {
			logger.Warnw("knowledge file skipped", "file", e.Name(), "error", err)
			continue
		}
		loaded++
	}
	logger.Infow("knowledge directory loaded", "dir", w.dir, "files", loaded)
	return loaded, nil
}

// Sync 按 key 创建或更新文件对应的条目并重建索引。
func (w *KnowledgeWatcher) Sync(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	f, err := ParseKnowledgeFile(data)
	if err != nil {
		return err
	}

	w.mu.Lock()
	prev, renamed := w.keys[path]
	w.keys[path] = f.Key
	w.mu.Unlock()
	if renamed && prev != f.Key {
		if err := w.remove(ctx, prev); err != nil {
			logger.Warnw("failed to drop previous knowledge key", "file", path, "key", prev, "error", err)
		}
	}

	active := true
	if f.Active != nil {
		active = *f.Active
	}
	entry, err := w.knowledge.GetByKey(ctx, f.Key)
	switch {
	case stderrors.Is(err, errors.ErrEntityNotFound):
		key := f.Key
		entry = &model.KnowledgeEntry{Key: &key}
	case err != nil:
		return err
	}
	entry.Title = f.Title
	entry.SourceType = model.SourceManual
	entry.Content = model.LocalizedText(f.Content)
	entry.Tags = model.StringSlice(f.Tags)
	entry.Priority = f.Priority
	entry.AutoUpdate = true
	entry.Active = active

	if entry.ID == 0 {
		err = w.knowledge.Create(ctx, entry)
	} else {
		err = w.knowledge.Update(ctx, entry)
	}
	if err != nil {
		return err
	}

	n, err := w.indexer.Reindex(ctx, model.KindKnowledge, entry.ID)
	if err != nil {
		return err
	}
	logger.Infow("knowledge file synced", "file", path, "key", f.Key, "entity_id", entry.ID, "chunks", n)
	return nil
}

// Forget 删除文件对应的条目及其分块。
func (w *KnowledgeWatcher) Forget(ctx context.Context, path string) error {
	w.mu.Lock()
	key, ok := w.keys[path]
	delete(w.keys, path)
	w.mu.Unlock()
	if !ok {
		return nil
	}
	return w.remove(ctx, key)
}

func (w *KnowledgeWatcher) remove(ctx context.Context, key string) error {
	entry, err := w.knowledge.GetByKey(ctx, key)
	if stderrors.Is(err, errors.ErrEntityNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := w.knowledge.Delete(ctx, entry.ID); err != nil {
		return err
	}
	n, err := w.indexer.Remove(ctx, model.KindKnowledge, entry.ID)
	if err != nil {
		return err
	}
	logger.Infow("knowledge entry removed", "key", key, "entity_id", entry.ID, "rows", n)
	return nil
}

// Start 加载目录并开始监听变更，ctx 结束或调用 Stop 时退出。
func (w *KnowledgeWatcher) Start(ctx context.Context) error {
	if _, err := w.LoadAll(ctx); err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		return err
	}

	w.mu.Lock()
	w.watcher = fw
	w.done = make(chan struct{})
	done := w.done
	w.mu.Unlock()

	go w.loop(ctx, fw, done)
	logger.Infow("knowledge watcher started", "dir", w.dir)
	return nil
}

func (w *KnowledgeWatcher) loop(ctx context.Context, fw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handle(ctx, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logger.Warnw("knowledge watcher error", "error", err)
		}
	}
}

func (w *KnowledgeWatcher) handle(ctx context.Context, ev fsnotify.Event) {
	if !isKnowledgeFile(ev.Name) {
		return
	}
	var err error
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		err = w.Forget(ctx, ev.Name)
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		err = w.Sync(ctx, ev.Name)
	default:
		return
	}
	if err != nil {
		logger.Warnw("knowledge file change not applied", "file", ev.Name, "op", ev.Op.String(), "error", err)
	}
}

// Name implements server.Runnable.
func (w *KnowledgeWatcher) Name() string { return "knowledge-watcher" }

// Stop closes the underlying fsnotify watcher and waits for the loop to exit.
func (w *KnowledgeWatcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	fw, done := w.watcher, w.done
	w.watcher = nil
	w.mu.Unlock()
	if fw == nil {
		return nil
	}
	err := fw.Close()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}
