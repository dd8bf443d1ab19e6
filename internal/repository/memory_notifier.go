package repository

import (
	"context"
	"sync"
)

// MemoryChangeNotifier はプロセス内で変更通知をファンアウトするChangeNotifier。
// 同一プロセス内の複数レジストリ（テストでの複数インスタンスの模擬など）で使う。
type MemoryChangeNotifier struct {
	mu     sync.Mutex
	subs   map[int]chan Change
	nextID int
}

// NewMemoryChangeNotifier はMemoryChangeNotifierを生成する。
func NewMemoryChangeNotifier() *MemoryChangeNotifier {
	return &MemoryChangeNotifier{subs: make(map[int]chan Change)}
}

// Publish はすべての購読者に変更を配信する。
// バッファが埋まっている購読者への通知は破棄する。
func (n *MemoryChangeNotifier) Publish(ctx context.Context, change Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- change:
		default:
		}
	}
	return nil
}

// Subscribe は購読チャネルを返す。ctxのキャンセルで購読を解除しチャネルを閉じる。
func (n *MemoryChangeNotifier) Subscribe(ctx context.Context) (<-chan Change, error) {
	ch := make(chan Change, 16)

	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = ch
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

// compile-time interface check
var _ ChangeNotifier = (*MemoryChangeNotifier)(nil)
