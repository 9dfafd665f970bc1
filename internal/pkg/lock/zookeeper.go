package lock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"beerorder/internal/pkg/logger"

	"github.com/go-zookeeper/zk"
)

const (
	defaultZkRoot = "/beerorder_locks"
	lockPrefix    = "lock-"
	seqLen        = 10
)

// ZookeeperLocker 使用临时顺序节点实现公平锁：序号最小的节点持有锁，
// 其余节点只监听排在自己前面的那个节点。
type ZookeeperLocker struct {
	conn *zk.Conn
	root string
}

// NewZookeeperConn 建立连接并丢弃会话事件日志。
func NewZookeeperConn(servers []string, sessionTimeout time.Duration) (*zk.Conn, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, fmt.Errorf("zookeeper connect %v: %w", servers, err)
	}
	return conn, nil
}

func NewZookeeperLocker(conn *zk.Conn, root string) (*ZookeeperLocker, error) {
	if root == "" {
		root = defaultZkRoot
	}
	if err := ensurePath(conn, root); err != nil {
		return nil, err
	}
	return &ZookeeperLocker{conn: conn, root: root}, nil
}

func (l *ZookeeperLocker) Acquire(ctx context.Context, key string) (func() error, error) {
	lockPath := l.root + "/" + key
	if err := ensurePath(l.conn, lockPath); err != nil {
		return nil, err
	}

	// 1. 在锁路径下创建临时顺序节点
	node, err := l.conn.CreateProtectedEphemeralSequential(lockPath+"/"+lockPrefix, nil, zk.WorldACL(zk.PermAll))
	if err != nil {
		return nil, fmt.Errorf("failed to create sequential node: %w", err)
	}
	myName := strings.TrimPrefix(node, lockPath+"/")

	release := func() error {
		if err := l.conn.Delete(node, -1); err != nil && !errors.Is(err, zk.ErrNoNode) {
			return fmt.Errorf("failed to delete lock node: %w", err)
		}
		return nil
	}

	for {
		// 2. 取所有子节点，按序号排序
		children, _, err := l.conn.Children(lockPath)
		if err != nil {
			_ = release()
			return nil, fmt.Errorf("failed to get children nodes: %w", err)
		}
		sortBySequence(children)

		idx := indexOf(children, myName)
		if idx < 0 {
			// 会话过期后节点会被服务端删除
			return nil, fmt.Errorf("%w: %s: own node disappeared", ErrNotHeld, key)
		}
		if idx == 0 {
			return release, nil
		}

		// 3. 监听前一个节点
		prev := lockPath + "/" + children[idx-1]
		exists, _, events, err := l.conn.ExistsW(prev)
		if err != nil {
			_ = release()
			return nil, fmt.Errorf("failed to watch previous node: %w", err)
		}
		if !exists {
			continue
		}

		select {
		case ev := <-events:
			if ev.Type != zk.EventNodeDeleted {
				logger.Ctx(ctx).Debug().Str("key", key).Str("event", ev.Type.String()).Msg("zk lock watch fired")
			}
		case <-ctx.Done():
			_ = release()
			return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctx.Err())
		}
	}
}

func ensurePath(conn *zk.Conn, path string) error {
	exists, _, err := conn.Exists(path)
	if err != nil {
		return fmt.Errorf("zookeeper exists %s: %w", path, err)
	}
	if exists {
		return nil
	}
	_, err = conn.Create(path, nil, 0, zk.WorldACL(zk.PermAll))
	if err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return fmt.Errorf("failed to create lock path node %s: %w", path, err)
	}
	return nil
}

// protected 节点名带 GUID 前缀，只能按末尾的序号排序。
func sortBySequence(children []string) {
	sort.Slice(children, func(i, j int) bool {
		return sequence(children[i]) < sequence(children[j])
	})
}

func sequence(name string) string {
	if len(name) < seqLen {
		return name
	}
	return name[len(name)-seqLen:]
}

func indexOf(list []string, name string) int {
	for i, v := range list {
		if v == name {
			return i
		}
	}
	return -1
}
