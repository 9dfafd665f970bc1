// internal/pkg/redis/client.go
package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"

	goredis "github.com/redis/go-redis/v9"
)

// Client 封装 go-redis 客户端，并按名字管理 Lua 脚本。
type Client struct {
	client goredis.UniversalClient

	mu      sync.RWMutex
	scripts map[string]*goredis.Script
}

// NewClient 根据逗号分隔的地址创建客户端；多个地址时使用集群模式。
func NewClient(ctx context.Context, addrs string, password string) (*Client, error) {
	var list []string
	for _, a := range strings.Split(addrs, ",") {
		if a = strings.TrimSpace(a); a != "" {
			list = append(list, a)
		}
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("redis: no address configured")
	}

	uc := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    list,
		Password: password,
	})
	if err := uc.Ping(ctx).Err(); err != nil {
		_ = uc.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addrs, err)
	}
	return Wrap(uc), nil
}

// Wrap 包装一个已有的 go-redis 客户端。
func Wrap(uc goredis.UniversalClient) *Client {
	return &Client{client: uc, scripts: make(map[string]*goredis.Script)}
}

func (c *Client) GetClient() goredis.UniversalClient {
	return c.client
}

// LoadScriptFromContent 注册一个脚本并预加载到服务端。
func (c *Client) LoadScriptFromContent(ctx context.Context, name, content string) error {
	script := goredis.NewScript(content)
	if err := script.Load(ctx, c.client).Err(); err != nil {
		return fmt.Errorf("redis: load script %s: %w", name, err)
	}
	c.mu.Lock()
	c.scripts[name] = script
	c.mu.Unlock()
	return nil
}

// RunScript 执行已注册的脚本，服务端丢失缓存时自动回退到 EVAL。
func (c *Client) RunScript(ctx context.Context, name string, keys []string, args ...interface{}) (interface{}, error) {
	c.mu.RLock()
	script, ok := c.scripts[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("redis: script %s not loaded", name)
	}
	return script.Run(ctx, c.client, keys, args...).Result()
}

func (c *Client) Close() error {
	return c.client.Close()
}
