package server

import (
	"strings"

	"github.com/mdavid/SuperSocket/pkg/util/merr"
)

// Provider 是可选扩展对象的契约。
//
// Provider 在 Setup 阶段被逐个初始化；Init 收到服务器句柄与生效配置，
// 返回错误表示初始化失败。只有初始化成功的 Provider 才会被保留。
type Provider interface {
	Name() string
	Init(server *AppServer, cfg *ServerConfig) error
}

// ProviderRegistry 维护扩展名到扩展对象的只读映射。
type ProviderRegistry struct {
	providers map[string]Provider
}

// loadProviders 初始化并装载全部扩展。
//
// 快速失败：任意一个扩展初始化失败（或名字重复）都会使整个 Setup 失败，
// 不会向服务器暴露部分初始化的扩展集合。
func loadProviders(server *AppServer, cfg *ServerConfig, providers []Provider) (*ProviderRegistry, error) {
	reg := make(map[string]Provider, len(providers))

	for _, p := range providers {
		if p == nil {
			continue
		}
		name := strings.TrimSpace(p.Name())
		if name == "" {
			return nil, merr.WrapErrRequestInvalid("provider with empty name")
		}
		key := strings.ToLower(name)
		if _, exists := reg[key]; exists {
			return nil, merr.WrapErrProviderDuplicate(name)
		}
		if err := p.Init(server, cfg); err != nil {
			return nil, merr.WrapErrProviderInitFailed(name, err)
		}
		reg[key] = p
	}

	return &ProviderRegistry{providers: reg}, nil
}

// Get 按名字查找扩展，不区分大小写。
func (r *ProviderRegistry) Get(name string) (Provider, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.providers[strings.ToLower(name)]
	return p, ok
}

// Count 返回已装载扩展数量。
func (r *ProviderRegistry) Count() int {
	if r == nil {
		return 0
	}
	return len(r.providers)
}
