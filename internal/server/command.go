package server

import (
	"strings"

	"github.com/mdavid/SuperSocket/internal/protocol"
	"github.com/mdavid/SuperSocket/pkg/util/merr"
	"github.com/mdavid/SuperSocket/pkg/util/typeutil"
)

// Command 是业务命令的契约。
//
// 说明：
//   - Name 为命令名，匹配时不区分大小写，在一个服务器内必须唯一；
//   - Execute 在请求解析完成后被调用；返回的错误会被路由到该会话的
//     HandleError 钩子，不会影响其他会话。
type Command interface {
	Name() string
	Execute(sess Session, req *protocol.Request) error
}

// CommandRegistry 维护命令名到命令实现的只读映射。
//
// 注册表在 Setup 阶段一次性构建；构建成功后查找无需任何同步。
type CommandRegistry struct {
	commands map[string]Command
}

// NewCommandRegistry 从显式命令列表构建注册表。
//
// 要求：
//   - 命令名在不区分大小写的比较下必须唯一，出现重复时整体失败，
//     不保留任何部分构建结果。
func NewCommandRegistry(commands []Command) (*CommandRegistry, error) {
	reg := make(map[string]Command, len(commands))
	seen := typeutil.NewSet[string]()

	for _, cmd := range commands {
		if cmd == nil {
			continue
		}
		name := strings.TrimSpace(cmd.Name())
		if name == "" {
			return nil, merr.WrapErrRequestInvalid("command with empty name")
		}
		key := strings.ToLower(name)
		if !seen.TryInsert(key) {
			return nil, merr.WrapErrCommandDuplicate(name)
		}
		reg[key] = cmd
	}

	return &CommandRegistry{commands: reg}, nil
}

// Lookup 按命令名查找命令，不区分大小写。
func (r *CommandRegistry) Lookup(name string) (Command, bool) {
	cmd, ok := r.commands[strings.ToLower(name)]
	return cmd, ok
}

// Count 返回已注册命令数量。
func (r *CommandRegistry) Count() int {
	return len(r.commands)
}

// Names 返回全部命令名（小写），顺序不保证。
func (r *CommandRegistry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	return names
}
