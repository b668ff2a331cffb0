package protocol

import (
	"io"
)

// Request 表示一条已完成解析的客户端请求。
//
// 约定：
//   - Key 为命令名，匹配时不区分大小写；
//   - Parameters 为已切分的参数列表；
//   - Body 为参数体的原始字节，供需要自定义参数语义的命令使用。
type Request struct {
	Key        string
	Parameters []string
	Body       []byte
}

// Protocol 是协议对象的基础标记接口。
//
// 具体协议通过额外实现 SyncProtocol / AsyncProtocol 声明自己支持的接入模式；
// 服务器在 Setup 阶段根据配置模式检查协议能力，不匹配时拒绝启动。
type Protocol interface {
	// Name 返回协议名，仅用于日志与诊断。
	Name() string
}

// CommandReader 从阻塞式连接中逐条读取请求。
//
// 同步接入层为每条连接创建一个 CommandReader，并在连接专属协程中循环调用。
type CommandReader interface {
	// ReadRequest 阻塞直到读出一条完整请求、连接关闭或发生错误。
	// 连接正常关闭时返回 io.EOF。
	ReadRequest() (*Request, error)
}

// SyncProtocol 为同步能力契约。
//
// 实现该接口的协议可以配合 Sync 模式使用。
type SyncProtocol interface {
	Protocol

	// NewCommandReader 基于给定的数据流创建一个请求读取器。
	NewCommandReader(r io.Reader) CommandReader
}

// CommandFilter 为增量解析器：接收任意切分的字节块，产出零条或多条完整请求。
//
// 实现内部负责缓存尚未凑满一条请求的剩余字节；
// 同一 filter 实例只服务一条连接，不要求并发安全。
type CommandFilter interface {
	Filter(data []byte) ([]*Request, error)
}

// AsyncProtocol 为异步能力契约。
//
// 实现该接口的协议可以配合 Async 模式使用；Udp 模式复用同一解析契约。
type AsyncProtocol interface {
	Protocol

	// NewCommandFilter 为一条连接创建独立的增量解析器。
	NewCommandFilter() CommandFilter
}

// CommandParser 将一行文本切分为命令名和参数体。
type CommandParser interface {
	ParseCommand(line string) (key string, body string)
}

// ParameterParser 将参数体切分为参数列表。
type ParameterParser interface {
	ParseParameters(body string) []string
}
