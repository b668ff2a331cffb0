package transport

import (
	"github.com/mdavid/SuperSocket/internal/protocol"
	"github.com/mdavid/SuperSocket/pkg/util/merr"
)

// Select 根据配置的接入模式选择并构造唯一的传输层实例。
//
// 能力匹配规则：
//   - Sync 模式要求协议实现 SyncProtocol；
//   - Async 与 Udp 模式要求协议实现 AsyncProtocol（数据报复用异步解析契约）。
//
// 模式与协议能力不匹配属于配置错误，在 Setup 阶段失败，绝不留到运行期。
func Select(mode Mode, proto protocol.Protocol, h Handler, opts Options) (Transport, error) {
	if proto == nil {
		return nil, merr.WrapErrRequestInvalid("protocol is nil")
	}
	if h == nil {
		return nil, merr.WrapErrRequestInvalid("handler is nil")
	}

	switch mode {
	case ModeSync:
		sp, ok := proto.(protocol.SyncProtocol)
		if !ok {
			return nil, merr.WrapErrProtocolNotSupported(mode.String(),
				"protocol "+proto.Name()+" lacks sync capability")
		}
		return newSyncTransport(sp, h, opts), nil

	case ModeAsync:
		ap, ok := proto.(protocol.AsyncProtocol)
		if !ok {
			return nil, merr.WrapErrProtocolNotSupported(mode.String(),
				"protocol "+proto.Name()+" lacks async capability")
		}
		return newAsyncTransport(ap, h, opts), nil

	case ModeUdp:
		ap, ok := proto.(protocol.AsyncProtocol)
		if !ok {
			return nil, merr.WrapErrProtocolNotSupported(mode.String(),
				"protocol "+proto.Name()+" lacks async capability")
		}
		return newUDPTransport(ap, h, opts), nil

	default:
		return nil, merr.WrapErrRequestInvalid("unknown mode " + mode.String())
	}
}
