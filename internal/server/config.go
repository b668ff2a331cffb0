package server

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/mdavid/SuperSocket/internal/cert"
	"github.com/mdavid/SuperSocket/internal/transport"
	"github.com/mdavid/SuperSocket/pkg/util/merr"
)

// 空闲清理相关默认值，单位秒。
const (
	defaultClearIdleSessionInterval = 120
	defaultIdleSessionTimeout       = 300
)

// ServerConfig 描述一个服务器实例的完整配置。
//
// 配置在 Setup 成功后即视为不可变；运行期间任何组件都不应修改其中字段。
type ServerConfig struct {
	// Name 为服务器实例名，用于日志与监控标签。
	Name string `mapstructure:"name" yaml:"name" json:"name"`

	// IP 为监听地址。留空或 "Any" 表示绑定通配地址，否则必须是字面量 IP。
	IP string `mapstructure:"ip" yaml:"ip" json:"ip"`

	// Port 为监听端口，必须为正数。
	Port int `mapstructure:"port" yaml:"port" json:"port"`

	// Mode 为接入模式：Sync、Async 或 Udp，匹配时不区分大小写。
	Mode string `mapstructure:"mode" yaml:"mode" json:"mode"`

	// ClearIdleSession 表示是否启用空闲会话清理。
	ClearIdleSession bool `mapstructure:"clear-idle-session" yaml:"clear-idle-session" json:"clear-idle-session"`

	// ClearIdleSessionInterval 为两次清理之间的间隔，单位秒。
	ClearIdleSessionInterval int `mapstructure:"clear-idle-session-interval" yaml:"clear-idle-session-interval" json:"clear-idle-session-interval"`

	// IdleSessionTimeout 为会话的空闲超时，单位秒。
	// 最后活跃时间早于该阈值的会话会在下一次清理中被关闭。
	IdleSessionTimeout int `mapstructure:"idle-session-timeout" yaml:"idle-session-timeout" json:"idle-session-timeout"`

	// MaxConnections 为最大并发连接数，0 表示不限制。
	MaxConnections int `mapstructure:"max-connections" yaml:"max-connections" json:"max-connections"`

	// ReceiveBufferSize 为异步模式单次收包的缓冲区大小，0 表示使用默认值。
	ReceiveBufferSize int `mapstructure:"receive-buffer-size" yaml:"receive-buffer-size" json:"receive-buffer-size"`

	// ReadTimeout/WriteTimeout 控制单次读写的超时时间，单位秒，0 表示不设置。
	ReadTimeout  int `mapstructure:"read-timeout" yaml:"read-timeout" json:"read-timeout"`
	WriteTimeout int `mapstructure:"write-timeout" yaml:"write-timeout" json:"write-timeout"`

	// Certificate 为可选的传输安全配置。
	Certificate cert.Config `mapstructure:"certificate" yaml:"certificate" json:"certificate"`
}

// Validate 补齐默认值并校验配置合法性。
func (c *ServerConfig) Validate() error {
	if c.Name == "" {
		c.Name = "supersocket-server"
	}
	if c.Port <= 0 {
		return merr.WrapErrEndpointInvalid(c.IP, c.Port, "port must be positive")
	}
	if _, err := transport.ParseMode(c.Mode); err != nil {
		return err
	}
	if c.ClearIdleSessionInterval <= 0 {
		c.ClearIdleSessionInterval = defaultClearIdleSessionInterval
	}
	if c.IdleSessionTimeout <= 0 {
		c.IdleSessionTimeout = defaultIdleSessionTimeout
	}
	return nil
}

// mode 返回已解析的接入模式。必须在 Validate 之后调用。
func (c *ServerConfig) mode() transport.Mode {
	m, _ := transport.ParseMode(c.Mode)
	return m
}

// ResolveEndpoint 将 IP/Port 解析为监听地址。
//
// 留空或 "Any"（不区分大小写）表示通配绑定；
// 其余取值必须是合法的字面量 IP，否则返回 ErrEndpointInvalid。
func (c *ServerConfig) ResolveEndpoint() (string, error) {
	host := c.IP
	switch {
	case host == "", strings.EqualFold(host, "any"):
		host = ""
	default:
		if net.ParseIP(host) == nil {
			return "", merr.WrapErrEndpointInvalid(c.IP, c.Port, "not a literal address")
		}
	}
	return net.JoinHostPort(host, strconv.Itoa(c.Port)), nil
}

// 空闲清理参数的时间表示。

func (c *ServerConfig) sweepInterval() time.Duration {
	return time.Duration(c.ClearIdleSessionInterval) * time.Second
}

func (c *ServerConfig) idleTimeout() time.Duration {
	return time.Duration(c.IdleSessionTimeout) * time.Second
}

func (c *ServerConfig) readTimeout() time.Duration {
	return time.Duration(c.ReadTimeout) * time.Second
}

func (c *ServerConfig) writeTimeout() time.Duration {
	return time.Duration(c.WriteTimeout) * time.Second
}
