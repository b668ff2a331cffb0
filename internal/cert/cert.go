package cert

import (
	"crypto/tls"

	"github.com/mdavid/SuperSocket/pkg/util/merr"
)

// Config 描述证书配置。
//
// 证书以 PEM 文件形式定位；Enabled 为 false 时整个配置被忽略。
type Config struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	CertFile string `mapstructure:"cert-file" yaml:"cert-file" json:"cert-file"`
	KeyFile  string `mapstructure:"key-file" yaml:"key-file" json:"key-file"`
}

// Load 根据配置加载证书并构造 tls.Config。
// 证书文件缺失或无法解析时返回 ErrCertificateInvalid。
func Load(cfg Config) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, merr.WrapErrCertificateInvalid(
			merr.WrapErrRequestInvalid("cert-file and key-file are required"))
	}

	pair, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, merr.WrapErrCertificateInvalid(err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{pair},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
