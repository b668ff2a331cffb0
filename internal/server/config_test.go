package server

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mdavid/SuperSocket/pkg/util/merr"
)

type ConfigSuite struct {
	suite.Suite
}

func (s *ConfigSuite) TestValidateDefaults() {
	cfg := &ServerConfig{Port: 4502, Mode: "sync"}
	s.NoError(cfg.Validate())
	s.Equal("supersocket-server", cfg.Name)
	s.Equal(defaultClearIdleSessionInterval, cfg.ClearIdleSessionInterval)
	s.Equal(defaultIdleSessionTimeout, cfg.IdleSessionTimeout)
}

func (s *ConfigSuite) TestValidateRejectsBadPort() {
	cfg := &ServerConfig{Port: 0, Mode: "Sync"}
	s.ErrorIs(cfg.Validate(), merr.ErrEndpointInvalid)

	cfg = &ServerConfig{Port: -1, Mode: "Sync"}
	s.ErrorIs(cfg.Validate(), merr.ErrEndpointInvalid)
}

func (s *ConfigSuite) TestValidateRejectsBadMode() {
	cfg := &ServerConfig{Port: 4502, Mode: "Duplex"}
	s.ErrorIs(cfg.Validate(), merr.ErrRequestInvalid)
}

func (s *ConfigSuite) TestResolveEndpoint() {
	cases := []struct {
		ip   string
		want string
	}{
		{"", ":4502"},
		{"Any", ":4502"},
		{"any", ":4502"},
		{"127.0.0.1", "127.0.0.1:4502"},
		{"::1", "[::1]:4502"},
	}
	for _, c := range cases {
		cfg := &ServerConfig{IP: c.ip, Port: 4502, Mode: "Sync"}
		addr, err := cfg.ResolveEndpoint()
		s.NoError(err)
		s.Equal(c.want, addr)
	}
}

func (s *ConfigSuite) TestResolveEndpointRejectsHostname() {
	cfg := &ServerConfig{IP: "localhost", Port: 4502, Mode: "Sync"}
	_, err := cfg.ResolveEndpoint()
	s.ErrorIs(err, merr.ErrEndpointInvalid)
}

func TestConfig(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}
