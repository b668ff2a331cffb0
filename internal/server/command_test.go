package server

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mdavid/SuperSocket/internal/protocol"
	"github.com/mdavid/SuperSocket/pkg/util/merr"
)

// namedCommand 是测试用的可命名空命令。
type namedCommand struct {
	name string
	fn   func(sess Session, req *protocol.Request) error
}

func (c namedCommand) Name() string { return c.name }

func (c namedCommand) Execute(sess Session, req *protocol.Request) error {
	if c.fn == nil {
		return nil
	}
	return c.fn(sess, req)
}

type CommandSuite struct {
	suite.Suite
}

func (s *CommandSuite) TestLookupCaseInsensitive() {
	reg, err := NewCommandRegistry([]Command{
		namedCommand{name: "ECHO"},
		namedCommand{name: "Add"},
	})
	s.Require().NoError(err)
	s.Equal(2, reg.Count())

	for _, name := range []string{"ECHO", "echo", "Echo"} {
		cmd, ok := reg.Lookup(name)
		s.True(ok)
		s.Equal("ECHO", cmd.Name())
	}

	_, ok := reg.Lookup("NOPE")
	s.False(ok)
}

func (s *CommandSuite) TestDuplicateNameFails() {
	reg, err := NewCommandRegistry([]Command{
		namedCommand{name: "ECHO"},
		namedCommand{name: "echo"},
	})
	s.ErrorIs(err, merr.ErrCommandDuplicate)
	s.Nil(reg)
}

func (s *CommandSuite) TestEmptyNameFails() {
	reg, err := NewCommandRegistry([]Command{namedCommand{name: "  "}})
	s.ErrorIs(err, merr.ErrRequestInvalid)
	s.Nil(reg)
}

func (s *CommandSuite) TestNilCommandSkipped() {
	reg, err := NewCommandRegistry([]Command{nil, namedCommand{name: "ECHO"}})
	s.NoError(err)
	s.Equal(1, reg.Count())
}

func TestCommandRegistry(t *testing.T) {
	suite.Run(t, new(CommandSuite))
}
