package protocol

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mdavid/SuperSocket/pkg/util/merr"
)

type CommandLineSuite struct {
	suite.Suite
}

func (s *CommandLineSuite) TestReadRequest() {
	proto := NewCommandLineProtocol()
	r := proto.NewCommandReader(strings.NewReader("ECHO hello world\r\n\r\nADD 1 2\nQUIT\r\n"))

	req, err := r.ReadRequest()
	s.NoError(err)
	s.Equal("ECHO", req.Key)
	s.Equal([]string{"hello", "world"}, req.Parameters)
	s.Equal([]byte("hello world"), req.Body)

	// 空行被跳过，直接读到下一条请求。
	req, err = r.ReadRequest()
	s.NoError(err)
	s.Equal("ADD", req.Key)
	s.Equal([]string{"1", "2"}, req.Parameters)

	req, err = r.ReadRequest()
	s.NoError(err)
	s.Equal("QUIT", req.Key)
	s.Empty(req.Parameters)

	_, err = r.ReadRequest()
	s.ErrorIs(err, io.EOF)
}

func (s *CommandLineSuite) TestReadRequestTruncatedTail() {
	proto := NewCommandLineProtocol()
	r := proto.NewCommandReader(strings.NewReader("ECHO complete\r\nECHO trunc"))

	req, err := r.ReadRequest()
	s.NoError(err)
	s.Equal("ECHO", req.Key)

	// 连接关闭前的残余字节不足一条请求，不产生请求。
	_, err = r.ReadRequest()
	s.Error(err)
}

func (s *CommandLineSuite) TestReadRequestOversizedLine() {
	proto := NewCommandLineProtocol(WithMaxLineLength(8))

	// 带换行但超长的行。
	r := proto.NewCommandReader(strings.NewReader("0123456789\r\n"))
	_, err := r.ReadRequest()
	s.ErrorIs(err, merr.ErrRequestTooLarge)

	// 对端持续灌入不含换行的字节流：读取必须在缓冲上限处截断，
	// 而不是无限累积等待换行。
	r = proto.NewCommandReader(endlessReader{})
	_, err = r.ReadRequest()
	s.ErrorIs(err, merr.ErrRequestTooLarge)
}

// endlessReader 产生永不结束、不含换行的字节流。
type endlessReader struct{}

func (endlessReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'a'
	}
	return len(p), nil
}

func (s *CommandLineSuite) TestFilterFragmented() {
	proto := NewCommandLineProtocol()
	f := proto.NewCommandFilter()

	reqs, err := f.Filter([]byte("EC"))
	s.NoError(err)
	s.Empty(reqs)

	reqs, err = f.Filter([]byte("HO hel"))
	s.NoError(err)
	s.Empty(reqs)

	reqs, err = f.Filter([]byte("lo\r\nQUIT\r\nEXTRA"))
	s.NoError(err)
	s.Len(reqs, 2)
	s.Equal("ECHO", reqs[0].Key)
	s.Equal([]string{"hello"}, reqs[0].Parameters)
	s.Equal("QUIT", reqs[1].Key)

	// 残余的 "EXTRA" 在后续字节到达时被拼成完整请求。
	reqs, err = f.Filter([]byte(" 1\n"))
	s.NoError(err)
	s.Len(reqs, 1)
	s.Equal("EXTRA", reqs[0].Key)
	s.Equal([]string{"1"}, reqs[0].Parameters)
}

func (s *CommandLineSuite) TestFilterOversizedLine() {
	proto := NewCommandLineProtocol(WithMaxLineLength(8))
	f := proto.NewCommandFilter()

	reqs, err := f.Filter([]byte("0123456789abcdef"))
	s.ErrorIs(err, merr.ErrRequestTooLarge)
	s.Empty(reqs)

	// 超限后缓冲被重置，后续合法请求不受影响。
	reqs, err = f.Filter([]byte("OK\r\n"))
	s.NoError(err)
	s.Len(reqs, 1)
	s.Equal("OK", reqs[0].Key)
}

func (s *CommandLineSuite) TestParseLine() {
	proto := NewCommandLineProtocol()

	req, err := proto.parseLine("ECHO   a  b ")
	s.NoError(err)
	s.Equal("ECHO", req.Key)
	s.Equal([]string{"a", "b"}, req.Parameters)

	req, err = proto.parseLine("")
	s.NoError(err)
	s.Nil(req)

	_, err = proto.parseLine(" leading")
	s.ErrorIs(err, merr.ErrRequestInvalid)
}

func (s *CommandLineSuite) TestCustomParsers() {
	proto := NewCommandLineProtocol(
		WithCommandParser(colonParser{}),
		WithParameterParser(commaParser{}),
	)
	r := proto.NewCommandReader(strings.NewReader("SET:a,b,c\r\n"))

	req, err := r.ReadRequest()
	s.NoError(err)
	s.Equal("SET", req.Key)
	s.Equal([]string{"a", "b", "c"}, req.Parameters)
}

type colonParser struct{}

func (colonParser) ParseCommand(line string) (string, string) {
	key, body, found := strings.Cut(line, ":")
	if !found {
		return line, ""
	}
	return key, body
}

type commaParser struct{}

func (commaParser) ParseParameters(body string) []string {
	if body == "" {
		return nil
	}
	return strings.Split(body, ",")
}

func TestCommandLine(t *testing.T) {
	suite.Run(t, new(CommandLineSuite))
}
