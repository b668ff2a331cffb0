package protocol

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/mdavid/SuperSocket/pkg/buffer/ring"
	"github.com/mdavid/SuperSocket/pkg/util/merr"
)

// defaultMaxLineLength 为单条命令行允许的最大长度。
const defaultMaxLineLength = 4 * 1024

// CommandLineProtocol 实现了以换行符结尾的文本命令协议。
//
// 帧格式："KEY 参数体\r\n"。KEY 与参数体之间以第一个空格分隔，
// 参数体的进一步切分由 ParameterParser 决定。
// 该协议同时实现了 SyncProtocol 与 AsyncProtocol，可用于全部接入模式。
type CommandLineProtocol struct {
	parser        CommandParser
	paramParser   ParameterParser
	maxLineLength int
}

// 编译期断言：确保 CommandLineProtocol 同时实现两种能力契约。
var (
	_ SyncProtocol  = (*CommandLineProtocol)(nil)
	_ AsyncProtocol = (*CommandLineProtocol)(nil)
)

// CommandLineOption 用于定制命令行协议行为的选项函数。
type CommandLineOption func(*CommandLineProtocol)

// WithCommandParser 替换命令名解析器。
func WithCommandParser(p CommandParser) CommandLineOption {
	return func(proto *CommandLineProtocol) {
		proto.parser = p
	}
}

// WithParameterParser 替换参数解析器。
func WithParameterParser(p ParameterParser) CommandLineOption {
	return func(proto *CommandLineProtocol) {
		proto.paramParser = p
	}
}

// WithMaxLineLength 设置单条命令行的最大长度，超出视为非法请求。
func WithMaxLineLength(n int) CommandLineOption {
	return func(proto *CommandLineProtocol) {
		proto.maxLineLength = n
	}
}

// NewCommandLineProtocol 创建一个命令行协议实例。
func NewCommandLineProtocol(opts ...CommandLineOption) *CommandLineProtocol {
	proto := &CommandLineProtocol{
		parser:        BasicCommandParser{},
		paramParser:   SplitParameterParser{},
		maxLineLength: defaultMaxLineLength,
	}
	for _, opt := range opts {
		opt(proto)
	}
	return proto
}

// Name 实现 Protocol.Name。
func (p *CommandLineProtocol) Name() string {
	return "command-line"
}

// NewCommandReader 实现 SyncProtocol.NewCommandReader。
func (p *CommandLineProtocol) NewCommandReader(r io.Reader) CommandReader {
	// 缓冲容量即单行上限（含行尾 \r\n），读满仍无换行按超长请求处理。
	br := bufio.NewReaderSize(r, p.maxLineLength+2)
	return &lineReader{proto: p, r: br}
}

// NewCommandFilter 实现 AsyncProtocol.NewCommandFilter。
func (p *CommandLineProtocol) NewCommandFilter() CommandFilter {
	return &lineFilter{
		proto: p,
		buf:   ring.New(ring.DefaultBufferSize),
	}
}

// parseLine 将一行完整文本解析为 Request。
// 空行返回 (nil, nil)，由调用方跳过。
func (p *CommandLineProtocol) parseLine(line string) (*Request, error) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return nil, nil
	}
	if len(line) > p.maxLineLength {
		return nil, merr.ErrRequestTooLarge
	}

	key, body := p.parser.ParseCommand(line)
	if key == "" {
		return nil, merr.WrapErrRequestInvalid("empty command key")
	}
	return &Request{
		Key:        key,
		Parameters: p.paramParser.ParseParameters(body),
		Body:       []byte(body),
	}, nil
}

// lineReader 是 CommandReader 的阻塞式实现。
type lineReader struct {
	proto *CommandLineProtocol
	r     *bufio.Reader
}

func (lr *lineReader) ReadRequest() (*Request, error) {
	for {
		line, err := lr.r.ReadSlice('\n')
		if err != nil {
			// 缓冲读满仍未出现换行：对端在灌超长行，立即截断而不是继续累积。
			if err == bufio.ErrBufferFull {
				return nil, merr.ErrRequestTooLarge
			}
			// 连接关闭前的残余字节不足一条完整请求，直接丢弃。
			return nil, err
		}
		req, perr := lr.proto.parseLine(strings.TrimSuffix(string(line), "\n"))
		if perr != nil {
			return nil, perr
		}
		if req == nil {
			// 空行跳过，继续读取下一行。
			continue
		}
		return req, nil
	}
}

// lineFilter 是 CommandFilter 的增量实现。
//
// 未凑满一行的字节缓存在环形缓冲区中，等待后续字节到达后继续拼包。
type lineFilter struct {
	proto *CommandLineProtocol
	buf   *ring.Buffer
}

func (lf *lineFilter) Filter(data []byte) ([]*Request, error) {
	if _, err := lf.buf.Write(data); err != nil {
		return nil, err
	}

	pending := lf.buf.Bytes()
	var (
		requests []*Request
		consumed int
	)
	for {
		idx := bytes.IndexByte(pending[consumed:], '\n')
		if idx < 0 {
			break
		}
		line := string(pending[consumed : consumed+idx])
		consumed += idx + 1

		req, err := lf.proto.parseLine(line)
		if err != nil {
			lf.buf.Discard(consumed)
			return requests, err
		}
		if req != nil {
			requests = append(requests, req)
		}
	}
	lf.buf.Discard(consumed)

	if lf.buf.Buffered() > lf.proto.maxLineLength {
		lf.buf.Reset()
		return requests, merr.ErrRequestTooLarge
	}
	return requests, nil
}

// BasicCommandParser 以第一个空格作为命令名与参数体的分隔。
type BasicCommandParser struct{}

func (BasicCommandParser) ParseCommand(line string) (string, string) {
	key, body, found := strings.Cut(line, " ")
	if !found {
		return strings.TrimSpace(line), ""
	}
	return key, strings.TrimSpace(body)
}

// SplitParameterParser 以空白字符切分参数体。
type SplitParameterParser struct{}

func (SplitParameterParser) ParseParameters(body string) []string {
	if body == "" {
		return nil
	}
	return strings.Fields(body)
}
