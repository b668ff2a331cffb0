// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merr

import (
	"github.com/cockroachdb/errors"
)

const (
	CanceledCode int32 = 10000
	TimeoutCode  int32 = 10001
)

// Define leaf errors here,
// WARN: take care to add new error,
// check whether you can use the errors below before adding a new one.
// Name: Err + related prefix + error name
var (
	// Server 相关错误。
	ErrServerState        = newSocketError("invalid server state", 1, false)
	ErrServerSetup        = newSocketError("server setup failed", 2, false)
	ErrEndpointInvalid    = newSocketError("invalid listen endpoint", 3, false)
	ErrCertificateInvalid = newSocketError("invalid certificate", 4, false)
	ErrAdminEndpoint      = newSocketError("admin endpoint failed", 5, true)

	// Session 相关错误。
	ErrSessionDuplicate = newSocketError("duplicate session identity", 100, false)
	ErrSessionNotFound  = newSocketError("session not found", 101, false)
	ErrSessionClosed    = newSocketError("session closed", 102, false)

	// Command 相关错误。
	ErrCommandDuplicate = newSocketError("duplicate command name", 200, false)
	ErrCommandNotFound  = newSocketError("command not found", 201, false)

	// Provider 相关错误。
	ErrProviderDuplicate  = newSocketError("duplicate provider name", 300, false)
	ErrProviderInitFailed = newSocketError("provider init failed", 301, false)

	// Transport/Protocol 相关错误。
	ErrProtocolNotSupported = newSocketError("protocol does not support mode", 400, false)
	ErrTransportState       = newSocketError("invalid transport state", 401, false)
	ErrRequestInvalid       = newSocketError("invalid request", 403, false)
	ErrRequestTooLarge      = newSocketError("request too large", 404, false)
	ErrConnectionLimit      = newSocketError("connection limit reached", 405, true)

	errUnexpected = newSocketError("unexpected error", 1000, false)
)

// socketError 为框架内部统一的错误类型，携带错误码与是否可重试标记。
type socketError struct {
	msg       string
	errCode   int32
	retriable bool
}

func newSocketError(msg string, code int32, retriable bool) socketError {
	return socketError{
		msg:       msg,
		errCode:   code,
		retriable: retriable,
	}
}

func (e socketError) code() int32 {
	return e.errCode
}

func (e socketError) Error() string {
	return e.msg
}

// Is 按错误码比较，使得携带相同错误码的 error 满足 errors.Is 语义。
func (e socketError) Is(err error) bool {
	cause := errors.Cause(err)
	if other, ok := cause.(socketError); ok {
		return other.errCode == e.errCode
	}
	return false
}

// Retriable 返回调用方是否可以对该错误进行重试。
func Retriable(err error) bool {
	if err == nil {
		return false
	}
	cause := errors.Cause(err)
	if se, ok := cause.(socketError); ok {
		return se.retriable
	}
	return false
}
