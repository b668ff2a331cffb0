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
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// Code 返回给定错误对应的错误码。
func Code(err error) int32 {
	if err == nil {
		return 0
	}

	cause := errors.Cause(err)
	switch specificErr := cause.(type) {
	case socketError:
		return specificErr.code()

	default:
		if errors.Is(specificErr, context.Canceled) {
			return CanceledCode
		} else if errors.Is(specificErr, context.DeadlineExceeded) {
			return TimeoutCode
		}
		return errUnexpected.code()
	}
}

// Ok 判断错误是否为空（或可以视作成功）。
func Ok(err error) bool {
	return err == nil
}

// Combine 将多个 error 合并为一个。
// nil 会被跳过；全部为 nil 时返回 nil。合并后的错误满足对任一子错误的 errors.Is 判断。
func Combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	if len(errs) == 0 {
		return nil
	}

	combined := errs[0]
	for _, err := range errs[1:] {
		combined = errors.Wrap(err, combined.Error())
	}
	return combined
}

// wrapFields 在叶子错误上附加 key=value 形式的上下文信息。
func wrapFields(err error, fields ...string) error {
	if len(fields) == 0 {
		return err
	}
	return errors.Wrapf(err, "%s", strings.Join(fields, ", "))
}

func value(key string, v any) string {
	return fmt.Sprintf("%s=%v", key, v)
}

func appendMsg(err error, msg []string) error {
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Server 相关错误。

func WrapErrServerState(state string, msg ...string) error {
	return appendMsg(wrapFields(ErrServerState, value("state", state)), msg)
}

func WrapErrServerSetup(err error, msg ...string) error {
	wrapped := error(ErrServerSetup)
	if err != nil {
		wrapped = errors.Wrap(ErrServerSetup, err.Error())
	}
	return appendMsg(wrapped, msg)
}

func WrapErrEndpointInvalid(ip string, port int, msg ...string) error {
	return appendMsg(wrapFields(ErrEndpointInvalid, value("ip", ip), value("port", port)), msg)
}

func WrapErrCertificateInvalid(err error, msg ...string) error {
	return appendMsg(errors.Wrap(ErrCertificateInvalid, err.Error()), msg)
}

func WrapErrAdminEndpoint(err error, addr string, msg ...string) error {
	wrapped := wrapFields(ErrAdminEndpoint, value("addr", addr))
	if err != nil {
		wrapped = errors.Wrap(wrapped, err.Error())
	}
	return appendMsg(wrapped, msg)
}

// Session 相关错误。

func WrapErrSessionDuplicate(id string, msg ...string) error {
	return appendMsg(wrapFields(ErrSessionDuplicate, value("session", id)), msg)
}

func WrapErrSessionNotFound(id string, msg ...string) error {
	return appendMsg(wrapFields(ErrSessionNotFound, value("session", id)), msg)
}

// Command 相关错误。

func WrapErrCommandDuplicate(name string, msg ...string) error {
	return appendMsg(wrapFields(ErrCommandDuplicate, value("command", name)), msg)
}

func WrapErrCommandNotFound(name string, msg ...string) error {
	return appendMsg(wrapFields(ErrCommandNotFound, value("command", name)), msg)
}

// Provider 相关错误。

func WrapErrProviderDuplicate(name string, msg ...string) error {
	return appendMsg(wrapFields(ErrProviderDuplicate, value("provider", name)), msg)
}

func WrapErrProviderInitFailed(name string, err error, msg ...string) error {
	wrapped := wrapFields(ErrProviderInitFailed, value("provider", name))
	if err != nil {
		wrapped = errors.Wrap(wrapped, err.Error())
	}
	return appendMsg(wrapped, msg)
}

// Transport/Protocol 相关错误。

func WrapErrProtocolNotSupported(mode string, msg ...string) error {
	return appendMsg(wrapFields(ErrProtocolNotSupported, value("mode", mode)), msg)
}

func WrapErrTransportState(state string, msg ...string) error {
	return appendMsg(wrapFields(ErrTransportState, value("state", state)), msg)
}

func WrapErrRequestInvalid(reason string, msg ...string) error {
	return appendMsg(wrapFields(ErrRequestInvalid, value("reason", reason)), msg)
}

func WrapErrConnectionLimit(limit int, msg ...string) error {
	return appendMsg(wrapFields(ErrConnectionLimit, value("limit", limit)), msg)
}
