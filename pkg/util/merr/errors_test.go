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
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"
)

type ErrSuite struct {
	suite.Suite
}

func (s *ErrSuite) TestCode() {
	err := WrapErrSessionDuplicate("b3f1e6")
	errors.Wrap(err, "failed to register session")
	s.ErrorIs(err, ErrSessionDuplicate)
	s.Equal(Code(ErrSessionDuplicate), Code(err))
	s.Equal(TimeoutCode, Code(context.DeadlineExceeded))
	s.Equal(CanceledCode, Code(context.Canceled))
	s.Equal(errUnexpected.errCode, Code(errUnexpected))

	sameCodeErr := newSocketError("new error", ErrSessionDuplicate.errCode, false)
	s.True(sameCodeErr.Is(ErrSessionDuplicate))
}

func (s *ErrSuite) TestWrap() {
	// Server 相关错误。
	s.ErrorIs(WrapErrServerState("Running", "start twice"), ErrServerState)
	s.ErrorIs(WrapErrEndpointInvalid("300.0.0.1", 4502), ErrEndpointInvalid)
	s.ErrorIs(WrapErrCertificateInvalid(errors.New("no such file")), ErrCertificateInvalid)
	s.ErrorIs(WrapErrAdminEndpoint(errors.New("bind failed"), "127.0.0.1:9100"), ErrAdminEndpoint)

	// Session 相关错误。
	s.ErrorIs(WrapErrSessionDuplicate("abc", "failed to register"), ErrSessionDuplicate)
	s.ErrorIs(WrapErrSessionNotFound("abc", "failed to lookup"), ErrSessionNotFound)

	// Command 相关错误。
	s.ErrorIs(WrapErrCommandDuplicate("ECHO", "failed to build registry"), ErrCommandDuplicate)
	s.ErrorIs(WrapErrCommandNotFound("NOPE"), ErrCommandNotFound)

	// Provider 相关错误。
	s.ErrorIs(WrapErrProviderDuplicate("Stats"), ErrProviderDuplicate)
	s.ErrorIs(WrapErrProviderInitFailed("Stats", errors.New("boom")), ErrProviderInitFailed)

	// Transport/Protocol 相关错误。
	s.ErrorIs(WrapErrProtocolNotSupported("Async"), ErrProtocolNotSupported)
	s.ErrorIs(WrapErrTransportState("NotStarted"), ErrTransportState)
	s.ErrorIs(WrapErrRequestInvalid("empty key"), ErrRequestInvalid)
	s.ErrorIs(WrapErrConnectionLimit(100), ErrConnectionLimit)
}

func (s *ErrSuite) TestRetriable() {
	s.False(Retriable(nil))
	s.False(Retriable(WrapErrSessionDuplicate("abc")))
	s.True(Retriable(WrapErrConnectionLimit(10)))
	s.True(Retriable(WrapErrAdminEndpoint(nil, "addr")))
}

func (s *ErrSuite) TestCombine() {
	var (
		errFirst  = errors.New("first")
		errSecond = errors.New("second")
		errThird  = errors.New("third")
	)

	err := Combine(errFirst, errSecond)
	s.True(errors.Is(err, errFirst))
	s.True(errors.Is(err, errSecond))
	s.False(errors.Is(err, errThird))

	s.Equal("first: second", err.Error())
}

func (s *ErrSuite) TestCombineWithNil() {
	err := errors.New("non-nil")

	err = Combine(nil, err)
	s.NotNil(err)
}

func (s *ErrSuite) TestCombineOnlyNil() {
	err := Combine(nil, nil)
	s.Nil(err)
}

func TestErrors(t *testing.T) {
	suite.Run(t, new(ErrSuite))
}
