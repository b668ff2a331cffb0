// Copyright (C) 2019-2020 Zilliz. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License
// is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express
// or implied. See the License for the specific language governing permissions and limitations under the License.

package retry

import (
	"context"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/mdavid/SuperSocket/pkg/log"
)

// Do 使用指数退避重试机制执行指定函数。
// fn 为待执行的函数；opts 用于控制最大重试次数、初始退避时间等行为。
// ctx 取消后立即停止重试并返回 ctx.Err()。
func Do(ctx context.Context, fn func() error, opts ...Option) error {
	c := newDefaultConfig()
	for _, opt := range opts {
		opt(c)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxInterval = c.maxInterval
	// 总时长交由 ctx 和 attempts 控制。
	b.MaxElapsedTime = 0

	var policy backoff.BackOff = b
	if c.attempts > 0 {
		policy = backoff.WithMaxRetries(policy, uint64(c.attempts-1))
	}
	policy = backoff.WithContext(policy, ctx)

	retried := 0
	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}

		if c.isRetryErr != nil && !c.isRetryErr(err) {
			return backoff.Permanent(err)
		}

		if retried%4 == 0 {
			log.L().Warn("retry func failed",
				zap.Int("retried", retried),
				zap.Error(err))
		}
		retried++
		return err
	}, policy)
}
