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

import "time"

type config struct {
	// attempts 为最大尝试次数，0 表示不限制。
	attempts        uint
	initialInterval time.Duration
	maxInterval     time.Duration
	// isRetryErr 判断给定错误是否可以重试；返回 false 时立即放弃。
	isRetryErr func(err error) bool
}

func newDefaultConfig() *config {
	return &config{
		attempts:        10,
		initialInterval: 200 * time.Millisecond,
		maxInterval:     3 * time.Second,
	}
}

// Option 用于配置重试行为的选项函数。
type Option func(*config)

// Attempts 设置最大尝试次数，0 表示不限制。
func Attempts(attempts uint) Option {
	return func(c *config) {
		c.attempts = attempts
	}
}

// InitialInterval 设置首次重试前的等待时间。
func InitialInterval(d time.Duration) Option {
	return func(c *config) {
		c.initialInterval = d
	}
}

// MaxInterval 设置两次重试之间的最大等待时间。
func MaxInterval(d time.Duration) Option {
	return func(c *config) {
		c.maxInterval = d
	}
}

// RetryErr 设置错误可重试性的判定函数。
func RetryErr(fn func(err error) bool) Option {
	return func(c *config) {
		c.isRetryErr = fn
	}
}
