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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// namespace 是当前项目所有 Prometheus 指标使用的命名空间。
	namespace = "supersocket"

	// 以下为当前使用的通用标签名。
	serverNameLabelName  = "server_name"
	commandNameLabelName = "command_name"
	closeReasonLabelName = "close_reason"
)

var (
	// SessionsCurrent 为当前在线会话数。
	SessionsCurrent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_current",
			Help:      "number of sessions currently registered",
		}, []string{serverNameLabelName})

	// SessionsTotal 为累计接入的会话总数。
	SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "total number of accepted sessions",
		}, []string{serverNameLabelName})

	// SessionsClosed 为按关闭原因统计的会话关闭次数。
	SessionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "total number of closed sessions by reason",
		}, []string{serverNameLabelName, closeReasonLabelName})

	// SessionsEvicted 为被空闲清理关闭的会话数。
	SessionsEvicted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_evicted_total",
			Help:      "total number of sessions evicted by the idle sweep",
		}, []string{serverNameLabelName})

	// CommandsExecuted 为按命令名统计的执行次数。
	CommandsExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_executed_total",
			Help:      "total number of executed commands",
		}, []string{serverNameLabelName, commandNameLabelName})

	// CommandsFailed 为按命令名统计的执行失败次数。
	CommandsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_failed_total",
			Help:      "total number of failed commands",
		}, []string{serverNameLabelName, commandNameLabelName})

	// SweepDuration 为单次空闲清理的耗时分布。
	SweepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "duration of idle session sweeps",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{serverNameLabelName})

	// SweepsSkipped 为因上一轮尚未结束而被跳过的清理次数。
	SweepsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_skipped_total",
			Help:      "total number of sweep ticks skipped by the single-flight guard",
		}, []string{serverNameLabelName})
)

// Register 将全部指标注册到给定的 Registerer。
// 同一 Registerer 重复注册会 panic，调用方应保证只注册一次。
func Register(r prometheus.Registerer) {
	r.MustRegister(SessionsCurrent)
	r.MustRegister(SessionsTotal)
	r.MustRegister(SessionsClosed)
	r.MustRegister(SessionsEvicted)
	r.MustRegister(CommandsExecuted)
	r.MustRegister(CommandsFailed)
	r.MustRegister(SweepDuration)
	r.MustRegister(SweepsSkipped)
}
