// 版权所有 2024 SpeechFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP、
语音合成、上游调用、异步任务、缓存与数据库。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离。

# 核心类型

  - Collector：指标收集器，同时满足编排器的 Recorder、异步轮询器的
    Observer，以及 gate 的逐次调用观察函数。

# 主要能力

  - HTTP 指标：请求总数、耗时、响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - 合成指标：按模式统计次数、耗时、文本长度与音频大小。
  - 上游调用：每次网络尝试按 op 与错误码计数，另记录限流等待时间。
  - 异步任务：终态计数、轮询次数与总耗时。
  - 缓存与数据库：命中/未命中计数，连接池 Gauge。
*/
package metrics
