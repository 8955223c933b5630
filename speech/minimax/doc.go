// Copyright (c) SpeechFlow Authors.
// Licensed under the MIT License.

/*
Package minimax 提供 MiniMax 语音接口的 HTTP 客户端。

Client 同时实现 speech.Provider（同步、流式、异步合成）与
speech.VoiceProvider（文件上传、音色克隆、删除、列表）。

# 错误映射

HTTP 状态与 base_resp.status_code 统一映射为 types.Error：
鉴权失败为 AUTHENTICATION，限流为 RATE_LIMITED（可重试），
5xx 与网络错误为 TRANSIENT_NETWORK（可重试），其余为 PROVIDER_ERROR。
调用方取消时原样返回 context 错误。

Client 本身不限流也不重试，由 speech/gate 负责。
*/
package minimax
