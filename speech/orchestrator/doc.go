// Copyright (c) SpeechFlow Authors.
// Licensed under the MIT License.

/*
Package orchestrator 将一次合成请求组合为完整流程：

 1. 校验参数，失败时不消耗令牌也不发起网络调用
 2. 按文本长度选择同步、流式或异步路径
 3. 经 gate 限流与重试后调用上游；异步路径交给 async.Poller

流式路径只对建立连接重试，中途失败以 STREAM_INTERRUPTED 返回，
并保留已收到的音频。
*/
package orchestrator
