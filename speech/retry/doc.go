// 版权所有 2024 SpeechFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package retry 提供确定性指数退避重试。

第 n 次重试前等待 InitialDelay * Multiplier^(n-1)。MaxRetries 计的是首次
尝试之后的重试次数，因此 MaxRetries=3 最多执行 4 次。

是否重试由 Classifier 决定，默认读取 *types.Error 的 Retryable 字段：
限流与网络类错误重试，认证、参数与内容审核类错误立即返回。重试耗尽
时返回包装了最后一次错误的终止错误，可通过 errors.Is / errors.As 取回。
*/
package retry
