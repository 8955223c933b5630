/*
Package async 实现长文本异步合成任务的提交与轮询。

Job 的状态机：

	Pending -> Running -> {Succeeded, Failed}
	Pending/Running -> TimedOut

TimedOut 只存在于客户端，上游任务不会被取消。每个 Job 只属于
一次合成调用，轮询按 Job 独立进行。
*/
package async
