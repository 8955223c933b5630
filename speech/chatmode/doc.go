/*
Package chatmode 决定会话的下一条回复是否以语音发送。

优先级：常驻语音 > 待发语音标记 > 随机触发。待发标记由
request_voice_reply 工具写入，只生效一次，可携带情绪；常驻语音是
按会话保存的开关。标记既可存于进程内存，也可存于 Redis 以便多实例共享。

常驻语音开启时，Guidelines 返回 VoiceTextGuidelines，调用方把它放在
生成回复的提示词之前，使回复文本适合朗读。
*/
package chatmode
