package chatmode

import "context"

// VoiceTextGuidelines 常驻语音会话中，供生成回复文本的模型遵循的写作要求。
// 拟声词与 <#秒数#> 停顿标记由上游合成直接识别。
const VoiceTextGuidelines = `[语音文本写作要求]
这条回复会被合成为语音，请按以下要求书写：
- 使用自然的口语，像真人说话，不要书面腔
- 偶尔穿插拟声词增加真人感，不必每句都有：
  笑: (laughs) (chuckle)
  呼吸: (breath) (pant) (inhale) (exhale) (gasps)
  情绪: (sighs) (groans) (snorts) (humming)
  其他: (coughs) (clear-throat) (sniffs) (sneezes) (burps) (lip-smacking) (hissing) (emm)
- 需要停顿处写 <#秒数#>，例如思考 <#0.5#>、转折 <#0.8#>、强调前 <#1.0#>
- 借助语气词和停顿控制节奏，如 嗯、啊、呢、吧、哦、嘿
- 不要写 emoji、括号注释、【】标记等无法朗读的内容
- 不要分点或编号，保持连贯的口语表达
`

// Guidelines 常驻语音开启时返回写作要求；只读，不消费待发标记
func Guidelines(ctx context.Context, s Store, chatID string) (string, bool, error) {
	on, err := s.IsAlways(ctx, chatID)
	if err != nil || !on {
		return "", false, err
	}
	return VoiceTextGuidelines, true, nil
}
