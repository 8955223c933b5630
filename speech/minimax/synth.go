package minimax

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/BaSui01/speechflow/speech"
	"github.com/BaSui01/speechflow/types"
	"go.uber.org/zap"
)

const (
	pathT2A = "/v1/t2a_v2"

	// 流式最后一个分片是汇总，携带整段音频，需跳过
	streamStatusSummary = 2
)

// Synthesize 同步合成
func (c *Client) Synthesize(ctx context.Context, req *speech.Request) (*speech.Audio, error) {
	var resp t2aResponse
	if err := c.doJSON(ctx, http.MethodPost, pathT2A, nil, buildT2ARequest(req, false), &resp); err != nil {
		return nil, err
	}
	if e := mapStatusError(resp.BaseResp); e != nil {
		return nil, e
	}
	if resp.Data == nil {
		return nil, types.NewError(types.ErrProvider, "response has no audio").WithProvider(providerName)
	}

	audio := &speech.Audio{
		Format:  req.Audio.Format,
		TraceID: resp.TraceID,
		Info:    resp.ExtraInfo,
	}
	switch {
	case req.OutputFormat == speech.OutputURL && resp.Data.AudioURL != "":
		audio.URL = resp.Data.AudioURL
	case req.OutputFormat == speech.OutputURL && strings.HasPrefix(resp.Data.Audio, "http"):
		audio.URL = resp.Data.Audio
	case resp.Data.Audio != "":
		data, err := hex.DecodeString(resp.Data.Audio)
		if err != nil {
			return nil, decodeError(err)
		}
		audio.Data = data
	default:
		return nil, types.NewError(types.ErrProvider, "response has no audio").WithProvider(providerName)
	}
	return audio, nil
}

// SynthesizeStream 建立流式合成连接。连接错误同步返回；
// 连接建立后的失败以 Err 分片送出，随后通道关闭。
func (c *Client) SynthesizeStream(ctx context.Context, req *speech.Request) (<-chan speech.StreamChunk, error) {
	payload, err := json.Marshal(buildT2ARequest(req, true))
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "encode request").WithCause(err)
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, c.endpoint(pathT2A, nil), bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, mapTransportError(ctx, err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, mapHTTPError(resp.StatusCode, readErrorMessage(resp.Body))
	}

	// 非 SSE 响应一般是 base_resp 错误
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "application/json") {
		defer resp.Body.Close()
		var r t2aResponse
		if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
			return nil, decodeError(err)
		}
		if e := mapStatusError(r.BaseResp); e != nil {
			return nil, e
		}
		return nil, types.NewError(types.ErrProvider, "unexpected non-stream response").WithProvider(providerName)
	}

	ch := make(chan speech.StreamChunk)
	go func() {
		defer resp.Body.Close()
		defer close(ch)

		send := func(chunk speech.StreamChunk) bool {
			select {
			case ch <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		reader := bufio.NewReader(resp.Body)
		chunks := 0
		for {
			line, err := reader.ReadString('\n')
			if err != nil && (err != io.EOF || line == "") {
				if err != io.EOF {
					send(speech.StreamChunk{Err: mapTransportError(ctx, err)})
				}
				c.logger.Debug("stream finished", zap.Int("chunks", chunks))
				return
			}
			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" || data == "[DONE]" {
				continue
			}

			var r t2aResponse
			if err := json.Unmarshal([]byte(data), &r); err != nil {
				send(speech.StreamChunk{Err: decodeError(err)})
				return
			}
			if e := mapStatusError(r.BaseResp); e != nil {
				send(speech.StreamChunk{Err: e})
				return
			}
			if r.Data == nil || r.Data.Status == streamStatusSummary || r.Data.Audio == "" {
				continue
			}
			audio, err := hex.DecodeString(r.Data.Audio)
			if err != nil {
				send(speech.StreamChunk{Err: decodeError(err)})
				return
			}
			if !send(speech.StreamChunk{Data: audio}) {
				return
			}
			chunks++
		}
	}()
	return ch, nil
}
