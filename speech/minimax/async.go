package minimax

import (
	"context"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"

	"github.com/BaSui01/speechflow/speech"
	"github.com/BaSui01/speechflow/types"
)

const (
	pathAsyncSubmit = "/v1/t2a_async_v2"
	pathAsyncQuery  = "/v1/query/t2a_async_query_v2"
	pathFileContent = "/v1/files/retrieve_content"
)

// SubmitAsync 提交长文本异步任务
func (c *Client) SubmitAsync(ctx context.Context, req *speech.Request) (*speech.AsyncSubmission, error) {
	body := buildT2ARequest(req, false)
	// 异步结果总是以文件形式取回
	body.OutputFormat = ""

	var resp asyncSubmitResponse
	if err := c.doJSON(ctx, http.MethodPost, pathAsyncSubmit, nil, body, &resp); err != nil {
		return nil, err
	}
	if e := mapStatusError(resp.BaseResp); e != nil {
		return nil, e
	}

	sub := &speech.AsyncSubmission{TaskID: string(resp.TaskID)}

	// 短文本时上游可能直接返回音频
	if resp.Data != nil {
		ref, err := audioRef(resp.Data.Audio, resp.Data.AudioURL, "")
		if err != nil {
			return nil, err
		}
		if !ref.IsZero() {
			sub.Ready = &ref
			return sub, nil
		}
	}

	if sub.TaskID == "" {
		return nil, types.NewError(types.ErrProvider, "async submission returned no task_id").WithProvider(providerName)
	}
	return sub, nil
}

// QueryAsync 查询异步任务状态
func (c *Client) QueryAsync(ctx context.Context, taskID string) (*speech.AsyncStatus, error) {
	var resp asyncQueryResponse
	query := url.Values{"task_id": {taskID}}
	if err := c.doJSON(ctx, http.MethodGet, pathAsyncQuery, query, nil, &resp); err != nil {
		return nil, err
	}
	if e := mapStatusError(resp.BaseResp); e != nil {
		return nil, e
	}

	state, ok := parseTaskState(resp.Status)
	if !ok {
		return nil, types.Errorf(types.ErrProvider, "unknown task status %q", resp.Status).WithProvider(providerName)
	}
	status := &speech.AsyncStatus{
		TaskID:  taskID,
		State:   state,
		Message: resp.BaseResp.StatusMsg,
	}
	if strings.EqualFold(resp.Status, "expired") {
		status.Message = "task expired"
	}
	if state != speech.TaskSucceeded {
		return status, nil
	}

	audioURL := resp.AudioURL
	inline := ""
	if resp.Data != nil {
		inline = resp.Data.Audio
		if audioURL == "" {
			audioURL = resp.Data.AudioURL
		}
	}
	ref, err := audioRef(inline, audioURL, string(resp.FileID))
	if err != nil {
		return nil, err
	}
	if ref.IsZero() {
		return nil, types.NewError(types.ErrProvider, "task succeeded without result").WithProvider(providerName)
	}
	status.Result = ref
	return status, nil
}

// FetchAudio 取回音频引用指向的数据
func (c *Client) FetchAudio(ctx context.Context, ref speech.AudioRef) ([]byte, error) {
	switch {
	case len(ref.Data) > 0:
		return ref.Data, nil
	case ref.URL != "":
		return c.download(ctx, ref.URL, false)
	case ref.FileID != "":
		return c.download(ctx, c.endpoint(pathFileContent, url.Values{"file_id": {ref.FileID}}), true)
	default:
		return nil, types.NewValidationError("audio_ref", "is empty")
	}
}

// audioRef 由上游返回的字段组装音频引用；audio 可能是 hex 或链接
func audioRef(audio, audioURL, fileID string) (speech.AudioRef, error) {
	var ref speech.AudioRef
	switch {
	case strings.HasPrefix(audio, "http://") || strings.HasPrefix(audio, "https://"):
		ref.URL = audio
	case audio != "":
		data, err := hex.DecodeString(audio)
		if err != nil {
			return ref, decodeError(err)
		}
		ref.Data = data
	case audioURL != "":
		ref.URL = audioURL
	}
	if ref.IsZero() && fileID != "" && fileID != "0" {
		ref.FileID = fileID
	}
	return ref, nil
}
