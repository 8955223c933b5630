package minimax

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/BaSui01/speechflow/speech"
	"github.com/BaSui01/speechflow/types"
	"go.uber.org/zap"
)

const (
	pathUpload      = "/v1/files/upload"
	pathVoiceClone  = "/v1/voice_clone"
	pathDeleteVoice = "/v1/delete_voice"
	pathGetVoice    = "/v1/get_voice"

	voiceTypeCloning = "voice_cloning"
)

// UploadFile 以 multipart 上传音频文件，返回上游文件 ID
func (c *Client) UploadFile(ctx context.Context, purpose speech.FilePurpose, filename string, r io.Reader) (int64, error) {
	// 上传体积较大，给两倍超时
	callCtx, cancel := context.WithTimeout(ctx, 2*c.cfg.Timeout)
	defer cancel()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := func() error {
			if err := mw.WriteField("purpose", string(purpose)); err != nil {
				return err
			}
			part, err := mw.CreateFormFile("file", filename)
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, r); err != nil {
				return err
			}
			return mw.Close()
		}()
		pw.CloseWithError(err)
	}()

	req, err := c.newRequest(callCtx, http.MethodPost, c.endpoint(pathUpload, nil), pr, mw.FormDataContentType())
	if err != nil {
		pr.CloseWithError(err)
		return 0, err
	}

	var resp uploadResponse
	if err := c.send(ctx, req, &resp); err != nil {
		pr.CloseWithError(err)
		return 0, err
	}
	if e := mapStatusError(resp.BaseResp); e != nil {
		return 0, e
	}
	if resp.File == nil || resp.File.FileID == 0 {
		return 0, types.NewError(types.ErrProvider, "upload returned no file_id").WithProvider(providerName)
	}

	c.logger.Info("file uploaded",
		zap.String("purpose", string(purpose)),
		zap.String("filename", filename),
		zap.Int64("file_id", resp.File.FileID),
		zap.Int64("bytes", resp.File.Bytes))
	return resp.File.FileID, nil
}

// CloneVoice 以已上传的音频克隆音色
func (c *Client) CloneVoice(ctx context.Context, req *speech.CloneRequest) (*speech.CloneResult, error) {
	body := cloneRequest{
		FileID:                  req.FileID,
		VoiceID:                 req.VoiceID,
		NeedNoiseReduction:      req.NoiseReduction,
		NeedVolumeNormalization: req.VolumeNormalization,
		Accuracy:                req.Accuracy,
	}
	if req.DemoText != "" {
		body.Text = req.DemoText
		body.Model = req.DemoModel
	}
	if req.PromptFileID != 0 {
		body.ClonePrompt = &clonePrompt{PromptAudio: req.PromptFileID, PromptText: req.PromptText}
	}

	var resp cloneResponse
	start := time.Now()
	if err := c.doJSON(ctx, http.MethodPost, pathVoiceClone, nil, body, &resp); err != nil {
		return nil, err
	}
	if e := mapStatusError(resp.BaseResp); e != nil {
		return nil, e
	}
	if resp.InputSensitive {
		return nil, types.Errorf(types.ErrProvider, "source audio flagged as sensitive (type %d)", resp.InputSensitiveType).
			WithProvider(providerName)
	}

	c.logger.Info("voice cloned",
		zap.String("voice_id", req.VoiceID),
		zap.Duration("elapsed", time.Since(start)))
	return &speech.CloneResult{VoiceID: req.VoiceID, DemoAudioURL: resp.DemoAudio}, nil
}

// DeleteVoice 删除克隆音色
func (c *Client) DeleteVoice(ctx context.Context, voiceID string) error {
	var resp struct {
		BaseResp baseResp `json:"base_resp"`
	}
	body := deleteVoiceRequest{VoiceType: voiceTypeCloning, VoiceID: voiceID}
	if err := c.doJSON(ctx, http.MethodPost, pathDeleteVoice, nil, body, &resp); err != nil {
		return err
	}
	if e := mapStatusError(resp.BaseResp); e != nil {
		return e
	}
	return nil
}

// ListVoices 列出上游的克隆音色
func (c *Client) ListVoices(ctx context.Context) ([]speech.RemoteVoice, error) {
	var resp getVoiceResponse
	if err := c.doJSON(ctx, http.MethodPost, pathGetVoice, nil, getVoiceRequest{VoiceType: voiceTypeCloning}, &resp); err != nil {
		return nil, err
	}
	if e := mapStatusError(resp.BaseResp); e != nil {
		return nil, e
	}
	return resp.VoiceCloning, nil
}
