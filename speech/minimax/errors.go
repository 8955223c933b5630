package minimax

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/BaSui01/speechflow/types"
)

// 上游业务状态码
const (
	statusOK                = 0
	statusUnknown           = 1000
	statusTimeout           = 1001
	statusRateLimit         = 1002
	statusAuthFailed        = 1004
	statusInsufficientFunds = 1008
	statusServiceError      = 1024
	statusInputSensitive    = 1026
	statusOutputSensitive   = 1027
	statusInternalError     = 1033
	statusConcurrencyLimit  = 1039
	statusInvalidCharRatio  = 1042
	statusInvalidParams     = 2013
	statusInvalidAPIKey     = 2049
)

// mapHTTPError 将 HTTP 状态码映射为带有合适重试标记的 types.Error。
// 上游状态码只保留在 Cause 中，不写入 HTTPStatus。
func mapHTTPError(status int, msg string) *types.Error {
	var code types.ErrorCode
	retryable := false
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = types.ErrAuthentication
	case status == http.StatusTooManyRequests:
		code, retryable = types.ErrRateLimited, true
	case status == http.StatusRequestTimeout || status >= 500:
		code, retryable = types.ErrTransientNetwork, true
	default:
		code = types.ErrProvider
	}
	return &types.Error{
		Code:      code,
		Message:   msg,
		Retryable: retryable,
		Provider:  providerName,
		Cause:     fmt.Errorf("upstream http status %d", status),
	}
}

// mapStatusError 将 base_resp 中的业务状态码映射为 types.Error；成功返回 nil
func mapStatusError(resp baseResp) *types.Error {
	if resp.StatusCode == statusOK {
		return nil
	}
	msg := fmt.Sprintf("status %d: %s", resp.StatusCode, resp.StatusMsg)
	e := &types.Error{Message: msg, Provider: providerName}
	switch resp.StatusCode {
	case statusAuthFailed, statusInvalidAPIKey:
		e.Code = types.ErrAuthentication
	case statusRateLimit, statusConcurrencyLimit:
		e.Code, e.Retryable = types.ErrRateLimited, true
	case statusUnknown, statusTimeout, statusServiceError, statusInternalError:
		e.Code, e.Retryable = types.ErrTransientNetwork, true
	default:
		// 1008 / 1026 / 1027 / 1042 / 2013 及其他
		e.Code = types.ErrProvider
	}
	return e
}

// mapTransportError classifies errors from http.Client.Do and body reads.
// Cancellation by the caller passes through unchanged.
func mapTransportError(parent context.Context, err error) error {
	if err == nil {
		return nil
	}
	if parent.Err() != nil {
		return parent.Err()
	}
	return &types.Error{
		Code:      types.ErrTransientNetwork,
		Message:   "request failed",
		Retryable: true,
		Provider:  providerName,
		Cause:     err,
	}
}

// readErrorMessage 从错误响应体读取 message
func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return "failed to read error response"
	}
	var envelope struct {
		BaseResp baseResp `json:"base_resp"`
		Error    struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &envelope) == nil {
		switch {
		case envelope.BaseResp.StatusMsg != "":
			return envelope.BaseResp.StatusMsg
		case envelope.Error.Message != "":
			return envelope.Error.Message
		case envelope.Message != "":
			return envelope.Message
		}
	}
	return strings.TrimSpace(string(data))
}

func decodeError(err error) *types.Error {
	return &types.Error{
		Code:     types.ErrProvider,
		Message:  "malformed response",
		Provider: providerName,
		Cause:    err,
	}
}
