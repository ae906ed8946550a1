package httpx

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/probeworks/apiprobe/internal/adapters/redisunit"
	"github.com/probeworks/apiprobe/internal/data"
)

// CaptchaFetcher runs the captcha fetch against a stored Redis config.
type CaptchaFetcher interface {
	FetchCaptcha(ctx context.Context, params redisunit.FetchCaptchaParams) redisunit.FetchCaptchaResult
}

// RedisHandlers serves the Redis captcha-fetch endpoint used by test
// setup flows.
type RedisHandlers struct {
	Configs redisunit.ConfigSource
	Unit    CaptchaFetcher
}

type fetchCaptchaRequest struct {
	Key          string `json:"key"`
	VarName      string `json:"var_name"`
	ExtractField string `json:"extract_field"`
}

// FetchCaptcha reads the key from the configured Redis and stores the
// extracted value as a global variable. Operational misses (expired
// key, bad JSON) come back in a code-0 envelope with success=false.
func (h *RedisHandlers) FetchCaptcha(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeFailure(w, http.StatusBadRequest, "請選擇 Redis 配置")
		return
	}

	var req fetchCaptchaRequest
	decodeBody(r, &req)

	if _, err := h.Configs.GetRedisConfig(r.Context(), id); err != nil {
		if errors.Is(err, data.ErrRedisConfigNotFound) {
			writeFailure(w, http.StatusBadRequest, "Redis 配置不存在")
			return
		}
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}

	result := h.Unit.FetchCaptcha(r.Context(), redisunit.FetchCaptchaParams{
		RedisConfigID: id,
		Key:           req.Key,
		VarName:       req.VarName,
		ExtractField:  req.ExtractField,
	})

	message := successMessage
	if !result.Success {
		message = result.Error
		if message == "" {
			message = "操作失敗"
		}
	}
	writeSuccess(w, result, message)
}
