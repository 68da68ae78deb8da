package handler

import (
	"net/http"
	"strconv"

	"github.com/hitoshi/newsman/internal/model"
)

// PagingConfig はページングの既定値と上限。
type PagingConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// DefaultPagingConfig はデフォルトのページング設定を返す。
func DefaultPagingConfig() PagingConfig {
	return PagingConfig{DefaultLimit: 20, MaxLimit: 100}
}

// parsePaging はクエリパラメータpageとlimitを解析する。
// 省略時はpage=1、limit=DefaultLimit。数値でない値や範囲外の値はINVALID_ARGUMENT。
func (c PagingConfig) parsePaging(r *http.Request) (page, limit int, err error) {
	q := r.URL.Query()

	page, err = intParam(q.Get("page"), "page", 1)
	if err != nil {
		return 0, 0, err
	}
	limit, err = intParam(q.Get("limit"), "limit", c.DefaultLimit)
	if err != nil {
		return 0, 0, err
	}
	if err := model.ValidatePaging(page, limit, c.MaxLimit); err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

func intParam(raw, name string, defaultVal int) (int, error) {
	if raw == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.NewInvalidArgumentError(name + " は整数で指定してください")
	}
	return n, nil
}
