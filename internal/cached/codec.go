package cached

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// payloadVersion はキャッシュに保存するペイロードのスキーマ版数。
// 保存形式を変更した場合は上げること。古い版のエントリはミスとして扱われる。
const payloadVersion = 1

var errSchemaMismatch = errors.New("キャッシュペイロードのスキーマ版数が一致しません")

// envelope はキャッシュに保存するペイロードの外枠。
type envelope[T any] struct {
	Version int `json:"v"`
	Data    *T  `json:"data"`
}

// encode はペイロードを版数付きのJSONに変換する。
func encode[T any](v *T) ([]byte, error) {
	b, err := json.Marshal(envelope[T]{Version: payloadVersion, Data: v})
	if err != nil {
		return nil, fmt.Errorf("キャッシュペイロードのエンコードに失敗しました: %w", err)
	}
	return b, nil
}

// decode はencodeの出力を復元する。未知のフィールドや版数違いはエラーにする。
func decode[T any](b []byte) (*T, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()

	var env envelope[T]
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("キャッシュペイロードのデコードに失敗しました: %w", err)
	}
	if env.Version != payloadVersion {
		return nil, errSchemaMismatch
	}
	if env.Data == nil {
		return nil, errors.New("キャッシュペイロードが空です")
	}
	return env.Data, nil
}
