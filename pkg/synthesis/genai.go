package synthesis

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"google.golang.org/genai"
)

const (
	defaultCacheExpiration = 5 * time.Minute
	cacheCleanupInterval   = 15 * time.Minute
)

// ImageAPI は画像合成に必要な generateContent 呼び出しの最小インターフェースです。
// テストではこのインターフェースをスタブに差し替えます。
type ImageAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// genaiModels は genai.Client を ImageAPI に適合させるアダプタです。
type genaiModels struct {
	client *genai.Client
}

func (g genaiModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return g.client.Models.GenerateContent(ctx, model, contents, config)
}

// clientFactory は APIキーごとの genai クライアントを構築・キャッシュします。
// 同一キーに対する同時初期化は singleflight で一本化します。
type clientFactory struct {
	timeout time.Duration
	clients *cache.Cache
	group   singleflight.Group

	// build は実際のクライアント構築。テストで差し替えます。
	build func(ctx context.Context, apiKey string) (ImageAPI, error)
}

func newClientFactory(timeout time.Duration) *clientFactory {
	f := &clientFactory{
		timeout: timeout,
		clients: cache.New(defaultCacheExpiration, cacheCleanupInterval),
	}
	f.build = f.buildGenai
	return f
}

func (f *clientFactory) buildGenai(ctx context.Context, apiKey string) (ImageAPI, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPClient: &http.Client{
			Timeout: f.timeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("genaiクライアントの初期化に失敗しました: %w", err)
	}
	return genaiModels{client: client}, nil
}

// Get は指定キー用の ImageAPI を返します。キーの妥当性はここでは検証せず、
// 認証の失敗はリモートサービスからのエラーとして呼び出し元に伝搬します。
func (f *clientFactory) Get(ctx context.Context, apiKey string) (ImageAPI, error) {
	if api, ok := f.clients.Get(apiKey); ok {
		return api.(ImageAPI), nil
	}

	val, err, _ := f.group.Do(apiKey, func() (interface{}, error) {
		// singleflight 待機中に他のゴルーチンが初期化を終えている可能性があるため再確認
		if api, ok := f.clients.Get(apiKey); ok {
			return api, nil
		}

		api, err := f.build(ctx, apiKey)
		if err != nil {
			return nil, err
		}

		f.clients.Set(apiKey, api, cache.DefaultExpiration)
		return api, nil
	})
	if err != nil {
		return nil, err
	}

	api, ok := val.(ImageAPI)
	if !ok {
		return nil, fmt.Errorf("unexpected return type from singleflight: %T", val)
	}
	return api, nil
}
