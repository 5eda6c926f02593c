package synthesis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shouni/go-scene-kit/pkg/asset"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const (
	// DefaultTimeout は1回の合成呼び出しに許す実時間の上限です。
	DefaultTimeout = 60 * time.Second

	// maxAttempts はレート制限時の試行回数の上限（初回を含む）です。
	maxAttempts = 3

	// baseWait はリトライ前の待機の基準時間です。待機は 2^attempt 倍で伸びます。
	baseWait = 2 * time.Second
)

// ClientConfig は Client の構築パラメータです。
type ClientConfig struct {
	Model         string        // 画像合成に使う Gemini モデル名
	DefaultAPIKey string        // 呼び出しごとのキーが無いときのプロセス既定キー
	Timeout       time.Duration // 呼び出し1回あたりのタイムアウト（ゼロなら DefaultTimeout）
	Limiter       *rate.Limiter // 省略可。合成呼び出し前段のレートリミッタ
}

// Client は外部の画像生成・編集エンドポイントをラップし、
// リトライ/バックオフと生成バイナリの永続化を所有します。
type Client struct {
	assets     *asset.Store
	model      string
	defaultKey string
	limiter    *rate.Limiter

	// api はキーから ImageAPI を引くための関数。テストで差し替えます。
	api func(ctx context.Context, apiKey string) (ImageAPI, error)

	// sleep はバックオフ待機。テストで観測用に差し替えます。
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient は合成クライアントを初期化します。
func NewClient(assets *asset.Store, cfg ClientConfig) (*Client, error) {
	if assets == nil {
		return nil, fmt.Errorf("asset.Store は必須です")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("画像モデル名は必須です")
	}

	factory := newClientFactory(effectiveTimeout(cfg.Timeout))

	return &Client{
		assets:     assets,
		model:      cfg.Model,
		defaultKey: cfg.DefaultAPIKey,
		limiter:    cfg.Limiter,
		api:        factory.Get,
		sleep:      sleepContext,
	}, nil
}

// effectiveTimeout はゼロ以下のタイムアウト指定を既定値に丸めます。
func effectiveTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	return d
}

// Generate はプロンプト（と合成用の入力画像列）から画像を1枚生成し、
// 外部参照URLを返します。入力画像はこの並びのままインラインで埋め込まれます。
//
// レート制限(429)は最大 maxAttempts 回まで指数バックオフで再試行し、
// それでも結果が得られなければ空文字列を返します（エラーにはしません）。
// 応答に画像パートが含まれない場合も「結果なし」として空文字列を返します。
// それ以外のHTTP層の失敗は再試行せず、そのままエラーとして伝搬します。
func (c *Client) Generate(ctx context.Context, prompt string, sourceURLs []string, apiKey string) (string, error) {
	api, err := c.api(ctx, c.resolveKey(apiKey))
	if err != nil {
		return "", err
	}

	parts, err := c.buildParts(ctx, prompt, sourceURLs)
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		resp, err := api.GenerateContent(ctx, c.model, contents(parts), imageConfig())
		if err != nil {
			if !isRateLimited(err) {
				return "", fmt.Errorf("画像生成の呼び出しに失敗しました: %w", err)
			}

			wait := baseWait << attempt // 2s, 4s, 8s
			slog.Warn("画像生成のクォータに達したため再試行します",
				"attempt", attempt+1,
				"wait", wait,
			)
			if err := c.sleep(ctx, wait); err != nil {
				return "", err
			}
			continue
		}

		blob := firstInlineImage(resp)
		if blob == nil {
			// 成功応答に画像が含まれない場合は「結果なし」であってエラーではない
			return "", nil
		}
		return c.assets.Save(blob.Data, blob.MIMEType)
	}

	slog.Warn("画像生成のリトライ上限に達しました", "attempts", maxAttempts)
	return "", nil
}

// Edit は既存画像に編集指示を適用し、同じ参照先をその場で上書きします。
// 生成と違って再試行はせず、失敗はそのままエラーとして呼び出し元に返します。
// 戻りURLにはキャッシュ無効化用のクエリトークンが付きます。
func (c *Client) Edit(ctx context.Context, imageURL, instruction, apiKey string) (string, error) {
	api, err := c.api(ctx, c.resolveKey(apiKey))
	if err != nil {
		return "", err
	}

	data, mimeType, err := c.assets.Read(imageURL)
	if err != nil {
		return "", err
	}

	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
		{Text: instruction},
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	resp, err := api.GenerateContent(ctx, c.model, contents(parts), imageConfig())
	if err != nil {
		return "", fmt.Errorf("画像編集の呼び出しに失敗しました: %w", err)
	}

	blob := firstInlineImage(resp)
	if blob == nil {
		return "", nil
	}
	return c.assets.Overwrite(imageURL, blob.Data)
}

// resolveKey は呼び出しごとのキーを優先し、無ければプロセス既定キーを使います。
func (c *Client) resolveKey(apiKey string) string {
	if apiKey != "" {
		return apiKey
	}
	return c.defaultKey
}

// buildParts は入力画像（呼び出し元の並び順のまま）と末尾のテキストプロンプトから
// リクエストのパート列を構築します。画像の読み込みは並列ですが順序は保持されます。
func (c *Client) buildParts(ctx context.Context, prompt string, sourceURLs []string) ([]*genai.Part, error) {
	parts := make([]*genai.Part, len(sourceURLs)+1)

	eg, egCtx := errgroup.WithContext(ctx)
	for i, url := range sourceURLs {
		i, url := i, url
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			data, mimeType, err := c.assets.Read(url)
			if err != nil {
				return fmt.Errorf("入力画像 %d の読み込みに失敗しました: %w", i+1, err)
			}
			parts[i] = &genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	parts[len(sourceURLs)] = &genai.Part{Text: prompt}
	return parts, nil
}

func contents(parts []*genai.Part) []*genai.Content {
	return []*genai.Content{{Role: genai.RoleUser, Parts: parts}}
}

// imageConfig はテキストと画像の両モダリティを要求する生成設定です。
func imageConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
}

// firstInlineImage は応答の先頭候補から最初のインライン画像パートを取り出します。
func firstInlineImage(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil {
				return part.InlineData
			}
		}
	}
	return nil
}

// isRateLimited はレート制限を示すエラーかどうかを判定します。
// レート制限だけが再試行の対象で、その他の非2xxは呼び出しごとに終了です。
func isRateLimited(err error) bool {
	var apiErr genai.APIError
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
