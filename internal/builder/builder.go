package builder

import (
	"context"
	"fmt"

	"github.com/shouni/go-scene-kit/internal/config"
	"github.com/shouni/go-scene-kit/pkg/agent"
	"github.com/shouni/go-scene-kit/pkg/asset"
	"github.com/shouni/go-scene-kit/pkg/policy"
	"github.com/shouni/go-scene-kit/pkg/synthesis"
	"github.com/shouni/go-scene-kit/pkg/tool"

	"github.com/shouni/go-gemini-client/gemini"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// InitializeAIClient は判断層が使う gemini クライアントを初期化します。
func InitializeAIClient(ctx context.Context, apiKey string) (gemini.GenerativeModel, error) {
	const defaultGeminiTemperature = float32(0.2)
	clientConfig := gemini.Config{
		APIKey:      apiKey,
		Temperature: genai.Ptr(defaultGeminiTemperature),
	}
	aiClient, err := gemini.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("AIクライアントの初期化に失敗しました: %w", err)
	}
	return aiClient, nil
}

// BuildSession は設定から会話セッション一式（画像保存・合成・ツール・判断層）を
// 組み立てるのだ。
func BuildSession(ctx context.Context, cfg *config.Config) (*agent.Session, error) {
	assets, err := asset.NewStore(cfg.GeneratedDir, cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("画像ストアの初期化に失敗したのだ: %w", err)
	}

	interval := cfg.Options.RateInterval
	if interval <= 0 {
		interval = config.DefaultRateLimit
	}

	synth, err := synthesis.NewClient(assets, synthesis.ClientConfig{
		Model:         cfg.GeminiImageModel,
		DefaultAPIKey: cfg.GeminiAPIKey,
		Timeout:       cfg.Options.SynthesisTimeout,
		Limiter:       rate.NewLimiter(rate.Every(interval), 2),
	})
	if err != nil {
		return nil, fmt.Errorf("画像合成クライアントの初期化に失敗したのだ: %w", err)
	}

	registry, err := tool.NewRegistry(synth)
	if err != nil {
		return nil, fmt.Errorf("ツールレジストリの初期化に失敗したのだ: %w", err)
	}

	aiClient, err := InitializeAIClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, err
	}

	pol, err := policy.NewGeminiPolicy(aiClient, cfg.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("判断層の初期化に失敗したのだ: %w", err)
	}

	return agent.NewSession(pol, registry, "")
}
