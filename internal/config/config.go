package config

import (
	"time"

	"github.com/shouni/go-utils/envutil"
)

// デフォルト値の定義なのだ
const (
	DefaultModel            = "gemini-3-pro-preview"   // 会話・判断用のテキストモデル
	DefaultImageModel       = "gemini-2.5-flash-image" // 画像合成用のモデル
	DefaultSynthesisTimeout = 60 * time.Second
	DefaultRateLimit        = 30 * time.Second // 合成呼び出しのレート制限間隔
	DefaultBaseURL          = "http://localhost:8000"
	DefaultGeneratedDir     = "generated" // 生成画像の保存先なのだ
)

// Config はアプリケーション全体の環境設定（APIキーやモデル指定）を保持する構造体なのだ。
type Config struct {
	GeminiAPIKey     string
	GeminiModel      string
	GeminiImageModel string
	BaseURL          string
	GeneratedDir     string

	Options ChatOptions
}

// LoadConfig は環境変数から設定を読み込み、構造体を返すのだ！
func LoadConfig() *Config {
	cfg := &Config{
		GeminiAPIKey:     envutil.GetEnv("GEMINI_API_KEY", ""),
		GeminiModel:      envutil.GetEnv("GEMINI_MODEL", DefaultModel),
		GeminiImageModel: envutil.GetEnv("IMAGE_GEMINI_MODEL", DefaultImageModel),
		BaseURL:          envutil.GetEnv("AGENT_URL", DefaultBaseURL),
		GeneratedDir:     envutil.GetEnv("GENERATED_DIR", DefaultGeneratedDir),
	}
	return cfg
}

// ChatOptions は CLI フラグから渡される実行時のパラメータなのだ。
type ChatOptions struct {
	// AI挙動設定
	AIModel    string // --model: 判断用のGeminiモデル
	ImageModel string // --image-model: 画像合成用のGeminiモデル

	// 生成物の置き場所
	BaseURL      string // --base-url: 画像URLの基底
	GeneratedDir string // --generated-dir: 生成画像の保存ディレクトリ

	// 実行制御
	SynthesisTimeout time.Duration // --synthesis-timeout
	RateInterval     time.Duration // --rate-interval: 合成呼び出しの最小間隔
}

// Resolve は環境変数由来の設定にフラグの上書きを適用した実効値を返すのだ。
func (c *Config) Resolve() *Config {
	out := *c
	if c.Options.AIModel != "" {
		out.GeminiModel = c.Options.AIModel
	}
	if c.Options.ImageModel != "" {
		out.GeminiImageModel = c.Options.ImageModel
	}
	if c.Options.BaseURL != "" {
		out.BaseURL = c.Options.BaseURL
	}
	if c.Options.GeneratedDir != "" {
		out.GeneratedDir = c.Options.GeneratedDir
	}
	return &out
}
