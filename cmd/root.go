package cmd

import (
	"fmt"
	"os"

	"github.com/shouni/go-scene-kit/internal/config"

	"github.com/spf13/cobra"
)

// opts は各コマンドが共有する実行時パラメータなのだ。
var opts config.ChatOptions

// rootCmd はアプリケーションのルートコマンドなのだ。
var rootCmd = &cobra.Command{
	Use:   "scene-kit",
	Short: "AI生成のキャラクター・背景からシーンを組み立てる対話エージェントなのだ。",
	Long: `キャラクター画像・背景画像を Gemini で生成し、それらを合成してシーンを
組み立てる対話型のエージェントなのだ。会話の中で作成・編集・再合成を指示できるのだよ。`,
	PersistentPreRunE: preRunAppE,
	SilenceUsage:      true,
}

// addAppFlags は、アプリケーション全般に適用されるグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	// --- AIモデル・挙動設定 ---
	rootCmd.PersistentFlags().StringVar(&opts.AIModel, "model", config.DefaultModel, "会話・判断に使う Gemini モデル名なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.ImageModel, "image-model", config.DefaultImageModel, "画像合成に使う Gemini モデル名なのだ。")
	rootCmd.PersistentFlags().DurationVar(&opts.SynthesisTimeout, "synthesis-timeout", config.DefaultSynthesisTimeout, "画像合成リクエストのタイムアウトなのだ。")
	rootCmd.PersistentFlags().DurationVar(&opts.RateInterval, "rate-interval", config.DefaultRateLimit, "画像合成呼び出しの最小間隔（レート制限）なのだ。")

	// --- 生成物の置き場所 ---
	rootCmd.PersistentFlags().StringVar(&opts.BaseURL, "base-url", "", "画像URLの基底（未指定なら AGENT_URL か既定値なのだ）。")
	rootCmd.PersistentFlags().StringVarP(&opts.GeneratedDir, "generated-dir", "g", "", "生成画像を保存するディレクトリなのだ。")
}

// preRunAppE は、コマンド実行前に環境変数などの必須チェックを行うのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	// Gemini APIを利用するため、APIキーの存在チェックは欠かせないのだ！
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("エラー: 環境変数 GEMINI_API_KEY が設定されていません。Gemini APIの利用には必須なのだ")
	}

	return nil
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
func Execute() {
	addAppFlags(rootCmd)
	rootCmd.AddCommand(chatCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
