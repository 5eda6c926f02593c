package cmd

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/shouni/go-scene-kit/internal/builder"
	"github.com/shouni/go-scene-kit/internal/config"

	"github.com/spf13/cobra"
)

// chatCmd は、対話セッションを開始するのだ。
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "対話セッションを開始してシーンを組み立てるのだ。",
	Long: `標準入力からの指示を受け付ける対話ループを開始するのだ。
「騎士のキャラクターを作って」「城の中庭を背景にシーンを組んで」のように
話しかけると、画像の生成・編集・合成まで面倒を見るのだよ。
exit または quit で終了するのだ。`,
	RunE: chatCommand,
}

func chatCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// 1. 設定のロードとフラグの上書き適用
	cfg := config.LoadConfig()
	cfg.Options = opts
	cfg = cfg.Resolve()

	slog.Info("対話セッションを起動するのだ！",
		"text_model", cfg.GeminiModel,
		"image_model", cfg.GeminiImageModel,
		"generated_dir", cfg.GeneratedDir)

	// 2. セッションの組み立て
	session, err := builder.BuildSession(ctx, cfg)
	if err != nil {
		return fmt.Errorf("セッションの初期化中にエラーが発生したのだ: %w", err)
	}

	// 3. 対話ループ
	fmt.Println("シーンビルダーへようこそなのだ！（exit / quit で終了）")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		reply, err := session.Run(ctx, line)
		if err != nil {
			// ハード失敗はセッションを壊さず、報告して会話を続けるのだ
			fmt.Fprintf(os.Stderr, "エラーが発生したのだ: %v\n", err)
			continue
		}
		fmt.Println(reply)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("入力の読み取りに失敗したのだ: %w", err)
	}

	slog.Info("対話セッションを終了するのだ！")
	return nil
}
