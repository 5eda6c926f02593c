// Package agent は Policy → Dispatch → Merge の制御ループを実装します。
//
// 1サイクルで実行されるアーティファクト変更ツールは高々1つです。これは
// 性能上の妥協ではなく順序保証であり、後続の工程（シーンの再合成など）が
// 先行する工程の結果（キャラクター編集後の画像）に因果的に依存するためです。
// ポリシー層が複数の呼び出しを一括提案した場合、残りはキューに積まれ、
// 以降のサイクルで1つずつ消化されます。
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shouni/go-scene-kit/pkg/domain"
	"github.com/shouni/go-scene-kit/pkg/tool"
)

// maxCycles は1ターン内の Policy→Dispatch→Merge サイクルの上限です。
// ポリシー層が終了判断を出さない場合の安全弁として機能します。
const maxCycles = 24

// Policy は会話履歴・現在状態の要約・ツール仕様から次の行動を決める、
// このパッケージ外部の協調コンポーネントです。
type Policy interface {
	Decide(ctx context.Context, history []Message, stateSummary string, schemas []tool.Schema) (Decision, error)
}

// Session は1会話分の制御ループと、それが排他的に所有する状態を束ねます。
// Store への書き込みはマージ工程（mergeResults）だけが行います。
type Session struct {
	policy   Policy
	registry *tool.Registry
	store    *domain.Store
	apiKey   string

	history []Message
	pending []ToolCall
}

// NewSession は新しい会話セッションを初期化します。apiKey はセッション単位の
// 資格情報で、空ならプロセス既定のキーに委ねられます。
func NewSession(policy Policy, registry *tool.Registry, apiKey string) (*Session, error) {
	if policy == nil {
		return nil, fmt.Errorf("Policy は必須です")
	}
	if registry == nil {
		return nil, fmt.Errorf("tool.Registry は必須です")
	}
	return &Session{
		policy:   policy,
		registry: registry,
		store:    domain.NewStore(),
		apiKey:   apiKey,
	}, nil
}

// Store はセッションのアーティファクト状態を返します。
// 読み取り専用として扱ってください。書き込みはマージ工程の責務です。
func (s *Session) Store() *domain.Store {
	return s.store
}

// History は会話履歴のコピーを返します。
func (s *Session) History() []Message {
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// Run はユーザー発話を1ターン処理し、最終的なアシスタント応答を返します。
// ポリシーがツール呼び出しを提案しなくなるまで Policy → Dispatch → Merge を
// 繰り返します。回復可能なエラーはツール結果として会話に残り、ループ自体は
// 継続します。ハード失敗だけがエラーとして呼び出し側に浮上します。
func (s *Session) Run(ctx context.Context, userMessage string) (string, error) {
	s.history = append(s.history, Message{Role: RoleUser, Content: userMessage})

	for cycle := 0; cycle < maxCycles; cycle++ {
		if len(s.pending) == 0 {
			decision, err := s.policy.Decide(ctx, s.History(), s.store.Summary(), s.registry.Schemas())
			if err != nil {
				return "", fmt.Errorf("ポリシー層の判断に失敗しました: %w", err)
			}

			if len(decision.Calls) == 0 {
				s.history = append(s.history, Message{Role: RoleAssistant, Content: decision.Message})
				return decision.Message, nil
			}

			s.history = append(s.history, Message{
				Role:      RoleAssistant,
				Content:   decision.Message,
				ToolCalls: decision.Calls,
			})
			s.pending = append(s.pending, decision.Calls...)
		}

		results, err := s.dispatch(ctx, s.nextBatch())
		if err != nil {
			// ハード失敗はサイクルを中断してユーザー側境界へ浮上させる
			s.pending = nil
			return "", err
		}

		s.mergeResults(results)
	}

	return "", fmt.Errorf("1ターンのサイクル上限 (%d) に達しました", maxCycles)
}

// nextBatch は保留キューの先頭から、アーティファクト変更ツールを
// 高々1つ含むバッチを取り出します。変更ツールはバッチの区切りとして働き、
// 提案された順序がサイクルをまたいで維持されます。
func (s *Session) nextBatch() []ToolCall {
	var batch []ToolCall
	for len(s.pending) > 0 {
		call := s.pending[0]
		s.pending = s.pending[1:]
		batch = append(batch, call)

		ex, ok := s.registry.Get(call.Name)
		if !ok || ex.Mutating() {
			break
		}
	}
	return batch
}

// dispatch はバッチ内の呼び出しを提案順に実行し、ツール結果メッセージを
// 会話履歴に追記した上で返します。実行器からのエラー（想定外の障害）は
// そのまま伝搬します。
func (s *Session) dispatch(ctx context.Context, batch []ToolCall) ([]Message, error) {
	var results []Message
	for _, call := range batch {
		var res *tool.Result

		ex, ok := s.registry.Get(call.Name)
		if !ok {
			res = tool.Errorf("Unknown tool: %s", call.Name)
		} else {
			var err error
			res, err = ex.Execute(ctx, call.Arguments, s.store, s.apiKey)
			if err != nil {
				return nil, fmt.Errorf("ツール %s の実行に失敗しました: %w", call.Name, err)
			}
		}

		content, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("ツール %s の結果の整形に失敗しました: %w", call.Name, err)
		}

		slog.Info("ツールを実行しました",
			"tool", call.Name,
			"ok", res.Err == "",
		)

		msg := Message{Role: RoleTool, ToolName: call.Name, Content: string(content)}
		s.history = append(s.history, msg)
		results = append(results, msg)
	}
	return results, nil
}

// mergeResults はこのサイクルのツール結果メッセージを走査し、発信元ツール名に
// 応じて Store へ冪等に反映します。JSONとして解釈できない結果やエラー結果は
// 黙って読み飛ばします。会話の継続性を優先する意図的なトレードオフです。
func (s *Session) mergeResults(results []Message) {
	for _, msg := range results {
		if msg.Role != RoleTool {
			continue
		}

		var res tool.Result
		if err := json.Unmarshal([]byte(msg.Content), &res); err != nil {
			slog.Debug("ツール結果の解析をスキップします", "tool", msg.ToolName, "error", err)
			continue
		}
		if res.ID == "" || res.Err != "" {
			continue
		}

		switch msg.ToolName {
		case "create_character":
			s.store.AppendCharacter(domain.Character{
				ID: res.ID, Name: res.Name, Description: res.Description,
				Prompt: res.Prompt, ImageURL: res.ImageURL,
			})
		case "create_background":
			s.store.AppendBackground(domain.Background{
				ID: res.ID, Name: res.Name, Description: res.Description,
				Prompt: res.Prompt, ImageURL: res.ImageURL,
			})
		case "create_scene":
			s.store.AppendScene(domain.Scene{
				ID: res.ID, Name: res.Name, Description: res.Description,
				Prompt: res.Prompt, CharacterIDs: res.CharacterIDs,
				BackgroundID: res.BackgroundID, ImageURL: res.ImageURL,
			})
		case "edit_character":
			s.store.ReplaceCharacter(domain.Character{
				ID: res.ID, Name: res.Name, Description: res.Description,
				Prompt: res.Prompt, ImageURL: res.ImageURL, Edited: res.Edited,
			})
		case "edit_background":
			s.store.ReplaceBackground(domain.Background{
				ID: res.ID, Name: res.Name, Description: res.Description,
				Prompt: res.Prompt, ImageURL: res.ImageURL, Edited: res.Edited,
			})
		case "edit_scene":
			s.store.ReplaceScene(domain.Scene{
				ID: res.ID, Name: res.Name, Description: res.Description,
				Prompt: res.Prompt, CharacterIDs: res.CharacterIDs,
				BackgroundID: res.BackgroundID, ImageURL: res.ImageURL, Edited: res.Edited,
			})
		}
	}
}
