// Package tool は、アーティファクトを操作する6つのツール実行器を提供します。
// 各実行器は「検証してから実行する」純粋な関数として振る舞い、業務上想定される
// 失敗（参照切れ・画像なし・合成の空振り）は構造化された Result で返します。
// 例外的にエラーとして返すのは、レート制限以外のネットワーク層の障害など、
// 本当に想定外の事象だけです。
package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shouni/go-scene-kit/pkg/domain"
)

// Synthesizer は画像の生成・編集を行う合成クライアントへのインターフェースです。
// Generate / Edit とも、結果が得られなかった場合は空文字列を返します。
type Synthesizer interface {
	Generate(ctx context.Context, prompt string, sourceURLs []string, apiKey string) (string, error)
	Edit(ctx context.Context, imageURL, instruction, apiKey string) (string, error)
}

// StateReader は実行時点のアーティファクト状態への読み取り専用ビューです。
// 実行器は状態を読むだけで、書き込みはマージ工程に限定されます。
type StateReader interface {
	FindCharacter(id string) (domain.Character, bool)
	FindBackground(id string) (domain.Background, bool)
	FindScene(id string) (domain.Scene, bool)
}

// Result はツール実行の構造化された結果です。成功時は ID 以下のフィールドが
// 埋まり、業務上の失敗時は Err だけが設定されます。
type Result struct {
	ID           string   `json:"id,omitempty"`
	Name         string   `json:"name,omitempty"`
	Description  string   `json:"description,omitempty"`
	Prompt       string   `json:"prompt,omitempty"`
	ImageURL     string   `json:"imageUrl,omitempty"`
	CharacterIDs []string `json:"characterIds,omitempty"`
	BackgroundID string   `json:"backgroundId,omitempty"`
	Edited       bool     `json:"edited,omitempty"`
	Err          string   `json:"error,omitempty"`
}

// Errorf は業務上の失敗を表す Result を組み立てます。
func Errorf(format string, a ...any) *Result {
	return &Result{Err: fmt.Sprintf(format, a...)}
}

// Schema はポリシー層へ公開するツールの呼び出し仕様です。
type Schema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Executor は1つのツールの検証と実行を担います。
type Executor interface {
	Name() string
	Schema() Schema
	// Mutating はアーティファクトを変化させる（＝1サイクル1回の制約を受ける）
	// ツールかどうかを返します。
	Mutating() bool
	Execute(ctx context.Context, args json.RawMessage, state StateReader, apiKey string) (*Result, error)
}

// Registry は利用可能なツール実行器を名前で引けるように保持します。
type Registry struct {
	executors map[string]Executor
	order     []string
}

// NewRegistry は6つの標準ツールを登録したレジストリを生成します。
func NewRegistry(synth Synthesizer) (*Registry, error) {
	if synth == nil {
		return nil, fmt.Errorf("Synthesizer は必須です")
	}

	r := &Registry{executors: make(map[string]Executor)}
	r.Register(&CreateCharacter{synth: synth})
	r.Register(&CreateBackground{synth: synth})
	r.Register(&CreateScene{synth: synth})
	r.Register(&EditCharacter{synth: synth})
	r.Register(&EditBackground{synth: synth})
	r.Register(&EditScene{synth: synth})
	return r, nil
}

// Register は実行器を追加します。同名の登録は上書きです。
func (r *Registry) Register(e Executor) {
	if _, ok := r.executors[e.Name()]; !ok {
		r.order = append(r.order, e.Name())
	}
	r.executors[e.Name()] = e
}

// Get は名前で実行器を引きます。
func (r *Registry) Get(name string) (Executor, bool) {
	e, ok := r.executors[name]
	return e, ok
}

// Schemas は登録順のツール仕様一覧を返します。
func (r *Registry) Schemas() []Schema {
	out := make([]Schema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.executors[name].Schema())
	}
	return out
}

// stringParam はスキーマ定義用の小さなヘルパーです。
func stringParam(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}
