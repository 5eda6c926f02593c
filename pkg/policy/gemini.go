// Package policy は会話履歴から次の行動を決める判断層を提供します。
// 制御ループ (pkg/agent) はこの層を純粋なインターフェースとして扱い、
// 本パッケージは Gemini を用いた実装を提供します。
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shouni/go-gemini-client/gemini"

	"github.com/shouni/go-scene-kit/pkg/agent"
	"github.com/shouni/go-scene-kit/pkg/tool"
)

var jsonBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*\\S)\\s*```")

// GeminiPolicy は Gemini のテキストモデルに次の行動を判断させる
// agent.Policy の実装です。
type GeminiPolicy struct {
	aiClient gemini.GenerativeModel
	model    string
}

// NewGeminiPolicy は Gemini クライアントを注入して初期化します。
func NewGeminiPolicy(ai gemini.GenerativeModel, model string) (*GeminiPolicy, error) {
	if ai == nil {
		return nil, fmt.Errorf("gemini.GenerativeModel は必須です")
	}
	if model == "" {
		return nil, fmt.Errorf("モデル名は必須です")
	}
	return &GeminiPolicy{aiClient: ai, model: model}, nil
}

// Decide は履歴・状態要約・ツール仕様からプロンプトを組み立て、
// モデルの応答を Decision に解釈して返します。
func (p *GeminiPolicy) Decide(ctx context.Context, history []agent.Message, stateSummary string, schemas []tool.Schema) (agent.Decision, error) {
	prompt, err := buildPrompt(history, stateSummary, schemas)
	if err != nil {
		return agent.Decision{}, fmt.Errorf("プロンプト生成に失敗: %w", err)
	}

	resp, err := p.aiClient.GenerateContent(ctx, prompt, p.model)
	if err != nil {
		return agent.Decision{}, fmt.Errorf("判断モデルの呼び出しに失敗しました: %w", err)
	}

	return parseDecision(resp.Text)
}

// systemGuidance はモデルに渡す行動指針です。ツール呼び出しの逐次性
// （編集の連鎖は1手ずつ）と regenerate_from_sources の使い分けを指示します。
const systemGuidance = `You are a creative assistant helping users create scenes with AI-generated characters and backgrounds.

## Your Capabilities
You have tools to create and edit characters, backgrounds, and scenes. When calling these tools, YOU write the image generation prompts directly.

## Prompt Writing Guidelines
Keep prompts SIMPLE and SHORT.
- Characters: "Create a photo of [description] on a plain white background" (clean images composite better)
- Backgrounds: "[environment description]"
- Scenes: describe how to place the characters in the environment, e.g. "Place these characters in this environment naturally"

## Workflow Guidelines
1. When creating artifacts, write creative names, brief descriptions, and detailed prompts
2. For scenes, ensure the session has at least one character and one background first
3. When editing, the edit_description should clearly state what changes to make
4. Adding a character to an existing scene: do NOT create a new scene; use edit_scene with regenerate_from_sources=true and new_character_ids including ALL characters

## Cascading Edits (SEQUENTIAL - ONE TOOL AT A TIME)
- When a character or background is edited, scenes containing it must be updated afterwards
- Call only ONE mutating tool at a time; the scene edit needs the updated character/background image
- Sequence: first edit_character/edit_background, then edit_scene for each affected scene

## edit_scene: regenerate_from_sources
- true: recompose from the character/background images (use after editing a source). Write a FULL composition prompt as if creating a new scene; the model has no memory of the previous image
- false: edit the existing scene image directly (composition changes like "move the character to the left")

## Response Format
Respond with a single JSON object, no prose outside it:
{"message": "<what you did or want to say to the user>", "tool_calls": [{"name": "<tool name>", "arguments": {...}}]}
Omit "tool_calls" (or use an empty array) when no tool is needed and the turn is complete.`

// buildPrompt は指針・ツール仕様・現在状態・会話記録を1つのプロンプトに
// まとめます。ツール仕様は JSON として埋め込みます。
func buildPrompt(history []agent.Message, stateSummary string, schemas []tool.Schema) (string, error) {
	schemaJSON, err := json.MarshalIndent(schemas, "", "  ")
	if err != nil {
		return "", fmt.Errorf("ツール仕様の整形に失敗しました: %w", err)
	}

	var b strings.Builder
	b.WriteString(systemGuidance)
	b.WriteString("\n\n## Tools\n")
	b.Write(schemaJSON)
	b.WriteString("\n\n## Current Session State\n")
	b.WriteString(stateSummary)
	b.WriteString("\n\n## Conversation\n")
	for _, msg := range history {
		switch msg.Role {
		case agent.RoleTool:
			fmt.Fprintf(&b, "[tool:%s] %s\n", msg.ToolName, msg.Content)
		case agent.RoleAssistant:
			if msg.Content != "" {
				fmt.Fprintf(&b, "[assistant] %s\n", msg.Content)
			}
			for _, call := range msg.ToolCalls {
				fmt.Fprintf(&b, "[assistant->tool] %s(%s)\n", call.Name, string(call.Arguments))
			}
		default:
			fmt.Fprintf(&b, "[%s] %s\n", msg.Role, msg.Content)
		}
	}
	b.WriteString("\nDecide the next action and respond with the JSON object described above.")
	return b.String(), nil
}

// rawDecision はモデル応答の JSON 形です。
type rawDecision struct {
	Message   string `json:"message"`
	ToolCalls []struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"tool_calls"`
}

// parseDecision はモデルの生テキストから JSON を取り出して Decision に
// 変換します。コードフェンス → 最外ブレース → 全文、の順で解釈を試みます。
func parseDecision(raw string) (agent.Decision, error) {
	raw = strings.TrimSpace(raw)
	var rawJSON string

	matches := jsonBlockRegex.FindStringSubmatch(raw)
	if len(matches) > 1 {
		rawJSON = matches[1]
	} else {
		firstBracket := strings.Index(raw, "{")
		lastBracket := strings.LastIndex(raw, "}")
		if firstBracket != -1 && lastBracket != -1 && lastBracket > firstBracket {
			rawJSON = raw[firstBracket : lastBracket+1]
		} else {
			rawJSON = raw
		}
	}

	var decoded rawDecision
	if err := json.Unmarshal([]byte(rawJSON), &decoded); err != nil {
		return agent.Decision{}, fmt.Errorf("AIからの応答に含まれるJSONの解析に失敗しました (応答抜粋: %q): %w", truncateString(raw, 200), err)
	}

	decision := agent.Decision{Message: decoded.Message}
	for _, call := range decoded.ToolCalls {
		if call.Name == "" {
			continue
		}
		args := call.Arguments
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		decision.Calls = append(decision.Calls, agent.ToolCall{Name: call.Name, Arguments: args})
	}
	return decision, nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
