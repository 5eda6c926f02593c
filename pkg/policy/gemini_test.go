package policy

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shouni/go-scene-kit/pkg/agent"
	"github.com/shouni/go-scene-kit/pkg/tool"
)

func TestParseDecision(t *testing.T) {
	t.Run("コードフェンス付きJSONを解釈できること", func(t *testing.T) {
		raw := "```json\n{\"message\": \"作ります\", \"tool_calls\": [{\"name\": \"create_character\", \"arguments\": {\"name\": \"Knight\"}}]}\n```"
		d, err := parseDecision(raw)
		if err != nil {
			t.Fatalf("解析に失敗しました: %v", err)
		}
		if d.Message != "作ります" {
			t.Errorf("message が一致しません: %s", d.Message)
		}
		if len(d.Calls) != 1 || d.Calls[0].Name != "create_character" {
			t.Fatalf("tool_calls が一致しません: %+v", d.Calls)
		}
		var args map[string]string
		if err := json.Unmarshal(d.Calls[0].Arguments, &args); err != nil || args["name"] != "Knight" {
			t.Errorf("arguments が保持されていません: %s", string(d.Calls[0].Arguments))
		}
	})

	t.Run("フェンスなしでも前後の文章からJSONを抽出できること", func(t *testing.T) {
		raw := "Sure! Here is my decision: {\"message\": \"done\"} Hope this helps."
		d, err := parseDecision(raw)
		if err != nil {
			t.Fatalf("解析に失敗しました: %v", err)
		}
		if d.Message != "done" || len(d.Calls) != 0 {
			t.Errorf("終了判断になっていません: %+v", d)
		}
	})

	t.Run("応答全体が素のJSONでも解釈できること", func(t *testing.T) {
		d, err := parseDecision(`{"message": "hi", "tool_calls": []}`)
		if err != nil {
			t.Fatalf("解析に失敗しました: %v", err)
		}
		if d.Message != "hi" {
			t.Errorf("message が一致しません: %s", d.Message)
		}
	})

	t.Run("引数省略時は空オブジェクトで補うこと", func(t *testing.T) {
		d, err := parseDecision(`{"tool_calls": [{"name": "create_character"}]}`)
		if err != nil {
			t.Fatalf("解析に失敗しました: %v", err)
		}
		if string(d.Calls[0].Arguments) != "{}" {
			t.Errorf("空引数が補われていません: %s", string(d.Calls[0].Arguments))
		}
	})

	t.Run("名前のない呼び出しは読み飛ばすこと", func(t *testing.T) {
		d, err := parseDecision(`{"tool_calls": [{"arguments": {"x": 1}}, {"name": "create_scene"}]}`)
		if err != nil {
			t.Fatalf("解析に失敗しました: %v", err)
		}
		if len(d.Calls) != 1 || d.Calls[0].Name != "create_scene" {
			t.Errorf("無名の呼び出しが残っています: %+v", d.Calls)
		}
	})

	t.Run("JSONが見つからない場合はエラーのこと", func(t *testing.T) {
		if _, err := parseDecision("すみません、わかりません。"); err == nil {
			t.Fatal("エラーになりません")
		}
	})
}

func TestBuildPrompt(t *testing.T) {
	history := []agent.Message{
		{Role: agent.RoleUser, Content: "make a knight"},
		{Role: agent.RoleAssistant, Content: "作ります", ToolCalls: []agent.ToolCall{
			{Name: "create_character", Arguments: json.RawMessage(`{"name":"Knight"}`)},
		}},
		{Role: agent.RoleTool, ToolName: "create_character", Content: `{"id":"c1","name":"Knight"}`},
	}
	schemas := []tool.Schema{{Name: "create_character", Description: "Create a character image"}}

	prompt, err := buildPrompt(history, "Characters:\n  None yet", schemas)
	if err != nil {
		t.Fatalf("プロンプト生成に失敗しました: %v", err)
	}

	for _, want := range []string{
		"create_character",
		"Characters:\n  None yet",
		"[user] make a knight",
		"[assistant] 作ります",
		`[assistant->tool] create_character({"name":"Knight"})`,
		`[tool:create_character] {"id":"c1","name":"Knight"}`,
		"ONE mutating tool at a time",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("プロンプトに %q が含まれていません", want)
		}
	}

	// 指針 → ツール仕様 → 状態 → 会話、の順で並んでいること
	idxTools := strings.Index(prompt, "## Tools")
	idxState := strings.Index(prompt, "## Current Session State")
	idxConv := strings.Index(prompt, "## Conversation")
	if !(idxTools < idxState && idxState < idxConv) {
		t.Error("プロンプトの区画順が不正です")
	}
}
