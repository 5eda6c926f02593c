package agent

import "encoding/json"

// ロール定数。会話履歴のメッセージ種別を表します。
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message は会話履歴の1エントリです。Role が RoleTool のときは
// ToolName に発信元ツール名、Content にそのJSON結果が入ります。
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolName  string     `json:"toolName,omitempty"`
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
}

// ToolCall はポリシー層が提案した1件のツール呼び出しです。
type ToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Decision はポリシー層の1ターン分の判断です。Calls が空なら
// Message を最終応答としてターンを終了します。
type Decision struct {
	Message string
	Calls   []ToolCall
}
