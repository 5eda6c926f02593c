package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Character はセッション内で生成されたキャラクターのアーティファクトを保持します。
// ImageURL は最初の画像合成が成功するまで空文字列のままです。
type Character struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
	ImageURL    string `json:"imageUrl,omitempty"`
	Edited      bool   `json:"edited,omitempty"`
}

// Background は背景（環境）のアーティファクトです。形状は Character と同じですが、
// 意味的には環境を表すため、別の型として区別します。
type Background struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
	ImageURL    string `json:"imageUrl,omitempty"`
	Edited      bool   `json:"edited,omitempty"`
}

// Scene はキャラクター群と背景を合成したシーンのアーティファクトです。
// CharacterIDs の順序は合成時の入力画像の順序（キャラクター→背景）を決定します。
type Scene struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Prompt       string   `json:"prompt"`
	CharacterIDs []string `json:"characterIds"`
	BackgroundID string   `json:"backgroundId"`
	ImageURL     string   `json:"imageUrl,omitempty"`
	Edited       bool     `json:"edited,omitempty"`
}

// NewID は新しいアーティファクトIDを生成します。生成後は不変です。
func NewID() string {
	return uuid.New().String()
}

// String はキャラクターの情報を文字列で返すのだ。
func (c Character) String() string {
	return fmt.Sprintf("%s (%s)", c.Name, c.ID)
}

// String は背景の情報を文字列で返すのだ。
func (b Background) String() string {
	return fmt.Sprintf("%s (%s)", b.Name, b.ID)
}

// String はシーンの情報を文字列で返すのだ。
func (s Scene) String() string {
	return fmt.Sprintf("%s (%s)", s.Name, s.ID)
}
