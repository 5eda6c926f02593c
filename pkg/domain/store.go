package domain

import (
	"fmt"
	"strings"
)

// Store は1セッション分のアーティファクト（キャラクター・背景・シーン）を
// 生成順に保持するインメモリのコレクションです。
//
// 書き込みは制御ループのマージ工程だけが行う前提（単一ライター規律）なので、
// ロックは持ちません。作成は末尾追加のみ、編集はその場での置換のみで、
// 削除は存在しません。
type Store struct {
	characters  []Character
	backgrounds []Background
	scenes      []Scene
}

// NewStore は空の Store を生成します。
func NewStore() *Store {
	return &Store{}
}

// Characters は生成順のキャラクター一覧の防御的コピーを返します。
func (s *Store) Characters() []Character {
	out := make([]Character, len(s.characters))
	copy(out, s.characters)
	return out
}

// Backgrounds は生成順の背景一覧の防御的コピーを返します。
func (s *Store) Backgrounds() []Background {
	out := make([]Background, len(s.backgrounds))
	copy(out, s.backgrounds)
	return out
}

// Scenes は生成順のシーン一覧の防御的コピーを返します。
func (s *Store) Scenes() []Scene {
	out := make([]Scene, len(s.scenes))
	copy(out, s.scenes)
	return out
}

// FindCharacter はIDでキャラクターを検索します。
func (s *Store) FindCharacter(id string) (Character, bool) {
	for _, c := range s.characters {
		if c.ID == id {
			return c, true
		}
	}
	return Character{}, false
}

// FindBackground はIDで背景を検索します。
func (s *Store) FindBackground(id string) (Background, bool) {
	for _, b := range s.backgrounds {
		if b.ID == id {
			return b, true
		}
	}
	return Background{}, false
}

// FindScene はIDでシーンを検索します。
func (s *Store) FindScene(id string) (Scene, bool) {
	for _, sc := range s.scenes {
		if sc.ID == id {
			return sc, true
		}
	}
	return Scene{}, false
}

// AppendCharacter は作成結果をコレクション末尾に追加します。
// 同じIDが既に存在する場合は重複とみなして何もしません（冪等）。
func (s *Store) AppendCharacter(c Character) bool {
	if _, ok := s.FindCharacter(c.ID); ok {
		return false
	}
	s.characters = append(s.characters, c)
	return true
}

// AppendBackground は作成結果をコレクション末尾に追加します。重複IDは無視します。
func (s *Store) AppendBackground(b Background) bool {
	if _, ok := s.FindBackground(b.ID); ok {
		return false
	}
	s.backgrounds = append(s.backgrounds, b)
	return true
}

// AppendScene は作成結果をコレクション末尾に追加します。重複IDは無視します。
func (s *Store) AppendScene(sc Scene) bool {
	if _, ok := s.FindScene(sc.ID); ok {
		return false
	}
	s.scenes = append(s.scenes, sc)
	return true
}

// ReplaceCharacter は編集結果で既存エントリをその場で上書きします。
// コレクション内の順序は保たれ、IDが見つからない場合は何もしません。
func (s *Store) ReplaceCharacter(c Character) bool {
	for i := range s.characters {
		if s.characters[i].ID == c.ID {
			s.characters[i] = c
			return true
		}
	}
	return false
}

// ReplaceBackground は編集結果で既存エントリをその場で上書きします。
func (s *Store) ReplaceBackground(b Background) bool {
	for i := range s.backgrounds {
		if s.backgrounds[i].ID == b.ID {
			s.backgrounds[i] = b
			return true
		}
	}
	return false
}

// ReplaceScene は編集結果で既存エントリをその場で上書きします。
func (s *Store) ReplaceScene(sc Scene) bool {
	for i := range s.scenes {
		if s.scenes[i].ID == sc.ID {
			s.scenes[i] = sc
			return true
		}
	}
	return false
}

// Summary はポリシー層へ渡す現在状態の短いテキスト要約を構築します。
func (s *Store) Summary() string {
	var sb strings.Builder

	sb.WriteString("Characters:\n")
	writeEntries(&sb, len(s.characters), func(i int) (string, string, string) {
		c := s.characters[i]
		return c.Name, c.ID, c.Description
	})

	sb.WriteString("\nBackgrounds:\n")
	writeEntries(&sb, len(s.backgrounds), func(i int) (string, string, string) {
		b := s.backgrounds[i]
		return b.Name, b.ID, b.Description
	})

	sb.WriteString("\nScenes:\n")
	writeEntries(&sb, len(s.scenes), func(i int) (string, string, string) {
		sc := s.scenes[i]
		return sc.Name, sc.ID, sc.Description
	})

	return sb.String()
}

func writeEntries(sb *strings.Builder, n int, at func(int) (name, id, desc string)) {
	if n == 0 {
		sb.WriteString("  None yet\n")
		return
	}
	for i := 0; i < n; i++ {
		name, id, desc := at(i)
		fmt.Fprintf(sb, "  - %s (id: %s): %s\n", name, id, desc)
	}
}
