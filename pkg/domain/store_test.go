package domain

import (
	"strings"
	"testing"
)

func TestStore_AppendCharacter(t *testing.T) {
	s := NewStore()

	t.Run("新規IDは追加されること", func(t *testing.T) {
		if !s.AppendCharacter(Character{ID: "c1", Name: "騎士"}) {
			t.Fatal("新規IDの追加が拒否されました")
		}
		if len(s.Characters()) != 1 {
			t.Errorf("期待値 1, 実際の値 %d", len(s.Characters()))
		}
	})

	t.Run("重複IDは無視されること", func(t *testing.T) {
		if s.AppendCharacter(Character{ID: "c1", Name: "別の騎士"}) {
			t.Error("重複IDの追加が受理されてしまいました")
		}
		chars := s.Characters()
		if len(chars) != 1 {
			t.Fatalf("期待値 1, 実際の値 %d", len(chars))
		}
		if chars[0].Name != "騎士" {
			t.Errorf("既存エントリが上書きされています: %s", chars[0].Name)
		}
	})
}

func TestStore_ReplaceCharacter(t *testing.T) {
	s := NewStore()
	s.AppendCharacter(Character{ID: "c1", Name: "騎士"})
	s.AppendCharacter(Character{ID: "c2", Name: "魔法使い"})

	t.Run("存在しないIDの置換はノーオペであること", func(t *testing.T) {
		if s.ReplaceCharacter(Character{ID: "missing", Name: "幽霊"}) {
			t.Error("存在しないIDの置換が成功扱いになっています")
		}
		if len(s.Characters()) != 2 {
			t.Errorf("コレクションが変化しています: %d 件", len(s.Characters()))
		}
	})

	t.Run("置換しても順序が保たれること", func(t *testing.T) {
		if !s.ReplaceCharacter(Character{ID: "c1", Name: "騎士", Edited: true}) {
			t.Fatal("既存IDの置換に失敗しました")
		}
		chars := s.Characters()
		if chars[0].ID != "c1" || chars[1].ID != "c2" {
			t.Errorf("順序が崩れました: %v, %v", chars[0].ID, chars[1].ID)
		}
		if !chars[0].Edited {
			t.Error("置換後の内容が反映されていません")
		}
	})
}

func TestStore_SceneCollection(t *testing.T) {
	s := NewStore()
	sc := Scene{ID: "s1", Name: "決闘", CharacterIDs: []string{"c1", "c2"}, BackgroundID: "b1"}

	if !s.AppendScene(sc) {
		t.Fatal("シーンの追加に失敗しました")
	}
	if s.AppendScene(sc) {
		t.Error("重複シーンが追加されてしまいました")
	}

	got, ok := s.FindScene("s1")
	if !ok {
		t.Fatal("追加したシーンが見つかりません")
	}
	if len(got.CharacterIDs) != 2 || got.BackgroundID != "b1" {
		t.Errorf("参照IDが保持されていません: %+v", got)
	}
}

func TestStore_Summary(t *testing.T) {
	t.Run("空の状態では None yet が並ぶこと", func(t *testing.T) {
		got := NewStore().Summary()
		if strings.Count(got, "None yet") != 3 {
			t.Errorf("None yet が3回出現しません:\n%s", got)
		}
	})

	t.Run("登録済みアーティファクトが列挙されること", func(t *testing.T) {
		s := NewStore()
		s.AppendCharacter(Character{ID: "c1", Name: "騎士", Description: "白背景の騎士"})
		s.AppendBackground(Background{ID: "b1", Name: "中庭", Description: "城の中庭"})

		got := s.Summary()
		if !strings.Contains(got, "- 騎士 (id: c1): 白背景の騎士") {
			t.Errorf("キャラクターの要約が欠けています:\n%s", got)
		}
		if !strings.Contains(got, "- 中庭 (id: b1): 城の中庭") {
			t.Errorf("背景の要約が欠けています:\n%s", got)
		}
		if !strings.Contains(got, "Scenes:\n  None yet") {
			t.Errorf("空のシーン要約が欠けています:\n%s", got)
		}
	})
}

func TestStore_DefensiveCopies(t *testing.T) {
	s := NewStore()
	s.AppendCharacter(Character{ID: "c1", Name: "騎士"})

	chars := s.Characters()
	chars[0].Name = "改変"

	if got, _ := s.FindCharacter("c1"); got.Name != "騎士" {
		t.Error("Characters() の戻り値経由で内部状態が書き換わっています")
	}
}
