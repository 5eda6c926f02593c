package asset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStore_Save(t *testing.T) {
	s, err := NewStore(t.TempDir(), "http://localhost:8000")
	if err != nil {
		t.Fatalf("Store の初期化に失敗しました: %v", err)
	}

	t.Run("PNGはpng拡張子で保存されること", func(t *testing.T) {
		url, err := s.Save([]byte("png-bytes"), "image/png")
		if err != nil {
			t.Fatalf("保存に失敗しました: %v", err)
		}
		if !strings.HasPrefix(url, "http://localhost:8000/generated/") {
			t.Errorf("URLの形式が不正です: %s", url)
		}
		if !strings.HasSuffix(url, ".png") {
			t.Errorf("拡張子がpngではありません: %s", url)
		}
	})

	t.Run("未知のMIMEタイプはjpgにフォールバックすること", func(t *testing.T) {
		url, err := s.Save([]byte("jpg-bytes"), "image/webp")
		if err != nil {
			t.Fatalf("保存に失敗しました: %v", err)
		}
		if !strings.HasSuffix(url, ".jpg") {
			t.Errorf("拡張子がjpgではありません: %s", url)
		}
	})

	t.Run("連続保存でファイル名が衝突しないこと", func(t *testing.T) {
		url1, _ := s.Save([]byte("a"), "image/png")
		url2, _ := s.Save([]byte("b"), "image/png")
		if url1 == url2 {
			t.Errorf("同一の出力パスが生成されました: %s", url1)
		}
	})
}

func TestStore_Resolve(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, "http://localhost:8000")
	if err != nil {
		t.Fatalf("Store の初期化に失敗しました: %v", err)
	}

	cases := []struct {
		name string
		url  string
		want string
	}{
		{"絶対URL", "http://localhost:8000/generated/abc.png", filepath.Join(dir, "abc.png")},
		{"相対パス", "/generated/abc.png", filepath.Join(dir, "abc.png")},
		{"キャッシュバスター付き", "http://localhost:8000/generated/abc.png?t=12345", filepath.Join(dir, "abc.png")},
		{"素のファイル名", "abc.png", filepath.Join(dir, "abc.png")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.Resolve(tc.url)
			if err != nil {
				t.Fatalf("解決に失敗しました: %v", err)
			}
			if got != tc.want {
				t.Errorf("期待値 %s, 実際の値 %s", tc.want, got)
			}
		})
	}

	t.Run("ディレクトリトラバーサルを拒否すること", func(t *testing.T) {
		if _, err := s.Resolve("/generated/../secret.png"); err == nil {
			t.Error("不正な参照がエラーになりません")
		}
	})

	t.Run("保存ディレクトリ外の参照を拒否すること", func(t *testing.T) {
		for _, url := range []string{
			"/etc/passwd",
			"../outside.png",
			"http://evil.example.com/generated/abc.png",
			`..\outside.png`,
		} {
			if _, err := s.Resolve(url); err == nil {
				t.Errorf("ディレクトリ外の参照 %q がエラーになりません", url)
			}
		}
	})
}

func TestStore_Overwrite(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, "http://localhost:8000")
	if err != nil {
		t.Fatalf("Store の初期化に失敗しました: %v", err)
	}

	url, err := s.Save([]byte("original"), "image/png")
	if err != nil {
		t.Fatalf("保存に失敗しました: %v", err)
	}

	newURL, err := s.Overwrite(url, []byte("edited"))
	if err != nil {
		t.Fatalf("上書きに失敗しました: %v", err)
	}

	if !strings.HasPrefix(newURL, url) || !strings.Contains(newURL, "?t=") {
		t.Errorf("キャッシュバスターが付与されていません: %s", newURL)
	}

	path, _ := s.Resolve(url)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("上書き後の読み込みに失敗しました: %v", err)
	}
	if string(data) != "edited" {
		t.Errorf("同一パスの上書きになっていません: %s", string(data))
	}
}

func TestStore_Read(t *testing.T) {
	s, err := NewStore(t.TempDir(), "http://localhost:8000")
	if err != nil {
		t.Fatalf("Store の初期化に失敗しました: %v", err)
	}

	t.Run("保存した画像を読み戻せること", func(t *testing.T) {
		url, _ := s.Save([]byte("payload"), "image/png")
		data, mime, err := s.Read(url)
		if err != nil {
			t.Fatalf("読み込みに失敗しました: %v", err)
		}
		if string(data) != "payload" {
			t.Errorf("内容が一致しません: %s", string(data))
		}
		if mime != "image/png" {
			t.Errorf("期待値 image/png, 実際の値 %s", mime)
		}
	})

	t.Run("存在しない参照はエラーになること", func(t *testing.T) {
		if _, _, err := s.Read("/generated/ghost.png"); err == nil {
			t.Error("存在しないファイルの読み込みがエラーになりません")
		}
	})
}
