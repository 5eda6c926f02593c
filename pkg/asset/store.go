package asset

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// GeneratedPrefix は外部へ公開するURL上の生成画像ディレクトリです。
	GeneratedPrefix = "/generated/"

	// DefaultMimeType は拡張子から判別できない場合に採用する画像形式です。
	DefaultMimeType = "image/png"
)

// Store は生成された画像バイナリの永続化と、外部参照URLとローカルパスの
// 相互変換を担当します。ファイル名はランダムIDなので、並列生成でも
// 出力パスが衝突することはありません。
type Store struct {
	dir     string // 画像を保存するローカルディレクトリ
	baseURL string // 外部から解決可能なベースURL (例: http://localhost:8000)
}

// NewStore は保存先ディレクトリを作成し、Store を初期化します。
func NewStore(dir, baseURL string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("保存先ディレクトリは必須です")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("生成画像ディレクトリの作成に失敗しました: %w", err)
	}
	return &Store{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Save は画像データをランダムIDのファイル名で保存し、外部参照URLを返します。
func (s *Store) Save(data []byte, mimeType string) (string, error) {
	name := uuid.New().String() + "." + ExtForMime(mimeType)
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("画像の保存に失敗しました (path: %s): %w", path, err)
	}
	return s.baseURL + GeneratedPrefix + name, nil
}

// Overwrite は既存の参照URLが指すファイルをその場で上書きし、
// クライアント側キャッシュを無効化するためのクエリトークンを付けたURLを返します。
func (s *Store) Overwrite(imageURL string, data []byte) (string, error) {
	path, err := s.Resolve(imageURL)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("画像の上書きに失敗しました (path: %s): %w", path, err)
	}

	base := stripQuery(imageURL)
	return base + "?t=" + strconv.FormatInt(time.Now().UnixMilli(), 10), nil
}

// Read は参照URLが指す画像のバイト列と MIME タイプを読み出します。
func (s *Store) Read(imageURL string) ([]byte, string, error) {
	path, err := s.Resolve(imageURL)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("画像の読み込みに失敗しました (path: %s): %w", path, err)
	}
	return data, MimeForPath(path), nil
}

// Resolve は参照URLをローカルのファイルパスへ変換します。
// 絶対URL・/generated/ 相対パス・キャッシュバスター付きURL・素のファイル名の
// いずれも受け付けますが、解決先は常に保存ディレクトリ内に限定します。
// 区切り文字を含む参照はディレクトリ外を指し得るため拒否します。
func (s *Store) Resolve(imageURL string) (string, error) {
	base := stripQuery(imageURL)

	if s.baseURL != "" && strings.HasPrefix(base, s.baseURL) {
		base = strings.TrimPrefix(base, s.baseURL)
	}
	base = strings.TrimPrefix(base, GeneratedPrefix)

	if base == "" || strings.ContainsAny(base, `/\`) {
		return "", fmt.Errorf("不正な画像参照です: %q", imageURL)
	}
	return filepath.Join(s.dir, base), nil
}

// ExtForMime は宣言された MIME タイプから保存時の拡張子を推測します。
func ExtForMime(mimeType string) string {
	if strings.Contains(mimeType, "png") {
		return "png"
	}
	return "jpg"
}

// MimeForPath はファイルの拡張子から MIME タイプを推測します。
func MimeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return DefaultMimeType
	}
}

// stripQuery はキャッシュバスター等のクエリパラメータを取り除きます。
func stripQuery(rawURL string) string {
	if i := strings.Index(rawURL, "?"); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
