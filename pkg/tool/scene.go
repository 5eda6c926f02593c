package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shouni/go-scene-kit/pkg/domain"
)

// CreateScene はキャラクター群と背景を合成したシーンを作成します。
// 参照整合性の検証は合成クライアントを呼ぶ前に完了させます。
type CreateScene struct {
	synth Synthesizer
}

type createSceneArgs struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Prompt       string   `json:"prompt"`
	CharacterIDs []string `json:"character_ids"`
	BackgroundID string   `json:"background_id"`
}

func (t *CreateScene) Name() string   { return "create_scene" }
func (t *CreateScene) Mutating() bool { return true }

func (t *CreateScene) Schema() Schema {
	return Schema{
		Name:        t.Name(),
		Description: "Create a scene by composing characters with a background.",
		Parameters: map[string]any{
			"name":        stringParam("Name of the scene"),
			"description": stringParam("Brief description for the user (1 sentence)"),
			"prompt":      stringParam("Composition prompt, e.g. 'Place these characters in this environment naturally'"),
			"character_ids": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "List of character IDs to include in the scene",
			},
			"background_id": stringParam("ID of the background to use"),
		},
	}
}

// Execute は全キャラクターIDと背景IDが画像付きで解決できることを検証した上で、
// [キャラクター画像…, 背景画像] の順で合成を実行します。
// 検証に失敗した場合、合成クライアントは一切呼ばれません。
func (t *CreateScene) Execute(ctx context.Context, args json.RawMessage, state StateReader, apiKey string) (*Result, error) {
	var in createSceneArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("create_scene の引数の解析に失敗しました: %w", err)
	}

	var sourceURLs []string
	for _, id := range in.CharacterIDs {
		char, ok := state.FindCharacter(id)
		if !ok {
			return Errorf("Character with id %s not found", id), nil
		}
		if char.ImageURL == "" {
			return Errorf("Character '%s' has no image", char.Name), nil
		}
		sourceURLs = append(sourceURLs, char.ImageURL)
	}

	bg, ok := state.FindBackground(in.BackgroundID)
	if !ok {
		return Errorf("Background with id %s not found", in.BackgroundID), nil
	}
	if bg.ImageURL == "" {
		return Errorf("Background '%s' has no image", bg.Name), nil
	}
	sourceURLs = append(sourceURLs, bg.ImageURL)

	imageURL, err := t.synth.Generate(ctx, in.Prompt, sourceURLs, apiKey)
	if err != nil {
		return nil, err
	}

	return &Result{
		ID:           domain.NewID(),
		Name:         in.Name,
		Description:  in.Description,
		Prompt:       in.Prompt,
		CharacterIDs: in.CharacterIDs,
		BackgroundID: in.BackgroundID,
		ImageURL:     imageURL,
	}, nil
}

// EditScene は既存シーンを編集します。呼び出しごとに2つのアルゴリズムの
// どちらかを選択します：
//   - regenerate_from_sources=true: （上書き指定があればそれを使い）現在の
//     ソース画像集合を解決し直し、旧シーン画像を完全に無視して新規合成する。
//   - regenerate_from_sources=false: 既存のシーン画像そのものを編集する。
//     参照（characterIds / backgroundId）は変更しない。
type EditScene struct {
	synth Synthesizer
}

type editSceneArgs struct {
	SceneID               string   `json:"scene_id"`
	EditDescription       string   `json:"edit_description"`
	RegenerateFromSources bool     `json:"regenerate_from_sources"`
	NewCharacterIDs       []string `json:"new_character_ids"`
	NewBackgroundID       *string  `json:"new_background_id"`
}

func (t *EditScene) Name() string   { return "edit_scene" }
func (t *EditScene) Mutating() bool { return true }

func (t *EditScene) Schema() Schema {
	return Schema{
		Name:        t.Name(),
		Description: "Edit an existing scene's image. Set regenerate_from_sources=true after editing a character or background, or when adding/removing characters; false to edit the scene image directly.",
		Parameters: map[string]any{
			"scene_id":         stringParam("ID of the scene to edit"),
			"edit_description": stringParam("Changes to make (write a full composition prompt when regenerate_from_sources is true)"),
			"regenerate_from_sources": map[string]any{
				"type":        "boolean",
				"description": "Regenerate from current character/background images instead of editing the scene image",
			},
			"new_character_ids": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Optional new list of character IDs",
			},
			"new_background_id": stringParam("Optional new background ID"),
		},
	}
}

func (t *EditScene) Execute(ctx context.Context, args json.RawMessage, state StateReader, apiKey string) (*Result, error) {
	var in editSceneArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("edit_scene の引数の解析に失敗しました: %w", err)
	}

	scene, ok := state.FindScene(in.SceneID)
	if !ok {
		return Errorf("Scene with id %s not found", in.SceneID), nil
	}

	if in.RegenerateFromSources {
		return t.regenerate(ctx, in, scene, state, apiKey)
	}
	return t.editInPlace(ctx, in, scene, apiKey)
}

// regenerate は旧シーン画像を捨て、ソース画像集合から新規に合成します。
func (t *EditScene) regenerate(ctx context.Context, in editSceneArgs, scene domain.Scene, state StateReader, apiKey string) (*Result, error) {
	charIDs := scene.CharacterIDs
	if in.NewCharacterIDs != nil {
		charIDs = in.NewCharacterIDs
	}
	bgID := scene.BackgroundID
	if in.NewBackgroundID != nil {
		bgID = *in.NewBackgroundID
	}

	// 画像を持たない参照は黙って除外し、残った集合だけで合成する
	var sourceURLs []string
	for _, id := range charIDs {
		if char, ok := state.FindCharacter(id); ok && char.ImageURL != "" {
			sourceURLs = append(sourceURLs, char.ImageURL)
		}
	}
	if bg, ok := state.FindBackground(bgID); ok && bg.ImageURL != "" {
		sourceURLs = append(sourceURLs, bg.ImageURL)
	}

	if len(sourceURLs) == 0 {
		return Errorf("No source images found for regeneration"), nil
	}

	newURL, err := t.synth.Generate(ctx, in.EditDescription, sourceURLs, apiKey)
	if err != nil {
		return nil, err
	}
	if newURL == "" {
		return Errorf("Failed to regenerate scene"), nil
	}

	return &Result{
		ID:           scene.ID,
		Name:         scene.Name,
		Description:  scene.Description,
		Prompt:       in.EditDescription,
		CharacterIDs: charIDs,
		BackgroundID: bgID,
		ImageURL:     newURL,
		Edited:       true,
	}, nil
}

// editInPlace は既存のシーン画像を直接編集します（構図変更向け）。
func (t *EditScene) editInPlace(ctx context.Context, in editSceneArgs, scene domain.Scene, apiKey string) (*Result, error) {
	if scene.ImageURL == "" {
		return Errorf("Scene has no image to edit"), nil
	}

	instruction := fmt.Sprintf(
		"Edit this scene image: %s. Keep the same composition but apply the requested changes.",
		in.EditDescription,
	)
	editedURL, err := t.synth.Edit(ctx, scene.ImageURL, instruction, apiKey)
	if err != nil {
		return nil, err
	}
	if editedURL == "" {
		return Errorf("Failed to edit image"), nil
	}

	return &Result{
		ID:           scene.ID,
		Name:         scene.Name,
		Description:  scene.Description,
		Prompt:       scene.Prompt,
		CharacterIDs: scene.CharacterIDs,
		BackgroundID: scene.BackgroundID,
		ImageURL:     editedURL,
		Edited:       true,
	}, nil
}
