package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shouni/go-scene-kit/pkg/domain"
)

// CreateCharacter は新しいキャラクターを画像付きで作成します。
type CreateCharacter struct {
	synth Synthesizer
}

type createCharacterArgs struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}

func (t *CreateCharacter) Name() string   { return "create_character" }
func (t *CreateCharacter) Mutating() bool { return true }

func (t *CreateCharacter) Schema() Schema {
	return Schema{
		Name:        t.Name(),
		Description: "Create a new character with an AI-generated image.",
		Parameters: map[string]any{
			"name":        stringParam("Name of the character"),
			"description": stringParam("Brief description for the user (1 sentence)"),
			"prompt":      stringParam("Image generation prompt. Always include 'on a plain white background' for clean compositing."),
		},
	}
}

// Execute はプロンプトのみで画像を生成します。検証項目はありません。
// 合成のソフト失敗時は ImageURL を空のまま成功レコードを返します。
func (t *CreateCharacter) Execute(ctx context.Context, args json.RawMessage, state StateReader, apiKey string) (*Result, error) {
	var in createCharacterArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("create_character の引数の解析に失敗しました: %w", err)
	}

	imageURL, err := t.synth.Generate(ctx, in.Prompt, nil, apiKey)
	if err != nil {
		return nil, err
	}

	return &Result{
		ID:          domain.NewID(),
		Name:        in.Name,
		Description: in.Description,
		Prompt:      in.Prompt,
		ImageURL:    imageURL,
	}, nil
}

// EditCharacter は既存キャラクターの画像を編集指示に従って描き替えます。
type EditCharacter struct {
	synth Synthesizer
}

type editCharacterArgs struct {
	CharacterID     string `json:"character_id"`
	EditDescription string `json:"edit_description"`
}

func (t *EditCharacter) Name() string   { return "edit_character" }
func (t *EditCharacter) Mutating() bool { return true }

func (t *EditCharacter) Schema() Schema {
	return Schema{
		Name:        t.Name(),
		Description: "Edit an existing character's image based on user description.",
		Parameters: map[string]any{
			"character_id":     stringParam("ID of the character to edit"),
			"edit_description": stringParam("Description of the changes to make"),
		},
	}
}

func (t *EditCharacter) Execute(ctx context.Context, args json.RawMessage, state StateReader, apiKey string) (*Result, error) {
	var in editCharacterArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("edit_character の引数の解析に失敗しました: %w", err)
	}

	char, ok := state.FindCharacter(in.CharacterID)
	if !ok {
		return Errorf("Character with id %s not found", in.CharacterID), nil
	}
	if char.ImageURL == "" {
		return Errorf("Character has no image to edit"), nil
	}

	instruction := fmt.Sprintf(
		"Edit this character image: %s. Keep the same character but apply the requested changes.",
		in.EditDescription,
	)
	editedURL, err := t.synth.Edit(ctx, char.ImageURL, instruction, apiKey)
	if err != nil {
		return nil, err
	}
	if editedURL == "" {
		return Errorf("Failed to edit image"), nil
	}

	return &Result{
		ID:          char.ID,
		Name:        char.Name,
		Description: char.Description,
		Prompt:      char.Prompt,
		ImageURL:    editedURL,
		Edited:      true,
	}, nil
}
