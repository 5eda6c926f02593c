package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shouni/go-scene-kit/pkg/domain"
)

// CreateBackground は新しい背景（環境）を画像付きで作成します。
type CreateBackground struct {
	synth Synthesizer
}

type createBackgroundArgs struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}

func (t *CreateBackground) Name() string   { return "create_background" }
func (t *CreateBackground) Mutating() bool { return true }

func (t *CreateBackground) Schema() Schema {
	return Schema{
		Name:        t.Name(),
		Description: "Create a new background/environment with an AI-generated image.",
		Parameters: map[string]any{
			"name":        stringParam("Name of the background/environment"),
			"description": stringParam("Brief description for the user (1 sentence)"),
			"prompt":      stringParam("Image generation prompt (environment details, lighting, atmosphere)"),
		},
	}
}

func (t *CreateBackground) Execute(ctx context.Context, args json.RawMessage, state StateReader, apiKey string) (*Result, error) {
	var in createBackgroundArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("create_background の引数の解析に失敗しました: %w", err)
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

// EditBackground は既存背景の画像を編集指示に従って描き替えます。
type EditBackground struct {
	synth Synthesizer
}

type editBackgroundArgs struct {
	BackgroundID    string `json:"background_id"`
	EditDescription string `json:"edit_description"`
}

func (t *EditBackground) Name() string   { return "edit_background" }
func (t *EditBackground) Mutating() bool { return true }

func (t *EditBackground) Schema() Schema {
	return Schema{
		Name:        t.Name(),
		Description: "Edit an existing background's image based on user description.",
		Parameters: map[string]any{
			"background_id":    stringParam("ID of the background to edit"),
			"edit_description": stringParam("Description of the changes to make"),
		},
	}
}

func (t *EditBackground) Execute(ctx context.Context, args json.RawMessage, state StateReader, apiKey string) (*Result, error) {
	var in editBackgroundArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("edit_background の引数の解析に失敗しました: %w", err)
	}

	bg, ok := state.FindBackground(in.BackgroundID)
	if !ok {
		return Errorf("Background with id %s not found", in.BackgroundID), nil
	}
	if bg.ImageURL == "" {
		return Errorf("Background has no image to edit"), nil
	}

	instruction := fmt.Sprintf(
		"Edit this background image: %s. Keep the same environment but apply the requested changes.",
		in.EditDescription,
	)
	editedURL, err := t.synth.Edit(ctx, bg.ImageURL, instruction, apiKey)
	if err != nil {
		return nil, err
	}
	if editedURL == "" {
		return Errorf("Failed to edit image"), nil
	}

	return &Result{
		ID:          bg.ID,
		Name:        bg.Name,
		Description: bg.Description,
		Prompt:      bg.Prompt,
		ImageURL:    editedURL,
		Edited:      true,
	}, nil
}
