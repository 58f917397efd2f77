package emotion

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teslashibe/go-sophia/pkg/inference"
	"github.com/teslashibe/go-sophia/pkg/stt"
)

// Input is the utterance to classify. Exactly one of Text or Audio is
// normally set.
type Input struct {
	Text     string
	Audio    []byte
	MIMEType string
}

// Model classifies an input into a rail with a confidence.
type Model interface {
	Name() string
	Classify(ctx context.Context, in Input) (Rail, float64, error)
}

const textPrompt = `Classify the primary emotion of the user's text.
Valid emotions: %s.
Respond with JSON: {"label": "<one emotion>", "confidence": 0.0-1.0}.`

// TextModel classifies text with a chat completion in JSON mode.
type TextModel struct {
	provider inference.Provider
	model    string
}

// NewTextModel creates a text classifier. model may be empty to use the
// provider default.
func NewTextModel(provider inference.Provider, model string) *TextModel {
	return &TextModel{provider: provider, model: model}
}

func (m *TextModel) Name() string { return "text-model" }

// Classify implements Model.
func (m *TextModel) Classify(ctx context.Context, in Input) (Rail, float64, error) {
	if strings.TrimSpace(in.Text) == "" {
		return "", 0, ErrNoInput
	}

	resp, err := m.provider.Chat(ctx, &inference.ChatRequest{
		Messages:    inference.Prompt(fmt.Sprintf(textPrompt, railList()), in.Text),
		Model:       m.model,
		MaxTokens:   50,
		Temperature: 0.1,
		JSON:        true,
	})
	if err != nil {
		return "", 0, fmt.Errorf("text model: %w", err)
	}

	var out struct {
		Label      string   `json:"label"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(stripFence(resp.Text())), &out); err != nil {
		return "", 0, fmt.Errorf("text model: decode %q: %w", resp.Text(), err)
	}

	conf := ModelConfidence
	if out.Confidence != nil && *out.Confidence > 0 {
		conf = *out.Confidence
	}
	return ParseRail(out.Label), conf, nil
}

const audioPrompt = `You are an AI system designed to classify emotions in audio files.
Analyze the provided audio and classify the primary emotion based on tone, pitch, pace, volume, and intensity.
Valid emotions: %s
Return ONLY one word from the list.`

// AudioModel classifies speech with an audio-capable provider.
type AudioModel struct {
	provider inference.Provider
	model    string
}

// NewAudioModel creates an audio classifier.
func NewAudioModel(provider inference.Provider, model string) *AudioModel {
	return &AudioModel{provider: provider, model: model}
}

func (m *AudioModel) Name() string { return "audio-model" }

// Classify implements Model. The provider gives no confidence, so
// ModelConfidence is reported. An unset MIMEType is sniffed from the
// audio.
func (m *AudioModel) Classify(ctx context.Context, in Input) (Rail, float64, error) {
	if len(in.Audio) == 0 {
		return "", 0, ErrNoInput
	}

	resp, err := m.provider.Audio(ctx, &inference.AudioRequest{
		Audio:     in.Audio,
		MIMEType:  cmp.Or(in.MIMEType, stt.Probe(in.Audio).MIMEType),
		Prompt:    fmt.Sprintf(audioPrompt, railList()),
		Model:     m.model,
		MaxTokens: 10,
	})
	if err != nil {
		return "", 0, fmt.Errorf("audio model: %w", err)
	}

	word := strings.Fields(resp.Content)
	if len(word) == 0 {
		return "", 0, fmt.Errorf("audio model: %w", inference.ErrEmptyResponse)
	}
	return ParseRail(word[0]), ModelConfidence, nil
}

func railList() string {
	names := make([]string, len(Rails))
	for i, r := range Rails {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}

// stripFence removes a markdown code fence some models wrap JSON in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
