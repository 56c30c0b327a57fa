package genai

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	lastParams openai.ChatCompletionNewParams
	response   openai.ChatCompletion
	err        error
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.lastParams = params
	if m.err != nil {
		return openai.ChatCompletion{}, m.err
	}
	return m.response, nil
}

func completionWith(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestGeneratePromptTrimsContent(t *testing.T) {
	mock := &mockChatService{response: completionWith("  warm reply \n")}
	c := &Client{chat: mock}

	got, err := c.GeneratePrompt(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "warm reply" {
		t.Errorf("got %q, want trimmed reply", got)
	}
	if mock.lastParams.Model != DefaultChatModel {
		t.Errorf("model = %q, want %q", mock.lastParams.Model, DefaultChatModel)
	}
}

func TestGeneratePromptNoChoices(t *testing.T) {
	c := &Client{chat: &mockChatService{response: openai.ChatCompletion{}}}
	if _, err := c.GeneratePrompt(context.Background(), "s", "u"); !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned, got %v", err)
	}
}

func TestGeneratePromptPropagatesError(t *testing.T) {
	wantErr := errors.New("quota exceeded")
	c := &Client{chat: &mockChatService{err: wantErr}}
	if _, err := c.GeneratePrompt(context.Background(), "s", "u"); !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped API error, got %v", err)
	}
}

func TestClassifyUsesDeterministicSettings(t *testing.T) {
	mock := &mockChatService{response: completionWith("SAFE")}
	c := &Client{chat: mock}

	got, err := c.Classify(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "SAFE" {
		t.Errorf("got %q, want SAFE", got)
	}
	if mock.lastParams.Model != DefaultClassifyModel {
		t.Errorf("model = %q, want %q", mock.lastParams.Model, DefaultClassifyModel)
	}
	if temp := mock.lastParams.Temperature.Or(-1); temp != 0 {
		t.Errorf("temperature = %v, want 0", temp)
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Error("expected error when no API key is available")
	}
	if _, err := NewClient(WithAPIKey("sk-test")); err != nil {
		t.Errorf("unexpected error with explicit key: %v", err)
	}
}
