package models

import (
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestMessagePreview(t *testing.T) {
	tests := []struct {
		name    string
		message Message
		want    string
	}{
		{
			name:    "text message",
			message: Message{Content: strPtr("hello"), MessageType: MessageTypeText},
			want:    "hello",
		},
		{
			name:    "image without caption",
			message: Message{ImageURL: strPtr("https://cdn.example.com/a.jpg"), MessageType: MessageTypeImage},
			want:    "[Image]",
		},
		{
			name:    "empty content falls back to image marker",
			message: Message{Content: strPtr(""), ImageURL: strPtr("https://cdn.example.com/a.jpg")},
			want:    "[Image]",
		},
		{
			name:    "long content truncated to 200",
			message: Message{Content: strPtr(strings.Repeat("a", 300))},
			want:    strings.Repeat("a", 200),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.message.Preview(); got != tt.want {
				t.Errorf("Preview() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSendMessageRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     SendMessageRequest
		wantErr bool
	}{
		{"text only", SendMessageRequest{Content: strPtr("hi")}, false},
		{"image only", SendMessageRequest{ImageURL: strPtr("https://cdn.example.com/a.jpg")}, false},
		{"both", SendMessageRequest{Content: strPtr("look"), ImageURL: strPtr("https://cdn.example.com/a.jpg")}, false},
		{"neither", SendMessageRequest{}, true},
		{"empty strings", SendMessageRequest{Content: strPtr(""), ImageURL: strPtr("")}, true},
		{"content too long", SendMessageRequest{Content: strPtr(strings.Repeat("x", 4001))}, true},
		{"content at limit", SendMessageRequest{Content: strPtr(strings.Repeat("x", 4000))}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
