package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shakirjon803-cell/obmen/internal/models"
)

// APIClient is a thin typed client over the chat REST endpoints. Durable
// operations (sending, fetching, marking read) go through here; the websocket
// transport only carries ephemeral signals and server pushes.
type APIClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		token:   token,
		http:    http.DefaultClient,
	}
}

// Conversations fetches the inbox list.
func (c *APIClient) Conversations(ctx context.Context) ([]models.ConversationSummary, error) {
	var out []models.ConversationSummary
	if err := c.do(ctx, http.MethodGet, "/chat/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UnreadCount fetches the session-wide unread total.
func (c *APIClient) UnreadCount(ctx context.Context) (int, error) {
	var out models.UnreadCountResponse
	if err := c.do(ctx, http.MethodGet, "/chat/unread", nil, &out); err != nil {
		return 0, err
	}
	return out.UnreadCount, nil
}

// Conversation fetches the full open-view shape for one conversation.
func (c *APIClient) Conversation(ctx context.Context, id int64) (*models.ConversationDetail, error) {
	var out models.ConversationDetail
	path := fmt.Sprintf("/chat/conversations/%d", id)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartConversation creates a conversation with a recipient, or returns the
// existing one for the pair.
func (c *APIClient) StartConversation(ctx context.Context, req models.StartConversationRequest) (*models.ConversationSummary, error) {
	var out models.ConversationSummary
	if err := c.do(ctx, http.MethodPost, "/chat/conversations", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendMessage posts a message and returns the canonical server-side entity.
func (c *APIClient) SendMessage(ctx context.Context, conversationID int64, req models.SendMessageRequest) (*models.Message, error) {
	var out models.Message
	path := fmt.Sprintf("/chat/conversations/%d/messages", conversationID)
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRead marks every message in a conversation as read.
func (c *APIClient) MarkRead(ctx context.Context, conversationID int64) error {
	path := fmt.Sprintf("/chat/conversations/%d/read", conversationID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// Block blocks a conversation.
func (c *APIClient) Block(ctx context.Context, conversationID int64) error {
	path := fmt.Sprintf("/chat/conversations/%d/block", conversationID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
