package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
)

// OllamaService implements ChatService against a local Ollama instance.
type OllamaService struct {
	baseURL string
	model   string
}

func NewOllamaService(baseURL, model string) *OllamaService {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}
	return &OllamaService{baseURL: baseURL, model: model}
}

// StreamChat streams a completion via Ollama's NDJSON chat endpoint. A line
// that fails to parse is skipped, same contract as the Gemini stream.
func (o *OllamaService) StreamChat(ctx context.Context, systemPrompt string, messages []Message, onChunk func(string) error) error {
	url := o.baseURL + "/api/chat"

	chatMessages := make([]map[string]string, 0, len(messages)+1)
	if systemPrompt != "" {
		chatMessages = append(chatMessages, map[string]string{"role": "system", "content": systemPrompt})
	}
	for _, m := range messages {
		chatMessages = append(chatMessages, map[string]string{"role": m.Role, "content": m.Content})
	}

	payload := map[string]interface{}{
		"model":    o.model,
		"messages": chatMessages,
		"stream":   true,
		"options": map[string]interface{}{
			"temperature": 0.3,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, string(respBody))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var chunk struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			Done bool `json:"done"`
		}
		if err := json.Unmarshal(line, &chunk); err != nil {
			log.Printf("[Ollama] Skipping unparseable stream line: %.80s", line)
			continue
		}
		if chunk.Message.Content != "" {
			if err := onChunk(chunk.Message.Content); err != nil {
				return err
			}
		}
		if chunk.Done {
			break
		}
	}
	return scanner.Err()
}
