package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
)

const defaultModel = "gemini-2.5-flash"

type GeminiService struct {
	ApiKey string
	Model  string
}

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

func NewGeminiService(apiKey string) *GeminiService {
	return &GeminiService{ApiKey: apiKey, Model: defaultModel}
}

// StreamChat streams a completion token-by-token. Chunks arrive as SSE
// "data:" lines; a malformed line mid-stream is logged and skipped, never
// fatal.
func (g *GeminiService) StreamChat(ctx context.Context, systemPrompt string, messages []Message, onChunk func(string) error) error {
	url := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:streamGenerateContent?alt=sse&key=%s", g.Model, g.ApiKey)

	contents := make([]map[string]interface{}, 0, len(messages))
	for _, m := range messages {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, map[string]interface{}{
			"role":  role,
			"parts": []map[string]string{{"text": m.Content}},
		})
	}

	payload := map[string]interface{}{
		"contents": contents,
	}
	if systemPrompt != "" {
		payload["systemInstruction"] = map[string]interface{}{
			"parts": []map[string]string{{"text": systemPrompt}},
		}
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
		return fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("Gemini API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return ScanStream(resp.Body, onChunk)
}

// ScanStream reads an SSE body and forwards each decoded text chunk.
// Unparseable frames are skipped; only the chunk callback can abort.
func ScanStream(r io.Reader, onChunk func(string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}

		text, ok := decodeChunk(data)
		if !ok {
			log.Printf("[Gemini] Skipping unparseable stream fragment: %.80s", data)
			continue
		}
		if text == "" {
			continue
		}
		if err := onChunk(text); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func decodeChunk(data string) (string, bool) {
	var chunk struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return "", false
	}

	var sb strings.Builder
	for _, cand := range chunk.Candidates {
		for _, part := range cand.Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), true
}
