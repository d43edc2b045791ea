package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// showRequest is the body of Ollama's POST /api/show.
type showRequest struct {
	Name string `json:"name"`
}

// showResponse carries the slice of the model card we care about.
type showResponse struct {
	Capabilities []string `json:"capabilities"`
}

// SupportsTools asks the Ollama server whether the model advertises the
// tool-calling capability. Models without it still work through the
// no-tools retry path, just without catalog access.
func SupportsTools(ctx context.Context, baseURL, model string) (bool, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return false, fmt.Errorf("base url is empty")
	}

	body, err := json.Marshal(showRequest{Name: model})
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/show", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("ollama show: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("ollama show: status %d", resp.StatusCode)
	}

	var show showResponse
	if err := json.NewDecoder(resp.Body).Decode(&show); err != nil {
		return false, fmt.Errorf("ollama show: decode: %w", err)
	}
	for _, c := range show.Capabilities {
		if c == "tools" {
			return true, nil
		}
	}
	return false, nil
}
