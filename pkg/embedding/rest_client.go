package embedding

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net/http"

    "github.com/PrescottClub/aurawell-rag/config"
)

// restClient OpenAI 兼容的 embeddings API 客户端，
// DashScope 的兼容模式走同一协议。
type restClient struct {
    endpoint   string
    apiKey     string
    model      string
    dimensions int
    client     *http.Client
}

func newRESTClient(cfg *config.EmbeddingConfig) *restClient {
    return &restClient{
        endpoint:   cfg.Endpoint,
        apiKey:     cfg.APIKey,
        model:      cfg.Model,
        dimensions: cfg.Dimensions,
        client:     &http.Client{Timeout: cfg.Timeout},
    }
}

type embeddingRequest struct {
    Input      []string `json:"input"`
    Model      string   `json:"model"`
    Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
    Data []struct {
        Embedding []float32 `json:"embedding"`
        Index     int       `json:"index"`
    } `json:"data"`
}

func (c *restClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
    if len(texts) == 0 {
        return nil, nil
    }

    reqBody, err := json.Marshal(embeddingRequest{
        Input:      texts,
        Model:      c.model,
        Dimensions: c.dimensions,
    })
    if err != nil {
        return nil, fmt.Errorf("marshal request: %w", err)
    }

    httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
        c.endpoint+"/embeddings", bytes.NewReader(reqBody))
    if err != nil {
        return nil, fmt.Errorf("create request: %w", err)
    }
    httpReq.Header.Set("Content-Type", "application/json")
    httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

    resp, err := c.client.Do(httpReq)
    if err != nil {
        return nil, fmt.Errorf("send request: %w", err)
    }
    defer resp.Body.Close()

    body, err := io.ReadAll(resp.Body)
    if err != nil {
        return nil, fmt.Errorf("read response: %w", err)
    }
    if resp.StatusCode != http.StatusOK {
        return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
    }

    var apiResp embeddingResponse
    if err := json.Unmarshal(body, &apiResp); err != nil {
        return nil, fmt.Errorf("parse response: %w", err)
    }
    if len(apiResp.Data) != len(texts) {
        return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(apiResp.Data))
    }

    embeddings := make([][]float32, len(texts))
    for _, data := range apiResp.Data {
        if data.Index < 0 || data.Index >= len(texts) {
            return nil, fmt.Errorf("invalid embedding index: %d", data.Index)
        }
        embeddings[data.Index] = data.Embedding
    }
    return embeddings, nil
}

func (c *restClient) Dimensions() int {
    return c.dimensions
}
