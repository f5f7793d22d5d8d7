package llm

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "time"

    "github.com/PrescottClub/aurawell-rag/config"
    "github.com/PrescottClub/aurawell-rag/pkg/logger"
)

// Client OpenAI 兼容的 chat completions 客户端，
// 翻译和高密度过滤共用，只是 system 指令不同。
type Client struct {
    endpoint    string
    apiKey      string
    model       string
    temperature float64
    maxRetries  int
    httpClient  *http.Client
    log         logger.Logger
}

func NewClient(log logger.Logger) (*Client, error) {
    cfg := config.GetLLMConfig()
    if err := cfg.Validate(); err != nil {
        return nil, err
    }
    return &Client{
        endpoint:    cfg.Endpoint,
        apiKey:      cfg.APIKey,
        model:       cfg.Model,
        temperature: cfg.Temperature,
        maxRetries:  cfg.MaxRetries,
        httpClient:  &http.Client{Timeout: cfg.Timeout},
        log:         log,
    }, nil
}

type chatMessage struct {
    Role    string `json:"role"`
    Content string `json:"content"`
}

type chatRequest struct {
    Model       string        `json:"model"`
    Messages    []chatMessage `json:"messages"`
    Temperature float64       `json:"temperature"`
}

type chatResponse struct {
    Choices []struct {
        Message chatMessage `json:"message"`
    } `json:"choices"`
    Error *struct {
        Message string `json:"message"`
    } `json:"error,omitempty"`
}

// Chat 发送一轮 system+user 对话，返回模型输出文本。
// 失败时带退避重试，重试次数用尽后返回最后一个错误。
func (c *Client) Chat(ctx context.Context, system, user string) (string, error) {
    var lastErr error
    for attempt := 0; attempt <= c.maxRetries; attempt++ {
        if attempt > 0 {
            select {
            case <-ctx.Done():
                return "", ctx.Err()
            case <-time.After(time.Duration(attempt) * time.Second):
            }
        }
        out, err := c.chatOnce(ctx, system, user)
        if err == nil {
            return out, nil
        }
        lastErr = err
        c.log.Warn("llm call failed",
            logger.Int("attempt", attempt+1),
            logger.Error(err),
        )
    }
    return "", lastErr
}

func (c *Client) chatOnce(ctx context.Context, system, user string) (string, error) {
    reqData, err := json.Marshal(chatRequest{
        Model: c.model,
        Messages: []chatMessage{
            {Role: "system", Content: system},
            {Role: "user", Content: user},
        },
        Temperature: c.temperature,
    })
    if err != nil {
        return "", fmt.Errorf("marshal request: %w", err)
    }

    req, err := http.NewRequestWithContext(ctx, http.MethodPost,
        c.endpoint+"/chat/completions", bytes.NewReader(reqData))
    if err != nil {
        return "", fmt.Errorf("create request: %w", err)
    }
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("Authorization", "Bearer "+c.apiKey)

    resp, err := c.httpClient.Do(req)
    if err != nil {
        return "", fmt.Errorf("send request: %w", err)
    }
    defer resp.Body.Close()

    if resp.StatusCode != http.StatusOK {
        body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
        return "", fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
    }

    var result chatResponse
    if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
        return "", fmt.Errorf("decode response: %w", err)
    }
    if result.Error != nil {
        return "", fmt.Errorf("llm error: %s", result.Error.Message)
    }
    if len(result.Choices) == 0 {
        return "", fmt.Errorf("empty choices in response")
    }
    return result.Choices[0].Message.Content, nil
}

func (c *Client) Close() error {
    c.httpClient.CloseIdleConnections()
    return nil
}
