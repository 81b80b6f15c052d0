package crews

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client HTTP 客户端，用于调用单个 crew 后端服务。
// crew 内部是什么流水线（LLM 多步、沙箱工具、图像生成）对本系统完全不透明：
// 调用要么返回结果字符串，要么返回一个错误。
type Client struct {
	BaseURL    string
	Endpoint   string
	HTTPClient *http.Client
}

// runRequest crew 执行请求体
type runRequest struct {
	Task string `json:"task"`
}

// runResponse crew 执行响应体
type runResponse struct {
	Result string `json:"result"`
}

// newClient 创建 crew 客户端
func newClient(baseURL, endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &Client{
		BaseURL:  baseURL,
		Endpoint: endpoint,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewCodeCrew 代码生成 crew（Architect → Implementer → Build Sentinel → Reviewer）
func NewCodeCrew(baseURL string, timeout time.Duration) *Client {
	return newClient(baseURL, "/api/v1/crews/code/run", timeout)
}

// NewCharacterCrew 角色脚本生成 crew
func NewCharacterCrew(baseURL string, timeout time.Duration) *Client {
	return newClient(baseURL, "/api/v1/crews/character/run", timeout)
}

// NewAssetCrew 素材生成 crew（Art Director → Generator → QC → Cataloger）
func NewAssetCrew(baseURL string, timeout time.Duration) *Client {
	return newClient(baseURL, "/api/v1/crews/asset/run", timeout)
}

// Execute 同步执行一次 crew 任务
func (c *Client) Execute(ctx context.Context, payload string) (string, error) {
	url := c.BaseURL + c.Endpoint

	body, err := json.Marshal(runRequest{Task: payload})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result runResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	return result.Result, nil
}
