// Package service 对接外部模型服务，目前提供基于 KServe 协议的文本编码器。
package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/graphrec/core"
)

// KServe 协议版本。
const (
	KServeV1 = "v1"
	KServeV2 = "v2"
)

// KServeConfig 是文本编码服务的连接参数。Endpoint 为空表示不启用。
type KServeConfig struct {
	Endpoint  string        `koanf:"endpoint" json:"endpoint"` // 根地址，如 http://localhost:8080
	ModelName string        `koanf:"model" json:"model"`
	Version   string        `koanf:"version" json:"version"`   // 可选，V2 路径中会带 /versions/{version}
	Protocol  string        `koanf:"protocol" json:"protocol"` // v1 / v2，默认 v2
	Timeout   time.Duration `koanf:"timeout" json:"timeout"`
	Auth      AuthConfig    `koanf:"auth" json:"-"`
}

// AuthConfig 认证配置
type AuthConfig struct {
	Type     string `koanf:"type"` // basic / bearer / api_key
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Token    string `koanf:"token"`
	APIKey   string `koanf:"api_key"`
}

// KServeEmbedder 通过 KServe 推理服务把查询文本编码为内容空间向量。
//
// V1：POST /v1/models/{model}:predict，请求 {"instances": [text]}，响应 {"predictions": [[...]]}
// V2：POST /v2/models/{model}[/versions/{v}]/infer，输入为 BYTES 张量，取第一个输出张量
type KServeEmbedder struct {
	cfg        KServeConfig
	httpClient *http.Client
}

// NewKServeEmbedder 创建编码器，client 为 nil 时按 cfg.Timeout 新建。
func NewKServeEmbedder(cfg KServeConfig, client *http.Client) (*KServeEmbedder, error) {
	if cfg.Endpoint == "" || cfg.ModelName == "" {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "kserve: endpoint and model are required")
	}
	switch cfg.Protocol {
	case "":
		cfg.Protocol = KServeV2
	case KServeV1, KServeV2:
	default:
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "kserve: unknown protocol "+cfg.Protocol)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &KServeEmbedder{cfg: cfg, httpClient: client}, nil
}

// Embed 实现 core.TextEmbedder。
func (c *KServeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if c.cfg.Protocol == KServeV1 {
		var out struct {
			Predictions [][]float64 `json:"predictions"`
		}
		url := fmt.Sprintf("%s/v1/models/%s:predict", c.cfg.Endpoint, c.cfg.ModelName)
		if err := c.post(ctx, url, map[string]any{"instances": []string{text}}, &out); err != nil {
			return nil, err
		}
		if len(out.Predictions) == 0 || len(out.Predictions[0]) == 0 {
			return nil, fmt.Errorf("kserve v1: empty predictions")
		}
		return out.Predictions[0], nil
	}

	path := fmt.Sprintf("%s/v2/models/%s", c.cfg.Endpoint, c.cfg.ModelName)
	if c.cfg.Version != "" {
		path += "/versions/" + c.cfg.Version
	}
	body := map[string]any{
		"inputs": []map[string]any{{
			"name":     "text",
			"shape":    []int{1},
			"datatype": "BYTES",
			"data":     []string{text},
		}},
	}
	var out struct {
		Outputs []struct {
			Name string    `json:"name"`
			Data []float64 `json:"data"`
		} `json:"outputs"`
	}
	if err := c.post(ctx, path+"/infer", body, &out); err != nil {
		return nil, err
	}
	if len(out.Outputs) == 0 || len(out.Outputs[0].Data) == 0 {
		return nil, fmt.Errorf("kserve v2: empty outputs")
	}
	return out.Outputs[0].Data, nil
}

func (c *KServeEmbedder) post(ctx context.Context, url string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("kserve marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("kserve create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.addAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.WrapDomainError(core.ModuleEngine, core.ErrorCodeUnavailable, "kserve request", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("kserve read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return core.NewDomainError(core.ModuleEngine, core.ErrorCodeUnavailable,
			fmt.Sprintf("kserve status=%d body=%s", resp.StatusCode, bytes.TrimSpace(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("kserve parse response: %w", err)
	}
	return nil
}

// Health 检查服务就绪。V1 使用 GET /v1/models/{model}，V2 使用 GET /v2/health/ready。
func (c *KServeEmbedder) Health(ctx context.Context) error {
	url := c.cfg.Endpoint + "/v2/health/ready"
	if c.cfg.Protocol == KServeV1 {
		url = fmt.Sprintf("%s/v1/models/%s", c.cfg.Endpoint, c.cfg.ModelName)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	c.addAuth(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.WrapDomainError(core.ModuleEngine, core.ErrorCodeUnavailable, "kserve health", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return core.NewDomainError(core.ModuleEngine, core.ErrorCodeUnavailable, fmt.Sprintf("kserve health status=%d", resp.StatusCode))
	}
	return nil
}

func (c *KServeEmbedder) addAuth(req *http.Request) {
	a := c.cfg.Auth
	switch a.Type {
	case "basic":
		req.SetBasicAuth(a.Username, a.Password)
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+a.Token)
	case "api_key":
		req.Header.Set("X-API-Key", a.APIKey)
	}
}

var _ core.TextEmbedder = (*KServeEmbedder)(nil)
