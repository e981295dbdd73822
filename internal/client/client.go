// Package client 实现存储控制器与计算集群的 REST 客户端
package client

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Config 客户端公共配置
type Config struct {
	// Scheme http 或 https
	Scheme string
	// Port API 端口，0 表示使用默认端口
	Port int
	// InsecureSkipVerify 跳过证书校验
	InsecureSkipVerify bool
	// Timeout 单次调用超时
	Timeout time.Duration
}

// CredentialProvider 把凭证引用解析为具体凭证
// 凭证存放机制对核心不可见，这里只消费引用
type CredentialProvider interface {
	// Resolve returns "user:password" or a bearer token for ref.
	Resolve(ref string) (string, error)
}

// EnvCredentialProvider 从环境变量解析凭证，引用即变量名
type EnvCredentialProvider struct{}

// Resolve 读取 ref 指向的环境变量
func (EnvCredentialProvider) Resolve(ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("empty credential reference")
	}
	v := os.Getenv(ref)
	if v == "" {
		return "", fmt.Errorf("credential %s not set", ref)
	}
	return v, nil
}

func newHTTPClient(cfg Config) *http.Client {
	transport := &http.Transport{}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// doJSON 执行一次 JSON 请求，非 2xx 状态码带响应体片段返回
func doJSON(client *http.Client, req *http.Request, out interface{}) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return &APIError{StatusCode: resp.StatusCode, Body: msg}
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

func jsonBody(v interface{}) (io.Reader, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// APIError 外部系统返回的非 2xx 响应
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.StatusCode, e.Body)
}

// IsNotFound 判断是否为 404
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}
