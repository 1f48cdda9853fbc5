package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxResponseBytes 响应体上限
const maxResponseBytes = 1 << 20

// Client 通过 HTTP 访问 API 服务端的 UserDataService 实现
//
// Client 本身不设置超时，超时由 WithTimeout 统一施加。
type Client struct {
	baseURL  string
	hc       *http.Client
	userName string
	logger   *zap.Logger
}

// ClientOption 客户端配置项
type ClientOption func(*Client)

// WithHTTPClient 使用自定义的 http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithUserName 设置随请求发送的显示名
func WithUserName(name string) ClientOption {
	return func(c *Client) { c.userName = name }
}

// WithClientLogger 设置日志记录器
func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient 创建客户端
// baseURL 形如 "http://localhost:8080"，末尾的 "/" 会被去掉
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      http.DefaultClient,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("BackendClient")
	return c
}

var _ UserDataService = (*Client)(nil)

// GetFlags 实现 UserDataService
func (c *Client) GetFlags(ctx context.Context, userID string, keys []string) (map[string]string, error) {
	var out UserData
	if err := c.do(ctx, "getFlags", http.MethodPost, RouteGetUserData, userID, GetUserDataRequest{Keys: keys}, &out); err != nil {
		return nil, err
	}
	if out.Flags == nil {
		out.Flags = map[string]string{}
	}
	return out.Flags, nil
}

// SetFlag 实现 UserDataService
func (c *Client) SetFlag(ctx context.Context, userID, key, value string) error {
	return c.do(ctx, "setFlag", http.MethodPost, RouteUpdateUserData, userID, UpdateUserDataRequest{Key: key, Value: value}, nil)
}

// AwardExperience 实现 UserDataService
func (c *Client) AwardExperience(ctx context.Context, userID string, amount int) (int, error) {
	var out UpdateExpResponse
	if err := c.do(ctx, "awardExperience", http.MethodPost, RouteUpdateExp, userID, UpdateExpRequest{Amount: amount}, &out); err != nil {
		return 0, err
	}
	return out.Total, nil
}

// GetLeaderboard 实现 UserDataService
func (c *Client) GetLeaderboard(ctx context.Context, period Period) ([]LeaderboardEntry, error) {
	path := RouteLeaderboard + "?period=" + url.QueryEscape(string(period))
	var out []LeaderboardEntry
	if err := c.do(ctx, "getLeaderboard", http.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStatistics 实现 UserDataService
func (c *Client) UpdateStatistics(ctx context.Context, userID, name string, delta int) error {
	return c.do(ctx, "updateStatistics", http.MethodPost, RouteUpdateStatistics, userID, UpdateStatisticsRequest{Name: name, Delta: delta}, nil)
}

// UpdateItem 实现 UserDataService
func (c *Client) UpdateItem(ctx context.Context, userID, itemName string) error {
	return c.do(ctx, "updateItem", http.MethodPost, RouteUpdateItem, userID, UpdateItemRequest{ItemName: itemName}, nil)
}

// GetRack 实现 UserDataService
func (c *Client) GetRack(ctx context.Context, userID, rackID string) (*Rack, error) {
	var out Rack
	if err := c.do(ctx, "getRack", http.MethodGet, RackPath(url.PathEscape(rackID)), userID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do 发送请求并解析 {data|error} 外层结构
// out 为 nil 时忽略 data
func (c *Client) do(ctx context.Context, op, method, path, userID string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: %s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("backend: %s: build request: %w", op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set(HeaderRequestID, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
	}
	if c.userName != "" {
		req.Header.Set(HeaderUserName, c.userName)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		c.logger.Warn("请求失败", zap.String("op", op), zap.String("requestId", requestID), zap.Error(err))
		return classifyTransportError(ctx, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return classifyTransportError(ctx, op, err)
	}

	var env Envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Error
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		c.logger.Debug("服务端拒绝请求",
			zap.String("op", op),
			zap.String("requestId", requestID),
			zap.Int("status", resp.StatusCode),
			zap.String("error", msg))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return &AuthError{Op: op, Status: resp.StatusCode, Message: msg}
		}
		return &APIError{Op: op, Status: resp.StatusCode, Message: msg}
	}

	if decodeErr != nil {
		return &APIError{Op: op, Status: resp.StatusCode, Message: "malformed response: " + decodeErr.Error()}
	}
	if env.Error != "" {
		return &APIError{Op: op, Status: resp.StatusCode, Message: env.Error}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &APIError{Op: op, Status: resp.StatusCode, Message: "malformed data: " + err.Error()}
		}
	}
	return nil
}

// classifyTransportError 把传输层错误映射为 TimeoutError 或 NetworkError
func classifyTransportError(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TimeoutError{Op: op}
	}
	return &NetworkError{Op: op, Err: err}
}
