// Package backend はLINE連携バックエンド（サービスオブレコード）へのHTTPクライアントを提供する。
//
// 各操作は1回のリクエスト/レスポンスで完結し、クライアント側での再試行は行わない。
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/hitoshi/linenotify/internal/model"
)

// maxBodySize はレスポンスボディの読み取り上限。
const maxBodySize = 64 << 10

// Operation はバックエンド操作の名前。ログとメトリクスのラベルに使う。
type Operation string

const (
	OpFetchUsername Operation = "fetch_username"
	OpFetchStatus   Operation = "fetch_status"
	OpRevoke        Operation = "revoke"
	OpUnlink        Operation = "unlink"
)

// Client はバックエンドAPIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLはLINE_BACKEND_SERVERで指定するバックエンドのベースURL。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// statusResponse は {status} 形式の応答。
type statusResponse struct {
	Status *int `json:"status"`
}

// FetchUsername は識別トークンに紐づくLINEの表示名を取得する。
// GET /v1/username?userId=<id>
// ボディのテキストをそのまま返す。空文字はバックエンドに記録がないことを意味する。
func (c *Client) FetchUsername(ctx context.Context, userID string) (string, error) {
	q := url.Values{"userId": {userID}}
	body, httpStatus, err := c.do(ctx, OpFetchUsername, http.MethodGet, "/v1/username?"+q.Encode())
	if err != nil {
		return "", err
	}

	// エラーページの本文をユーザー名として扱わないよう、2xx以外は失敗とする
	if httpStatus < 200 || httpStatus > 299 {
		c.logger.Warn("バックエンドがエラーステータスを返しました",
			slog.String("op", string(OpFetchUsername)),
			slog.Int("http_status", httpStatus),
		)
		return "", fmt.Errorf("%s: %w: http status %d", OpFetchUsername, model.ErrUnexpectedResponse, httpStatus)
	}
	return string(body), nil
}

// FetchStatus はLINE Notify連携の状態コードを取得する。
// GET /v1/user/<id>/status
func (c *Client) FetchStatus(ctx context.Context, userID string) (int, error) {
	return c.doStatus(ctx, OpFetchStatus, http.MethodGet, "/v1/user/"+url.PathEscape(userID)+"/status")
}

// Revoke はLINE Notify連携を解除する。識別の紐付けは残る。
// PUT /v1/user/<id>
func (c *Client) Revoke(ctx context.Context, userID string) (int, error) {
	return c.doStatus(ctx, OpRevoke, http.MethodPut, "/v1/user/"+url.PathEscape(userID))
}

// Unlink はバックエンド上のユーザーの紐付けを削除する（ログアウト）。
// DELETE /v1/user/<id>
func (c *Client) Unlink(ctx context.Context, userID string) (int, error) {
	return c.doStatus(ctx, OpUnlink, http.MethodDelete, "/v1/user/"+url.PathEscape(userID))
}

// doStatus はリクエストを実行し、{status} を取り出す。
// バックエンドはHTTPステータスに関係なくボディで状態を返すため、ボディのみで判定する。
func (c *Client) doStatus(ctx context.Context, op Operation, method, path string) (int, error) {
	body, httpStatus, err := c.do(ctx, op, method, path)
	if err != nil {
		return 0, err
	}

	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.Warn("バックエンドの応答のパースに失敗しました",
			slog.String("op", string(op)),
			slog.Int("http_status", httpStatus),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("%s: %w: %v", op, model.ErrUnexpectedResponse, err)
	}
	if resp.Status == nil {
		return 0, fmt.Errorf("%s: %w: missing status field", op, model.ErrUnexpectedResponse)
	}

	c.logger.Debug("バックエンドの応答を受信しました",
		slog.String("op", string(op)),
		slog.Int("status", *resp.Status),
	)
	return *resp.Status, nil
}

// do はHTTPリクエストを1回だけ実行し、ボディとHTTPステータスを返す。
// エラーになるのはリクエストが完了しなかった場合のみ。
func (c *Client) do(ctx context.Context, op Operation, method, path string) ([]byte, int, error) {
	requestID := uuid.NewString()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("X-Request-Id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("バックエンドの呼び出しに失敗しました",
			slog.String("op", string(op)),
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		return nil, 0, fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, 0, fmt.Errorf("%s: failed to read response: %w", op, err)
	}

	return body, resp.StatusCode, nil
}
