//go:build js && wasm

package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/linenotify/internal/authz"
	"github.com/hitoshi/linenotify/internal/backend"
	"github.com/hitoshi/linenotify/internal/config"
	"github.com/hitoshi/linenotify/internal/identity"
	"github.com/hitoshi/linenotify/internal/model"
	"github.com/hitoshi/linenotify/internal/session"
)

// FetchClientConfig はホストサーバーから/config.jsonを取得する。
func FetchClientConfig(ctx context.Context, url string) (config.ClientConfig, error) {
	var cc config.ClientConfig

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return cc, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		return cc, fmt.Errorf("failed to fetch client config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return cc, fmt.Errorf("client config returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&cc); err != nil {
		return cc, fmt.Errorf("failed to decode client config: %w", err)
	}
	return cc, nil
}

// Start は設定を取得してコントローラを組み立て、ページロードを処理して描画を開始する。
// containerIDは描画先の要素のid。
func Start(ctx context.Context, containerID string, logger *slog.Logger) error {
	loc := NewLocation()

	// 1. 設定の取得
	cc, err := FetchClientConfig(ctx, loc.Origin()+"config.json")
	if err != nil {
		return err
	}
	// 再読み込み先は配信元のURLを正とする
	origin := loc.Origin()

	// 2. コントローラの組み立て
	ctrl := session.NewController(session.Deps{
		Store:   identity.NewStore(NewLocalStorage()),
		Backend: backend.NewClient(&http.Client{Timeout: cc.BackendTimeout()}, logger, cc.BackendServer),
		Authorizer: authz.NewAuthorizer(authz.Config{
			LoginClientID:  cc.LineClientID,
			NotifyClientID: cc.LineBotClientID,
			BackendBaseURL: cc.BackendServer,
			LoginAuthURL:   cc.LineAuthURL,
			NotifyAuthURL:  cc.LineNotifyAuthURL,
		}),
		Navigator: loc,
		Logger:    logger,
	}, session.Config{
		Origin:       origin,
		AutoRegister: cc.AutoRegister,
	})

	// 3. 状態が変わるたびに再描画する
	renderer := NewRenderer(ctx, containerID, ctrl)
	ctrl.OnChange(func(model.SessionState) {
		renderer.Render(ctrl.View())
	})
	renderer.Render(ctrl.View())

	// 4. ページロード（コールバックの照合を含む）
	ctrl.Load(ctx, loc.Fragment())
	return nil
}
