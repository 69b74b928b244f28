//go:build !js

package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/hitoshi/linenotify/internal/authz"
	"github.com/hitoshi/linenotify/internal/backend"
	"github.com/hitoshi/linenotify/internal/config"
	"github.com/hitoshi/linenotify/internal/identity"
	"github.com/hitoshi/linenotify/internal/model"
	"github.com/hitoshi/linenotify/internal/session"
	"github.com/hitoshi/linenotify/internal/view"
)

// clientActions は端末クライアントのアクションとUIイベントの対応。
// show と callback はページロードとして扱うため含めない。
var clientActions = map[string]model.Event{
	"login":    model.EventLogin,
	"register": model.EventRegister,
	"status":   model.EventCheckStatus,
	"revoke":   model.EventRevoke,
	"logout":   model.EventLogout,
}

// printNavigator は遷移先URLを端末に表示するNavigator。
type printNavigator struct {
	out io.Writer
}

func (n printNavigator) Navigate(url string) {
	fmt.Fprintf(n.out, "open: %s\n", url)
}

// runClient は端末クライアントとしてアクションを1つ実行し、結果の表示内容を出力する。
// 識別トークンはSTATE_DIR配下のbboltファイルに保存する。
//
//	client show
//	client login
//	client callback '#callback=line&userid=U...'
//	client register | status | revoke | logout
func runClient(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("client action is required: show, login, callback, register, status, revoke, logout")
	}
	action := args[0]

	// 1. 永続化ストアを開く
	storage, err := identity.OpenBoltStorage(filepath.Join(cfg.StateDir, "identity.db"))
	if err != nil {
		return fmt.Errorf("failed to open identity store: %w", err)
	}
	defer storage.Close()

	// 2. コントローラの組み立て
	ctrl := newClientController(cfg, identity.NewStore(storage), printNavigator{out: out})

	// 3. アクションの実行
	switch action {
	case "show":
		ctrl.Load(ctx, "")
	case "callback":
		if len(args) < 2 {
			return fmt.Errorf("callback requires a URL fragment")
		}
		d := ctrl.Load(ctx, fragmentOf(args[1]))
		// ブラウザの再読み込みと同じく、フラグメントなしで読み込み直す
		if d.Kind == session.DirectiveReload {
			ctrl.Load(ctx, "")
		}
	default:
		ev, ok := clientActions[action]
		if !ok {
			return fmt.Errorf("unknown client action: %s", action)
		}
		if ev != model.EventLogin {
			ctrl.Load(ctx, "")
		}
		ctrl.Handle(ctx, ev)
	}

	printView(out, ctrl.View())
	return nil
}

// newClientController は設定からセッションコントローラを組み立てる。
func newClientController(cfg *config.Config, store *identity.Store, nav session.Navigator) *session.Controller {
	httpClient := &http.Client{Timeout: cfg.BackendTimeout}

	return session.NewController(session.Deps{
		Store:   store,
		Backend: backend.NewClient(httpClient, slog.Default(), cfg.BackendServer),
		Authorizer: authz.NewAuthorizer(authz.Config{
			LoginClientID:  cfg.LineClientID,
			NotifyClientID: cfg.LineBotClientID,
			BackendBaseURL: cfg.BackendServer,
			LoginAuthURL:   cfg.LineAuthURL,
			NotifyAuthURL:  cfg.LineNotifyAuthURL,
		}),
		Navigator: nav,
		Logger:    slog.Default(),
	}, session.Config{
		Origin:       cfg.Origin(),
		AutoRegister: cfg.AutoRegister(),
	})
}

// fragmentOf はURL全体が渡された場合にフラグメント部分だけを取り出す。
func fragmentOf(s string) string {
	if _, frag, ok := strings.Cut(s, "#"); ok {
		return frag
	}
	return s
}

// printView は表示内容をテキストで出力する。
func printView(out io.Writer, m view.Model) {
	if m.Authenticated {
		fmt.Fprintf(out, "user:    %s\n", m.Username)
		status := m.StatusLabel
		if status == "" {
			status = "-"
		}
		fmt.Fprintf(out, "status:  %s\n", status)
	} else {
		fmt.Fprintln(out, "user:    (not logged in)")
	}

	actions := make([]string, 0, len(m.Affordances))
	for _, a := range m.Affordances {
		actions = append(actions, string(a.Event))
	}
	fmt.Fprintf(out, "actions: %s\n", strings.Join(actions, ", "))
}
