// Package session はクライアント側の認証・セッション状態機械を提供する。
//
// ページロードごとにIdentity Storeからトークンを読み込み、URLフラグメントの
// コールバックを1回だけ処理したうえで、バックエンドからユーザー名と購読状態を取得する。
// UIイベント（ログイン、登録、解除、ログアウト、状態確認）もここで処理する。
//
// エラーは呼び出し元へ返さず、診断ログとして出力する。
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/linenotify/internal/authz"
	"github.com/hitoshi/linenotify/internal/callback"
	"github.com/hitoshi/linenotify/internal/model"
	"github.com/hitoshi/linenotify/internal/view"
	"golang.org/x/sync/errgroup"
)

// IdentityStore は識別トークンの永続化インターフェース。
// identity.Storeが実装する。
type IdentityStore interface {
	Token() (string, error)
	SetToken(userID string) error
	Evict() error
	PendingLoginState() (string, error)
	SetPendingLoginState(state string) error
	ClearPendingLoginState() error
}

// Backend はサービスオブレコードへの操作のインターフェース。
// backend.Clientが実装する。
type Backend interface {
	FetchUsername(ctx context.Context, userID string) (string, error)
	FetchStatus(ctx context.Context, userID string) (int, error)
	Revoke(ctx context.Context, userID string) (int, error)
	Unlink(ctx context.Context, userID string) (int, error)
}

// Authorizer は認可リダイレクトURLの生成インターフェース。
// authz.Authorizerが実装する。
type Authorizer interface {
	LoginURL(state, nonce string) (string, error)
	NotifyURL(userID string) (string, error)
}

// Navigator は現在のページを別のURLへ遷移させる。
// ブラウザではwindow.location、端末クライアントではURLの表示になる。
type Navigator interface {
	Navigate(url string)
}

// Config はコントローラの設定。
type Config struct {
	// Origin はフラグメントを取り除いた再読み込み先（アプリのオリジン）。
	Origin string
	// AutoRegister が有効な場合、ログイン直後にLINE Notify連携へ進む。
	AutoRegister bool
}

// Deps はコントローラの依存関係。
type Deps struct {
	Store      IdentityStore
	Backend    Backend
	Authorizer Authorizer
	Navigator  Navigator
	Logger     *slog.Logger
	// NewToken はstate/nonceの生成関数。nilの場合はauthz.NewRandomTokenを使う。
	NewToken func() (string, error)
}

// Controller はセッション状態を所有し、イベントを処理する。
//
// ユーザー名と状態の取得は別々のgoroutineで並行に行われるため、状態はmuで保護する。
// generationは識別トークンが変わるたびに増え、発行時と異なる世代の応答は破棄される。
type Controller struct {
	store      IdentityStore
	backend    Backend
	authorizer Authorizer
	navigator  Navigator
	logger     *slog.Logger
	newToken   func() (string, error)
	config     Config

	mu         sync.Mutex
	state      model.SessionState
	generation uint64
	onChange   func(model.SessionState)
}

// NewController はControllerを生成する。
func NewController(deps Deps, config Config) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newToken := deps.NewToken
	if newToken == nil {
		newToken = authz.NewRandomToken
	}
	return &Controller{
		store:      deps.Store,
		backend:    deps.Backend,
		authorizer: deps.Authorizer,
		navigator:  deps.Navigator,
		logger:     logger,
		newToken:   newToken,
		config:     config,
	}
}

// OnChange は状態が変わるたびに呼ばれる関数を登録する。
// 関数はロックの外で、変更後のスナップショットを受け取る。
func (c *Controller) OnChange(fn func(model.SessionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Snapshot は現在のセッション状態のコピーを返す。
func (c *Controller) Snapshot() model.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Load はページロードを処理する。
// フラグメントを分類してからコールバックを照合し、終端のDirectiveを実行して返す。
// コールバックがなくトークンがある場合はユーザー名と状態を取得する。
func (c *Controller) Load(ctx context.Context, fragment string) Directive {
	// 1. 状態を変更する前に現在のナビゲーションを分類する
	env := callback.Parse(fragment)

	c.logger.Info("page load",
		slog.String("event", string(model.EventPageLoad)),
		slog.String("callback", env.Kind.String()),
	)

	// 2. Identity Storeからトークンを読み込む
	c.reloadToken(ctx)

	// 3. コールバックを1回だけ照合する
	var d Directive
	switch env.Kind {
	case callback.KindLineLogin:
		d = c.reconcileLogin(ctx, env)
	case callback.KindLineBot:
		c.CheckStatus(ctx)
		d = c.reload()
	default:
		// 4. 定常状態: ユーザー名と状態を並行に取得する
		if c.Snapshot().HasToken() {
			c.Refresh(ctx)
		}
		d = none()
	}

	c.execute(d)
	return d
}

// Refresh はユーザー名と購読状態を並行に取得する。
// 2つの取得は互いに別のフィールドだけを書き換えるため、完了順序は問わない。
func (c *Controller) Refresh(ctx context.Context) {
	var g errgroup.Group
	g.Go(func() error {
		c.RefreshUsername(ctx)
		return nil
	})
	g.Go(func() error {
		c.CheckStatus(ctx)
		return nil
	})
	_ = g.Wait()
}

// Handle はUIイベントを対応する操作に振り分ける。
func (c *Controller) Handle(ctx context.Context, ev model.Event) {
	switch ev {
	case model.EventLogin:
		c.Login(ctx)
	case model.EventLogout:
		c.Logout(ctx)
	case model.EventRegister:
		c.Register(ctx)
	case model.EventRevoke:
		c.Revoke(ctx)
	case model.EventCheckStatus:
		c.CheckStatus(ctx)
	default:
		c.logger.Warn("unsupported event", slog.String("event", string(ev)))
	}
}

// reloadToken はIdentity Storeからトークンを読み直してセッションに反映する。
func (c *Controller) reloadToken(ctx context.Context) {
	token, err := c.store.Token()
	if err != nil {
		c.diagnose(ctx, model.NewUnexpectedResponseError("read identity store", err))
		token = ""
	}
	c.mu.Lock()
	if token != c.state.UserID {
		c.replaceTokenLocked(token)
	}
	c.mu.Unlock()
	c.notify()
}

// replaceTokenLocked はトークンを差し替え、トークンに依存する派生状態をリセットする。
// 呼び出し元がmuを保持していること。
func (c *Controller) replaceTokenLocked(token string) {
	c.state = model.SessionState{UserID: token}
	c.generation++
}

// begin はトークンと現在の世代を返す。トークンがない場合は診断を出してok=falseを返す。
func (c *Controller) begin(ctx context.Context, ev model.Event) (userID string, gen uint64, ok bool) {
	c.mu.Lock()
	userID, gen = c.state.UserID, c.generation
	c.mu.Unlock()

	if userID == "" {
		c.diagnose(ctx, model.NewNotLoggedInError(string(ev)))
		return "", 0, false
	}
	return userID, gen, true
}

// apply は発行時と同じ世代の場合だけ状態を更新する。
// 世代が変わっていた場合は古い応答として破棄し、falseを返す。
func (c *Controller) apply(ctx context.Context, ev model.Event, gen uint64, fn func(s *model.SessionState)) bool {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.logger.LogAttrs(ctx, slog.LevelDebug, "stale response ignored",
			slog.String("event", string(ev)),
		)
		return false
	}
	fn(&c.state)
	c.mu.Unlock()

	c.notify()
	return true
}

// evictLocked はIdentity Storeとセッションからトークンを削除する。
// 呼び出し元がmuを保持していること。
func (c *Controller) evictLocked(ctx context.Context) {
	if err := c.store.Evict(); err != nil {
		c.diagnose(ctx, model.NewUnexpectedResponseError("evict identity token", err))
	}
	c.replaceTokenLocked("")
}

// notify は登録済みのOnChange関数をロックの外で呼び出す。
func (c *Controller) notify() {
	c.mu.Lock()
	fn, snapshot := c.onChange, c.state
	c.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
}

// diagnose は診断ログを出力する。UIへはエラーを伝えない。
func (c *Controller) diagnose(ctx context.Context, err *model.ClientError) {
	level := slog.LevelWarn
	if err.Category == model.CategoryGuard {
		level = slog.LevelInfo
	}
	c.logger.LogAttrs(ctx, level, err.Message,
		slog.String("diagnostic", err.Category),
		slog.String("code", err.Code),
	)
}

// View は現在の状態から表示内容を導出する。
func (c *Controller) View() view.Model {
	return view.Build(c.Snapshot())
}
