package session

import (
	"context"
	"log/slog"

	"github.com/hitoshi/linenotify/internal/callback"
	"github.com/hitoshi/linenotify/internal/model"
)

// reconcileLogin はLINEログイン完了のコールバックを照合する。
// トークンを保存し、自動登録が有効ならLINE Notify連携へ、そうでなければオリジンへ再読み込みする。
func (c *Controller) reconcileLogin(ctx context.Context, env callback.Envelope) Directive {
	if env.UserID == "" {
		c.diagnose(ctx, model.NewMissingUserIDError())
		return c.reload()
	}

	// 1. バックエンドがstateを返した場合のみ、保留中の値と照合する
	pending, err := c.store.PendingLoginState()
	if err != nil {
		c.diagnose(ctx, model.NewUnexpectedResponseError("read pending login state", err))
	}
	if err := c.store.ClearPendingLoginState(); err != nil {
		c.diagnose(ctx, model.NewUnexpectedResponseError("clear pending login state", err))
	}
	if env.State != "" && env.State != pending {
		c.diagnose(ctx, model.NewStateMismatchError())
		return c.reload()
	}

	// 2. トークンを保存し、ストアから読み直す
	if err := c.store.SetToken(env.UserID); err != nil {
		c.diagnose(ctx, model.NewUnexpectedResponseError("save identity token", err))
		return c.reload()
	}
	c.reloadToken(ctx)

	c.logger.Info("identity token saved",
		slog.String("event", string(model.EventCallback)),
		slog.String("callback", env.Kind.String()),
	)

	// 3. 自動登録が有効ならそのままLINE Notify連携の認可へ進む
	if c.config.AutoRegister {
		url, err := c.authorizer.NotifyURL(env.UserID)
		if err != nil {
			c.diagnose(ctx, model.NewUnexpectedResponseError("build notify url", err))
			return c.reload()
		}
		return redirect(url)
	}

	return c.reload()
}

// Login はLINEログインの認可ページへ遷移する。
// stateとnonceは毎回生成し、stateはコールバック照合用に保存する。
func (c *Controller) Login(ctx context.Context) {
	c.logger.Info("start LINE login", slog.String("event", string(model.EventLogin)))

	state, err := c.newToken()
	if err != nil {
		c.diagnose(ctx, model.NewUnexpectedResponseError("generate state", err))
		return
	}
	nonce, err := c.newToken()
	if err != nil {
		c.diagnose(ctx, model.NewUnexpectedResponseError("generate nonce", err))
		return
	}

	if err := c.store.SetPendingLoginState(state); err != nil {
		// 保存できなくてもログインは続行する。照合はバックエンドがstateを返す場合のみ
		c.diagnose(ctx, model.NewUnexpectedResponseError("save pending login state", err))
	}

	url, err := c.authorizer.LoginURL(state, nonce)
	if err != nil {
		c.diagnose(ctx, model.NewUnexpectedResponseError("build login url", err))
		return
	}
	c.execute(redirect(url))
}

// Register はLINE Notify連携の認可ページへ遷移する。
// stateに識別トークンを渡すため、ログイン済みでなければ何もしない。
func (c *Controller) Register(ctx context.Context) {
	userID, _, ok := c.begin(ctx, model.EventRegister)
	if !ok {
		return
	}

	url, err := c.authorizer.NotifyURL(userID)
	if err != nil {
		c.diagnose(ctx, model.NewUnexpectedResponseError("build notify url", err))
		return
	}
	c.logger.Info("start LINE Notify registration", slog.String("event", string(model.EventRegister)))
	c.execute(redirect(url))
}

// CheckStatus はLINE Notify連携の状態を取得する。
// {status:200}はOK、それ以外はDisabled。通信失敗時は状態を変えない。
func (c *Controller) CheckStatus(ctx context.Context) {
	userID, gen, ok := c.begin(ctx, model.EventCheckStatus)
	if !ok {
		return
	}

	code, err := c.backend.FetchStatus(ctx, userID)
	if err != nil {
		c.diagnose(ctx, model.NewBackendUnavailableError("fetch status", err))
		return
	}

	c.apply(ctx, model.EventCheckStatus, gen, func(s *model.SessionState) {
		s.Status = model.StatusFromCode(code)
	})
}

// RefreshUsername はバックエンドからLINEの表示名を取得する。
// 空のユーザー名はバックエンドに記録がないことを意味するため、トークンを削除する。
func (c *Controller) RefreshUsername(ctx context.Context) {
	userID, gen, ok := c.begin(ctx, model.EventPageLoad)
	if !ok {
		return
	}

	name, err := c.backend.FetchUsername(ctx, userID)
	if err != nil {
		c.diagnose(ctx, model.NewBackendUnavailableError("fetch username", err))
		return
	}

	c.apply(ctx, model.EventPageLoad, gen, func(s *model.SessionState) {
		if name == "" {
			c.logger.Info("backend has no record for token, evicting")
			c.evictLocked(ctx)
			return
		}
		s.Username = name
	})
}

// Revoke はLINE Notify連携を解除する。ユーザー名とトークンは残す。
func (c *Controller) Revoke(ctx context.Context) {
	userID, gen, ok := c.begin(ctx, model.EventRevoke)
	if !ok {
		return
	}

	code, err := c.backend.Revoke(ctx, userID)
	if err != nil {
		c.diagnose(ctx, model.NewBackendUnavailableError("revoke", err))
		return
	}
	if code != 200 {
		c.logger.Warn("revoke was not accepted", slog.Int("status", code))
		return
	}

	c.apply(ctx, model.EventRevoke, gen, func(s *model.SessionState) {
		s.Status = model.StatusDisabled
	})
}

// Logout はバックエンド上の紐付けを削除する。
// 成功した場合はトークンもその場で削除し、認証済み表示を終了する。
func (c *Controller) Logout(ctx context.Context) {
	userID, gen, ok := c.begin(ctx, model.EventLogout)
	if !ok {
		return
	}

	code, err := c.backend.Unlink(ctx, userID)
	if err != nil {
		c.diagnose(ctx, model.NewBackendUnavailableError("logout", err))
		return
	}
	if code != 200 {
		c.logger.Warn("logout was not accepted", slog.Int("status", code))
		return
	}

	c.apply(ctx, model.EventLogout, gen, func(s *model.SessionState) {
		c.evictLocked(ctx)
		s.Status = model.StatusDisabled
	})
}
