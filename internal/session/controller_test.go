package session

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hitoshi/linenotify/internal/identity"
	"github.com/hitoshi/linenotify/internal/model"
)

// --- モック ---

type mockBackend struct {
	fetchUsernameFn func(ctx context.Context, userID string) (string, error)
	fetchStatusFn   func(ctx context.Context, userID string) (int, error)
	revokeFn        func(ctx context.Context, userID string) (int, error)
	unlinkFn        func(ctx context.Context, userID string) (int, error)

	calls atomic.Int32
}

func (m *mockBackend) FetchUsername(ctx context.Context, userID string) (string, error) {
	m.calls.Add(1)
	if m.fetchUsernameFn != nil {
		return m.fetchUsernameFn(ctx, userID)
	}
	return "alice", nil
}
func (m *mockBackend) FetchStatus(ctx context.Context, userID string) (int, error) {
	m.calls.Add(1)
	if m.fetchStatusFn != nil {
		return m.fetchStatusFn(ctx, userID)
	}
	return 200, nil
}
func (m *mockBackend) Revoke(ctx context.Context, userID string) (int, error) {
	m.calls.Add(1)
	if m.revokeFn != nil {
		return m.revokeFn(ctx, userID)
	}
	return 200, nil
}
func (m *mockBackend) Unlink(ctx context.Context, userID string) (int, error) {
	m.calls.Add(1)
	if m.unlinkFn != nil {
		return m.unlinkFn(ctx, userID)
	}
	return 200, nil
}

type stubAuthorizer struct{}

func (stubAuthorizer) LoginURL(state, nonce string) (string, error) {
	return "https://access.line.me/authorize?state=" + state + "&nonce=" + nonce, nil
}
func (stubAuthorizer) NotifyURL(userID string) (string, error) {
	return "https://notify-bot.line.me/authorize?state=" + userID, nil
}

type recordingNavigator struct {
	mu   sync.Mutex
	urls []string
}

func (n *recordingNavigator) Navigate(url string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.urls = append(n.urls, url)
}

func (n *recordingNavigator) visited() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.urls...)
}

const testOrigin = "https://app.example.com/"

type fixture struct {
	ctrl    *Controller
	store   *identity.Store
	backend *mockBackend
	nav     *recordingNavigator
	logs    *bytes.Buffer
}

func newFixture(t *testing.T, token string, config Config) *fixture {
	t.Helper()
	store := identity.NewStore(identity.NewMemoryStorage())
	if token != "" {
		if err := store.SetToken(token); err != nil {
			t.Fatalf("SetToken() error = %v", err)
		}
	}
	if config.Origin == "" {
		config.Origin = testOrigin
	}

	f := &fixture{
		store:   store,
		backend: &mockBackend{},
		nav:     &recordingNavigator{},
		logs:    &bytes.Buffer{},
	}
	var seq atomic.Int32
	f.ctrl = NewController(Deps{
		Store:      store,
		Backend:    f.backend,
		Authorizer: stubAuthorizer{},
		Navigator:  f.nav,
		Logger: slog.New(slog.NewJSONHandler(f.logs, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})),
		NewToken: func() (string, error) {
			n := seq.Add(1)
			return "tok" + string(rune('0'+n)), nil
		},
	}, config)
	return f
}

func (f *fixture) token(t *testing.T) string {
	t.Helper()
	tok, err := f.store.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	return tok
}

// --- ページロード ---

func TestLoad_FreshBrowserIsAnonymous(t *testing.T) {
	f := newFixture(t, "", Config{})

	d := f.ctrl.Load(context.Background(), "")

	if d.Kind != DirectiveNone {
		t.Errorf("Directive = %v, want DirectiveNone", d.Kind)
	}
	if got := f.ctrl.Snapshot().Phase(); got != model.PhaseAnonymous {
		t.Errorf("Phase = %s, want %s", got, model.PhaseAnonymous)
	}
	if got := f.backend.calls.Load(); got != 0 {
		t.Errorf("backend calls = %d, want 0", got)
	}
	if len(f.nav.visited()) != 0 {
		t.Errorf("遷移しないこと: %v", f.nav.visited())
	}
}

func TestLoad_ReturningSubscribedUser(t *testing.T) {
	f := newFixture(t, "U", Config{})

	f.ctrl.Load(context.Background(), "")

	got := f.ctrl.Snapshot()
	if got.Username != "alice" {
		t.Errorf("Username = %q, want alice", got.Username)
	}
	if got.Status != model.StatusOK {
		t.Errorf("Status = %q, want OK", got.Status)
	}
	if got.Phase() != model.PhaseSubscribed {
		t.Errorf("Phase = %s, want %s", got.Phase(), model.PhaseSubscribed)
	}
}

func TestLoad_StatusMapping(t *testing.T) {
	tests := []struct {
		name string
		code int
		want model.SubscriptionStatus
	}{
		{"200はOK", 200, model.StatusOK},
		{"404はDisabled", 404, model.StatusDisabled},
		{"500はDisabled", 500, model.StatusDisabled},
		{"401はDisabled", 401, model.StatusDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "U", Config{})
			f.backend.fetchStatusFn = func(ctx context.Context, userID string) (int, error) {
				return tt.code, nil
			}

			f.ctrl.Load(context.Background(), "")

			if got := f.ctrl.Snapshot().Status; got != tt.want {
				t.Errorf("Status = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad_EmptyUsernameEvictsToken(t *testing.T) {
	f := newFixture(t, "U", Config{})
	f.backend.fetchUsernameFn = func(ctx context.Context, userID string) (string, error) {
		return "", nil
	}

	f.ctrl.Load(context.Background(), "")

	if tok := f.token(t); tok != "" {
		t.Errorf("token = %q, want evicted", tok)
	}
	if got := f.ctrl.Snapshot(); got.HasToken() || got.Authenticated() {
		t.Errorf("state = %+v, want anonymous", got)
	}
}

func TestLoad_BackendFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, "U", Config{})
	f.backend.fetchUsernameFn = func(ctx context.Context, userID string) (string, error) {
		return "", errors.New("connection refused")
	}
	f.backend.fetchStatusFn = func(ctx context.Context, userID string) (int, error) {
		return 0, errors.New("connection refused")
	}

	f.ctrl.Load(context.Background(), "")

	got := f.ctrl.Snapshot()
	if got.UserID != "U" || got.Username != "" || got.Status != model.StatusUnknown {
		t.Errorf("state = %+v, want token only", got)
	}
	if tok := f.token(t); tok != "U" {
		t.Errorf("通信失敗でトークンを削除しないこと: token = %q", tok)
	}
	if !strings.Contains(f.logs.String(), `"diagnostic":"transient"`) {
		t.Errorf("transient診断が出力されること: %s", f.logs.String())
	}
}

func TestLoad_BotCallbackRechecksStatusAndReloads(t *testing.T) {
	f := newFixture(t, "U", Config{})

	d := f.ctrl.Load(context.Background(), "#callback=linebot")

	if d.Kind != DirectiveReload || d.URL != testOrigin {
		t.Errorf("Directive = %+v, want reload to origin", d)
	}
	if got := f.ctrl.Snapshot().Status; got != model.StatusOK {
		t.Errorf("Status = %q, want OK", got)
	}
	visited := f.nav.visited()
	if len(visited) != 1 || visited[0] != testOrigin {
		t.Errorf("visited = %v, want [%s]", visited, testOrigin)
	}
	if len(visited) == 1 && strings.Contains(visited[0], "#") {
		t.Error("再読み込み先にフラグメントを含めないこと")
	}
}

func TestLoad_LoginCallbackRoundTrip(t *testing.T) {
	f := newFixture(t, "", Config{})
	ctx := context.Background()

	// 1. ログイン開始でstateが保存される
	f.ctrl.Handle(ctx, model.EventLogin)
	pending, err := f.store.PendingLoginState()
	if err != nil || pending == "" {
		t.Fatalf("PendingLoginState() = %q, %v", pending, err)
	}
	visited := f.nav.visited()
	if len(visited) != 1 || !strings.Contains(visited[0], "state="+pending) {
		t.Fatalf("visited = %v, want login url with state", visited)
	}

	// 2. コールバックでトークンが保存され、オリジンへ再読み込みする
	d := f.ctrl.Load(ctx, "#callback=line&userid=U123&state="+pending)
	if d.Kind != DirectiveReload || d.URL != testOrigin {
		t.Errorf("Directive = %+v, want reload to origin", d)
	}
	if tok := f.token(t); tok != "U123" {
		t.Errorf("token = %q, want U123", tok)
	}
	if p, _ := f.store.PendingLoginState(); p != "" {
		t.Errorf("保留中のstateを消去すること: %q", p)
	}

	// 3. 再読み込み後はフラグメントなしで通常表示になる
	d = f.ctrl.Load(ctx, "")
	if d.Kind != DirectiveNone {
		t.Errorf("Directive = %+v, want none", d)
	}
	if got := f.ctrl.Snapshot(); got.Username != "alice" || got.UserID != "U123" {
		t.Errorf("state = %+v", got)
	}
}

func TestLoad_LoginCallbackWithoutState(t *testing.T) {
	f := newFixture(t, "", Config{})

	f.ctrl.Load(context.Background(), "callback=line&userid=U1")

	if tok := f.token(t); tok != "U1" {
		t.Errorf("token = %q, want U1", tok)
	}
}

func TestLoad_LoginCallbackStateMismatch(t *testing.T) {
	f := newFixture(t, "", Config{})
	if err := f.store.SetPendingLoginState("expected"); err != nil {
		t.Fatal(err)
	}

	d := f.ctrl.Load(context.Background(), "#callback=line&userid=U1&state=forged")

	if d.Kind != DirectiveReload {
		t.Errorf("Directive = %+v, want reload", d)
	}
	if tok := f.token(t); tok != "" {
		t.Errorf("一致しないstateではトークンを保存しないこと: %q", tok)
	}
	if !strings.Contains(f.logs.String(), model.ErrCodeStateMismatch) {
		t.Errorf("診断ログにSTATE_MISMATCHが含まれること: %s", f.logs.String())
	}
}

func TestLoad_LoginCallbackMissingUserID(t *testing.T) {
	f := newFixture(t, "", Config{})

	d := f.ctrl.Load(context.Background(), "#callback=line&foo=bar")

	if d.Kind != DirectiveReload {
		t.Errorf("Directive = %+v, want reload", d)
	}
	if tok := f.token(t); tok != "" {
		t.Errorf("token = %q, want empty", tok)
	}
	if !strings.Contains(f.logs.String(), `"diagnostic":"fragment"`) {
		t.Errorf("fragment診断が出力されること: %s", f.logs.String())
	}
}

func TestLoad_LoginCallbackAutoRegister(t *testing.T) {
	f := newFixture(t, "", Config{AutoRegister: true})

	d := f.ctrl.Load(context.Background(), "#callback=line&userid=U1")

	if d.Kind != DirectiveRedirect {
		t.Fatalf("Directive = %+v, want redirect", d)
	}
	if d.URL != "https://notify-bot.line.me/authorize?state=U1" {
		t.Errorf("URL = %s", d.URL)
	}
	if tok := f.token(t); tok != "U1" {
		t.Errorf("token = %q, want U1", tok)
	}
}

func TestLoad_Idempotent(t *testing.T) {
	f := newFixture(t, "U", Config{})
	ctx := context.Background()

	f.ctrl.Load(ctx, "")
	first := f.ctrl.Snapshot()
	f.ctrl.Load(ctx, "")
	second := f.ctrl.Snapshot()

	if first != second {
		t.Errorf("同じ条件のロードは同じ状態になること: %+v != %+v", first, second)
	}
}

// --- UIイベント ---

func TestHandle_GuardedEventsWithoutToken(t *testing.T) {
	events := []model.Event{
		model.EventRegister,
		model.EventRevoke,
		model.EventLogout,
		model.EventCheckStatus,
	}

	for _, ev := range events {
		t.Run(string(ev), func(t *testing.T) {
			f := newFixture(t, "", Config{})
			f.ctrl.Load(context.Background(), "")

			f.ctrl.Handle(context.Background(), ev)

			if got := f.backend.calls.Load(); got != 0 {
				t.Errorf("backend calls = %d, want 0", got)
			}
			if len(f.nav.visited()) != 0 {
				t.Errorf("遷移しないこと: %v", f.nav.visited())
			}
			if !strings.Contains(f.logs.String(), model.ErrCodeNotLoggedIn) {
				t.Errorf("guard診断が出力されること: %s", f.logs.String())
			}
		})
	}
}

func TestHandle_Register(t *testing.T) {
	f := newFixture(t, "U", Config{})
	f.ctrl.Load(context.Background(), "")

	f.ctrl.Handle(context.Background(), model.EventRegister)

	visited := f.nav.visited()
	if len(visited) != 1 || visited[0] != "https://notify-bot.line.me/authorize?state=U" {
		t.Errorf("visited = %v", visited)
	}
}

func TestHandle_Revoke(t *testing.T) {
	f := newFixture(t, "U", Config{})
	f.ctrl.Load(context.Background(), "")

	f.ctrl.Handle(context.Background(), model.EventRevoke)

	got := f.ctrl.Snapshot()
	if got.Status != model.StatusDisabled {
		t.Errorf("Status = %q, want Disabled", got.Status)
	}
	if got.Username != "alice" {
		t.Errorf("解除後もユーザー名を保持すること: %q", got.Username)
	}
	if tok := f.token(t); tok != "U" {
		t.Errorf("解除後もトークンを保持すること: %q", tok)
	}
}

func TestHandle_RevokeNotAccepted(t *testing.T) {
	f := newFixture(t, "U", Config{})
	f.ctrl.Load(context.Background(), "")
	f.backend.revokeFn = func(ctx context.Context, userID string) (int, error) {
		return 500, nil
	}

	f.ctrl.Handle(context.Background(), model.EventRevoke)

	if got := f.ctrl.Snapshot().Status; got != model.StatusOK {
		t.Errorf("Status = %q, want OK (unchanged)", got)
	}
}

func TestHandle_LogoutEvictsToken(t *testing.T) {
	f := newFixture(t, "U", Config{})
	f.ctrl.Load(context.Background(), "")

	f.ctrl.Handle(context.Background(), model.EventLogout)

	got := f.ctrl.Snapshot()
	if got.Authenticated() || got.HasToken() {
		t.Errorf("state = %+v, want logged out", got)
	}
	if got.Status != model.StatusDisabled {
		t.Errorf("Status = %q, want Disabled", got.Status)
	}
	if tok := f.token(t); tok != "" {
		t.Errorf("token = %q, want evicted", tok)
	}
}

func TestHandle_CheckStatusTransition(t *testing.T) {
	f := newFixture(t, "U", Config{})
	code := 404
	f.backend.fetchStatusFn = func(ctx context.Context, userID string) (int, error) {
		return code, nil
	}
	f.ctrl.Load(context.Background(), "")
	if got := f.ctrl.Snapshot().Phase(); got != model.PhaseSubscriptionDisabled {
		t.Fatalf("Phase = %s, want %s", got, model.PhaseSubscriptionDisabled)
	}

	code = 200
	f.ctrl.Handle(context.Background(), model.EventCheckStatus)

	if got := f.ctrl.Snapshot().Phase(); got != model.PhaseSubscribed {
		t.Errorf("Phase = %s, want %s", got, model.PhaseSubscribed)
	}
}

func TestHandle_UnknownEvent(t *testing.T) {
	f := newFixture(t, "U", Config{})

	f.ctrl.Handle(context.Background(), model.Event("dance"))

	if got := f.backend.calls.Load(); got != 0 {
		t.Errorf("backend calls = %d, want 0", got)
	}
}

// --- 並行性 ---

func TestCheckStatus_StaleResponseIgnored(t *testing.T) {
	f := newFixture(t, "U1", Config{})
	ctx := context.Background()
	f.ctrl.reloadToken(ctx)

	// 応答待ちの間に別のトークンへ切り替わる
	f.backend.fetchStatusFn = func(ctx context.Context, userID string) (int, error) {
		if err := f.store.SetToken("U2"); err != nil {
			t.Errorf("SetToken() error = %v", err)
		}
		f.ctrl.reloadToken(ctx)
		return 200, nil
	}

	f.ctrl.CheckStatus(ctx)

	got := f.ctrl.Snapshot()
	if got.UserID != "U2" {
		t.Errorf("UserID = %q, want U2", got.UserID)
	}
	if got.Status != model.StatusUnknown {
		t.Errorf("古い応答を適用しないこと: Status = %q", got.Status)
	}
	if !strings.Contains(f.logs.String(), "stale response ignored") {
		t.Errorf("破棄のログが出力されること: %s", f.logs.String())
	}
}

func TestOnChange_ReceivesSnapshots(t *testing.T) {
	f := newFixture(t, "U", Config{})
	var mu sync.Mutex
	var seen []model.SessionState
	f.ctrl.OnChange(func(s model.SessionState) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
	})

	f.ctrl.Load(context.Background(), "")

	mu.Lock()
	defer mu.Unlock()
	if len(seen) == 0 {
		t.Fatal("OnChangeが呼ばれること")
	}
	// ユーザー名と状態の取得は並行のため、通知順は問わない
	found := false
	for _, s := range seen {
		if s.Username == "alice" && s.Status == model.StatusOK {
			found = true
		}
	}
	if !found {
		t.Errorf("取得完了後のスナップショットが通知されること: %+v", seen)
	}
}

func TestView_Scenarios(t *testing.T) {
	tests := []struct {
		name        string
		token       string
		status      int
		wantUser    string
		wantLabel   string
		wantEvent   model.Event
		absentEvent model.Event
	}{
		{"初回訪問", "", 0, "", "", model.EventLogin, model.EventLogout},
		{"購読中", "U", 200, "alice", "OK", model.EventRevoke, model.EventRegister},
		{"未購読", "U", 404, "alice", "Disabled", model.EventRegister, model.EventRevoke},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.token, Config{})
			f.backend.fetchStatusFn = func(ctx context.Context, userID string) (int, error) {
				return tt.status, nil
			}

			f.ctrl.Load(context.Background(), "")
			m := f.ctrl.View()

			if m.Username != tt.wantUser {
				t.Errorf("Username = %q, want %q", m.Username, tt.wantUser)
			}
			if m.StatusLabel != tt.wantLabel {
				t.Errorf("StatusLabel = %q, want %q", m.StatusLabel, tt.wantLabel)
			}
			if !m.Has(tt.wantEvent) {
				t.Errorf("%s が表示されること", tt.wantEvent)
			}
			if m.Has(tt.absentEvent) {
				t.Errorf("%s が表示されないこと", tt.absentEvent)
			}
		})
	}
}
