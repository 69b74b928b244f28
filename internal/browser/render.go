//go:build js && wasm

package browser

import (
	"context"
	"sync"
	"syscall/js"

	"github.com/hitoshi/linenotify/internal/model"
	"github.com/hitoshi/linenotify/internal/view"
)

// EventHandler はUIイベントを受け取る。session.Controllerが実装する。
type EventHandler interface {
	Handle(ctx context.Context, ev model.Event)
}

// Renderer はview.Modelをコンテナ要素に描画する。
type Renderer struct {
	ctx       context.Context
	doc       js.Value
	container js.Value
	handler   EventHandler

	mu    sync.Mutex
	funcs []js.Func
}

// NewRenderer はidで指定した要素に描画するRendererを生成する。
func NewRenderer(ctx context.Context, containerID string, handler EventHandler) *Renderer {
	doc := js.Global().Get("document")
	return &Renderer{
		ctx:       ctx,
		doc:       doc,
		container: doc.Call("getElementById", containerID),
		handler:   handler,
	}
}

// Render はコンテナの内容を置き換える。前回登録したクリックハンドラーは解放する。
func (r *Renderer) Render(m view.Model) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, fn := range r.funcs {
		fn.Release()
	}
	r.funcs = r.funcs[:0]
	r.container.Set("innerHTML", "")

	if m.Authenticated {
		user := r.doc.Call("createElement", "p")
		user.Set("className", "username")
		// UsernameHTMLはタグを除去済み
		user.Set("innerHTML", m.UsernameHTML)
		r.container.Call("appendChild", user)

		if m.StatusLabel != "" {
			status := r.doc.Call("createElement", "p")
			status.Set("className", "status status-"+m.StatusLabel)
			status.Set("textContent", "LINE Notify: "+m.StatusLabel)
			r.container.Call("appendChild", status)
		}
	}

	for _, a := range m.Affordances {
		r.container.Call("appendChild", r.button(a))
	}
}

func (r *Renderer) button(a view.Affordance) js.Value {
	btn := r.doc.Call("createElement", "button")
	btn.Set("type", "button")
	btn.Set("textContent", a.Label)
	btn.Get("dataset").Set("event", string(a.Event))

	ev := a.Event
	fn := js.FuncOf(func(this js.Value, args []js.Value) any {
		// JSコールバック内でブロックしないよう別goroutineで処理する
		go r.handler.Handle(r.ctx, ev)
		return nil
	})
	r.funcs = append(r.funcs, fn)
	btn.Call("addEventListener", "click", fn)
	return btn
}
