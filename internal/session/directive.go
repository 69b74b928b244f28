package session

// DirectiveKind はページロード照合の終端アクションの種別。
type DirectiveKind int

const (
	// DirectiveNone は遷移しない（通常表示を続ける）。
	DirectiveNone DirectiveKind = iota
	// DirectiveReload はフラグメントを取り除いたオリジンへ再読み込みする。
	DirectiveReload
	// DirectiveRedirect は外部の認可ページへ遷移する。
	DirectiveRedirect
)

// Directive は照合ステップが最後に実行する遷移。
type Directive struct {
	Kind DirectiveKind
	URL  string
}

func none() Directive {
	return Directive{Kind: DirectiveNone}
}

// reload はフラグメントを履歴とアドレスバーから消すための再読み込み先を返す。
func (c *Controller) reload() Directive {
	return Directive{Kind: DirectiveReload, URL: c.config.Origin}
}

func redirect(url string) Directive {
	return Directive{Kind: DirectiveRedirect, URL: url}
}

// execute はDirectiveをNavigatorで実行する。
func (c *Controller) execute(d Directive) {
	if d.Kind == DirectiveNone {
		return
	}
	c.navigator.Navigate(d.URL)
}
