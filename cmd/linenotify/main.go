//go:build !js

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/hitoshi/linenotify/internal/app"
)

func main() {
	// 端末クライアントは表示内容を標準出力に出すため、ログは標準エラーへ
	var logs io.Writer = os.Stdout
	if app.ParseCommand(os.Args[1:]) == app.CommandClient {
		logs = os.Stderr
	}

	if err := app.Run(logs, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
