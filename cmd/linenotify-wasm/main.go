//go:build js && wasm

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hitoshi/linenotify/internal/browser"
	"github.com/hitoshi/linenotify/internal/logger"
)

func main() {
	logger.SetupDefault(os.Stdout, slog.LevelInfo)

	if err := browser.Start(context.Background(), "app", slog.Default()); err != nil {
		slog.Error("failed to start", slog.String("error", err.Error()))
		return
	}

	// クリックハンドラーを受け付け続けるためにmainを終了させない
	select {}
}
