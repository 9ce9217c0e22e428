package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"im2any/src/clipboard"
	"im2any/src/config"
	"im2any/src/eventloop"
	"im2any/src/history"
	"im2any/src/hotkey"
	"im2any/src/llm"
	"im2any/src/logutil"
	"im2any/src/notification"
	"im2any/src/tray"
)

const startupPingTimeout = 10 * time.Second

func main() {
	// DPI awareness must be set before any window or metrics query.
	enableDPIAwareness()

	// The overlay creates windows from the loop goroutine; keep main pinned
	// so the message queues stay untangled.
	runtime.LockOSThread()

	cfgPath := config.ResolvePath()
	store, err := config.Open(cfgPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if werr := config.WriteDefault(cfgPath); werr == nil {
				notification.Fatal("Config created",
					fmt.Sprintf("A starter config was written to %s. Add your API key and restart.", cfgPath))
				os.Exit(1)
			}
		}
		notification.Fatal("Config error", err.Error())
		os.Exit(1)
	}

	snap := store.Snapshot()
	logutil.Setup(snap.EnableFileLogging)
	log.Printf("im2any starting: config %s, model %s, key %s, %d bindings",
		cfgPath, snap.Model, logutil.RedactKey(snap.APIKey), len(snap.Bindings))

	llm.Init(&llm.Config{APIKey: snap.APIKey, Model: snap.Model})
	pingCtx, cancelPing := context.WithTimeout(context.Background(), startupPingTimeout)
	err = llm.Ping(pingCtx)
	cancelPing()
	if err != nil {
		notification.Fatal("Conversion service unavailable",
			fmt.Sprintf("Startup check failed: %v\n\nVerify your API key and network connectivity.", err))
		os.Exit(1)
	}
	log.Printf("Conversion service ping succeeded")

	if err := clipboard.Init(); err != nil {
		notification.Fatal("Clipboard error", err.Error())
		os.Exit(1)
	}

	dbPath, screenshotsDir := historyPaths(cfgPath)
	hist, err := history.Open(dbPath, screenshotsDir)
	if err != nil {
		notification.Fatal("History error", err.Error())
		os.Exit(1)
	}
	defer hist.Close()

	listener := hotkey.NewListener()
	loop := eventloop.New(store, hist, listener)

	if err := loop.ArmHotkeys(); err != nil {
		notification.Fatal("Hotkey error", err.Error())
		os.Exit(1)
	}
	defer listener.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	trayIcon := tray.New(tray.Config{
		Title:         "im2any",
		Tooltip:       "im2any",
		OnOpenHistory: func() { openFolder(screenshotsDir) },
		OnReload:      loop.RequestReload,
		OnExit:        cancel,
	})
	go trayIcon.Run()
	defer trayIcon.Destroy()

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Event loop stopped: %v", err)
	}
	log.Printf("im2any shutting down")
}

// historyPaths keeps the database and screenshots next to the config file so
// a portable install stays in one directory.
func historyPaths(cfgPath string) (dbPath, screenshotsDir string) {
	dir := filepath.Dir(cfgPath)
	return filepath.Join(dir, "history.db"), filepath.Join(dir, "screenshots")
}

// openFolder shows a directory in the platform file manager.
func openFolder(dir string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("explorer", dir)
	case "darwin":
		cmd = exec.Command("open", dir)
	default:
		cmd = exec.Command("xdg-open", dir)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Open folder %s failed: %v", dir, err)
	}
}
