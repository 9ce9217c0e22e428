package tray

import (
	"log"
	"sync"

	"github.com/getlantern/systray"
)

// Config wires the menu actions. Handlers run on a tray goroutine; they must
// post into the event loop rather than doing work inline.
type Config struct {
	Title         string
	Tooltip       string
	OnOpenHistory func()
	OnReload      func()
	OnExit        func()
}

type Icon struct {
	cfg Config
}

var (
	mu      sync.Mutex
	ready   bool
	tooltip string
)

func New(cfg Config) *Icon {
	if cfg.Title == "" {
		cfg.Title = "im2any"
	}
	mu.Lock()
	tooltip = cfg.Tooltip
	mu.Unlock()
	return &Icon{cfg: cfg}
}

// Run blocks inside the systray loop. Call from a dedicated goroutine.
func (i *Icon) Run() {
	systray.Run(i.onReady, i.onExit)
}

// Destroy tears the tray icon down during shutdown.
func (i *Icon) Destroy() {
	systray.Quit()
}

func (i *Icon) onReady() {
	systray.SetIcon(iconBytes())
	systray.SetTitle(i.cfg.Title)

	mu.Lock()
	ready = true
	tt := tooltip
	mu.Unlock()
	systray.SetTooltip(tt)

	mHistory := systray.AddMenuItem("Open History Folder", "Open the folder with saved captures")
	mReload := systray.AddMenuItem("Reload Config", "Re-read config.json and re-arm shortcuts")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Exit", "Quit im2any")

	go func() {
		for {
			select {
			case <-mHistory.ClickedCh:
				if i.cfg.OnOpenHistory != nil {
					i.cfg.OnOpenHistory()
				}
			case <-mReload.ClickedCh:
				if i.cfg.OnReload != nil {
					i.cfg.OnReload()
				}
			case <-mQuit.ClickedCh:
				log.Printf("Tray: exit requested")
				if i.cfg.OnExit != nil {
					i.cfg.OnExit()
				}
				systray.Quit()
				return
			}
		}
	}()
}

func (i *Icon) onExit() {
	mu.Lock()
	ready = false
	mu.Unlock()
}

// UpdateTooltip reflects busy/idle state. Safe to call before the tray is
// ready; the pending value is applied in onReady.
func UpdateTooltip(tt string) {
	mu.Lock()
	tooltip = tt
	ok := ready
	mu.Unlock()
	if ok {
		systray.SetTooltip(tt)
	}
}
