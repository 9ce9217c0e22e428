package notification

import (
	"log"

	"github.com/gen2brain/beeep"
)

const appTitle = "im2any"

// Notify shows a transient, non-blocking notice. Used for dispatch rejections
// and remote failures; delivery problems are logged and swallowed.
func Notify(message string) {
	go func() {
		if err := beeep.Notify(appTitle, message, ""); err != nil {
			log.Printf("Notification failed (%v): %s", err, message)
		}
	}()
}

// NotifyError prefixes the notice with a short failure tag.
func NotifyError(cause string) {
	Notify("Conversion failed: " + cause)
}

// Fatal reports a startup-blocking problem. Alert is synchronous on platforms
// that support it; the log line is the fallback channel.
func Fatal(title, message string) {
	log.Printf("%s: %s", title, message)
	if err := beeep.Alert(appTitle+" - "+title, message, ""); err != nil {
		log.Printf("Blocking alert failed: %v", err)
	}
}
