package sound

import (
	"log"

	"github.com/gen2brain/beeep"
)

// PlayDone emits the completion chime. Fire-and-forget: the clipboard content
// is the real signal, a silent success is still a success.
func PlayDone() {
	go func() {
		if err := beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration); err != nil {
			log.Printf("Completion sound failed: %v", err)
		}
	}()
}
