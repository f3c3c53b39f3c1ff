package notify

import (
	"os/exec"
	"runtime"
)

// Desktop sends native desktop notifications.
type Desktop struct {
	enabled bool
}

// NewDesktop creates a desktop notifier.
func NewDesktop(enabled bool) *Desktop {
	return &Desktop{enabled: enabled}
}

// Send shows a desktop notification on supported platforms.
func (d *Desktop) Send(n Notification) error {
	if !d.enabled {
		return nil
	}

	switch runtime.GOOS {
	case "darwin":
		script := `display notification "` + n.Message + `" with title "` + n.Title + `"`
		return exec.Command("osascript", "-e", script).Run()
	case "linux":
		return exec.Command("notify-send", n.Title, n.Message).Run()
	default:
		return nil // Unsupported
	}
}
