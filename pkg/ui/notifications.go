package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"cmsdl/pkg/config"
)

const appName = "CMS Downloader"

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	cmd := exec.Command("notify-send", "--app-name", appName, title, message)
	return cmd.Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	cmd := exec.Command("osascript", "-e", script)
	return cmd.Run()
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier(%q).Show($toast)
	`, xmlEscape(title), xmlEscape(message), appName)

	cmd := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	return cmd.Run()
}

func xmlEscape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}

// Notifier sends desktop notifications at the end of a run
type Notifier struct {
	sender NotificationSender
	cfg    config.NotificationConfig
}

// NewNotifier picks the sender for the current platform
func NewNotifier(cfg config.NotificationConfig) *Notifier {
	var sender NotificationSender

	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	case "windows":
		sender = &WindowsNotificationSender{}
	}

	return &Notifier{sender: sender, cfg: cfg}
}

// NewNotifierWithSender is used when the platform sender must be replaced
func NewNotifierWithSender(cfg config.NotificationConfig, sender NotificationSender) *Notifier {
	return &Notifier{sender: sender, cfg: cfg}
}

// NotifyComplete reports a finished run if completion notices are enabled
func (n *Notifier) NotifyComplete(downloaded, failed int) {
	if !n.cfg.Enabled || !n.cfg.OnComplete {
		return
	}

	msg := fmt.Sprintf("%d new files downloaded", downloaded)
	if failed > 0 {
		msg += fmt.Sprintf(", %d failed", failed)
	}
	n.send("Sync complete", msg)
}

// NotifyError reports a failed run if error notices are enabled
func (n *Notifier) NotifyError(err error) {
	if !n.cfg.Enabled || !n.cfg.OnError || err == nil {
		return
	}
	n.send("Sync failed", err.Error())
}

func (n *Notifier) send(title, message string) {
	if n.sender == nil {
		return
	}
	// notifications are best effort
	_ = n.sender.Send(title, message)
}
