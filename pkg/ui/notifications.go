package ui

import (
	"fmt"
	"os/exec"
	"runtime"

	"tagsync/pkg/runner"
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// Notifier reports scheduled runs on the console and, where supported, as
// desktop notifications
type Notifier struct {
	sender NotificationSender
}

// NewNotifier creates a Notifier for the current platform
func NewNotifier() *Notifier {
	var sender NotificationSender
	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	}
	return &Notifier{sender: sender}
}

// NewNotifierWithSender creates a Notifier using sender; nil only prints
func NewNotifierWithSender(sender NotificationSender) *Notifier {
	return &Notifier{sender: sender}
}

// RunFinished announces the outcome of a run
func (n *Notifier) RunFinished(report *runner.Report, runErr error) {
	title := "tagsync: " + report.Params.BrandID
	if runErr != nil {
		msg := fmt.Sprintf("%s run failed: %v", report.Params.TargetDay, runErr)
		PrintError(title, msg)
		n.send(title, msg)
		return
	}

	msg := fmt.Sprintf("%s: %d posts", report.Params.TargetDay, len(report.Scan.Records))
	if report.Commit != nil {
		msg += fmt.Sprintf(" (%d new)", report.Commit.Inserted)
	}
	PrintSuccess(title + ": " + msg)
	n.send(title, msg)
}

func (n *Notifier) send(title, message string) {
	if n.sender == nil {
		return
	}
	// desktop notifications are best effort
	_ = n.sender.Send(title, message)
}
