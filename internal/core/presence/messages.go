package presence

import "fmt"

// RecoveredMessage is broadcast when a target comes back up.
func RecoveredMessage(target string) string {
	return fmt.Sprintf("🟢 Server %s is up and running! 🟢", target)
}

// StoppedMessage is broadcast when a target is declared down.
func StoppedMessage(target string) string {
	return fmt.Sprintf("❌ Server %s has stopped responding ❌", target)
}

// JoinedMessage is sent to every watcher of a member that joined.
func JoinedMessage(member, target string) string {
	return fmt.Sprintf("Player %s joined %s!", member, target)
}

// NoticeMessage renders the broadcast text for a target-level notice.
// Returns "" for NoticeNone.
func NoticeMessage(notice Notice, target string) string {
	switch notice {
	case NoticeRecovered:
		return RecoveredMessage(target)
	case NoticeStopped:
		return StoppedMessage(target)
	default:
		return ""
	}
}
