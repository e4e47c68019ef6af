package conversation

import (
	"fmt"
	"strings"
	"time"
)

// Keyboards shown alongside replies.
var (
	MainKeyboard   = [][]string{{CommandStatus, CommandNotifications, CommandWatchlist}}
	WatchKeyboard  = [][]string{{CommandUnfollow, CommandMenu, CommandFollow}}
	CancelKeyboard = [][]string{{CommandMenu}}
)

// NotificationsKeyboard offers only the toggle that changes the current flag.
func NotificationsKeyboard(subscribed bool) [][]string {
	toggle := CommandSubscribe
	if subscribed {
		toggle = CommandUnsubscribe
	}
	return [][]string{{toggle}, {CommandMenu}}
}

// WelcomeText greets a recipient on /start.
func WelcomeText(firstName string) string {
	if firstName == "" {
		firstName = "friend"
	}
	return fmt.Sprintf("Hi, %s! 👋\n\nI keep track of the game servers. Press \"%s\" to see what is going on right now.",
		firstName, CommandStatus)
}

const (
	MenuText            = "Choose an action"
	UnknownText         = "Sorry, I don't understand that command."
	SubscribedText      = "You are subscribed to server updates! ✅"
	UnsubscribedText    = "You have unsubscribed from server updates. ❌"
	FollowPromptText    = "Please enter the nickname of the player you want to follow:"
	UnfollowPromptText  = "Please enter the nickname of the player you want to stop following:"
	AbortText           = "Cancelled."
	NotificationsIntro  = "You can subscribe to or unsubscribe from server status changes!"
	EmptyWatchlistText  = "You are not following anyone yet."
	NoTargetsStatusText = "No servers are being tracked yet."
)

// FollowedText confirms a new watch.
func FollowedText(name string) string {
	return fmt.Sprintf("You are now following %s. I'll tell you when they join.", name)
}

// AlreadyFollowingText reports a duplicate watch.
func AlreadyFollowingText(name string) string {
	return fmt.Sprintf("You are already following %s.", name)
}

// UnfollowedText confirms a removed watch.
func UnfollowedText(name string) string {
	return fmt.Sprintf("You no longer follow %s.", name)
}

// NotFollowingText reports an unfollow of a member that was not watched.
func NotFollowingText(name string) string {
	return fmt.Sprintf("You were not following %s.", name)
}

// UnknownMemberText re-prompts after a name that matched no member.
func UnknownMemberText(name string) string {
	return fmt.Sprintf("I have never seen a player called %q. Try again or press \"%s\".", name, CommandMenu)
}

// WatchEntry is one line of the watchlist.
type WatchEntry struct {
	Name    string
	Target  string
	Present bool
}

// WatchlistText renders the watched members with presence markers.
func WatchlistText(entries []WatchEntry) string {
	if len(entries) == 0 {
		return EmptyWatchlistText
	}
	var b strings.Builder
	b.WriteString("You are following:\n")
	for _, e := range entries {
		marker := "🔴"
		if e.Present {
			marker = "🟢"
		}
		fmt.Fprintf(&b, "%s - %s (%s)\n", e.Name, marker, e.Target)
	}
	return strings.TrimRight(b.String(), "\n")
}

// TargetStatus is the view of one target used by StatusText.
type TargetStatus struct {
	Name       string
	Up         bool
	Population int
	Capacity   int
	Players    []string
	UpdatedAt  time.Time
}

// StatusText renders the status reply for every tracked target.
// Timestamps are shown in loc (UTC when nil).
func StatusText(targets []TargetStatus, loc *time.Location) string {
	if len(targets) == 0 {
		return NoTargetsStatusText
	}
	if loc == nil {
		loc = time.UTC
	}

	blocks := make([]string, 0, len(targets))
	for _, t := range targets {
		if !t.Up {
			blocks = append(blocks, fmt.Sprintf("Server %s is not active. 😞", t.Name))
			continue
		}
		players := "nobody"
		if len(t.Players) > 0 {
			players = strings.Join(t.Players, ", ")
		}
		blocks = append(blocks, fmt.Sprintf("Server %s is active! 🎉\n\nOnline: %d/%d\nPlayers: %s\n\nLast status update: %s",
			t.Name, t.Population, t.Capacity, players, t.UpdatedAt.In(loc).Format("02 Jan 2006 15:04:05")))
	}
	return strings.Join(blocks, "\n\n")
}
