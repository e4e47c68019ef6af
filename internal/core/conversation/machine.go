// Package conversation contains the pure per-recipient chat state machine.
// This is part of the Functional Core - no I/O, only pure functions.
package conversation

import "strings"

// State is the persisted conversation state of a recipient.
type State string

const (
	StateNone             State = "NONE"
	StateInMenu           State = "IN_MENU"
	StateAwaitingFollow   State = "AWAITING_FOLLOW_TARGET"
	StateAwaitingUnfollow State = "AWAITING_UNFOLLOW_TARGET"
)

// ParseState maps a stored value to a State. Unknown or empty values map to StateNone.
func ParseState(s string) State {
	switch State(s) {
	case StateInMenu, StateAwaitingFollow, StateAwaitingUnfollow:
		return State(s)
	default:
		return StateNone
	}
}

// Awaiting reports whether the state expects a member name as the next message.
func (s State) Awaiting() bool {
	return s == StateAwaitingFollow || s == StateAwaitingUnfollow
}

// Command vocabulary. Matching is literal and case-sensitive.
const (
	CommandStart         = "/start"
	CommandMenu          = "Menu"
	CommandStatus        = "Status"
	CommandNotifications = "Notifications"
	CommandSubscribe     = "Subscribe"
	CommandUnsubscribe   = "Unsubscribe"
	CommandWatchlist     = "Watchlist"
	CommandFollow        = "Follow"
	CommandUnfollow      = "Unfollow"
)

// Action is the side effect the application layer performs for a message.
type Action string

const (
	ActionWelcome           Action = "welcome"
	ActionShowMenu          Action = "menu"
	ActionStatus            Action = "status"
	ActionNotificationsMenu Action = "notifications"
	ActionSubscribe         Action = "subscribe"
	ActionUnsubscribe       Action = "unsubscribe"
	ActionWatchlist         Action = "watchlist"
	ActionPromptFollow      Action = "prompt_follow"
	ActionPromptUnfollow    Action = "prompt_unfollow"
	ActionFollow            Action = "follow"
	ActionUnfollow          Action = "unfollow"
	ActionAbort             Action = "abort"
	ActionUnknown           Action = "unknown"
)

// Decision is the outcome of feeding one message to the state machine.
type Decision struct {
	Action Action
	// NextState is the state to store once the action succeeds.
	NextState State
	// RetryState is the state to store when Argument does not resolve to a member.
	RetryState State
	// Argument carries the member name for follow/unfollow.
	Argument string
}

// Decide computes the action and next state for text received in state.
// The machine has no terminal state: every path returns to NONE or IN_MENU
// or re-prompts.
func Decide(state State, text string) Decision {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, CommandStart) {
		return Decision{Action: ActionWelcome, NextState: StateInMenu}
	}

	if state.Awaiting() {
		if text == CommandMenu {
			return Decision{Action: ActionAbort, NextState: StateNone}
		}
		action := ActionFollow
		if state == StateAwaitingUnfollow {
			action = ActionUnfollow
		}
		return Decision{Action: action, NextState: StateNone, RetryState: state, Argument: text}
	}

	switch text {
	case CommandMenu:
		return Decision{Action: ActionShowMenu, NextState: StateInMenu}
	case CommandStatus:
		return Decision{Action: ActionStatus, NextState: state}
	case CommandNotifications:
		return Decision{Action: ActionNotificationsMenu, NextState: StateInMenu}
	case CommandSubscribe:
		return Decision{Action: ActionSubscribe, NextState: StateInMenu}
	case CommandUnsubscribe:
		return Decision{Action: ActionUnsubscribe, NextState: StateInMenu}
	case CommandWatchlist:
		return Decision{Action: ActionWatchlist, NextState: StateInMenu}
	case CommandFollow:
		return Decision{Action: ActionPromptFollow, NextState: StateAwaitingFollow}
	case CommandUnfollow:
		return Decision{Action: ActionPromptUnfollow, NextState: StateAwaitingUnfollow}
	default:
		return Decision{Action: ActionUnknown, NextState: state}
	}
}
