package conversation

import (
	"strings"
	"testing"
	"time"
)

func TestDecide_Commands(t *testing.T) {
	tests := []struct {
		name       string
		state      State
		text       string
		wantAction Action
		wantNext   State
	}{
		{"start from none", StateNone, "/start", ActionWelcome, StateInMenu},
		{"start with payload", StateNone, "/start ref42", ActionWelcome, StateInMenu},
		{"start aborts a prompt", StateAwaitingFollow, "/start", ActionWelcome, StateInMenu},
		{"menu", StateNone, "Menu", ActionShowMenu, StateInMenu},
		{"status keeps state", StateInMenu, "Status", ActionStatus, StateInMenu},
		{"status from none", StateNone, "Status", ActionStatus, StateNone},
		{"notifications", StateInMenu, "Notifications", ActionNotificationsMenu, StateInMenu},
		{"subscribe", StateInMenu, "Subscribe", ActionSubscribe, StateInMenu},
		{"unsubscribe", StateInMenu, "Unsubscribe", ActionUnsubscribe, StateInMenu},
		{"watchlist", StateNone, "Watchlist", ActionWatchlist, StateInMenu},
		{"follow from menu", StateInMenu, "Follow", ActionPromptFollow, StateAwaitingFollow},
		{"follow from none", StateNone, "Follow", ActionPromptFollow, StateAwaitingFollow},
		{"unfollow", StateInMenu, "Unfollow", ActionPromptUnfollow, StateAwaitingUnfollow},
		{"commands are case sensitive", StateInMenu, "follow", ActionUnknown, StateInMenu},
		{"whitespace is trimmed", StateInMenu, "  Menu \n", ActionShowMenu, StateInMenu},
		{"unknown text", StateNone, "hello", ActionUnknown, StateNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.state, tt.text)
			if got.Action != tt.wantAction {
				t.Errorf("Action = %q, want %q", got.Action, tt.wantAction)
			}
			if got.NextState != tt.wantNext {
				t.Errorf("NextState = %q, want %q", got.NextState, tt.wantNext)
			}
		})
	}
}

func TestDecide_AwaitingStates(t *testing.T) {
	t.Run("follow target name", func(t *testing.T) {
		got := Decide(StateAwaitingFollow, " Steve ")
		if got.Action != ActionFollow || got.Argument != "Steve" {
			t.Fatalf("got %+v, want follow Steve", got)
		}
		if got.NextState != StateNone {
			t.Errorf("NextState = %q, want NONE", got.NextState)
		}
		if got.RetryState != StateAwaitingFollow {
			t.Errorf("RetryState = %q, want AWAITING_FOLLOW_TARGET", got.RetryState)
		}
	})

	t.Run("unfollow target name", func(t *testing.T) {
		got := Decide(StateAwaitingUnfollow, "Alex")
		if got.Action != ActionUnfollow || got.Argument != "Alex" {
			t.Fatalf("got %+v, want unfollow Alex", got)
		}
		if got.RetryState != StateAwaitingUnfollow {
			t.Errorf("RetryState = %q", got.RetryState)
		}
	})

	t.Run("menu aborts without a subscription", func(t *testing.T) {
		for _, state := range []State{StateAwaitingFollow, StateAwaitingUnfollow} {
			got := Decide(state, "Menu")
			if got.Action != ActionAbort || got.NextState != StateNone {
				t.Errorf("%s: got %+v, want abort to NONE", state, got)
			}
		}
	})

	t.Run("other commands are treated as names", func(t *testing.T) {
		got := Decide(StateAwaitingFollow, "Status")
		if got.Action != ActionFollow || got.Argument != "Status" {
			t.Errorf("got %+v, want follow with argument Status", got)
		}
	})
}

func TestParseState(t *testing.T) {
	tests := []struct {
		in   string
		want State
	}{
		{"", StateNone},
		{"NONE", StateNone},
		{"IN_MENU", StateInMenu},
		{"AWAITING_FOLLOW_TARGET", StateAwaitingFollow},
		{"AWAITING_UNFOLLOW_TARGET", StateAwaitingUnfollow},
		{"garbage", StateNone},
	}
	for _, tt := range tests {
		if got := ParseState(tt.in); got != tt.want {
			t.Errorf("ParseState(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNotificationsKeyboard(t *testing.T) {
	if got := NotificationsKeyboard(true)[0][0]; got != CommandUnsubscribe {
		t.Errorf("subscribed keyboard offers %q, want Unsubscribe", got)
	}
	if got := NotificationsKeyboard(false)[0][0]; got != CommandSubscribe {
		t.Errorf("unsubscribed keyboard offers %q, want Subscribe", got)
	}
}

func TestStatusText(t *testing.T) {
	updated := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	t.Run("no targets", func(t *testing.T) {
		if got := StatusText(nil, nil); got != NoTargetsStatusText {
			t.Errorf("got %q", got)
		}
	})

	t.Run("up and down targets", func(t *testing.T) {
		got := StatusText([]TargetStatus{
			{Name: "alpha", Up: true, Population: 2, Capacity: 20, Players: []string{"Steve", "Alex"}, UpdatedAt: updated},
			{Name: "beta", Up: false},
		}, time.UTC)

		for _, want := range []string{"alpha is active", "Online: 2/20", "Steve, Alex", "01 Mar 2026 12:30:00", "beta is not active"} {
			if !strings.Contains(got, want) {
				t.Errorf("status text missing %q:\n%s", want, got)
			}
		}
	})

	t.Run("empty server", func(t *testing.T) {
		got := StatusText([]TargetStatus{{Name: "alpha", Up: true, Capacity: 10, UpdatedAt: updated}}, nil)
		if !strings.Contains(got, "Players: nobody") {
			t.Errorf("expected nobody online, got %q", got)
		}
	})
}

func TestWatchlistText(t *testing.T) {
	if got := WatchlistText(nil); got != EmptyWatchlistText {
		t.Errorf("got %q", got)
	}
	got := WatchlistText([]WatchEntry{{Name: "Steve", Target: "alpha", Present: true}, {Name: "Alex", Target: "alpha"}})
	if !strings.Contains(got, "Steve - 🟢 (alpha)") || !strings.Contains(got, "Alex - 🔴 (alpha)") {
		t.Errorf("unexpected watchlist:\n%s", got)
	}
}

func TestWelcomeText_Fallback(t *testing.T) {
	if !strings.Contains(WelcomeText(""), "friend") {
		t.Error("expected fallback name")
	}
	if !strings.Contains(WelcomeText("Ana"), "Ana") {
		t.Error("expected first name")
	}
}
