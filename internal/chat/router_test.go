package chat

import (
	"testing"

	"github.com/andy6609/line-relay/internal/filter"
	"github.com/andy6609/line-relay/internal/protocol"
)

func newTestRouter(t *testing.T, banned ...string) (*Registry, *Router) {
	t.Helper()
	reg := NewRegistry()
	return reg, NewRouter(reg, filter.New(banned), nil)
}

func route(t *testing.T, r *Router, sender *Session, line string) {
	t.Helper()
	cmd, err := protocol.Parse(line)
	if err != nil {
		t.Fatalf("Parse(%q): %v", line, err)
	}
	r.Route(sender, cmd)
}

func TestRouter_BroadcastIncludesSender(t *testing.T) {
	reg, r := newTestRouter(t)
	alice := register(t, reg, "alice")
	bob := register(t, reg, "bob")

	route(t, r, alice, "MESSAGE_ALL hello")

	for _, s := range []*Session{alice, bob} {
		if got := waitForPrefix(t, s, "MESSAGE_ALL "); got != "MESSAGE_ALL alice: hello" {
			t.Fatalf("%s got %q", s.Username, got)
		}
		expectNothing(t, s)
	}
}

func TestRouter_DirectIsCaseInsensitive(t *testing.T) {
	reg, r := newTestRouter(t)
	alice := register(t, reg, "Alice")
	bob := register(t, reg, "Bob")
	carol := register(t, reg, "carol")

	route(t, r, bob, "MESSAGE_TO alice: hi")

	if got := waitForPrefix(t, alice, "MESSAGE_PERSONAL "); got != "MESSAGE_PERSONAL from Bob: hi" {
		t.Fatalf("recipient got %q", got)
	}
	if got := waitForPrefix(t, bob, "MESSAGE_PERSONAL "); got != "MESSAGE_PERSONAL To Alice: hi" {
		t.Fatalf("sender got %q", got)
	}
	expectNothing(t, carol)

	route(t, r, bob, "MESSAGE_TO alicee: hi")
	if got := waitForPrefix(t, bob, "MESSAGE_PERSONAL "); got != "MESSAGE_PERSONAL Server: User 'alicee' not found" {
		t.Fatalf("sender got %q", got)
	}
	expectNothing(t, alice)
	expectNothing(t, carol)
}

func TestRouter_MultipleRecipients(t *testing.T) {
	reg, r := newTestRouter(t)
	alice := register(t, reg, "alice")
	bob := register(t, reg, "bob")
	carol := register(t, reg, "carol")
	dave := register(t, reg, "dave")

	route(t, r, alice, "MESSAGE_TO_MULTIPLE bob, CAROL, ghost, bob: lunch?")

	for _, s := range []*Session{bob, carol} {
		if got := waitForPrefix(t, s, "MESSAGE_PERSONAL "); got != "MESSAGE_PERSONAL from alice: lunch?" {
			t.Fatalf("%s got %q", s.Username, got)
		}
		expectNothing(t, s)
	}
	if got := waitForPrefix(t, alice, "MESSAGE_PERSONAL "); got != "MESSAGE_PERSONAL To [bob, carol]: lunch?" {
		t.Fatalf("sender got %q", got)
	}
	expectNothing(t, dave)

	route(t, r, alice, "MESSAGE_TO_MULTIPLE ghost, nobody: hello")
	if got := waitForPrefix(t, alice, "MESSAGE_PERSONAL "); got != "MESSAGE_PERSONAL Server: None of the selected users were found" {
		t.Fatalf("sender got %q", got)
	}
	expectNothing(t, bob)
}

func TestRouter_ExceptSkipsExcludedUser(t *testing.T) {
	reg, r := newTestRouter(t)
	a := register(t, reg, "A")
	b := register(t, reg, "B")
	c := register(t, reg, "C")

	route(t, r, a, "MESSAGE_EXCEPT b: hi")

	for _, s := range []*Session{a, c} {
		if got := waitForPrefix(t, s, "MESSAGE_EXCEPT "); got != "MESSAGE_EXCEPT A (except B): hi" {
			t.Fatalf("%s got %q", s.Username, got)
		}
	}
	expectNothing(t, b)

	route(t, r, a, "MESSAGE_EXCEPT zed: hi")
	if got := waitForPrefix(t, a, "MESSAGE_PERSONAL "); got != "MESSAGE_PERSONAL Server: User 'zed' not found" {
		t.Fatalf("sender got %q", got)
	}
	expectNothing(t, b)
	expectNothing(t, c)
}

func TestRouter_ExceptSenderExcludesSelf(t *testing.T) {
	reg, r := newTestRouter(t)
	a := register(t, reg, "A")
	b := register(t, reg, "B")

	route(t, r, a, "MESSAGE_EXCEPT a: hi")

	if got := waitForPrefix(t, b, "MESSAGE_EXCEPT "); got != "MESSAGE_EXCEPT A (except A): hi" {
		t.Fatalf("got %q", got)
	}
	expectNothing(t, a)
}

func TestRouter_FilterAppliesToEveryMode(t *testing.T) {
	reg, r := newTestRouter(t, "spam")
	alice := register(t, reg, "alice")
	bob := register(t, reg, "bob")

	lines := []string{
		"MESSAGE_ALL spam",
		"MESSAGE_ALL spam now",
		"MESSAGE_TO bob: buy spam",
		"MESSAGE_TO_MULTIPLE bob: buy SPAM now",
		"MESSAGE_EXCEPT bob: spam",
	}
	for _, line := range lines {
		route(t, r, alice, line)
		if got := waitForPrefix(t, alice, "MESSAGE_PERSONAL "); got != "MESSAGE_PERSONAL Server: Your message contains banned content" {
			t.Fatalf("%q: sender got %q", line, got)
		}
		expectNothing(t, alice)
		expectNothing(t, bob)
	}

	route(t, r, alice, "MESSAGE_ALL spammer")
	if got := waitForPrefix(t, bob, "MESSAGE_ALL "); got != "MESSAGE_ALL alice: spammer" {
		t.Fatalf("got %q", got)
	}
}

func TestRouter_RosterExcludesRecipient(t *testing.T) {
	reg, r := newTestRouter(t)
	alice := register(t, reg, "alice")
	bob := register(t, reg, "bob")
	carol := register(t, reg, "carol")

	r.BroadcastRoster()

	want := map[*Session]string{
		alice: "CLIENT_LIST bob, carol",
		bob:   "CLIENT_LIST alice, carol",
		carol: "CLIENT_LIST alice, bob",
	}
	for s, line := range want {
		if got := waitForPrefix(t, s, "CLIENT_LIST"); got != line {
			t.Fatalf("%s got %q, want %q", s.Username, got, line)
		}
	}

	reg.Remove("bob", bob)
	route(t, r, alice, "REQUEST_USER_LIST")
	if got := waitForPrefix(t, alice, "CLIENT_LIST"); got != "CLIENT_LIST carol" {
		t.Fatalf("got %q", got)
	}
	expectNothing(t, carol)
}

func TestRouter_SlowRecipientDoesNotBlockOthers(t *testing.T) {
	reg, r := newTestRouter(t)
	alice := register(t, reg, "alice")
	slow := NewSession(nil, 1, nil, nil)
	if err := reg.TryRegister("slow", slow); err != nil {
		t.Fatal(err)
	}
	slow.Send("filler")

	route(t, r, alice, "MESSAGE_ALL one")
	route(t, r, alice, "MESSAGE_ALL two")

	waitForPrefix(t, alice, "MESSAGE_ALL alice: one")
	waitForPrefix(t, alice, "MESSAGE_ALL alice: two")
	if got := <-slow.out; got != "filler" {
		t.Fatalf("slow recipient got %q", got)
	}
	drain(slow)
}

func TestRouter_ClosedRecipientIsSkipped(t *testing.T) {
	reg, r := newTestRouter(t)
	alice := register(t, reg, "alice")
	bob := register(t, reg, "bob")
	_ = bob.Close()

	route(t, r, alice, "MESSAGE_TO bob: hi")

	if got := waitForPrefix(t, alice, "MESSAGE_PERSONAL "); got != "MESSAGE_PERSONAL To bob: hi" {
		t.Fatalf("sender got %q", got)
	}
	expectNothing(t, bob)
}
