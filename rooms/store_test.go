package rooms_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"livecodeshare-server/core"
	"livecodeshare-server/rooms"
	"livecodeshare-server/rooms/roomstest"
)

func newTestStore(clock *roomstest.ManualClock, opts ...rooms.Option) *rooms.Store {
	return rooms.NewStore(append([]rooms.Option{rooms.WithClock(clock), rooms.WithGracePeriod(10 * time.Second)}, opts...)...)
}

func TestNewStore(t *testing.T) {
	store := rooms.NewStore()
	if store == nil {
		t.Fatal("NewStore() returned nil")
	}
	if store.Count() != 0 {
		t.Errorf("new store has %d rooms, want 0", store.Count())
	}
	if store.Cleanup().Delay() != rooms.DefaultGracePeriod {
		t.Errorf("default grace period = %v, want %v", store.Cleanup().Delay(), rooms.DefaultGracePeriod)
	}
}

func TestGetOrCreate_DefaultState(t *testing.T) {
	store := newTestStore(roomstest.NewManualClock())

	var state core.RoomState
	var members int
	store.GetOrCreate("r1", func(r *rooms.Room) {
		state = r.State()
		members = r.MemberCount()
	})

	if state.Code != "" {
		t.Errorf("new room code = %q, want empty", state.Code)
	}
	if state.Language != core.DefaultLanguage {
		t.Errorf("new room language = %q, want %q", state.Language, core.DefaultLanguage)
	}
	if members != 0 {
		t.Errorf("new room has %d members, want 0", members)
	}
	if store.Count() != 1 {
		t.Errorf("Count() = %d, want 1", store.Count())
	}
}

func TestGetOrCreate_CustomLanguage(t *testing.T) {
	store := newTestStore(roomstest.NewManualClock(), rooms.WithDefaultLanguage("python"))

	var language string
	store.GetOrCreate("r1", func(r *rooms.Room) { language = r.State().Language })
	if language != "python" {
		t.Errorf("language = %q, want python", language)
	}
}

func TestGetOrCreate_ReturnsExisting(t *testing.T) {
	store := newTestStore(roomstest.NewManualClock())

	store.GetOrCreate("r1", func(r *rooms.Room) { r.SetCode("x=1") })

	var code string
	store.GetOrCreate("r1", func(r *rooms.Room) { code = r.State().Code })
	if code != "x=1" {
		t.Errorf("code = %q, want x=1", code)
	}
	if store.Count() != 1 {
		t.Errorf("Count() = %d, want 1", store.Count())
	}
}

func TestGetOrCreate_Hooks(t *testing.T) {
	clock := roomstest.NewManualClock()
	var created, removed []string
	store := newTestStore(clock,
		rooms.WithCreateHook(func(id string) { created = append(created, id) }),
		rooms.WithRemoveHook(func(id string) { removed = append(removed, id) }),
	)

	store.GetOrCreate("r1", func(r *rooms.Room) { store.Cleanup().Schedule(r) })
	store.GetOrCreate("r1", func(r *rooms.Room) { store.Cleanup().Schedule(r) })
	clock.Advance(10 * time.Second)

	if len(created) != 1 || created[0] != "r1" {
		t.Errorf("created hooks = %v, want [r1]", created)
	}
	if len(removed) != 1 || removed[0] != "r1" {
		t.Errorf("removed hooks = %v, want [r1]", removed)
	}
}

func TestGet_Missing(t *testing.T) {
	store := newTestStore(roomstest.NewManualClock())

	called := false
	if store.Get("missing", func(*rooms.Room) { called = true }) {
		t.Error("Get() reported a missing room as present")
	}
	if called {
		t.Error("Get() ran the callback for a missing room")
	}
	if store.Count() != 0 {
		t.Errorf("Get() created a room: Count() = %d", store.Count())
	}
}

func TestSetDocumentAndLanguage(t *testing.T) {
	store := newTestStore(roomstest.NewManualClock())

	if store.SetDocument("r1", "ignored") {
		t.Error("SetDocument() on missing room reported success")
	}
	if store.SetLanguage("r1", "go") {
		t.Error("SetLanguage() on missing room reported success")
	}
	if store.Count() != 0 {
		t.Fatalf("setters created a room")
	}

	store.GetOrCreate("r1", func(*rooms.Room) {})
	store.SetDocument("r1", "first")
	store.SetDocument("r1", "second")
	store.SetLanguage("r1", "go")

	var state core.RoomState
	store.Get("r1", func(r *rooms.Room) { state = r.State() })
	if state.Code != "second" {
		t.Errorf("code = %q, want second (last writer wins)", state.Code)
	}
	if state.Language != "go" {
		t.Errorf("language = %q, want go", state.Language)
	}
}

func TestRemove_OnlyWhenEmpty(t *testing.T) {
	store := newTestStore(roomstest.NewManualClock())

	store.GetOrCreate("r1", func(r *rooms.Room) { r.AddMember("a") })
	if store.Remove("r1") {
		t.Fatal("Remove() deleted a room with members")
	}

	store.Get("r1", func(r *rooms.Room) { r.RemoveMember("a") })
	if !store.Remove("r1") {
		t.Fatal("Remove() did not delete an empty room")
	}
	if store.Count() != 0 {
		t.Errorf("Count() = %d after remove, want 0", store.Count())
	}
	if store.Remove("r1") {
		t.Error("second Remove() reported success")
	}
}

func TestCleanup_FiresAfterGracePeriod(t *testing.T) {
	clock := roomstest.NewManualClock()
	store := newTestStore(clock)

	store.GetOrCreate("r1", func(r *rooms.Room) {
		r.SetCode("x=1")
		store.Cleanup().Schedule(r)
	})

	clock.Advance(9 * time.Second)
	if store.Count() != 1 {
		t.Fatal("room removed before grace period elapsed")
	}

	clock.Advance(time.Second)
	if store.Count() != 0 {
		t.Fatal("room not removed after grace period")
	}

	var state core.RoomState
	store.GetOrCreate("r1", func(r *rooms.Room) { state = r.State() })
	if state.Code != "" || state.Language != core.DefaultLanguage {
		t.Errorf("recreated room state = %+v, want defaults", state)
	}
}

func TestCleanup_ScheduleIsIdempotent(t *testing.T) {
	clock := roomstest.NewManualClock()
	store := newTestStore(clock)

	store.GetOrCreate("r1", func(r *rooms.Room) {
		store.Cleanup().Schedule(r)
		store.Cleanup().Schedule(r)
	})
	if clock.Pending() != 1 {
		t.Errorf("pending timers = %d, want 1", clock.Pending())
	}
}

func TestCleanup_JoinCancels(t *testing.T) {
	clock := roomstest.NewManualClock()
	store := newTestStore(clock)

	store.GetOrCreate("r1", func(r *rooms.Room) {
		r.SetCode("keep me")
		store.Cleanup().Schedule(r)
	})

	clock.Advance(5 * time.Second)

	var pending bool
	store.GetOrCreate("r1", func(r *rooms.Room) {
		pending = r.CleanupPending()
		r.AddMember("a")
	})
	if pending {
		t.Error("GetOrCreate() did not clear the pending cleanup")
	}

	clock.Advance(time.Minute)
	var code string
	if !store.Get("r1", func(r *rooms.Room) { code = r.State().Code }) {
		t.Fatal("revived room was removed")
	}
	if code != "keep me" {
		t.Errorf("code = %q, want state preserved", code)
	}
}

func TestCleanup_CancelWithoutPending(t *testing.T) {
	store := newTestStore(roomstest.NewManualClock())
	store.GetOrCreate("r1", func(r *rooms.Room) {
		store.Cleanup().Cancel(r)
		if r.CleanupPending() {
			t.Error("Cancel() left a pending cleanup")
		}
	})
}

func TestCleanup_StaleTokenIgnored(t *testing.T) {
	clock := roomstest.NewManualClock()
	store := newTestStore(clock)

	var stale *rooms.CleanupToken
	store.GetOrCreate("r1", func(r *rooms.Room) {
		store.Cleanup().Schedule(r)
		stale = rooms.PendingToken(r)
	})
	// Revive and empty again: a new token replaces the old one.
	store.GetOrCreate("r1", func(r *rooms.Room) { store.Cleanup().Schedule(r) })

	store.Reap("r1", stale)
	if store.Count() != 1 {
		t.Fatal("stale timer removed the room")
	}

	clock.Advance(10 * time.Second)
	if store.Count() != 0 {
		t.Fatal("current timer did not remove the room")
	}
}

func TestCleanup_NotRemovedWhenMembersRejoined(t *testing.T) {
	clock := roomstest.NewManualClock()
	store := newTestStore(clock)

	var token *rooms.CleanupToken
	store.GetOrCreate("r1", func(r *rooms.Room) {
		store.Cleanup().Schedule(r)
		token = rooms.PendingToken(r)
	})
	// Membership changes without going through GetOrCreate must still block
	// the fire-time deletion.
	store.Get("r1", func(r *rooms.Room) { r.AddMember("a") })

	store.Reap("r1", token)
	if store.Count() != 1 {
		t.Fatal("room with members was reaped")
	}
}

func TestList(t *testing.T) {
	store := newTestStore(roomstest.NewManualClock())

	store.GetOrCreate("b", func(r *rooms.Room) { r.AddMember("1"); r.AddMember("2") })
	store.GetOrCreate("a", func(r *rooms.Room) { r.AddMember("3") })

	list := store.List()
	if len(list) != 2 {
		t.Fatalf("List() returned %d rooms, want 2", len(list))
	}
	if list[0].ID != "a" || list[0].Users != 1 {
		t.Errorf("list[0] = %+v, want {a 1}", list[0])
	}
	if list[1].ID != "b" || list[1].Users != 2 {
		t.Errorf("list[1] = %+v, want {b 2}", list[1])
	}
}

func TestRoomMembership(t *testing.T) {
	r := rooms.NewRoom("r1", core.DefaultLanguage)

	if !r.AddMember("a") {
		t.Error("AddMember() of new member returned false")
	}
	if r.AddMember("a") {
		t.Error("AddMember() of existing member returned true")
	}
	r.AddMember("c")
	r.AddMember("b")

	members := r.Members()
	want := []core.ConnectionID{"a", "b", "c"}
	if fmt.Sprint(members) != fmt.Sprint(want) {
		t.Errorf("Members() = %v, want %v", members, want)
	}
	if !r.RemoveMember("b") {
		t.Error("RemoveMember() of member returned false")
	}
	if r.RemoveMember("b") {
		t.Error("RemoveMember() of non-member returned true")
	}
	if r.HasMember("b") {
		t.Error("HasMember() true after removal")
	}
	if r.MemberCount() != 2 {
		t.Errorf("MemberCount() = %d, want 2", r.MemberCount())
	}
}

func TestStoreConcurrency(t *testing.T) {
	clock := roomstest.NewManualClock()
	store := newTestStore(clock)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			roomID := fmt.Sprintf("room-%d", i%5)
			id := core.ConnectionID(fmt.Sprintf("conn-%d", i))
			store.GetOrCreate(roomID, func(r *rooms.Room) { r.AddMember(id) })
			store.SetDocument(roomID, "text")
		}(i)
	}
	wg.Wait()

	total := 0
	for _, info := range store.List() {
		total += info.Users
	}
	if store.Count() != 5 {
		t.Errorf("Count() = %d, want 5", store.Count())
	}
	if total != 50 {
		t.Errorf("total members = %d, want 50", total)
	}
}
