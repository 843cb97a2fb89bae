package wizard

import "testing"

func TestStore_MissingSessionIsNone(t *testing.T) {
	s := NewStore()

	sess := s.Get(1)
	if sess.Phase != PhaseNone {
		t.Fatalf("missing session phase = %v, want PhaseNone", sess.Phase)
	}
	if len(sess.Fields) != 0 || len(sess.Photos) != 0 || len(sess.Clips) != 0 {
		t.Fatalf("missing session should be empty: %+v", sess)
	}
	if s.Active() != 0 {
		t.Fatalf("Get must not create a session, active = %d", s.Active())
	}
}

func TestStore_Mutations(t *testing.T) {
	s := NewStore()

	s.SetPhase(1, PhaseTitle)
	s.SetField(1, FieldTitle, "Foo")
	s.AddPhoto(1, "p1")
	s.AddPhoto(1, "p2")
	s.AddClip(1, "v1")

	sess := s.Get(1)
	if sess.Phase != PhaseTitle {
		t.Fatalf("phase = %v, want PhaseTitle", sess.Phase)
	}
	if sess.Fields[FieldTitle] != "Foo" {
		t.Fatalf("field = %q, want %q", sess.Fields[FieldTitle], "Foo")
	}
	if len(sess.Photos) != 2 || sess.Photos[0] != "p1" || sess.Photos[1] != "p2" {
		t.Fatalf("photos = %v", sess.Photos)
	}
	if len(sess.Clips) != 1 || sess.Clips[0] != "v1" {
		t.Fatalf("clips = %v", sess.Clips)
	}
	if s.Active() != 1 {
		t.Fatalf("active = %d, want 1", s.Active())
	}
}

func TestStore_Clear(t *testing.T) {
	s := NewStore()
	s.SetPhase(1, PhaseMedia)
	s.AddPhoto(1, "p1")

	s.Clear(1)

	sess := s.Get(1)
	if sess.Phase != PhaseNone || len(sess.Photos) != 0 {
		t.Fatalf("clear did not reset the session: %+v", sess)
	}
	if s.Active() != 0 {
		t.Fatalf("active = %d after clear, want 0", s.Active())
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := NewStore()
	s.SetField(1, FieldTitle, "Foo")
	s.AddPhoto(1, "p1")

	sess := s.Get(1)
	sess.Fields[FieldTitle] = "tampered"
	sess.Photos[0] = "tampered"

	fresh := s.Get(1)
	if fresh.Fields[FieldTitle] != "Foo" || fresh.Photos[0] != "p1" {
		t.Fatalf("mutating the returned session leaked into the store: %+v", fresh)
	}
}

func TestStore_UsersAreIsolated(t *testing.T) {
	s := NewStore()
	s.SetField(1, FieldTitle, "A")
	s.SetField(2, FieldTitle, "B")
	s.Clear(1)

	if got := s.Get(2).Fields[FieldTitle]; got != "B" {
		t.Fatalf("clearing user 1 touched user 2: %q", got)
	}
}
