package gameobject

import "testing"

// typedThing embeds *BaseObject by pointer, the same way every content
// class does, and never overrides MoveTo.
type typedThing struct {
	*BaseObject
	label string
}

func newTypedThing(label string) *typedThing {
	return &typedThing{BaseObject: NewBaseObject(), label: label}
}

func TestMoveToPreservesConcreteType(t *testing.T) {
	room := newTypedThing("room")
	item := newTypedThing("item")

	item.BindSelf(item)
	room.BindSelf(room)

	if !item.MoveTo(room) {
		t.Fatal("expected MoveTo to succeed")
	}

	inv := room.Inventory()
	if len(inv) != 1 {
		t.Fatalf("expected 1 item in inventory, got %d", len(inv))
	}
	got, ok := inv[0].(*typedThing)
	if !ok {
		t.Fatalf("expected inventory entry to keep its concrete *typedThing type, got %T", inv[0])
	}
	if got.label != "item" {
		t.Fatalf("expected label %q, got %q", "item", got.label)
	}
}

func TestMoveToWithoutBindSelfFallsBackToBaseObject(t *testing.T) {
	room := NewBaseObject()
	item := NewBaseObject()

	if !item.MoveTo(room) {
		t.Fatal("expected MoveTo to succeed")
	}
	inv := room.Inventory()
	if len(inv) != 1 || inv[0] != GameObject(item) {
		t.Fatalf("expected the bare BaseObject itself in inventory, got %+v", inv)
	}
}

func TestMoveToRemovesFromPreviousEnvironment(t *testing.T) {
	roomA := newTypedThing("a")
	roomB := newTypedThing("b")
	item := newTypedThing("item")
	roomA.BindSelf(roomA)
	roomB.BindSelf(roomB)
	item.BindSelf(item)

	item.MoveTo(roomA)
	item.MoveTo(roomB)

	if len(roomA.Inventory()) != 0 {
		t.Fatalf("expected item removed from roomA, inventory=%+v", roomA.Inventory())
	}
	if len(roomB.Inventory()) != 1 {
		t.Fatalf("expected item present in roomB, inventory=%+v", roomB.Inventory())
	}
	if item.Environment() != GameObject(roomB) {
		t.Fatal("expected item's environment to be roomB")
	}
}

func TestIdMatchesShortDescTokens(t *testing.T) {
	o := NewBaseObject()
	o.SetShortDesc("a rusty iron sword")
	if !o.Id("sword") || !o.Id("RUSTY") {
		t.Fatal("expected Id to match whitespace-split, case-folded tokens")
	}
	if o.Id("shield") {
		t.Fatal("expected Id to reject a non-matching token")
	}
}

func TestGetSet(t *testing.T) {
	o := NewBaseObject()
	o.Set("weight", 5)
	v, ok := o.Get("weight")
	if !ok || v != 5 {
		t.Fatalf("expected Get to return the value set via Set, got %v ok=%v", v, ok)
	}
	if _, ok := o.Get("missing"); ok {
		t.Fatal("expected Get on an unset key to report false")
	}
}
