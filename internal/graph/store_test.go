package graph

import (
	"testing"
	"time"
)

func newTestLight(t *testing.T, owner Handle) (Handle, *Light) {
	t.Helper()
	h := Handle{Kind: KindLight, ID: NewID(KindLight, t.Name())}
	return h, &Light{Base: Base{H: h}, Owner: owner, On: true, Brightness: 50}
}

func TestStoreApplyAndGet(t *testing.T) {
	s := NewStore()
	devHandle := Handle{Kind: KindDevice, ID: NewID(KindDevice, "dev-1")}
	dev := &Device{Base: Base{H: devHandle}, Metadata: Metadata{Name: "Device 1"}}

	lightHandle, light := newTestLight(t, devHandle)
	dev.Services = []Handle{lightHandle}

	err := s.Apply([]Mutation{
		{Kind: ChangeAdded, Handle: devHandle, Resource: dev},
		{Kind: ChangeAdded, Handle: lightHandle, Resource: light},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, ok := s.Get(lightHandle)
	if !ok {
		t.Fatalf("light not found after apply")
	}
	gl := got.(*Light)
	if gl.Brightness != 50 {
		t.Errorf("brightness = %v, want 50", gl.Brightness)
	}
	if gl.Version() == 0 {
		t.Errorf("version should be assigned on commit")
	}
}

func TestStoreApplyRejectsDanglingReference(t *testing.T) {
	s := NewStore()
	ghost := Handle{Kind: KindDevice, ID: NewID(KindDevice, "ghost")}
	lightHandle, light := newTestLight(t, ghost)

	err := s.Apply([]Mutation{{Kind: ChangeAdded, Handle: lightHandle, Resource: light}})
	if err == nil {
		t.Fatalf("expected reference violation")
	}
	if _, ok := s.Get(lightHandle); ok {
		t.Fatalf("rejected batch must not be partially committed")
	}
}

func TestStoreApplyAllowsIntraBatchReference(t *testing.T) {
	s := NewStore()
	devHandle := Handle{Kind: KindDevice, ID: NewID(KindDevice, "dev-2")}
	lightHandle, light := newTestLight(t, devHandle)
	dev := &Device{Base: Base{H: devHandle}, Services: []Handle{lightHandle}}

	err := s.Apply([]Mutation{
		{Kind: ChangeAdded, Handle: lightHandle, Resource: light},
		{Kind: ChangeAdded, Handle: devHandle, Resource: dev},
	})
	if err != nil {
		t.Fatalf("apply should allow references resolved within the same batch: %v", err)
	}
}

func TestStoreDeleteRemovesResource(t *testing.T) {
	s := NewStore()
	lightHandle, light := newTestLight(t, Handle{})
	if err := s.Apply([]Mutation{{Kind: ChangeAdded, Handle: lightHandle, Resource: light}}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := s.Apply([]Mutation{{Kind: ChangeDeleted, Handle: lightHandle}}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := s.Get(lightHandle); ok {
		t.Fatalf("light should be gone after delete")
	}
}

func TestStoreGetReturnsIndependentCopy(t *testing.T) {
	s := NewStore()
	lightHandle, light := newTestLight(t, Handle{})
	if err := s.Apply([]Mutation{{Kind: ChangeAdded, Handle: lightHandle, Resource: light}}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	got, _ := s.Get(lightHandle)
	got.(*Light).Brightness = 1
	again, _ := s.Get(lightHandle)
	if again.(*Light).Brightness == 1 {
		t.Fatalf("mutating a Get result must not affect the stored resource")
	}
}

func TestSubscribeDeliversCoalescedBatch(t *testing.T) {
	s := NewStore()
	sub := s.Subscribe()
	defer sub.Close()

	lightHandle, light := newTestLight(t, Handle{})
	if err := s.Apply([]Mutation{{Kind: ChangeAdded, Handle: lightHandle, Resource: light}}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	select {
	case ev := <-sub.Events:
		if len(ev.Mutations) != 1 {
			t.Fatalf("mutations = %d, want 1", len(ev.Mutations))
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}
}

func TestSubscribeCoalescesRapidUpdatesToSameHandle(t *testing.T) {
	s := NewStore()
	lightHandle, light := newTestLight(t, Handle{})
	if err := s.Apply([]Mutation{{Kind: ChangeAdded, Handle: lightHandle, Resource: light}}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	sub := s.Subscribe()
	defer sub.Close()

	for i := 0; i < 5; i++ {
		updated := light.Clone().(*Light)
		updated.Brightness = float64(10 + i)
		if err := s.Apply([]Mutation{{Kind: ChangeUpdated, Handle: lightHandle, Resource: updated}}); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}

	select {
	case ev := <-sub.Events:
		if len(ev.Mutations) != 1 {
			t.Fatalf("expected the 5 rapid updates to coalesce into 1 record, got %d", len(ev.Mutations))
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}
}

func TestSubscribeFromReplaysRetainedTail(t *testing.T) {
	s := NewStore()

	lightHandle, light := newTestLight(t, Handle{})
	if err := s.Apply([]Mutation{{Kind: ChangeAdded, Handle: lightHandle, Resource: light}}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	var firstSeq int64
	sub := s.Subscribe()
	select {
	case ev := <-sub.Events:
		firstSeq = ev.Seq
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for first event")
	}
	sub.Close()

	lightHandle2 := Handle{Kind: KindLight, ID: NewID(KindLight, t.Name()+"/second")}
	light2 := &Light{Base: Base{H: lightHandle2}, On: true, Brightness: 50, Metadata: Metadata{Name: "second"}}
	if err := s.Apply([]Mutation{{Kind: ChangeAdded, Handle: lightHandle2, Resource: light2}}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	resumed, err := s.SubscribeFrom(firstSeq)
	if err != nil {
		t.Fatalf("subscribe from: %v", err)
	}
	defer resumed.Close()

	select {
	case ev := <-resumed.Events:
		if len(ev.Mutations) != 1 || ev.Mutations[0].Handle != lightHandle2 {
			t.Fatalf("replayed event = %+v, want the second light's add", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for replayed event")
	}
}

func TestSubscribeFromReportsGapPastRetainedTail(t *testing.T) {
	s := NewStore()
	_, err := s.SubscribeFrom(999999)
	if err == nil {
		t.Fatalf("expected an overrun error for a fromSeq far past anything recorded")
	}
}
