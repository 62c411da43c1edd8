package usage

import (
	"context"
	"sync"
	"testing"
	"time"
)

type countingCommitter struct {
	mu      sync.Mutex
	charges []Charge
	panicOn string
}

func (c *countingCommitter) Commit(ctx context.Context, ch Charge) {
	if ch.UserID == c.panicOn {
		panic("boom")
	}
	if _, ok := ctx.Deadline(); !ok {
		panic("commit without deadline")
	}
	c.mu.Lock()
	c.charges = append(c.charges, ch)
	c.mu.Unlock()
}

func TestDispatcherCommitsEverySubmission(t *testing.T) {
	committer := &countingCommitter{panicOn: "bad"}
	d := NewDispatcher(committer, 2, 1, time.Second)
	d.Start()

	for i := 0; i < 50; i++ {
		d.Submit(Charge{UserID: "u"})
	}
	d.Submit(Charge{UserID: "bad"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(committer.charges) != 50 {
		t.Fatalf("commits = %d, want 50", len(committer.charges))
	}
}

func TestDispatcherDrainWithoutStart(t *testing.T) {
	committer := &countingCommitter{}
	d := NewDispatcher(committer, 1, 4, time.Second)
	d.Submit(Charge{UserID: "u"})
	d.Submit(Charge{UserID: "u"})
	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(committer.charges) != 2 {
		t.Fatalf("commits = %d, want 2", len(committer.charges))
	}
}

func TestDispatcherSubmitAfterDrainCommitsInline(t *testing.T) {
	committer := &countingCommitter{}
	d := NewDispatcher(committer, 1, 4, time.Second)
	d.Start()
	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	d.Submit(Charge{UserID: "late"})
	if len(committer.charges) != 1 || committer.charges[0].UserID != "late" {
		t.Fatalf("late charge not committed before Submit returned: %+v", committer.charges)
	}
	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("second Drain: %v", err)
	}
}
