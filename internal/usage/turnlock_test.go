package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisTurnLockerExcludesSameSession(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	locker := NewRedisTurnLocker(client, time.Second)

	unlock, err := locker.Lock(context.Background(), "u1", "s1")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	if _, errBusy := locker.Lock(ctx, "u1", "s1"); !errors.Is(errBusy, ErrLockBusy) {
		t.Fatalf("second Lock error = %v, want ErrLockBusy", errBusy)
	}

	other, errOther := locker.Lock(context.Background(), "u1", "s2")
	if errOther != nil {
		t.Fatalf("other session Lock: %v", errOther)
	}
	other()

	unlock()
	if mr.Exists(turnLockKey("u1", "s1")) {
		t.Fatalf("lock key still present after unlock")
	}
	again, errAgain := locker.Lock(context.Background(), "u1", "s1")
	if errAgain != nil {
		t.Fatalf("relock: %v", errAgain)
	}
	again()
}

func TestRedisTurnLockerUnlockKeepsForeignLease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	locker := NewRedisTurnLocker(client, time.Second)

	unlock, err := locker.Lock(context.Background(), "u1", "s1")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	// Lease expired and was taken by another holder.
	if errSet := mr.Set(turnLockKey("u1", "s1"), "someone-else"); errSet != nil {
		t.Fatalf("set: %v", errSet)
	}
	unlock()
	if got, _ := mr.Get(turnLockKey("u1", "s1")); got != "someone-else" {
		t.Fatalf("foreign lease removed, value = %q", got)
	}
}
