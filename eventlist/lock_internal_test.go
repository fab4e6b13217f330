package eventlist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_Lock_AcquireWrite_CarriesTheHoldInTheContext(t *testing.T) {
	lock := NewLock()
	other := NewLock()

	ctx, release := lock.acquireWrite(context.Background())
	assert.True(t, lock.HeldBy(ctx))
	assert.False(t, other.HeldBy(ctx))
	assert.False(t, lock.HeldBy(context.Background()))

	nestedCtx, releaseNested := lock.acquireWrite(ctx)
	assert.Equal(t, ctx, nestedCtx)
	releaseNested()

	release()

	_, releaseAgain := lock.acquireWrite(context.Background())
	releaseAgain()
}

func Test_Lock_ReadersWaitForTheWriter(t *testing.T) {
	lock := NewLock()
	_, release := lock.acquireWrite(context.Background())

	read := make(chan struct{})
	go func() {
		lock.RLock()
		defer lock.RUnlock()
		close(read)
	}()

	select {
	case <-read:
		t.Fatal("reader got in while the write lock was held")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	<-read
}

func Test_Lock_WriteWhileDispatching_Panics(t *testing.T) {
	lock := NewLock()
	ctx, release := lock.acquireWrite(context.Background())
	defer release()

	endDispatch := lock.beginDispatch()
	assert.PanicsWithValue(t, ErrReentrantWrite, func() { lock.acquireWrite(ctx) })
	endDispatch()

	assert.NotPanics(t, func() {
		_, releaseNested := lock.acquireWrite(ctx)
		releaseNested()
	})
}

func Test_Lock_WriteWithoutTheHold_WaitsForTheDispatchingWriter(t *testing.T) {
	lock := NewLock()
	_, release := lock.acquireWrite(context.Background())
	endDispatch := lock.beginDispatch()

	acquired := make(chan struct{})
	go func() {
		_, releaseOther := lock.acquireWrite(context.Background())
		defer releaseOther()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("a write without the hold got in while listeners were notified")
	case <-time.After(20 * time.Millisecond):
	}

	endDispatch()
	release()
	<-acquired
}
