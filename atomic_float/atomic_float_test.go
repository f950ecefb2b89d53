package atomic_float

import (
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestAtomicAdd(t *testing.T) {
	Convey("When AtomicAdd is called", t, func() {
		Convey("When multiple writers add to the float value concurrently", func() {
			af := NewAtomicFloat64(0.0)
			numOps := 3000
			numWriters := 200

			start := make(chan struct{})
			wg := sync.WaitGroup{}
			wg.Add(numWriters)
			adder := func() {
				defer wg.Done()
				<-start
				for i := 0; i < numOps; i++ {
					for succeeded := false; !succeeded; _, succeeded = af.AtomicAdd(1.0) {
					}
				}
			}

			for i := 0; i < numWriters; i++ {
				go adder()
			}

			// Wait for goroutines to begin
			time.Sleep(time.Millisecond * 10)
			close(start)
			wg.Wait()
			So(af.AtomicRead(), ShouldEqual, float64(numOps*numWriters))
		})

		Convey("When multiple writers increment and decrement the float value concurrently", func() {
			af := NewAtomicFloat64(0.0)
			numOps := 3000
			numWriters := 200

			start := make(chan struct{})
			wg := sync.WaitGroup{}
			wg.Add(numWriters * 2)
			incrementer := func() {
				defer wg.Done()
				<-start
				for i := 0; i < numOps; i++ {
					af.Accumulate(1.0)
				}
			}
			decrementer := func() {
				defer wg.Done()
				<-start
				for i := 0; i < numOps; i++ {
					af.Accumulate(-1.0)
				}
			}

			for i := 0; i < numWriters; i++ {
				go incrementer()
				go decrementer()
			}

			time.Sleep(time.Millisecond * 10)
			close(start)
			wg.Wait()
			So(af.AtomicRead(), ShouldEqual, float64(0.0))
		})
	})

	Convey("When setting the value", t, func() {
		af := NewAtomicFloat64(0.25)
		So(af.AtomicRead(), ShouldEqual, 0.25)
		So(af.AtomicSet(0.5), ShouldBeTrue)
		So(af.AtomicRead(), ShouldEqual, 0.5)
		af.Store(-1)
		So(af.AtomicRead(), ShouldEqual, -1.0)
	})
}
