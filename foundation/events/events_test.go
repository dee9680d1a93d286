package events_test

import (
	"testing"

	"github.com/ardanlabs/shardchain/foundation/events"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Events(t *testing.T) {
	t.Log("Given the need to fan out events to receivers.")
	{
		t.Logf("\tTest 0:\tWhen two receivers are registered.")
		{
			evts := events.New()

			id1, ch1 := evts.Acquire()
			id2, ch2 := evts.Acquire()
			if id1 == id2 || evts.Count() != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould hand out unique ids: %s %s", failed, id1, id2)
			}
			t.Logf("\t%s\tTest 0:\tShould hand out unique ids.", success)

			evts.Send("shard: Push: started")
			if <-ch1 != "shard: Push: started" || <-ch2 != "shard: Push: started" {
				t.Fatalf("\t%s\tTest 0:\tShould deliver the event to every receiver.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould deliver the event to every receiver.", success)

			if err := evts.Release(id1); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to release a receiver: %v", failed, err)
			}
			if _, open := <-ch1; open {
				t.Fatalf("\t%s\tTest 0:\tShould close a released channel.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould close a released channel.", success)

			if err := evts.Release(id1); err == nil {
				t.Fatalf("\t%s\tTest 0:\tShould fail to release an unknown id.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould fail to release an unknown id.", success)

			evts.Shutdown()
			if _, open := <-ch2; open || evts.Count() != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould close every channel on shutdown.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould close every channel on shutdown.", success)
		}
	}
}
