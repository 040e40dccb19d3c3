package barrier

import (
	"sync"
	"testing"
)

func TestEnter_CombinesEveryArrivalExactlyOnce(t *testing.T) {
	b := New(3)
	var wg sync.WaitGroup
	got := make([]interface{}, 3)

	for slot := 0; slot < 3; slot++ {
		slot := slot
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[slot] = b.Enter(slot, slot+1, func(all []interface{}) interface{} {
				sum := 0
				for _, v := range all {
					sum += v.(int)
				}
				return sum
			})
		}()
	}
	wg.Wait()

	for slot, v := range got {
		if v.(int) != 6 {
			t.Errorf("slot %d: expected combined result 6, got %v", slot, v)
		}
	}
}

func TestEnter_ReusableAcrossRounds(t *testing.T) {
	b := New(2)

	for round := 0; round < 3; round++ {
		var wg sync.WaitGroup
		got := make([]interface{}, 2)
		for slot := 0; slot < 2; slot++ {
			slot := slot
			wg.Add(1)
			go func() {
				defer wg.Done()
				got[slot] = b.Enter(slot, round, func(all []interface{}) interface{} {
					return all[0].(int) + all[1].(int)
				})
			}()
		}
		wg.Wait()
		want := round + round
		if got[0].(int) != want || got[1].(int) != want {
			t.Errorf("round %d: expected both slots to see %d, got %v/%v", round, want, got[0], got[1])
		}
	}
}

func TestEnter_SingleParticipantReturnsImmediately(t *testing.T) {
	b := New(1)
	result := b.Enter(0, 42, func(all []interface{}) interface{} {
		return all[0]
	})
	if result.(int) != 42 {
		t.Errorf("expected 42, got %v", result)
	}
}
