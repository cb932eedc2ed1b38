package candlestore

import (
	"sync"
	"testing"
	"time"

	"cryptocore/internal/model"
)

func bar(instrument string, sec int, close float64) model.Candle {
	return model.Candle{
		Instrument: instrument,
		TS:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(sec) * time.Second),
		Open:       close, High: close + 1, Low: close - 1, Close: close, Volume: 10,
	}
}

func TestStore_AppendAndRead(t *testing.T) {
	s := New(10)
	for i := 0; i < 5; i++ {
		s.Update("BTCUSDT", bar("BTCUSDT", i, 100+float64(i)))
	}

	if s.Size("BTCUSDT") != 5 {
		t.Fatalf("size = %d, want 5", s.Size("BTCUSDT"))
	}

	got := s.ReadAll("BTCUSDT")
	if len(got) != 5 {
		t.Fatalf("read len = %d, want 5", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i].TS.After(got[i-1].TS) {
			t.Fatalf("bars not in increasing TS order at %d", i)
		}
	}
	if got[0].Close != 100 || got[4].Close != 104 {
		t.Fatalf("wrong snapshot contents: first=%v last=%v", got[0].Close, got[4].Close)
	}
}

func TestStore_CapEvictsOldest(t *testing.T) {
	s := New(3)
	for i := 0; i < 7; i++ {
		s.Update("ETHUSDT", bar("ETHUSDT", i, float64(i)))
	}

	if s.Size("ETHUSDT") != 3 {
		t.Fatalf("size = %d, want cap 3", s.Size("ETHUSDT"))
	}
	got := s.ReadAll("ETHUSDT")
	want := []float64{4, 5, 6}
	for i, w := range want {
		if got[i].Close != w {
			t.Errorf("bar %d: close = %v, want %v", i, got[i].Close, w)
		}
	}
}

func TestStore_ReadCount(t *testing.T) {
	s := New(10)
	for i := 0; i < 8; i++ {
		s.Update("BTCUSDT", bar("BTCUSDT", i, float64(i)))
	}

	got := s.Read("BTCUSDT", 3)
	if len(got) != 3 {
		t.Fatalf("read(3) len = %d", len(got))
	}
	// Most recent 3, oldest-first.
	if got[0].Close != 5 || got[2].Close != 7 {
		t.Fatalf("read(3) = [%v..%v], want [5..7]", got[0].Close, got[2].Close)
	}

	// count beyond size returns everything
	if n := len(s.Read("BTCUSDT", 100)); n != 8 {
		t.Fatalf("read(100) len = %d, want 8", n)
	}
}

func TestStore_RejectsNonIncreasingTS(t *testing.T) {
	s := New(10)
	s.Update("BTCUSDT", bar("BTCUSDT", 5, 100))
	s.Update("BTCUSDT", bar("BTCUSDT", 5, 101)) // duplicate TS
	s.Update("BTCUSDT", bar("BTCUSDT", 3, 102)) // earlier TS

	if s.Size("BTCUSDT") != 1 {
		t.Fatalf("size = %d, want 1 (late bars dropped)", s.Size("BTCUSDT"))
	}
	if got := s.ReadAll("BTCUSDT"); got[0].Close != 100 {
		t.Fatalf("stored close = %v, want 100", got[0].Close)
	}
}

func TestStore_UnknownInstrument(t *testing.T) {
	s := New(10)
	if got := s.ReadAll("NOPE"); got != nil {
		t.Fatalf("expected nil snapshot, got %v", got)
	}
	if s.Size("NOPE") != 0 {
		t.Fatal("expected size 0")
	}
	if s.HasMinimumHistory("NOPE", 1) {
		t.Fatal("expected no minimum history")
	}
}

func TestStore_SnapshotImmutable(t *testing.T) {
	s := New(5)
	s.Update("BTCUSDT", bar("BTCUSDT", 0, 100))

	snap := s.ReadAll("BTCUSDT")
	snap[0].Close = -1

	if got := s.ReadAll("BTCUSDT"); got[0].Close != 100 {
		t.Fatalf("mutating a snapshot leaked into the store: close = %v", got[0].Close)
	}
}

func TestStore_ConcurrentInstrumentsIndependent(t *testing.T) {
	s := New(50)
	instruments := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT"}

	var wg sync.WaitGroup
	for _, inst := range instruments {
		inst := inst
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.Update(inst, bar(inst, i, float64(i)))
				_ = s.Read(inst, 10)
			}
		}()
	}
	wg.Wait()

	for _, inst := range instruments {
		if s.Size(inst) != 50 {
			t.Errorf("%s: size = %d, want 50", inst, s.Size(inst))
		}
		got := s.ReadAll(inst)
		for i := 1; i < len(got); i++ {
			if !got[i].TS.After(got[i-1].TS) {
				t.Errorf("%s: out-of-order snapshot at %d", inst, i)
			}
		}
	}
}
