package evalcache

import "testing"

func TestCacheSetGet(t *testing.T) {
	c, err := New(1000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	k := Key(0x1234, 0xabcd)
	if _, ok := c.Get(k); ok {
		t.Fatal("empty cache reported a hit")
	}

	c.Set(k, -57)
	c.Wait()

	got, ok := c.Get(k)
	if !ok || got != -57 {
		t.Errorf("Get() = %d, %v; want -57, true", got, ok)
	}

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Errorf("Stats() = %+v, want 1 hit and 1 miss", st)
	}
}

func TestKeyDependsOnNetwork(t *testing.T) {
	if Key(42, 1) == Key(42, 2) {
		t.Error("same position under different networks maps to one key")
	}
}

func TestNewRejectsZeroSize(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Error("New(0) succeeded")
	}
}
