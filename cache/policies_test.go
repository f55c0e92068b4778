package cache

import "testing"

func TestPolicyByName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", PolicyClock, PolicyLRU, Policy2Q} {
		p, err := PolicyByName[string](name, 4)
		if err != nil || p == nil {
			t.Fatalf("%q: policy=%v err=%v", name, p, err)
		}
		c := New(Options[string]{NumSets: 1, MaxElemsPerSet: 4, Policy: p, Hash: oneSet})
		for _, k := range []string{"a", "b", "c", "d", "e", "f"} {
			put(c, k, k)
		}
		if n := c.Len(); n != 4 {
			t.Fatalf("%q: Len=%d, want 4", name, n)
		}
	}

	if _, err := PolicyByName[string]("fifo", 4); err == nil {
		t.Fatal("unknown policy must fail")
	}
}
