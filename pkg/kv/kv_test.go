package kv

import (
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	opts := DefaultOptions()
	opts.Path = t.TempDir()
	db, err := Open(opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSubtreeSetGetDelete(t *testing.T) {
	db := openTestDB(t)
	st, err := db.Subtree("mauve_data::docs")
	if err != nil {
		t.Fatalf("Subtree: %v", err)
	}

	if err := st.Set("a", []byte("hello")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := st.Get("a")
	if err != nil || !ok || string(v) != "hello" {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}

	prior, ok, err := st.Delete("a")
	if err != nil || !ok || string(prior) != "hello" {
		t.Fatalf("Delete = %q, %v, %v", prior, ok, err)
	}
	if _, ok, _ := st.Get("a"); ok {
		t.Fatal("expected key to be gone after Delete")
	}
}

func TestSubtreeIsolatedByPrefix(t *testing.T) {
	db := openTestDB(t)
	a, err := db.Subtree("mauve_data::a")
	if err != nil {
		t.Fatalf("Subtree a: %v", err)
	}
	b, err := db.Subtree("mauve_data::b")
	if err != nil {
		t.Fatalf("Subtree b: %v", err)
	}

	if err := a.Set("key", []byte("in-a")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, err := b.Get("key"); err != nil || ok {
		t.Fatalf("expected subtree b not to see subtree a's key, ok=%v err=%v", ok, err)
	}
}

func TestListSubtreesFiltersByPrefix(t *testing.T) {
	db := openTestDB(t)
	for _, name := range []string{"mauve_meta::x", "mauve_meta::y", "mauve_data::x"} {
		if _, err := db.Subtree(name); err != nil {
			t.Fatalf("Subtree(%q): %v", name, err)
		}
	}
	names, err := db.ListSubtrees("mauve_meta::")
	if err != nil {
		t.Fatalf("ListSubtrees: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("got %v, want 2 mauve_meta:: subtrees", names)
	}
}

func TestDropSubtreeRemovesAllKeysAndRegistration(t *testing.T) {
	db := openTestDB(t)
	st, err := db.Subtree("mauve_data::doomed")
	if err != nil {
		t.Fatalf("Subtree: %v", err)
	}
	if err := st.Set("a", []byte("1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := st.Set("b", []byte("2")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if err := db.DropSubtree("mauve_data::doomed"); err != nil {
		t.Fatalf("DropSubtree: %v", err)
	}

	names, err := db.ListSubtrees("mauve_data::")
	if err != nil {
		t.Fatalf("ListSubtrees: %v", err)
	}
	for _, n := range names {
		if n == "mauve_data::doomed" {
			t.Fatal("expected dropped subtree to be absent from registry")
		}
	}

	st2, err := db.Subtree("mauve_data::doomed")
	if err != nil {
		t.Fatalf("re-Subtree: %v", err)
	}
	if n, err := st2.Count(); err != nil || n != 0 {
		t.Fatalf("Count after drop = %d, %v, want 0", n, err)
	}
}

func TestPrefixIterAscendingAndStripsPrefix(t *testing.T) {
	db := openTestDB(t)
	st, err := db.Subtree("mauve_data::docs")
	if err != nil {
		t.Fatalf("Subtree: %v", err)
	}
	for _, k := range []string{"b", "a", "c"} {
		if err := st.Set(k, []byte(k)); err != nil {
			t.Fatalf("Set(%q): %v", k, err)
		}
	}
	kvs, err := st.PrefixIter("")
	if err != nil {
		t.Fatalf("PrefixIter: %v", err)
	}
	if len(kvs) != 3 {
		t.Fatalf("got %d entries, want 3", len(kvs))
	}
	for i, want := range []string{"a", "b", "c"} {
		if kvs[i].Key != want {
			t.Fatalf("kvs[%d].Key = %q, want %q", i, kvs[i].Key, want)
		}
	}
}

func TestWatchReceivesSetAndDeleteEvents(t *testing.T) {
	db := openTestDB(t)
	st, err := db.Subtree("mauve_meta::docs")
	if err != nil {
		t.Fatalf("Subtree: %v", err)
	}
	ch, unsub := st.Watch()
	defer unsub()

	if err := st.Set("a", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ev := <-ch
	if ev.Kind != EventInsert || ev.Key != "a" || string(ev.Value) != "v" {
		t.Fatalf("got %+v, want Insert a=v", ev)
	}

	if _, _, err := st.Delete("a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ev = <-ch
	if ev.Kind != EventRemove || ev.Key != "a" {
		t.Fatalf("got %+v, want Remove a", ev)
	}
}

func TestSetPublishesPreviousValue(t *testing.T) {
	db := openTestDB(t)
	st, err := db.Subtree("mauve_meta::docs")
	if err != nil {
		t.Fatalf("Subtree: %v", err)
	}
	ch, unsub := st.Watch()
	defer unsub()

	if err := st.Set("a", []byte("first")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ev := <-ch
	if ev.HasPrev {
		t.Fatalf("got HasPrev=true on first write, want false: %+v", ev)
	}

	if err := st.Set("a", []byte("second")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ev = <-ch
	if !ev.HasPrev || string(ev.PrevValue) != "first" || string(ev.Value) != "second" {
		t.Fatalf("got %+v, want HasPrev=true PrevValue=first Value=second", ev)
	}
}

func TestWatchSurvivesSlowConsumerBurst(t *testing.T) {
	db := openTestDB(t)
	st, err := db.Subtree("mauve_meta::docs")
	if err != nil {
		t.Fatalf("Subtree: %v", err)
	}
	ch, unsub := st.Watch()
	defer unsub()

	const n = 1000
	for i := 0; i < n; i++ {
		if err := st.Set("k", []byte{byte(i)}); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	got := 0
	for i := 0; i < n; i++ {
		<-ch
		got++
	}
	if got != n {
		t.Fatalf("got %d events, want %d: publish must never drop an event", got, n)
	}
}

func TestTransactCommitsAtomically(t *testing.T) {
	db := openTestDB(t)
	st, err := db.Subtree("mauve_fwd::docs")
	if err != nil {
		t.Fatalf("Subtree: %v", err)
	}
	err = st.Transact(func(tx *Txn) error {
		if err := tx.Set("a", []byte("1")); err != nil {
			return err
		}
		return tx.Set("b", []byte("2"))
	})
	if err != nil {
		t.Fatalf("Transact: %v", err)
	}
	if v, ok, _ := st.Get("a"); !ok || string(v) != "1" {
		t.Fatal("expected committed write to be visible")
	}
}

func TestTransactDiscardsOnError(t *testing.T) {
	db := openTestDB(t)
	st, err := db.Subtree("mauve_fwd::docs")
	if err != nil {
		t.Fatalf("Subtree: %v", err)
	}
	wantErr := mc6errSentinel()
	err = st.Transact(func(tx *Txn) error {
		if err := tx.Set("never-committed", []byte("x")); err != nil {
			return err
		}
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("Transact error = %v, want %v", err, wantErr)
	}
	if _, ok, _ := st.Get("never-committed"); ok {
		t.Fatal("expected write inside a failed transaction to be discarded")
	}
}

func mc6errSentinel() error {
	return &sentinelError{}
}

type sentinelError struct{}

func (*sentinelError) Error() string { return "sentinel" }
