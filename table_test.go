package lmdbx

import (
	"fmt"
	"runtime"
	"testing"
)

func TestTableUseAfterTxnFinish(t *testing.T) {
	env := newTestEnv(t)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	txn, err := env.BeginTxn(nil, TxnReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	tb, err := txn.OpenRoot(0)
	if err != nil {
		t.Fatal(err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	if _, err := tb.Get([]byte("k")); Code(err) != ErrTxnDone {
		t.Errorf("Get after txn commit: got %v, want ErrTxnDone", err)
	}
	if err := tb.Put([]byte("k"), []byte("v"), 0); Code(err) != ErrTxnDone {
		t.Errorf("Put after txn commit: got %v, want ErrTxnDone", err)
	}
}

func TestTableUseAfterClose(t *testing.T) {
	env := newTestEnv(t)

	err := env.View(func(txn *Txn) error {
		tb, err := txn.OpenRoot(0)
		if err != nil {
			return err
		}
		tb.Close()
		tb.Close()
		if _, err := tb.Get([]byte("k")); Code(err) != ErrTableClosed {
			t.Errorf("Get after table close: got %v, want ErrTableClosed", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestTableDelAbsent(t *testing.T) {
	env := newTestEnv(t)

	err := env.Update(func(txn *Txn) error {
		tb, err := txn.OpenRoot(0)
		if err != nil {
			return err
		}
		err = tb.Del([]byte("never-existed"), nil)
		if !IsNotFound(err) {
			t.Errorf("Del absent key: got %v, want ErrNotFound", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestTableNoOverwrite(t *testing.T) {
	env := newTestEnv(t)

	err := env.Update(func(txn *Txn) error {
		tb, err := txn.OpenRoot(0)
		if err != nil {
			return err
		}
		if err := tb.Put([]byte("k"), []byte("v1"), 0); err != nil {
			return err
		}
		err = tb.Put([]byte("k"), []byte("v2"), NoOverwrite)
		if !IsKeyExist(err) {
			t.Errorf("Put NoOverwrite on existing key: got %v, want ErrKeyExist", err)
		}
		v, err := tb.Get([]byte("k"))
		if err != nil {
			return err
		}
		if string(v) != "v1" {
			t.Errorf("value clobbered: %q", v)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestTableStatAndFlags(t *testing.T) {
	env := newTestEnv(t)

	err := env.Update(func(txn *Txn) error {
		tb, err := txn.OpenTable("dup", CreateTable|DupSort)
		if err != nil {
			return err
		}
		for i := 0; i < 100; i++ {
			key := []byte(fmt.Sprintf("key-%03d", i))
			if err := tb.Put(key, []byte("v"), 0); err != nil {
				return err
			}
		}
		st, err := tb.Stat()
		if err != nil {
			return err
		}
		if st.Entries != 100 {
			t.Errorf("Entries = %d, want 100", st.Entries)
		}
		if st.Depth == 0 || st.LeafPages == 0 {
			t.Errorf("implausible stat: %+v", st)
		}
		flags, err := tb.Flags()
		if err != nil {
			return err
		}
		if flags&DupSort == 0 {
			t.Errorf("Flags = %#x, DupSort bit missing", flags)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestTableDropEmptiesData(t *testing.T) {
	env := newTestEnv(t)

	err := env.Update(func(txn *Txn) error {
		tb, err := txn.OpenTable("victim", CreateTable)
		if err != nil {
			return err
		}
		if err := tb.Put([]byte("k"), []byte("v"), 0); err != nil {
			return err
		}
		if err := tb.Drop(false); err != nil {
			return err
		}
		// Handle survives an empty-only drop.
		v, err := tb.Get([]byte("k"))
		if err != nil {
			return err
		}
		if v != nil {
			t.Errorf("data survived drop: %q", v)
		}
		return tb.Put([]byte("k2"), []byte("v2"), 0)
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestTableDropDeleteClosesHandle(t *testing.T) {
	env := newTestEnv(t)

	err := env.Update(func(txn *Txn) error {
		tb, err := txn.OpenTable("goner", CreateTable)
		if err != nil {
			return err
		}
		if err := tb.Drop(true); err != nil {
			return err
		}
		if _, err := tb.Get([]byte("k")); Code(err) != ErrTableClosed {
			t.Errorf("Get after Drop(true): got %v, want ErrTableClosed", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestTableCmp(t *testing.T) {
	env := newTestEnv(t)

	err := env.View(func(txn *Txn) error {
		tb, err := txn.OpenRoot(0)
		if err != nil {
			return err
		}
		lt, err := tb.Cmp([]byte("a"), []byte("b"))
		if err != nil {
			return err
		}
		gt, err := tb.Cmp([]byte("b"), []byte("a"))
		if err != nil {
			return err
		}
		eq, err := tb.Cmp([]byte("a"), []byte("a"))
		if err != nil {
			return err
		}
		if lt >= 0 || gt <= 0 || eq != 0 {
			t.Errorf("Cmp ordering broken: %d %d %d", lt, gt, eq)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestTableDupSortDel(t *testing.T) {
	env := newTestEnv(t)

	err := env.Update(func(txn *Txn) error {
		tb, err := txn.OpenTable("dups", CreateTable|DupSort)
		if err != nil {
			return err
		}
		for _, v := range []string{"one", "two", "three"} {
			if err := tb.Put([]byte("k"), []byte(v), 0); err != nil {
				return err
			}
		}
		// Delete a single duplicate.
		if err := tb.Del([]byte("k"), []byte("two")); err != nil {
			return err
		}
		cur, err := tb.OpenCursor()
		if err != nil {
			return err
		}
		defer cur.Close()
		if _, _, err := cur.Get([]byte("k"), nil, Set); err != nil {
			return err
		}
		n, err := cur.Count()
		if err != nil {
			return err
		}
		if n != 2 {
			t.Errorf("Count after dup delete = %d, want 2", n)
		}
		// Delete the rest of the key.
		if err := tb.Del([]byte("k"), nil); err != nil {
			return err
		}
		v, err := tb.Get([]byte("k"))
		if err != nil {
			return err
		}
		if v != nil {
			t.Errorf("key survived full delete: %q", v)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestPutReserve(t *testing.T) {
	env := newTestEnv(t)

	err := env.Update(func(txn *Txn) error {
		tb, err := txn.OpenRoot(0)
		if err != nil {
			return err
		}
		buf, err := tb.PutReserve([]byte("r"), 5, 0)
		if err != nil {
			return err
		}
		if len(buf) != 5 {
			t.Fatalf("reserved %d bytes, want 5", len(buf))
		}
		copy(buf, "hello")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = env.View(func(txn *Txn) error {
		tb, err := txn.OpenRoot(0)
		if err != nil {
			return err
		}
		v, err := tb.Get([]byte("r"))
		if err != nil {
			return err
		}
		if string(v) != "hello" {
			t.Errorf("reserved value = %q, want hello", v)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
