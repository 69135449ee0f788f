package lmdbx

import (
	"bytes"
	"fmt"
	"testing"
)

func fillTable(t *testing.T, env *Env, name string, n int) {
	t.Helper()
	err := env.Update(func(txn *Txn) error {
		tb, err := txn.OpenTable(name, CreateTable)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			key := []byte(fmt.Sprintf("key-%04d", i))
			val := []byte(fmt.Sprintf("val-%04d", i))
			if err := tb.Put(key, val, 0); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCursorIteration(t *testing.T) {
	env := newTestEnv(t)
	fillTable(t, env, "iter", 50)

	err := env.View(func(txn *Txn) error {
		tb, err := txn.OpenTable("iter", 0)
		if err != nil {
			return err
		}
		cur, err := tb.OpenCursor()
		if err != nil {
			return err
		}
		defer cur.Close()

		count := 0
		var prev []byte
		for k, _, err := cur.Get(nil, nil, First); ; k, _, err = cur.Get(nil, nil, Next) {
			if err != nil {
				if IsNotFound(err) {
					break
				}
				return err
			}
			if prev != nil && bytes.Compare(prev, k) >= 0 {
				t.Errorf("keys out of order: %q then %q", prev, k)
			}
			prev = append(prev[:0], k...)
			count++
		}
		if count != 50 {
			t.Errorf("iterated %d entries, want 50", count)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCursorSetRange(t *testing.T) {
	env := newTestEnv(t)
	fillTable(t, env, "range", 20)

	err := env.View(func(txn *Txn) error {
		tb, err := txn.OpenTable("range", 0)
		if err != nil {
			return err
		}
		cur, err := tb.OpenCursor()
		if err != nil {
			return err
		}
		defer cur.Close()

		k, _, err := cur.Get([]byte("key-0010x"), nil, SetRange)
		if err != nil {
			return err
		}
		if string(k) != "key-0011" {
			t.Errorf("SetRange landed on %q, want key-0011", k)
		}

		// Exact lookup misses between keys.
		_, _, err = cur.Get([]byte("key-0010x"), nil, Set)
		if !IsNotFound(err) {
			t.Errorf("Set on absent key: got %v, want ErrNotFound", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCursorLastPrev(t *testing.T) {
	env := newTestEnv(t)
	fillTable(t, env, "rev", 10)

	err := env.View(func(txn *Txn) error {
		tb, err := txn.OpenTable("rev", 0)
		if err != nil {
			return err
		}
		cur, err := tb.OpenCursor()
		if err != nil {
			return err
		}
		defer cur.Close()

		k, _, err := cur.Get(nil, nil, Last)
		if err != nil {
			return err
		}
		if string(k) != "key-0009" {
			t.Errorf("Last = %q", k)
		}
		k, _, err = cur.Get(nil, nil, Prev)
		if err != nil {
			return err
		}
		if string(k) != "key-0008" {
			t.Errorf("Prev = %q", k)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCursorPutDel(t *testing.T) {
	env := newTestEnv(t)

	err := env.Update(func(txn *Txn) error {
		tb, err := txn.OpenTable("cpd", CreateTable)
		if err != nil {
			return err
		}
		cur, err := tb.OpenCursor()
		if err != nil {
			return err
		}
		defer cur.Close()

		if err := cur.Put([]byte("a"), []byte("1"), 0); err != nil {
			return err
		}
		if err := cur.Put([]byte("b"), []byte("2"), 0); err != nil {
			return err
		}

		if _, _, err := cur.Get([]byte("a"), nil, Set); err != nil {
			return err
		}
		if err := cur.Del(0); err != nil {
			return err
		}

		v, err := tb.Get([]byte("a"))
		if err != nil {
			return err
		}
		if v != nil {
			t.Errorf("deleted key still present: %q", v)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCursorClosedByTxnEnd(t *testing.T) {
	env := newTestEnv(t)

	var cur *Cursor
	err := env.Update(func(txn *Txn) error {
		tb, err := txn.OpenRoot(0)
		if err != nil {
			return err
		}
		cur, err = tb.OpenCursor()
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	// The write transaction committed; its cursor must be dead.
	if _, _, err := cur.Get(nil, nil, First); Code(err) != ErrCursorClosed {
		t.Errorf("Get on dead cursor: got %v, want ErrCursorClosed", err)
	}
	if err := cur.Del(0); Code(err) != ErrCursorClosed {
		t.Errorf("Del on dead cursor: got %v, want ErrCursorClosed", err)
	}
	cur.Close() // no-op
}

func TestCursorRenew(t *testing.T) {
	env := newTestEnv(t)
	fillTable(t, env, "renew", 5)

	txn1, err := env.BeginTxn(nil, TxnReadOnly)
	if err != nil {
		t.Fatal(err)
	}
	tb, err := txn1.OpenTable("renew", 0)
	if err != nil {
		t.Fatal(err)
	}
	cur, err := tb.OpenCursor()
	if err != nil {
		t.Fatal(err)
	}
	defer cur.Close()

	if _, _, err := cur.Get(nil, nil, First); err != nil {
		t.Fatal(err)
	}
	txn1.Abort()

	// Dead transaction, surviving cursor: operations fail until renewed.
	if _, _, err := cur.Get(nil, nil, Next); Code(err) != ErrTxnDone {
		t.Errorf("Get on orphaned cursor: got %v, want ErrTxnDone", err)
	}

	txn2, err := env.BeginTxn(nil, TxnReadOnly)
	if err != nil {
		t.Fatal(err)
	}
	defer txn2.Abort()

	if err := cur.Renew(txn2); err != nil {
		t.Fatal(err)
	}
	k, _, err := cur.Get(nil, nil, First)
	if err != nil {
		t.Fatal(err)
	}
	if string(k) != "key-0000" {
		t.Errorf("renewed cursor First = %q", k)
	}
	if cur.Txn() != txn2 {
		t.Error("cursor did not re-home to the new transaction")
	}
}

func TestCursorRenewOntoWriteTxn(t *testing.T) {
	env := newTestEnv(t)
	fillTable(t, env, "rw", 1)

	txn, err := env.BeginTxn(nil, TxnReadOnly)
	if err != nil {
		t.Fatal(err)
	}
	tb, err := txn.OpenTable("rw", 0)
	if err != nil {
		t.Fatal(err)
	}
	cur, err := tb.OpenCursor()
	if err != nil {
		t.Fatal(err)
	}
	defer cur.Close()
	defer txn.Abort()

	if err := cur.Renew(nil); Code(err) != ErrIncompatible {
		t.Errorf("Renew(nil): got %v, want ErrIncompatible", err)
	}
}

func TestCursorDupFixedPutMulti(t *testing.T) {
	env := newTestEnv(t)

	err := env.Update(func(txn *Txn) error {
		tb, err := txn.OpenTable("multi", CreateTable|DupSort|DupFixed)
		if err != nil {
			return err
		}
		cur, err := tb.OpenCursor()
		if err != nil {
			return err
		}
		defer cur.Close()

		// Four fixed-size values in one page write.
		page := []byte("aaaabbbbccccdddd")
		if err := cur.PutMulti([]byte("k"), page, 4, 0); err != nil {
			return err
		}
		if _, _, err := cur.Get([]byte("k"), nil, Set); err != nil {
			return err
		}
		n, err := cur.Count()
		if err != nil {
			return err
		}
		if n != 4 {
			t.Errorf("Count = %d, want 4", n)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
