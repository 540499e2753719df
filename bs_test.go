package vbs

import (
	"encoding/json"
	"testing"
	"testing/quick"
)

func TestRefHex(t *testing.T) {
	f := func(b [32]byte) bool {
		ref := Ref(b)
		got, err := RefFromHex(ref.String())
		return err == nil && got == ref
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}

	if _, err := RefFromHex("abc"); err == nil {
		t.Error("got no error decoding a short hex string")
	}
	if _, err := RefFromHex("zz"); err == nil {
		t.Error("got no error decoding a non-hex string")
	}
}

func TestRefLess(t *testing.T) {
	var (
		a = Ref{0x01}
		b = Ref{0x02}
	)
	if !a.Less(b) || b.Less(a) || a.Less(a) {
		t.Errorf("bad ordering of %s and %s", a, b)
	}
	if !Zero.Less(a) {
		t.Error("Zero should sort first")
	}
}

func TestRefJSON(t *testing.T) {
	type wrapper struct {
		R  Ref     `json:"r"`
		Rc Receipt `json:"rc"`
	}
	in := wrapper{R: Blob("x").Ref(), Rc: Receipt{0xff}}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out wrapper
	if err = json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Errorf("got %+v, want %+v", out, in)
	}
}

func TestRefScan(t *testing.T) {
	want := Blob("scan me").Ref()

	var got Ref
	if err := got.Scan(want[:]); err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	if err := got.Scan("not bytes"); err == nil {
		t.Error("got no error scanning a string")
	}
	if err := got.Scan([]byte{1, 2, 3}); err == nil {
		t.Error("got no error scanning a short byte slice")
	}
}
