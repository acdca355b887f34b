package loopdetect

import "testing"

func TestSignStableAcrossKeyOrder(t *testing.T) {
	a := Sign("grep", []byte(`{"pattern":"foo","path":"."}`))
	b := Sign("grep", []byte(`{"path":".","pattern":"foo"}`))
	if a != b {
		t.Fatalf("signatures differ for reordered keys: %s vs %s", a, b)
	}
}

func TestSignDiffersOnArgs(t *testing.T) {
	a := Sign("grep", []byte(`{"pattern":"foo"}`))
	b := Sign("grep", []byte(`{"pattern":"bar"}`))
	if a == b {
		t.Fatal("expected different signatures for different arguments")
	}
}

func TestDetectPeriod1(t *testing.T) {
	sig := Sign("shell", []byte(`{"cmd":"ls"}`))
	sigs := make([]Signature, 10)
	for i := range sigs {
		sigs[i] = sig
	}
	if !Detect(sigs, 10) {
		t.Fatal("expected period-1 loop to be detected")
	}
}

func TestDetectPeriod2(t *testing.T) {
	a := Sign("read_file", []byte(`{"path":"a"}`))
	b := Sign("read_file", []byte(`{"path":"b"}`))
	var sigs []Signature
	for i := 0; i < 5; i++ {
		sigs = append(sigs, a, b)
	}
	if !Detect(sigs, 10) {
		t.Fatal("expected period-2 loop to be detected")
	}
}

func TestDetectNoPattern(t *testing.T) {
	var sigs []Signature
	for i := 0; i < 10; i++ {
		sigs = append(sigs, Sign("tool", []byte(`{"i":`+string(rune('0'+i))+`}`)))
	}
	if Detect(sigs, 10) {
		t.Fatal("did not expect a loop to be detected for distinct calls")
	}
}

func TestDetectRequiresFullWindow(t *testing.T) {
	sig := Sign("shell", []byte(`{}`))
	sigs := []Signature{sig, sig, sig}
	if Detect(sigs, 10) {
		t.Fatal("expected no detection below the window size")
	}
}
