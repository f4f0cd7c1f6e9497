package replay

import "testing"

func TestParsePolicy(t *testing.T) {
	for _, p := range Policies {
		got, err := ParsePolicy(" " + string(p) + " ")
		if err != nil || got != p {
			t.Fatalf("ParsePolicy(%q) = %q, %v", p, got, err)
		}
		protector, err := New(p)
		if err != nil {
			t.Fatalf("New(%q): %v", p, err)
		}
		if protector.Policy() != p {
			t.Fatalf("New(%q).Policy() = %q", p, protector.Policy())
		}
	}
	if _, err := ParsePolicy("flip"); err == nil {
		t.Fatalf("expected unknown policy to fail")
	}
}

func TestPolicyTagsAreDistinct(t *testing.T) {
	seen := map[string]Policy{}
	for _, p := range Policies {
		tag := p.Tag().Hex()
		if prev, ok := seen[tag]; ok {
			t.Fatalf("policies %q and %q share a tag", prev, p)
		}
		seen[tag] = p
	}
}

func TestQueryCapabilities(t *testing.T) {
	cases := []struct {
		policy   Policy
		bitmap   bool
		window   bool
		sequence bool
	}{
		{PolicyBitmap, true, false, false},
		{PolicyWindowedBitmap, true, true, false},
		{PolicySequenceStrict, false, false, true},
		{PolicySequenceMonotonic, false, false, true},
	}
	for _, tc := range cases {
		p, _ := New(tc.policy)
		_, isBitmap := p.(BitmapQuerier)
		_, isWindow := p.(WindowQuerier)
		_, isSequence := p.(SequenceQuerier)
		if isBitmap != tc.bitmap || isWindow != tc.window || isSequence != tc.sequence {
			t.Fatalf("%s: capabilities bitmap=%t window=%t sequence=%t", tc.policy, isBitmap, isWindow, isSequence)
		}
	}
}
