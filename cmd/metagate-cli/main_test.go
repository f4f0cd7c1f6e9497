package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"metagate/core/metatx"
	"metagate/core/replay"
	"metagate/rpc"
	"metagate/storage"
)

const cliTarget = "0x00000000000000000000000000000000000a11ce"

func withPassphrase(t *testing.T, pass string) {
	t.Helper()
	prev := passphraseSource
	passphraseSource = func() (string, error) { return pass, nil }
	t.Cleanup(func() { passphraseSource = prev })
}

func withEndpoint(t *testing.T, url string) {
	t.Helper()
	prev := rpcEndpoint
	rpcEndpoint = url
	t.Cleanup(func() { rpcEndpoint = prev })
}

func TestDigestMatchesGateway(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"digest", "--target", cliTarget, "--policy", "sequence-strict", "--message", "hi", "--partition", "0x2", "--value", "1"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("digest exited %d: %s", code, stderr.String())
	}
	protector, _ := replay.New(replay.PolicySequenceStrict)
	gw, err := metatx.New(common.HexToAddress(cliTarget), protector, storage.NewMemDB())
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	want := gw.MessageDigest("hi", uint256.NewInt(2), uint256.NewInt(1)).Hex()
	if got := strings.TrimSpace(stdout.String()); got != want {
		t.Fatalf("digest mismatch: got %s want %s", got, want)
	}
}

func TestDigestRequiresValue(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"digest", "--target", cliTarget}, &stdout, &stderr); code == 0 {
		t.Fatalf("expected failure without --value")
	}
}

func TestKeygenSignSubmit(t *testing.T) {
	withPassphrase(t, "test-passphrase")
	keyPath := filepath.Join(t.TempDir(), "signer.keystore")

	var stdout, stderr bytes.Buffer
	if code := run([]string{"keygen", "--out", keyPath}, &stdout, &stderr); code != 0 {
		t.Fatalf("keygen exited %d: %s", code, stderr.String())
	}
	fields := strings.Fields(stdout.String())
	if len(fields) != 2 || !strings.HasPrefix(fields[0], "mtx1") {
		t.Fatalf("unexpected keygen output %q", stdout.String())
	}

	stdout.Reset()
	code := run([]string{"sign", "--key", keyPath, "--target", cliTarget, "--policy", "bitmap", "--message", "hello", "--value", "0x3"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("sign exited %d: %s", code, stderr.String())
	}
	signed := append([]byte(nil), stdout.Bytes()...)
	var params rpc.SubmitParams
	if err := json.Unmarshal(signed, &params); err != nil {
		t.Fatalf("decode signed request: %v", err)
	}
	if !strings.EqualFold(params.Signer, fields[1]) {
		t.Fatalf("signed request names %s, keygen printed %s", params.Signer, fields[1])
	}

	protector, _ := replay.New(replay.PolicyBitmap)
	gw, err := metatx.New(common.HexToAddress(cliTarget), protector, storage.NewMemDB())
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	srv := httptest.NewServer(rpc.NewServer(gw, rpc.ServerConfig{}))
	defer srv.Close()
	withEndpoint(t, srv.URL)

	stdout.Reset()
	if code := runSubmit(nil, bytes.NewReader(signed), &stdout, &stderr); code != 0 {
		t.Fatalf("submit exited %d: %s", code, stderr.String())
	}
	set, err := gw.IsBitmapSet(common.HexToAddress(fields[1]), uint256.NewInt(0), uint256.NewInt(3))
	if err != nil || !set {
		t.Fatalf("bitmap not recorded: set=%v err=%v", set, err)
	}

	stderr.Reset()
	if code := runSubmit(nil, bytes.NewReader(signed), &stdout, &stderr); code != 2 {
		t.Fatalf("replayed submit should fail with code 2, got %d", code)
	}
	if !strings.Contains(stderr.String(), "AlreadyFlipped") {
		t.Fatalf("expected taxonomy code in error, got %q", stderr.String())
	}

	stdout.Reset()
	if code := run([]string{"query", "info"}, &stdout, &stderr); code != 0 {
		t.Fatalf("query info exited %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), `"policy": "bitmap"`) {
		t.Fatalf("unexpected info output %s", stdout.String())
	}
}
