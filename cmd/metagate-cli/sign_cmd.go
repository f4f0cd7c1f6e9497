package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"metagate/core/digest"
	"metagate/core/replay"
	"metagate/crypto"
	"metagate/rpc"
)

type digestFlags struct {
	target    string
	policy    string
	message   string
	partition string
	value     string
}

func (f *digestFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.target, "target", "", "gateway target identity (0x hex or bech32)")
	fs.StringVar(&f.policy, "policy", string(replay.PolicyBitmap), "replay policy of the gateway")
	fs.StringVar(&f.message, "message", "", "broadcast message")
	fs.StringVar(&f.partition, "partition", "0", "bucket or channel (decimal or 0x hex)")
	fs.StringVar(&f.value, "value", "", "flip value or next sequence (decimal or 0x hex)")
}

type resolvedDigest struct {
	target    common.Address
	partition *uint256.Int
	value     *uint256.Int
	digest    common.Hash
}

func (f *digestFlags) resolve() (*resolvedDigest, error) {
	target, err := crypto.ParseIdentity(f.target)
	if err != nil {
		return nil, fmt.Errorf("--target: %w", err)
	}
	policy, err := replay.ParsePolicy(f.policy)
	if err != nil {
		return nil, fmt.Errorf("--policy: %w", err)
	}
	if strings.TrimSpace(f.value) == "" {
		return nil, fmt.Errorf("--value is required")
	}
	partition, err := rpc.ParseWord(f.partition)
	if err != nil {
		return nil, fmt.Errorf("--partition: %w", err)
	}
	value, err := rpc.ParseWord(f.value)
	if err != nil {
		return nil, fmt.Errorf("--value: %w", err)
	}
	hash := digest.Hash(target, policy.Tag(), digest.CommandHash(f.message), partition, value)
	return &resolvedDigest{target: target, partition: partition, value: value, digest: hash}, nil
}

func runDigest(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("digest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var flags digestFlags
	flags.register(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	resolved, err := flags.resolve()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, resolved.digest.Hex())
	return 0
}

func runSign(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var flags digestFlags
	var keyFile string
	flags.register(fs)
	fs.StringVar(&keyFile, "key", "", "signer keystore file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	resolved, err := flags.resolve()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	key, code := loadKey(keyFile, stderr)
	if code != 0 {
		return code
	}
	sig, err := crypto.SignDigest(key, resolved.digest)
	if err != nil {
		fmt.Fprintf(stderr, "Error: sign: %v\n", err)
		return 1
	}
	request := rpc.SubmitParams{
		Target:    resolved.target.Hex(),
		Message:   flags.message,
		Signer:    key.Identity().Hex(),
		Partition: quoted(resolved.partition.Dec()),
		Value:     quoted(resolved.value.Dec()),
		Signature: hexutil.Encode(sig),
	}
	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(request); err != nil {
		fmt.Fprintf(stderr, "Error: encode request: %v\n", err)
		return 1
	}
	return 0
}

func quoted(s string) json.RawMessage {
	encoded, _ := json.Marshal(s)
	return encoded
}
