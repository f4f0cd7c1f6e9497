package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"metagate/cmd/internal/passphrase"
	"metagate/crypto"
)

var passphraseSource = func() (string, error) {
	return passphrase.NewSource(passphrase.EnvVar).Get()
}

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var out string
	fs.StringVar(&out, "out", "signer.keystore", "path of the keystore file to create")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	pass, err := passphraseSource()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Fprintf(stderr, "Error: generate key: %v\n", err)
		return 1
	}
	if err := crypto.SaveToKeystore(strings.TrimSpace(out), key, pass); err != nil {
		fmt.Fprintf(stderr, "Error: save keystore: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "%s %s\n", key.PubKey().Address().String(), key.Identity().Hex())
	return 0
}

func runAddress(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var keyFile string
	fs.StringVar(&keyFile, "key", "", "signer keystore file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, code := loadKey(keyFile, stderr)
	if code != 0 {
		return code
	}
	fmt.Fprintf(stdout, "%s %s\n", key.PubKey().Address().String(), key.Identity().Hex())
	return 0
}

func loadKey(path string, stderr io.Writer) (*crypto.PrivateKey, int) {
	path = strings.TrimSpace(path)
	if path == "" {
		fmt.Fprintln(stderr, "Error: --key is required")
		return nil, 1
	}
	pass, err := passphraseSource()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, 1
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		fmt.Fprintf(stderr, "Error: load keystore: %v\n", err)
		return nil, 1
	}
	return key, 0
}
