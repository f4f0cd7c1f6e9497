package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

var rpcEndpoint = defaultRPCEndpoint() // overridden via METAGATE_RPC_URL or --rpc
var rpcAuthToken = os.Getenv("METAGATE_RPC_TOKEN")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	args, err := applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if len(args) < 1 {
		fmt.Fprintln(stderr, usage())
		return 1
	}

	switch args[0] {
	case "keygen":
		return runKeygen(args[1:], stdout, stderr)
	case "address":
		return runAddress(args[1:], stdout, stderr)
	case "digest":
		return runDigest(args[1:], stdout, stderr)
	case "sign":
		return runSign(args[1:], stdout, stderr)
	case "submit":
		return runSubmit(args[1:], os.Stdin, stdout, stderr)
	case "query":
		return runQuery(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func usage() string {
	return strings.TrimSpace(`
Usage: metagate-cli [--rpc URL] <command> [flags]

Commands:
  keygen   --out FILE                     create a signer keystore
  address  --key FILE                     print the signer identity
  digest   --target ID --policy P ...     compute the digest a signer authorizes
  sign     --key FILE --target ID ...     sign a broadcast and print the submit request
  submit   [--file FILE]                  send a signed request (stdin by default)
  query    <info|stateRoot|nonce|bitmap|bucket|events> [flags]
`)
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("METAGATE_RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8545/rpc"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}
