package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"metagate/rpc"
)

var httpClient = &http.Client{Timeout: 15 * time.Second}

func callRPC(method string, params interface{}) (json.RawMessage, *rpc.RPCError, error) {
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := strings.TrimSpace(rpcAuthToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer res.Body.Close()

	var decoded struct {
		Result json.RawMessage `json:"result"`
		Error  *rpc.RPCError   `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, nil, fmt.Errorf("decode response (HTTP %d): %w", res.StatusCode, err)
	}
	return decoded.Result, decoded.Error, nil
}

func writeRPCResult(w io.Writer, result json.RawMessage) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, result, "", "  "); err != nil {
		fmt.Fprintln(w, string(result))
		return
	}
	fmt.Fprintln(w, pretty.String())
}

func handleRPCError(w io.Writer, rpcErr *rpc.RPCError) int {
	if data, ok := rpcErr.Data.(map[string]interface{}); ok {
		if code, ok := data["code"].(string); ok && code != "" {
			fmt.Fprintf(w, "Error: %s (%s)\n", rpcErr.Message, code)
			return 2
		}
	}
	fmt.Fprintf(w, "Error: %s\n", rpcErr.Message)
	return 2
}

func runSubmit(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var file string
	fs.StringVar(&file, "file", "", "signed request JSON (defaults to stdin)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	var (
		data []byte
		err  error
	)
	if strings.TrimSpace(file) != "" {
		data, err = os.ReadFile(file)
	} else {
		data, err = io.ReadAll(stdin)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: read request: %v\n", err)
		return 1
	}
	var params rpc.SubmitParams
	if err := json.Unmarshal(data, &params); err != nil {
		fmt.Fprintf(stderr, "Error: decode request: %v\n", err)
		return 1
	}
	result, rpcErr, err := callRPC("metatx_submit", params)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func runQuery(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Error: query requires a subcommand")
		return 1
	}
	fs := flag.NewFlagSet("query "+args[0], flag.ContinueOnError)
	fs.SetOutput(stderr)
	var identity, partition, value string
	var limit int
	fs.StringVar(&identity, "identity", "", "signer identity")
	fs.StringVar(&partition, "partition", "0", "bucket or channel")
	fs.StringVar(&value, "value", "0", "bitmap value to test")
	fs.IntVar(&limit, "limit", 20, "number of events")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}

	var (
		method string
		params interface{}
	)
	switch args[0] {
	case "info":
		method = "metatx_info"
	case "stateRoot":
		method = "metatx_stateRoot"
	case "nonce":
		method = "metatx_getNonce"
		params = map[string]string{"identity": identity, "channel": partition}
	case "bitmap":
		method = "metatx_isBitmapSet"
		params = map[string]string{"identity": identity, "bucket": partition, "value": value}
	case "bucket":
		method = "metatx_currentBucket"
		params = map[string]string{"identity": identity}
	case "events":
		method = "metatx_recentEvents"
		params = map[string]int{"limit": limit}
	default:
		fmt.Fprintf(stderr, "Unknown query: %s\n", args[0])
		return 1
	}
	result, rpcErr, err := callRPC(method, params)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}
