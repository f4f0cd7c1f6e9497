package rpc

import (
	"encoding/json"
	"strings"

	"metagate/core/metatx"
	"metagate/crypto"
)

// SubmitParams is the relayer payload for metatx_submit. Numeric fields take
// decimal or 0x hex strings; identities take 0x hex or bech32.
type SubmitParams struct {
	Target    string          `json:"target,omitempty"`
	Message   string          `json:"message"`
	Signer    string          `json:"signer"`
	Partition json.RawMessage `json:"partition"`
	Value     json.RawMessage `json:"value"`
	Signature string          `json:"signature"`
}

// ApproveParams is the payload for metatx_approve.
type ApproveParams struct {
	Command   string          `json:"command"`
	Signer    string          `json:"signer"`
	Partition json.RawMessage `json:"partition"`
	Value     json.RawMessage `json:"value"`
	Signature string          `json:"signature"`
}

type bitmapQueryParams struct {
	Identity string          `json:"identity"`
	Bucket   json.RawMessage `json:"bucket"`
	Value    json.RawMessage `json:"value"`
}

type nonceQueryParams struct {
	Identity string          `json:"identity"`
	Channel  json.RawMessage `json:"channel"`
}

type identityParams struct {
	Identity string `json:"identity"`
}

type digestParams struct {
	Message   *string         `json:"message,omitempty"`
	Command   string          `json:"command,omitempty"`
	Partition json.RawMessage `json:"partition"`
	Value     json.RawMessage `json:"value"`
}

type recentEventsParams struct {
	Limit int `json:"limit"`
}

// ReceiptResult describes an accepted meta-transaction.
type ReceiptResult struct {
	Digest    string `json:"digest"`
	Command   string `json:"command"`
	Signer    string `json:"signer"`
	SignerHex string `json:"signerHex"`
	Policy    string `json:"policy"`
	Partition string `json:"partition"`
	Value     string `json:"value"`
}

// DigestResult carries the digest a signer must sign.
type DigestResult struct {
	Digest  string `json:"digest"`
	Command string `json:"command"`
}

// InfoResult describes the gateway instance.
type InfoResult struct {
	Target    string `json:"target"`
	TargetHex string `json:"targetHex"`
	Policy    string `json:"policy"`
	Tag       string `json:"tag"`
}

func formatReceipt(r *metatx.Receipt) ReceiptResult {
	return ReceiptResult{
		Digest:    r.Digest.Hex(),
		Command:   r.Command.Hex(),
		Signer:    crypto.AddressFromIdentity(r.Signer).String(),
		SignerHex: strings.ToLower(r.Signer.Hex()),
		Policy:    string(r.Policy),
		Partition: r.Partition.Dec(),
		Value:     r.Value.Dec(),
	}
}
