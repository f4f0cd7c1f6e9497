package rpc

import (
	"fmt"
	"net/http"

	"metagate/core/digest"
	"metagate/core/metatx"
	"metagate/core/replay"
	"metagate/crypto"
	"metagate/storage/eventlog"
)

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params SubmitParams
	if err := decodeParams(req.Params, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	request := metatx.Request{Message: params.Message}
	var err error
	if params.Target != "" {
		if request.Target, err = parseIdentity("target", params.Target); err != nil {
			writeInvalidParams(w, req.ID, err)
			return
		}
	}
	if request.Signer, err = parseIdentity("signer", params.Signer); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if request.Partition, err = parseWord("partition", params.Partition); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if request.Value, err = parseWord("value", params.Value); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if request.Signature, err = parseSignature(params.Signature); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}

	receipt, err := s.gateway.Submit(r.Context(), request)
	if err != nil {
		writeGatewayError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatReceipt(receipt))
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params ApproveParams
	if err := decodeParams(req.Params, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	command, err := parseHash("command", params.Command)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	signer, err := parseIdentity("signer", params.Signer)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	var fields replay.Fields
	if fields.Partition, err = parseWord("partition", params.Partition); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if fields.Value, err = parseWord("value", params.Value); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	sig, err := parseSignature(params.Signature)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}

	receipt, err := s.gateway.Approve(r.Context(), command, signer, fields, sig)
	if err != nil {
		writeGatewayError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatReceipt(receipt))
}

func (s *Server) handleIsBitmapSet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params bitmapQueryParams
	if err := decodeParams(req.Params, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	id, err := parseIdentity("identity", params.Identity)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	bucket, err := parseWord("bucket", params.Bucket)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	value, err := parseWord("value", params.Value)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	set, err := s.gateway.IsBitmapSet(id, bucket, value)
	if err != nil {
		writeGatewayError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, set)
}

func (s *Server) handleGetNonce(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params nonceQueryParams
	if err := decodeParams(req.Params, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	id, err := parseIdentity("identity", params.Identity)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	channel, err := parseWord("channel", params.Channel)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	nonce, err := s.gateway.GetNonce(id, channel)
	if err != nil {
		writeGatewayError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, nonce.Dec())
}

func (s *Server) handleCurrentBucket(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params identityParams
	if err := decodeParams(req.Params, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	id, err := parseIdentity("identity", params.Identity)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	bucket, err := s.gateway.CurrentBucket(id)
	if err != nil {
		writeGatewayError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, bucket.Dec())
}

func (s *Server) handleDigest(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params digestParams
	if err := decodeParams(req.Params, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if (params.Message == nil) == (params.Command == "") {
		writeInvalidParams(w, req.ID, fmt.Errorf("exactly one of message or command required"))
		return
	}
	partition, err := parseWord("partition", params.Partition)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	value, err := parseWord("value", params.Value)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	var result DigestResult
	if params.Message != nil {
		command := digest.CommandHash(*params.Message)
		result = DigestResult{Digest: s.gateway.Digest(command, partition, value).Hex(), Command: command.Hex()}
	} else {
		command, err := parseHash("command", params.Command)
		if err != nil {
			writeInvalidParams(w, req.ID, err)
			return
		}
		result = DigestResult{Digest: s.gateway.Digest(command, partition, value).Hex(), Command: command.Hex()}
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	target := s.gateway.Target()
	policy := s.gateway.Policy()
	writeResult(w, req.ID, InfoResult{
		Target:    crypto.AddressFromIdentity(target).String(),
		TargetHex: target.Hex(),
		Policy:    string(policy),
		Tag:       policy.Tag().Hex(),
	})
}

func (s *Server) handleStateRoot(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	root, err := s.gateway.StateRoot()
	if err != nil {
		writeGatewayError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, root.Hex())
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if s.events == nil {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "event archive disabled", nil)
		return
	}
	var params recentEventsParams
	if len(req.Params) > 0 {
		if err := decodeParams(req.Params, &params); err != nil {
			writeInvalidParams(w, req.ID, err)
			return
		}
	}
	records, err := s.events.Recent(r.Context(), params.Limit)
	if err != nil {
		writeGatewayError(w, req.ID, err)
		return
	}
	if records == nil {
		records = []eventlog.Record{}
	}
	writeResult(w, req.ID, records)
}
