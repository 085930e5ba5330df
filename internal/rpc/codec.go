// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package rpc

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/samber/oops"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/mem"
)

// CodecName is the gRPC content-subtype for CBOR payloads
// (application/grpc+cbor).
const CodecName = "cbor"

// cborCodec encodes messages with Core Deterministic Encoding so equal
// messages always produce equal bytes. Unknown fields are ignored on decode.
type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func init() {
	encoding.RegisterCodecV2(newCBORCodec())
}

func newCBORCodec() *cborCodec {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("rpc: CBOR encoder initialization failed: " + err.Error())
	}
	dec, err := cbor.DecOptions{
		MaxNestedLevels:  16,
		MaxArrayElements: 1024,
		MaxMapPairs:      64,
	}.DecMode()
	if err != nil {
		panic("rpc: CBOR decoder initialization failed: " + err.Error())
	}
	return &cborCodec{enc: enc, dec: dec}
}

func (c *cborCodec) Marshal(v any) (mem.BufferSlice, error) {
	b, err := c.enc.Marshal(v)
	if err != nil {
		return nil, oops.Code("RPC_ENCODE_FAILED").With("type", typeName(v)).Wrap(err)
	}
	return mem.BufferSlice{mem.SliceBuffer(b)}, nil
}

func (c *cborCodec) Unmarshal(data mem.BufferSlice, v any) error {
	if err := c.dec.Unmarshal(data.Materialize(), v); err != nil {
		return oops.Code("RPC_DECODE_FAILED").With("type", typeName(v)).Wrap(err)
	}
	return nil
}

func (c *cborCodec) Name() string {
	return CodecName
}
