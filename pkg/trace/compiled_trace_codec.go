/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package trace

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/iorap-project/iorapd/pkg/models"
)

// Wire field numbers for the compiled-trace message, chosen to match the
// original CompiledTraceProto layout in external/perfetto's trace_file.proto
// (index=1, list=2; within each entry id/file_name and index_id/offset/
// length occupy fields 1..3 in declaration order).
const (
	fieldCompiledIndex = 1
	fieldCompiledList  = 2

	fieldIndexID       = 1
	fieldIndexFileName = 2

	fieldFileIndexID = 1
	fieldFileOffset  = 2
	fieldFileLength  = 3
)

// EncodeCompiledTrace serializes a CompiledTrace to its protobuf wire
// form, suitable for WriteFileMapped.
func EncodeCompiledTrace(t *models.CompiledTrace) ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, errors.Wrap(err, "refusing to encode invalid compiled trace")
	}

	var out []byte
	for _, e := range t.Index {
		var entry []byte
		entry = protowire.AppendTag(entry, fieldIndexID, protowire.VarintType)
		entry = protowire.AppendVarint(entry, uint64(e.ID))
		entry = protowire.AppendTag(entry, fieldIndexFileName, protowire.BytesType)
		entry = protowire.AppendString(entry, e.FileName)

		out = protowire.AppendTag(out, fieldCompiledIndex, protowire.BytesType)
		out = protowire.AppendBytes(out, entry)
	}

	for _, l := range t.List {
		var entry []byte
		entry = protowire.AppendTag(entry, fieldFileIndexID, protowire.VarintType)
		entry = protowire.AppendVarint(entry, uint64(l.IndexID))
		entry = protowire.AppendTag(entry, fieldFileOffset, protowire.VarintType)
		entry = protowire.AppendVarint(entry, uint64(l.FileOffsetBytes))
		entry = protowire.AppendTag(entry, fieldFileLength, protowire.VarintType)
		entry = protowire.AppendVarint(entry, uint64(l.FileLengthBytes))

		out = protowire.AppendTag(out, fieldCompiledList, protowire.BytesType)
		out = protowire.AppendBytes(out, entry)
	}

	return out, nil
}

// DecodeCompiledTrace parses the wire form EncodeCompiledTrace produces.
// Unknown fields are skipped rather than rejected, matching protobuf's
// forward-compatibility contract.
func DecodeCompiledTrace(data []byte) (*models.CompiledTrace, error) {
	var t models.CompiledTrace

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), "consume tag")
		}
		data = data[n:]

		switch num {
		case fieldCompiledIndex:
			entry, rest, err := consumeBytesField(data, typ)
			if err != nil {
				return nil, err
			}
			data = rest
			idx, err := decodeIndexEntry(entry)
			if err != nil {
				return nil, err
			}
			t.Index = append(t.Index, idx)
		case fieldCompiledList:
			entry, rest, err := consumeBytesField(data, typ)
			if err != nil {
				return nil, err
			}
			data = rest
			fe, err := decodeFileEntry(entry)
			if err != nil {
				return nil, err
			}
			t.List = append(t.List, fe)
		default:
			rest, err := skipField(data, typ)
			if err != nil {
				return nil, err
			}
			data = rest
		}
	}

	if err := t.Validate(); err != nil {
		return nil, errors.Wrap(err, "decoded compiled trace fails invariants")
	}
	return &t, nil
}

func decodeIndexEntry(data []byte) (models.TraceIndexEntry, error) {
	var e models.TraceIndexEntry
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return e, errors.Wrap(protowire.ParseError(n), "consume index entry tag")
		}
		data = data[n:]

		switch num {
		case fieldIndexID:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return e, errors.Wrap(protowire.ParseError(n), "consume index id")
			}
			e.ID = int64(v)
			data = data[n:]
		case fieldIndexFileName:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return e, errors.Wrap(protowire.ParseError(n), "consume index file name")
			}
			e.FileName = v
			data = data[n:]
		default:
			rest, err := skipField(data, typ)
			if err != nil {
				return e, err
			}
			data = rest
		}
	}
	return e, nil
}

func decodeFileEntry(data []byte) (models.TraceFileEntry, error) {
	var f models.TraceFileEntry
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return f, errors.Wrap(protowire.ParseError(n), "consume file entry tag")
		}
		data = data[n:]

		switch num {
		case fieldFileIndexID:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return f, errors.Wrap(protowire.ParseError(n), "consume file index id")
			}
			f.IndexID = int64(v)
			data = data[n:]
		case fieldFileOffset:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return f, errors.Wrap(protowire.ParseError(n), "consume file offset")
			}
			f.FileOffsetBytes = int64(v)
			data = data[n:]
		case fieldFileLength:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return f, errors.Wrap(protowire.ParseError(n), "consume file length")
			}
			f.FileLengthBytes = int64(v)
			data = data[n:]
		default:
			rest, err := skipField(data, typ)
			if err != nil {
				return f, err
			}
			data = rest
		}
	}
	return f, nil
}

func consumeBytesField(data []byte, typ protowire.Type) ([]byte, []byte, error) {
	if typ != protowire.BytesType {
		return nil, nil, errors.Errorf("expected bytes-typed field, got wire type %d", typ)
	}
	v, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return nil, nil, errors.Wrap(protowire.ParseError(n), "consume bytes field")
	}
	return v, data[n:], nil
}

func skipField(data []byte, typ protowire.Type) ([]byte, error) {
	n := protowire.ConsumeFieldValue(0, typ, data)
	if n < 0 {
		return nil, errors.Wrap(protowire.ParseError(n), "skip unknown field")
	}
	return data[n:], nil
}
