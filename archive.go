package pizip

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
)

const (
	archiveMagic   = "PIZP"
	archiveVersion = uint16(1)

	stageTable        = "table"
	stageContent      = "content"
	stageInstructions = "instructions"

	stageInstructionsParamRaw  = uint8(1) // uvarint instruction stream
	stageInstructionsParamZstd = uint8(2) // zstd(uvarint instruction stream)

	maxArchiveStages     = 64
	maxStagePayloadBytes = 1 << 30 // 1 GiB
	maxInstructionsRead  = maxStagePayloadBytes / 2

	maxInt = int(^uint(0) >> 1)
)

var (
	// ErrTableMismatch indicates an archive was encoded against a different digit table.
	ErrTableMismatch = errors.New("digit table mismatch")
	// ErrChecksumMismatch indicates decoded content does not match the archived checksum.
	ErrChecksumMismatch = errors.New("content checksum mismatch")
)

var (
	zstdEncoder, _ = zstd.NewWriter(
		nil,
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
		zstd.WithEncoderCRC(true),
	)
	zstdDecoder, _ = zstd.NewReader(
		nil,
		zstd.WithDecoderMaxMemory(maxStagePayloadBytes),
	)
)

// Wire format (version 1):
//
//	magic[4] = "PIZP"
//	version  = uint16 little-endian
//	stageCnt = uint16 little-endian
//	repeat stageCnt times:
//	  nameLen  = uint8
//	  paramLen = uint16 little-endian
//	  dataLen  = uint32 little-endian
//	  name     = nameLen bytes
//	  params   = paramLen bytes
//	  payload  = dataLen bytes
//
// Required stage names:
//
//	table        fingerprint uint64 LE, uvarint table length
//	content      uvarint original length, xxhash64 uint64 LE
//	instructions params[0] = 1 (raw) or 2 (zstd); uvarint count, then per
//	             instruction a uvarint header: ByteCount<<1 followed by a
//	             uvarint index for a TableRef, 1 followed by the raw byte
//	             for a Literal
//
// Unknown stages are skipped via dataLen framing.
type wireStageHeader struct {
	name     string
	paramLen uint16
	dataLen  uint32
}

func writeBytes(w io.Writer, b []byte) (int64, error) {
	n, err := w.Write(b)
	if err != nil {
		return int64(n), err
	}
	if n != len(b) {
		return int64(n), io.ErrShortWrite
	}
	return int64(n), nil
}

func writeStage(w io.Writer, name string, params []byte, payload []byte) (int64, error) {
	if len(name) == 0 || len(name) > 255 {
		return 0, fmt.Errorf("invalid stage name length: %d", len(name))
	}
	if len(params) > int(^uint16(0)) {
		return 0, fmt.Errorf("stage params too large for %q: %d", name, len(params))
	}
	if len(payload) > maxStagePayloadBytes {
		return 0, fmt.Errorf("stage payload too large for %q: %d", name, len(payload))
	}

	var header [7]byte
	header[0] = uint8(len(name))
	binary.LittleEndian.PutUint16(header[1:3], uint16(len(params)))
	binary.LittleEndian.PutUint32(header[3:7], uint32(len(payload)))

	var total int64
	for _, b := range [][]byte{header[:], []byte(name), params, payload} {
		n, err := writeBytes(w, b)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func readStageHeader(r io.Reader) (wireStageHeader, int64, error) {
	var header [7]byte
	n, err := io.ReadFull(r, header[:])
	total := int64(n)
	if err != nil {
		return wireStageHeader{}, total, err
	}
	nameLen := header[0]
	if nameLen == 0 {
		return wireStageHeader{}, total, fmt.Errorf("stage name length must be > 0")
	}
	paramLen := binary.LittleEndian.Uint16(header[1:3])
	dataLen := binary.LittleEndian.Uint32(header[3:7])
	if dataLen > uint32(maxStagePayloadBytes) {
		return wireStageHeader{}, total, fmt.Errorf("stage payload too large: %d", dataLen)
	}

	nameBytes := make([]byte, int(nameLen))
	n, err = io.ReadFull(r, nameBytes)
	total += int64(n)
	if err != nil {
		return wireStageHeader{}, total, err
	}

	return wireStageHeader{
		name:     string(nameBytes),
		paramLen: paramLen,
		dataLen:  dataLen,
	}, total, nil
}

// Archive is a self-describing container for one encoded input. Besides the
// instructions it records which digit table they refer to and a checksum of
// the original content, so decoding against the wrong table or a damaged
// stream is reported instead of producing garbage.
type Archive struct {
	Instructions []Instruction

	TableFingerprint uint64 // DigitTable.Fingerprint of the encoding table
	TableLen         int    // DigitTable.Len of the encoding table

	ContentLen int    // length of the original input
	ContentSum uint64 // xxhash64 of the original input
}

// NewArchive packages instrs, the result of encoding data against table.
func NewArchive(table *DigitTable, data []byte, instrs []Instruction) *Archive {
	return &Archive{
		Instructions:     instrs,
		TableFingerprint: table.Fingerprint(),
		TableLen:         table.Len(),
		ContentLen:       len(data),
		ContentSum:       xxhash.Sum64(data),
	}
}

// Decode restores the original content using table.
func (a *Archive) Decode(table *DigitTable) ([]byte, error) {
	if table.Fingerprint() != a.TableFingerprint || table.Len() != a.TableLen {
		return nil, fmt.Errorf("%w: archive wants %d digits with fingerprint %016x, have %d digits with fingerprint %016x",
			ErrTableMismatch, a.TableLen, a.TableFingerprint, table.Len(), table.Fingerprint())
	}
	out, err := Decode(table, a.Instructions)
	if err != nil {
		return nil, err
	}
	if len(out) != a.ContentLen {
		return nil, fmt.Errorf("%w: decoded %d bytes, want %d", ErrChecksumMismatch, len(out), a.ContentLen)
	}
	if sum := xxhash.Sum64(out); sum != a.ContentSum {
		return nil, fmt.Errorf("%w: got %016x, want %016x", ErrChecksumMismatch, sum, a.ContentSum)
	}
	return out, nil
}

func validateArchiveStructure(a *Archive) error {
	if a.TableLen < 0 || a.ContentLen < 0 {
		return fmt.Errorf("negative length: table %d, content %d", a.TableLen, a.ContentLen)
	}
	if len(a.Instructions) > maxInstructionsRead {
		return fmt.Errorf("too many instructions: %d", len(a.Instructions))
	}
	for i, in := range a.Instructions {
		switch in.Kind {
		case KindTableRef:
			if in.ByteCount < 1 || in.Index < 0 {
				return fmt.Errorf("%w at instruction %d: %s", ErrMalformedInstruction, i, in)
			}
			if in.ByteCount > a.TableLen/2 || in.Index > a.TableLen-in.DigitLen() {
				return fmt.Errorf("instruction %d: %w: %s beyond %d digits", i, ErrOutOfRange, in, a.TableLen)
			}
		case KindLiteral:
			if _, err := in.Byte(); err != nil {
				return fmt.Errorf("instruction %d: %w", i, err)
			}
		default:
			return fmt.Errorf("%w at instruction %d: unknown kind %d", ErrMalformedInstruction, i, in.Kind)
		}
	}
	return nil
}

func encodeTableStage(a *Archive) []byte {
	payload := binary.LittleEndian.AppendUint64(nil, a.TableFingerprint)
	return binary.AppendUvarint(payload, uint64(a.TableLen))
}

func decodeTableStage(a *Archive, payload []byte) error {
	if len(payload) < 8 {
		return fmt.Errorf("table payload too short: %d", len(payload))
	}
	a.TableFingerprint = binary.LittleEndian.Uint64(payload)
	tableLen, n := binary.Uvarint(payload[8:])
	if n <= 0 || tableLen > uint64(maxInt) {
		return fmt.Errorf("invalid table length")
	}
	if 8+n != len(payload) {
		return fmt.Errorf("table payload has %d trailing bytes", len(payload)-8-n)
	}
	a.TableLen = int(tableLen)
	return nil
}

func encodeContentStage(a *Archive) []byte {
	payload := binary.AppendUvarint(nil, uint64(a.ContentLen))
	return binary.LittleEndian.AppendUint64(payload, a.ContentSum)
}

func decodeContentStage(a *Archive, payload []byte) error {
	contentLen, n := binary.Uvarint(payload)
	if n <= 0 || contentLen > uint64(maxInt) {
		return fmt.Errorf("invalid content length")
	}
	if len(payload)-n != 8 {
		return fmt.Errorf("content payload has wrong size: %d", len(payload))
	}
	a.ContentLen = int(contentLen)
	a.ContentSum = binary.LittleEndian.Uint64(payload[n:])
	return nil
}

func encodeInstructionStream(instrs []Instruction) []byte {
	raw := make([]byte, 0, 4*len(instrs)+binary.MaxVarintLen64)
	raw = binary.AppendUvarint(raw, uint64(len(instrs)))
	for _, in := range instrs {
		switch in.Kind {
		case KindTableRef:
			raw = binary.AppendUvarint(raw, uint64(in.ByteCount)<<1)
			raw = binary.AppendUvarint(raw, uint64(in.Index))
		case KindLiteral:
			b, _ := in.Byte() // validated by validateArchiveStructure
			raw = append(raw, 1, b)
		}
	}
	return raw
}

func decodeInstructionStream(raw []byte) ([]Instruction, error) {
	count, n := binary.Uvarint(raw)
	if n <= 0 {
		return nil, fmt.Errorf("invalid instruction count")
	}
	raw = raw[n:]
	// Every instruction takes at least two bytes.
	if count > uint64(len(raw)/2) {
		return nil, fmt.Errorf("instruction count %d exceeds payload of %d bytes", count, len(raw))
	}

	instrs := make([]Instruction, 0, int(count))
	for i := 0; i < int(count); i++ {
		header, n := binary.Uvarint(raw)
		if n <= 0 {
			return nil, fmt.Errorf("instruction %d: invalid header", i)
		}
		raw = raw[n:]
		switch {
		case header == 1:
			if len(raw) < 1 {
				return nil, fmt.Errorf("instruction %d: truncated literal", i)
			}
			instrs = append(instrs, Literal(raw[0]))
			raw = raw[1:]
		case header&1 == 0 && header > 0:
			byteCount := header >> 1
			index, n := binary.Uvarint(raw)
			if n <= 0 {
				return nil, fmt.Errorf("instruction %d: invalid index", i)
			}
			raw = raw[n:]
			if byteCount > uint64(maxInt) || index > uint64(maxInt) {
				return nil, fmt.Errorf("instruction %d: value overflows int", i)
			}
			instrs = append(instrs, TableRef(int(index), int(byteCount)))
		default:
			return nil, fmt.Errorf("instruction %d: unknown header %d", i, header)
		}
	}
	if len(raw) != 0 {
		return nil, fmt.Errorf("instruction stream has %d trailing bytes", len(raw))
	}
	return instrs, nil
}

// encodeInstructionsStage returns whichever of the raw and zstd payloads is smaller.
func encodeInstructionsStage(a *Archive) ([]byte, uint8) {
	raw := encodeInstructionStream(a.Instructions)
	compressed := zstdEncoder.EncodeAll(raw, nil)
	if len(compressed) < len(raw) {
		return compressed, stageInstructionsParamZstd
	}
	return raw, stageInstructionsParamRaw
}

func decodeInstructionsStage(a *Archive, params []byte, payload []byte) error {
	if len(params) != 1 {
		return fmt.Errorf("instructions stage wants 1 param byte, got %d", len(params))
	}
	raw := payload
	switch params[0] {
	case stageInstructionsParamRaw:
	case stageInstructionsParamZstd:
		var err error
		raw, err = zstdDecoder.DecodeAll(payload, nil)
		if err != nil {
			return fmt.Errorf("zstd: %w", err)
		}
	default:
		return fmt.Errorf("unsupported instructions encoding: %d", params[0])
	}
	instrs, err := decodeInstructionStream(raw)
	if err != nil {
		return err
	}
	a.Instructions = instrs
	return nil
}

// WriteTo serializes the Archive to an io.Writer.
func (a *Archive) WriteTo(w io.Writer) (int64, error) {
	if err := validateArchiveStructure(a); err != nil {
		return 0, fmt.Errorf("invalid archive: %w", err)
	}

	instructionsPayload, instructionsParam := encodeInstructionsStage(a)
	stages := []struct {
		name    string
		params  []byte
		payload []byte
	}{
		{
			name:    stageTable,
			payload: encodeTableStage(a),
		},
		{
			name:    stageContent,
			payload: encodeContentStage(a),
		},
		{
			name:    stageInstructions,
			params:  []byte{instructionsParam},
			payload: instructionsPayload,
		},
	}

	var head [8]byte
	copy(head[:4], archiveMagic)
	binary.LittleEndian.PutUint16(head[4:6], archiveVersion)
	binary.LittleEndian.PutUint16(head[6:8], uint16(len(stages)))
	total, err := writeBytes(w, head[:])
	if err != nil {
		return total, err
	}

	for _, stage := range stages {
		n, err := writeStage(w, stage.name, stage.params, stage.payload)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (a *Archive) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := a.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (a *Archive) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	if _, err := a.ReadFrom(r); err != nil {
		return err
	}
	if r.Len() != 0 {
		return fmt.Errorf("archive has %d trailing bytes", r.Len())
	}
	return nil
}

// IsArchive reports whether b starts with the archive magic.
func IsArchive(b []byte) bool {
	return bytes.HasPrefix(b, []byte(archiveMagic))
}

// ReadFrom deserializes an Archive from an io.Reader.
func (a *Archive) ReadFrom(r io.Reader) (int64, error) {
	var total int64
	var head [8]byte
	n, err := io.ReadFull(r, head[:])
	total += int64(n)
	if err != nil {
		return total, fmt.Errorf("read archive header: %w", err)
	}
	if string(head[:4]) != archiveMagic {
		return total, fmt.Errorf("invalid archive magic: %q", string(head[:4]))
	}
	if version := binary.LittleEndian.Uint16(head[4:6]); version != archiveVersion {
		return total, fmt.Errorf("unsupported archive version: %d", version)
	}
	stageCount := binary.LittleEndian.Uint16(head[6:8])
	if stageCount == 0 || stageCount > maxArchiveStages {
		return total, fmt.Errorf("invalid stage count: %d", stageCount)
	}

	var tmp Archive
	seenStages := make(map[string]bool, stageCount)
	for i := 0; i < int(stageCount); i++ {
		headerOffset := total
		header, n, err := readStageHeader(r)
		total += n
		if err != nil {
			return total, fmt.Errorf("read stage header at offset %d (stage index %d): %w", headerOffset, i, err)
		}
		if seenStages[header.name] {
			return total, fmt.Errorf("duplicate stage %q at stage index %d", header.name, i)
		}

		params := make([]byte, int(header.paramLen))
		nParams, err := io.ReadFull(r, params)
		total += int64(nParams)
		if err != nil {
			return total, fmt.Errorf("read stage %q params (stage index %d): %w", header.name, i, err)
		}

		switch header.name {
		case stageTable, stageContent, stageInstructions:
			payload := make([]byte, int(header.dataLen))
			payloadOffset := total
			nPayload, err := io.ReadFull(r, payload)
			total += int64(nPayload)
			if err != nil {
				return total, fmt.Errorf("read stage %q payload at offset %d (stage index %d): %w", header.name, payloadOffset, i, err)
			}

			switch header.name {
			case stageTable:
				err = decodeTableStage(&tmp, payload)
			case stageContent:
				err = decodeContentStage(&tmp, payload)
			case stageInstructions:
				err = decodeInstructionsStage(&tmp, params, payload)
			}
			if err != nil {
				return total, fmt.Errorf("decode stage %q at offset %d (stage index %d): %w", header.name, payloadOffset, i, err)
			}
			seenStages[header.name] = true

		default:
			skipOffset := total
			skipped, err := io.CopyN(io.Discard, r, int64(header.dataLen))
			total += skipped
			if err != nil {
				return total, fmt.Errorf("skip unknown stage %q at offset %d (stage index %d): %w", header.name, skipOffset, i, err)
			}
		}
	}

	for _, stageName := range []string{stageTable, stageContent, stageInstructions} {
		if !seenStages[stageName] {
			return total, fmt.Errorf("missing required stage %q", stageName)
		}
	}
	if err := validateArchiveStructure(&tmp); err != nil {
		return total, fmt.Errorf("invalid archive structure: %w", err)
	}

	*a = tmp
	return total, nil
}
