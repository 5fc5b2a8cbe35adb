package rbtree

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// ErrCorruptColumn is returned when a compressed column does not decode to the expected length.
var ErrCorruptColumn = errors.New("corrupt compressed column")

// CompressUInt32Slice compresses a slice of uint32-s with LZ4.
func CompressUInt32Slice(data []uint32) ([]byte, error) {
	return compressSlice(data)
}

// DecompressUInt32Slice decompresses a slice of uint32-s previously compressed with LZ4.
// `result` must be preallocated.
func DecompressUInt32Slice(data []byte, result []uint32) error {
	return decompressSlice(data, result)
}

func compressSlice[T uint32 | int64](data []T) ([]byte, error) {
	buf := new(bytes.Buffer)

	err := binary.Write(buf, binary.LittleEndian, data)
	if err != nil {
		return nil, fmt.Errorf("encode column: %w", err)
	}

	compressed := make([]byte, lz4.CompressBlockBound(buf.Len()))

	written, err := lz4.CompressBlock(buf.Bytes(), compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("compress column: %w", err)
	}

	return compressed[:written], nil
}

func decompressSlice[T uint32 | int64](data []byte, result []T) error {
	decompressed := make([]byte, binary.Size(result))
	if len(decompressed) == 0 {
		return nil
	}

	read, err := lz4.UncompressBlock(data, decompressed)
	if err != nil {
		return fmt.Errorf("decompress column: %w", err)
	}

	if read != len(decompressed) {
		return fmt.Errorf("%w: %d bytes instead of %d", ErrCorruptColumn, read, len(decompressed))
	}

	err = binary.Read(bytes.NewReader(decompressed), binary.LittleEndian, result)
	if err != nil {
		return fmt.Errorf("decode column: %w", err)
	}

	return nil
}
