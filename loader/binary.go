package loader

import (
	"encoding/binary"
	"fmt"
)

// ParseBinary reads raw little-endian instruction words.
func ParseBinary(data []byte) (*Program, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: size %d is not a multiple of 4", ErrInvalidBinary, len(data))
	}
	if len(data) == 0 {
		return nil, ErrEmptyProgram
	}

	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}

	return FromWords(words...), nil
}
