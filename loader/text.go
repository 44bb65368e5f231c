package loader

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sarchlab/rv5sim/insts"
)

// ParseText parses a text listing with one instruction per line:
//
//	<address> <hex-word> <mnemonic...>
//
// for example "0: 00500093 addi x1,x0,5". The address column is optional
// and ignored; instructions are indexed in line order. Blank lines and
// lines starting with '#' are skipped. When the mnemonic is missing the
// disassembly is used.
func ParseText(r io.Reader) (*Program, error) {
	decoder := insts.NewDecoder()
	prog := &Program{}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		word, text, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if text == "" {
			text = decoder.Decode(word).String()
		}

		prog.Instructions = append(prog.Instructions, Instruction{
			Index: len(prog.Instructions),
			Word:  word,
			Text:  text,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan program: %w", err)
	}

	if len(prog.Instructions) == 0 {
		return nil, ErrEmptyProgram
	}

	return prog, nil
}

// parseLine extracts the instruction word and the mnemonic text. The word
// is the second field when the first is an address ("0:" or any field
// followed by an 8-digit hex word), otherwise the first field.
func parseLine(line string) (uint32, string, error) {
	fields := strings.Fields(line)

	wordField := 0
	if len(fields) >= 2 && (strings.HasSuffix(fields[0], ":") || isHexWord(fields[1])) {
		wordField = 1
	}

	if wordField >= len(fields) || !isHexWord(fields[wordField]) {
		return 0, "", fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}

	word, err := strconv.ParseUint(trimHexPrefix(fields[wordField]), 16, 32)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %q: %v", ErrMalformedLine, line, err)
	}

	text := strings.Join(fields[wordField+1:], " ")
	return uint32(word), text, nil
}

// isHexWord reports whether s is exactly eight hex digits, with an optional
// 0x prefix.
func isHexWord(s string) bool {
	s = trimHexPrefix(s)
	if len(s) != 8 {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}

func trimHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}
