package writer

import (
	"bytes"
	"fmt"
	"sort"
	"unicode/utf16"
)

// buildToUnicodeCMap maps two-byte glyph codes back to the text they were
// shaped from, so extracted text matches the input.
func buildToUnicodeCMap(entries map[int][]rune) []byte {
	codes := make([]int, 0, len(entries))
	for code, runes := range entries {
		if len(runes) == 0 {
			continue
		}
		codes = append(codes, code)
	}
	sort.Ints(codes)

	var buf bytes.Buffer
	buf.WriteString("/CIDInit /ProcSet findresource begin\n")
	buf.WriteString("12 dict begin\n")
	buf.WriteString("begincmap\n")
	buf.WriteString("/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def\n")
	buf.WriteString("/CMapName /Adobe-Identity-UCS def\n")
	buf.WriteString("/CMapType 2 def\n")
	buf.WriteString("1 begincodespacerange\n<0000> <FFFF>\nendcodespacerange\n")

	for start := 0; start < len(codes); start += 100 {
		end := start + 100
		if end > len(codes) {
			end = len(codes)
		}
		fmt.Fprintf(&buf, "%d beginbfchar\n", end-start)
		for _, code := range codes[start:end] {
			fmt.Fprintf(&buf, "<%04X> <%s>\n", code, utf16Hex(entries[code]))
		}
		buf.WriteString("endbfchar\n")
	}

	buf.WriteString("endcmap\n")
	buf.WriteString("CMapName currentdict /CMap defineresource pop\n")
	buf.WriteString("end\nend\n")
	return buf.Bytes()
}

func utf16Hex(runes []rune) string {
	var b bytes.Buffer
	for _, u := range utf16.Encode(runes) {
		fmt.Fprintf(&b, "%04X", u)
	}
	return b.String()
}
