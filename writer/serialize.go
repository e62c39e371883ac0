package writer

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"

	"github.com/wudi/scanpdf/ir/raw"
	"github.com/wudi/scanpdf/ir/semantic"
)

func serializeObject(buf *bytes.Buffer, num int, obj raw.Object) {
	fmt.Fprintf(buf, "%d 0 obj\n", num)
	writePrimitive(buf, obj)
	buf.WriteString("\nendobj\n")
}

func writePrimitive(buf *bytes.Buffer, o raw.Object) {
	switch v := o.(type) {
	case raw.NameObj:
		writeName(buf, v.Value())
	case raw.NumberObj:
		if v.IsInteger() {
			buf.WriteString(strconv.FormatInt(v.Int(), 10))
			return
		}
		buf.WriteString(formatFloat(v.Float()))
	case raw.BoolObj:
		if v.Value() {
			buf.WriteString("true")
			return
		}
		buf.WriteString("false")
	case raw.NullObj:
		buf.WriteString("null")
	case raw.StringObj:
		writeString(buf, v.Value(), v.IsHex())
	case *raw.ArrayObj:
		buf.WriteByte('[')
		for i, it := range v.Items {
			if i > 0 {
				buf.WriteByte(' ')
			}
			writePrimitive(buf, it)
		}
		buf.WriteByte(']')
	case *raw.DictObj:
		buf.WriteString("<<")
		for i, k := range v.Keys() {
			if i > 0 {
				buf.WriteByte(' ')
			}
			writeName(buf, k)
			buf.WriteByte(' ')
			writePrimitive(buf, v.KV[k])
		}
		buf.WriteString(">>")
	case *raw.StreamObj:
		writePrimitive(buf, v.Dict)
		buf.WriteString("\nstream\n")
		buf.Write(v.Data)
		buf.WriteString("\nendstream")
	case raw.RefObj:
		buf.WriteString(v.Ref().String())
	default:
		buf.WriteString("null")
	}
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0"
	}
	r := math.Round(f*10000) / 10000
	if r == 0 {
		return "0"
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

func writeName(buf *bytes.Buffer, name string) {
	buf.WriteByte('/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x21 || c > 0x7E || bytes.IndexByte([]byte("#()<>[]{}/%"), c) >= 0 {
			fmt.Fprintf(buf, "#%02X", c)
			continue
		}
		buf.WriteByte(c)
	}
}

func writeString(buf *bytes.Buffer, s []byte, asHex bool) {
	if asHex {
		buf.WriteByte('<')
		buf.WriteString(hex.EncodeToString(s))
		buf.WriteByte('>')
		return
	}
	buf.WriteByte('(')
	for _, c := range s {
		switch c {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		default:
			buf.WriteByte(c)
		}
	}
	buf.WriteByte(')')
}

// encodeContent renders page operations in content stream syntax.
func encodeContent(streams []semantic.ContentStream) []byte {
	var buf bytes.Buffer
	for _, cs := range streams {
		for _, op := range cs.Operations {
			for _, operand := range op.Operands {
				writeOperand(&buf, operand)
				buf.WriteByte(' ')
			}
			buf.WriteString(op.Operator)
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

func writeOperand(buf *bytes.Buffer, op semantic.Operand) {
	switch v := op.(type) {
	case semantic.NumberOperand:
		buf.WriteString(formatFloat(v.Value))
	case semantic.NameOperand:
		writeName(buf, v.Value)
	case semantic.StringOperand:
		writeString(buf, v.Value, v.Hex)
	case semantic.ArrayOperand:
		buf.WriteByte('[')
		for i, item := range v.Values {
			if i > 0 {
				buf.WriteByte(' ')
			}
			writeOperand(buf, item)
		}
		buf.WriteByte(']')
	}
}
