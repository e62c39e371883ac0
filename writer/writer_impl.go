package writer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"
	"unicode/utf16"

	"github.com/klauspost/compress/zlib"
	"golang.org/x/crypto/blake2b"

	"github.com/wudi/scanpdf/ir/raw"
	"github.com/wudi/scanpdf/ir/semantic"
	"github.com/wudi/scanpdf/observability"
)

// ErrNoPages is returned for documents without any page.
var ErrNoPages = errors.New("writer: document has no pages")

type impl struct {
	logger observability.Logger
}

// objectBuilder converts the semantic model into indirect objects,
// sharing fonts and images that appear on several pages.
type objectBuilder struct {
	cfg    Config
	table  *raw.Table
	fonts  map[*semantic.Font]raw.ObjectRef
	images map[*semantic.Image]raw.ObjectRef
	now    time.Time
}

func (w *impl) Write(ctx context.Context, doc *semantic.Document, out io.Writer, cfg Config) error {
	if doc.PageCount() == 0 {
		return ErrNoPages
	}
	if cfg.Version == "" {
		cfg.Version = PDF17
	}
	start := time.Now()

	ob := &objectBuilder{
		cfg:    cfg,
		table:  raw.NewTable(),
		fonts:  make(map[*semantic.Font]raw.ObjectRef),
		images: make(map[*semantic.Image]raw.ObjectRef),
		now:    start,
	}
	catalog, info, err := ob.build(ctx, doc)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", cfg.Version)
	size := ob.table.Size()
	offsets := make([]int, size)
	for num := 1; num < size; num++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj, ok := ob.table.Get(num)
		if !ok {
			obj = raw.NullObj{}
		}
		offsets[num] = buf.Len()
		serializeObject(&buf, num, obj)
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", size)
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num < size; num++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[num])
	}

	trailer := raw.Dict()
	trailer.Set("Size", raw.Int(int64(size)))
	trailer.Set("Root", raw.Ref(catalog))
	if !info.IsZero() {
		trailer.Set("Info", raw.Ref(info))
	}
	id := ob.fileID(buf.Bytes())
	trailer.Set("ID", raw.NewArray(raw.HexStr(id), raw.HexStr(id)))
	buf.WriteString("trailer\n")
	writePrimitive(&buf, trailer)
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	n, err := out.Write(buf.Bytes())
	if err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	w.logger.Debug("pdf written",
		observability.Int("pages", doc.PageCount()),
		observability.Int("objects", size-1),
		observability.Int("bytes", n),
		observability.Duration(observability.MetricWriteTime, time.Since(start)),
	)
	return nil
}

func (ob *objectBuilder) build(ctx context.Context, doc *semantic.Document) (raw.ObjectRef, raw.ObjectRef, error) {
	catalogRef := ob.table.Alloc()
	pagesRef := ob.table.Alloc()

	kids := raw.NewArray()
	for _, page := range doc.Pages {
		if err := ctx.Err(); err != nil {
			return raw.ObjectRef{}, raw.ObjectRef{}, err
		}
		ref, err := ob.page(page, pagesRef)
		if err != nil {
			return raw.ObjectRef{}, raw.ObjectRef{}, fmt.Errorf("page %d: %w", page.Index+1, err)
		}
		kids.Append(raw.Ref(ref))
	}

	pages := raw.Dict()
	pages.Set("Type", raw.Name("Pages"))
	pages.Set("Kids", kids)
	pages.Set("Count", raw.Int(int64(kids.Len())))
	ob.table.Put(pagesRef, pages)

	catalog := raw.Dict()
	catalog.Set("Type", raw.Name("Catalog"))
	catalog.Set("Pages", raw.Ref(pagesRef))
	if doc.Lang != "" {
		catalog.Set("Lang", raw.Str([]byte(doc.Lang)))
	}
	ob.table.Put(catalogRef, catalog)

	return catalogRef, ob.info(doc.Info), nil
}

func (ob *objectBuilder) page(p *semantic.Page, parent raw.ObjectRef) (raw.ObjectRef, error) {
	dict := raw.Dict()
	dict.Set("Type", raw.Name("Page"))
	dict.Set("Parent", raw.Ref(parent))
	mb := p.MediaBox
	dict.Set("MediaBox", raw.Numbers(mb.LLX, mb.LLY, mb.URX, mb.URY))

	res := raw.Dict()
	if p.Resources != nil {
		if len(p.Resources.Fonts) > 0 {
			fontDict := raw.Dict()
			for _, name := range sortedKeys(p.Resources.Fonts) {
				ref, err := ob.font(p.Resources.Fonts[name])
				if err != nil {
					return raw.ObjectRef{}, fmt.Errorf("font %s: %w", name, err)
				}
				fontDict.Set(name, raw.Ref(ref))
			}
			res.Set("Font", fontDict)
		}
		if len(p.Resources.XObjects) > 0 {
			xobjects := raw.Dict()
			for _, name := range sortedKeys(p.Resources.XObjects) {
				ref, err := ob.image(p.Resources.XObjects[name])
				if err != nil {
					return raw.ObjectRef{}, fmt.Errorf("image %s: %w", name, err)
				}
				xobjects.Set(name, raw.Ref(ref))
			}
			res.Set("XObject", xobjects)
		}
	}
	res.Set("ProcSet", raw.NewArray(raw.Name("PDF"), raw.Name("Text"), raw.Name("ImageB"), raw.Name("ImageC")))
	dict.Set("Resources", res)

	content, err := ob.stream(raw.Dict(), encodeContent(p.Contents))
	if err != nil {
		return raw.ObjectRef{}, err
	}
	dict.Set("Contents", raw.Ref(ob.table.Add(content)))
	return ob.table.Add(dict), nil
}

func (ob *objectBuilder) font(f *semantic.Font) (raw.ObjectRef, error) {
	if f == nil {
		return raw.ObjectRef{}, errors.New("nil font")
	}
	if ref, ok := ob.fonts[f]; ok {
		return ref, nil
	}
	var (
		ref raw.ObjectRef
		err error
	)
	switch f.Subtype {
	case "Type1":
		ref = ob.type1Font(f)
	case "Type0":
		ref, err = ob.type0Font(f)
	default:
		err = fmt.Errorf("unsupported font subtype %q", f.Subtype)
	}
	if err != nil {
		return raw.ObjectRef{}, err
	}
	ob.fonts[f] = ref
	return ref, nil
}

func (ob *objectBuilder) type1Font(f *semantic.Font) raw.ObjectRef {
	dict := raw.Dict()
	dict.Set("Type", raw.Name("Font"))
	dict.Set("Subtype", raw.Name("Type1"))
	dict.Set("BaseFont", raw.Name(f.BaseFont))
	if f.Encoding != "" {
		dict.Set("Encoding", raw.Name(f.Encoding))
	}
	return ob.table.Add(dict)
}

func (ob *objectBuilder) type0Font(f *semantic.Font) (raw.ObjectRef, error) {
	cid := f.DescendantFont
	if cid == nil {
		return raw.ObjectRef{}, errors.New("composite font without descendant")
	}
	desc := cid.Descriptor
	if desc == nil {
		desc = f.Descriptor
	}
	if desc == nil || len(desc.FontFile) == 0 {
		return raw.ObjectRef{}, errors.New("composite font without embedded program")
	}

	fileDict := raw.Dict()
	fileDict.Set("Length1", raw.Int(int64(len(desc.FontFile))))
	fontFile, err := ob.stream(fileDict, desc.FontFile)
	if err != nil {
		return raw.ObjectRef{}, err
	}
	fileRef := ob.table.Add(fontFile)

	descriptor := raw.Dict()
	descriptor.Set("Type", raw.Name("FontDescriptor"))
	descriptor.Set("FontName", raw.Name(desc.FontName))
	descriptor.Set("Flags", raw.Int(int64(desc.Flags)))
	descriptor.Set("FontBBox", raw.Numbers(desc.FontBBox[:]...))
	descriptor.Set("ItalicAngle", raw.Number(desc.ItalicAngle))
	descriptor.Set("Ascent", raw.Number(desc.Ascent))
	descriptor.Set("Descent", raw.Number(desc.Descent))
	descriptor.Set("CapHeight", raw.Number(desc.CapHeight))
	descriptor.Set("StemV", raw.Int(int64(desc.StemV)))
	fileKey := desc.FontFileType
	if fileKey == "" {
		fileKey = "FontFile2"
	}
	descriptor.Set(fileKey, raw.Ref(fileRef))
	descriptorRef := ob.table.Add(descriptor)

	cidDict := raw.Dict()
	cidDict.Set("Type", raw.Name("Font"))
	cidDict.Set("Subtype", raw.Name(cid.Subtype))
	cidDict.Set("BaseFont", raw.Name(cid.BaseFont))
	sysInfo := raw.Dict()
	sysInfo.Set("Registry", raw.Str([]byte(cid.CIDSystemInfo.Registry)))
	sysInfo.Set("Ordering", raw.Str([]byte(cid.CIDSystemInfo.Ordering)))
	sysInfo.Set("Supplement", raw.Int(int64(cid.CIDSystemInfo.Supplement)))
	cidDict.Set("CIDSystemInfo", sysInfo)
	cidDict.Set("FontDescriptor", raw.Ref(descriptorRef))
	if cid.DW > 0 {
		cidDict.Set("DW", raw.Int(int64(cid.DW)))
	}
	if w := widthsArray(cid.W, f.UsedGlyphs); w.Len() > 0 {
		cidDict.Set("W", w)
	}
	if cid.Subtype == "CIDFontType2" {
		cidDict.Set("CIDToGIDMap", raw.Name("Identity"))
	}
	cidRef := ob.table.Add(cidDict)

	dict := raw.Dict()
	dict.Set("Type", raw.Name("Font"))
	dict.Set("Subtype", raw.Name("Type0"))
	dict.Set("BaseFont", raw.Name(f.BaseFont))
	dict.Set("Encoding", raw.Name(f.Encoding))
	dict.Set("DescendantFonts", raw.NewArray(raw.Ref(cidRef)))
	if len(f.ToUnicode) > 0 {
		cmap, err := ob.stream(raw.Dict(), buildToUnicodeCMap(f.ToUnicode))
		if err != nil {
			return raw.ObjectRef{}, err
		}
		dict.Set("ToUnicode", raw.Ref(ob.table.Add(cmap)))
	}
	return ob.table.Add(dict), nil
}

// widthsArray emits /W entries for the glyphs that were actually drawn,
// grouping consecutive glyph IDs into one run.
func widthsArray(widths map[int]int, used map[int]bool) *raw.ArrayObj {
	gids := make([]int, 0, len(used))
	for gid := range used {
		if _, ok := widths[gid]; ok {
			gids = append(gids, gid)
		}
	}
	sort.Ints(gids)

	out := raw.NewArray()
	for i := 0; i < len(gids); {
		run := raw.NewArray(raw.Int(int64(widths[gids[i]])))
		j := i + 1
		for j < len(gids) && gids[j] == gids[j-1]+1 {
			run.Append(raw.Int(int64(widths[gids[j]])))
			j++
		}
		out.Append(raw.Int(int64(gids[i])))
		out.Append(run)
		i = j
	}
	return out
}

func (ob *objectBuilder) image(img *semantic.Image) (raw.ObjectRef, error) {
	if img == nil {
		return raw.ObjectRef{}, errors.New("nil image")
	}
	if ref, ok := ob.images[img]; ok {
		return ref, nil
	}
	dict := raw.Dict()
	dict.Set("Type", raw.Name("XObject"))
	dict.Set("Subtype", raw.Name("Image"))
	dict.Set("Width", raw.Int(int64(img.Width)))
	dict.Set("Height", raw.Int(int64(img.Height)))
	cs := img.ColorSpace
	if cs == "" {
		cs = "DeviceRGB"
	}
	dict.Set("ColorSpace", raw.Name(cs))
	bpc := img.BitsPerComponent
	if bpc == 0 {
		bpc = 8
	}
	dict.Set("BitsPerComponent", raw.Int(int64(bpc)))

	var stream *raw.StreamObj
	if img.Filter != "" {
		dict.Set("Filter", raw.Name(img.Filter))
		stream = raw.NewStream(dict, img.Data)
	} else {
		var err error
		stream, err = ob.compressed(dict, img.Data)
		if err != nil {
			return raw.ObjectRef{}, err
		}
	}
	ref := ob.table.Add(stream)
	ob.images[img] = ref
	return ref, nil
}

// stream builds a stream object, compressing data unless disabled.
func (ob *objectBuilder) stream(dict *raw.DictObj, data []byte) (*raw.StreamObj, error) {
	if ob.cfg.NoCompression {
		return raw.NewStream(dict, data), nil
	}
	return ob.compressed(dict, data)
}

func (ob *objectBuilder) compressed(dict *raw.DictObj, data []byte) (*raw.StreamObj, error) {
	level := ob.cfg.Compression
	if level == 0 {
		level = zlib.DefaultCompression
	}
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("flate: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("flate: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("flate: %w", err)
	}
	dict.Set("Filter", raw.Name("FlateDecode"))
	return raw.NewStream(dict, buf.Bytes()), nil
}

func (ob *objectBuilder) info(info *semantic.DocumentInfo) raw.ObjectRef {
	dict := raw.Dict()
	if info != nil {
		setText(dict, "Title", info.Title)
		setText(dict, "Author", info.Author)
		setText(dict, "Subject", info.Subject)
		setText(dict, "Creator", info.Creator)
		setText(dict, "Producer", info.Producer)
		if len(info.Keywords) > 0 {
			var kw bytes.Buffer
			for i, k := range info.Keywords {
				if i > 0 {
					kw.WriteString(", ")
				}
				kw.WriteString(k)
			}
			setText(dict, "Keywords", kw.String())
		}
	}
	if _, ok := dict.Get("Producer"); !ok && ob.cfg.Producer != "" {
		setText(dict, "Producer", ob.cfg.Producer)
	}
	created := time.Time{}
	if info != nil {
		created = info.CreationDate
	}
	if created.IsZero() && !ob.cfg.Deterministic {
		created = ob.now
	}
	if !created.IsZero() {
		dict.Set("CreationDate", raw.Str([]byte(formatDate(created))))
	}
	if dict.Len() == 0 {
		return raw.ObjectRef{}
	}
	return ob.table.Add(dict)
}

// fileID hashes the serialized body. Non-deterministic output mixes in the
// current time so two runs on the same input get distinct identifiers.
func (ob *objectBuilder) fileID(body []byte) []byte {
	h, _ := blake2b.New(16, nil)
	h.Write(body)
	if !ob.cfg.Deterministic {
		h.Write([]byte(ob.now.Format(time.RFC3339Nano)))
	}
	return h.Sum(nil)
}

func setText(dict *raw.DictObj, key, value string) {
	if value == "" {
		return
	}
	dict.Set(key, textString(value))
}

// textString encodes s as a PDF text string: literal for ASCII, UTF-16BE
// with a byte order mark otherwise.
func textString(s string) raw.StringObj {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return raw.Str([]byte(s))
	}
	units := utf16.Encode([]rune(s))
	out := make([]byte, 2, 2+2*len(units))
	out[0], out[1] = 0xFE, 0xFF
	for _, u := range units {
		out = append(out, byte(u>>8), byte(u))
	}
	return raw.HexStr(out)
}

func formatDate(t time.Time) string {
	return "D:" + t.UTC().Format("20060102150405") + "Z"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
