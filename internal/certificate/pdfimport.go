package certificate

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io"
	"maps"
	"regexp"
	"slices"
	"strconv"

	"github.com/go-pdf/fpdf"
)

// The importer writes dictionary keys and numbers objects in map order, and
// fpdf emits imported objects in map order. pageImport sits between the two:
// it rewrites every imported object with sorted keys and breadth-first
// numbering, then reorder puts the objects of the finished document back into
// that numbering.
type pageImport struct {
	pdf  *fpdf.Fpdf
	objs map[string][]byte
	pos  map[string]map[int]string
	tpls map[string]string

	// refs holds the reference offsets of each imported object, relative to
	// the start of its marked body.
	refs [][]int
}

const (
	importMarker = "%imported "
	markerLen    = len(importMarker) + 7
	hashLen      = 40
)

var errMalformedDocument = errors.New("certificate: malformed document output")

func newPageImport(pdf *fpdf.Fpdf) *pageImport {
	return &pageImport{
		pdf:  pdf,
		objs: make(map[string][]byte),
		pos:  make(map[string]map[int]string),
		tpls: make(map[string]string),
	}
}

func (p *pageImport) ImportObjects(objs map[string][]byte) { maps.Copy(p.objs, objs) }

func (p *pageImport) ImportObjPos(pos map[string]map[int]string) { maps.Copy(p.pos, pos) }

func (p *pageImport) ImportTemplates(tpls map[string]string) { maps.Copy(p.tpls, tpls) }

func (p *pageImport) UseImportedTemplate(name string, scaleX, scaleY, tx, ty float64) {
	p.pdf.UseImportedTemplate(name, scaleX, scaleY, tx, ty)
}

func (p *pageImport) SetError(err error) { p.pdf.SetError(err) }

// placeholder stands in for an object number until fpdf assigns one. It is
// as wide as the hashes fpdf expects.
func placeholder(i int) string { return fmt.Sprintf("%0*d", hashLen, i) }

// flush hands the collected objects to the document in canonical form.
func (p *pageImport) flush() error {
	parsed := make(map[string]pdfObject, len(p.objs))
	for hash, body := range p.objs {
		obj, err := parseObject(body, p.pos[hash])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTemplateCorrupt, err)
		}
		parsed[hash] = obj
	}

	order, err := canonicalOrder(parsed, p.tpls)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTemplateCorrupt, err)
	}
	index := make(map[string]int, len(order))
	for i, hash := range order {
		index[hash] = i
	}

	objs := make(map[string][]byte, len(order))
	pos := make(map[string]map[int]string, len(order))
	p.refs = make([][]int, len(order))
	for i, hash := range order {
		w := objectWriter{index: index}
		fmt.Fprintf(&w.buf, "%s%06d\n", importMarker, i)
		w.object(parsed[hash])

		key := placeholder(i)
		objs[key] = w.buf.Bytes()
		pos[key] = make(map[int]string, len(w.refs))
		for _, ref := range w.refs {
			pos[key][ref.at] = placeholder(ref.target)
			p.refs[i] = append(p.refs[i], ref.at)
		}
	}

	tpls := make(map[string]string, len(p.tpls))
	for name, hash := range p.tpls {
		tpls[name] = placeholder(index[hash])
	}

	p.pdf.ImportTemplates(tpls)
	p.pdf.ImportObjects(objs)
	p.pdf.ImportObjPos(pos)
	return nil
}

// canonicalOrder numbers objects breadth first from the page templates,
// following references in sorted key order.
func canonicalOrder(objs map[string]pdfObject, tpls map[string]string) ([]string, error) {
	seen := make(map[string]bool, len(objs))
	order := make([]string, 0, len(objs))
	visit := func(hash string) {
		if !seen[hash] {
			seen[hash] = true
			order = append(order, hash)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(tpls)) {
		visit(tpls[name])
	}

	for i := 0; len(order) < len(objs) || i < len(order); {
		for ; i < len(order); i++ {
			obj, ok := objs[order[i]]
			if !ok {
				return nil, fmt.Errorf("reference to unknown object %.8s", order[i])
			}
			obj.value.walkRefs(visit)
		}
		if len(order) == len(objs) {
			break
		}

		// Objects nothing points at are ordered by content.
		var rest []string
		keys := make(map[string]string)
		for hash, obj := range objs {
			if !seen[hash] {
				w := objectWriter{}
				w.object(obj)
				keys[hash] = w.buf.String()
				rest = append(rest, hash)
			}
		}
		slices.SortFunc(rest, func(a, b string) int {
			return cmp.Or(cmp.Compare(keys[a], keys[b]), cmp.Compare(a, b))
		})
		for _, hash := range rest {
			visit(hash)
		}
	}
	return order, nil
}

type valueKind int

const (
	kindToken valueKind = iota
	kindRaw
	kindArray
	kindDict
	kindRef
)

type pdfValue struct {
	kind  valueKind
	text  string
	ref   string
	items []pdfValue
	keys  []string
	dict  map[string]pdfValue
}

func (v pdfValue) walkRefs(visit func(string)) {
	switch v.kind {
	case kindRef:
		visit(v.ref)
	case kindArray:
		for _, item := range v.items {
			item.walkRefs(visit)
		}
	case kindDict:
		for _, k := range v.keys {
			v.dict[k].walkRefs(visit)
		}
	}
}

type pdfObject struct {
	value     pdfValue
	stream    []byte
	hasStream bool
}

type objectParser struct {
	data []byte
	off  int
	refs map[int]string
}

func parseObject(body []byte, refs map[int]string) (pdfObject, error) {
	p := &objectParser{data: body, refs: refs}
	v, err := p.value()
	if err != nil {
		return pdfObject{}, err
	}
	obj := pdfObject{value: v}

	p.skipSpace()
	if !bytes.HasPrefix(body[p.off:], []byte("stream")) {
		return obj, nil
	}
	start := p.off + len("stream")
	if start < len(body) && body[start] == '\r' {
		start++
	}
	if start < len(body) && body[start] == '\n' {
		start++
	}
	end := bytes.LastIndex(body, []byte("endstream"))
	if end < start {
		return pdfObject{}, errors.New("unterminated stream")
	}
	obj.stream = bytes.TrimSuffix(body[start:end], []byte("\n"))
	obj.hasStream = true
	return obj, nil
}

func (p *objectParser) value() (pdfValue, error) {
	p.skipSpace()
	if p.off >= len(p.data) {
		return pdfValue{}, io.ErrUnexpectedEOF
	}

	if target, ok := p.refs[p.off]; ok {
		p.off += hashLen
		if p.token() != "0" || p.token() != "R" {
			return pdfValue{}, fmt.Errorf("malformed reference at offset %d", p.off)
		}
		return pdfValue{kind: kindRef, ref: target}, nil
	}

	switch c := p.data[p.off]; {
	case c == '<' && p.off+1 < len(p.data) && p.data[p.off+1] == '<':
		p.off += 2
		return p.dict()
	case c == '<':
		end := bytes.IndexByte(p.data[p.off:], '>')
		if end < 0 {
			return pdfValue{}, errors.New("unterminated hex string")
		}
		raw := string(p.data[p.off : p.off+end+1])
		p.off += end + 1
		return pdfValue{kind: kindRaw, text: raw}, nil
	case c == '[':
		p.off++
		return p.array()
	case c == '(':
		return p.literal()
	}

	tok := p.token()
	if tok == "" {
		return pdfValue{}, fmt.Errorf("unexpected %q at offset %d", p.data[p.off], p.off)
	}
	return pdfValue{kind: kindToken, text: tok}, nil
}

func (p *objectParser) dict() (pdfValue, error) {
	v := pdfValue{kind: kindDict, dict: make(map[string]pdfValue)}
	for {
		p.skipSpace()
		if bytes.HasPrefix(p.data[p.off:], []byte(">>")) {
			p.off += 2
			slices.Sort(v.keys)
			return v, nil
		}
		if p.off >= len(p.data) || p.data[p.off] != '/' {
			return pdfValue{}, fmt.Errorf("dictionary key expected at offset %d", p.off)
		}
		key := p.token()
		val, err := p.value()
		if err != nil {
			return pdfValue{}, err
		}
		if _, dup := v.dict[key]; !dup {
			v.keys = append(v.keys, key)
		}
		v.dict[key] = val
	}
}

func (p *objectParser) array() (pdfValue, error) {
	v := pdfValue{kind: kindArray}
	for {
		p.skipSpace()
		if p.off >= len(p.data) {
			return pdfValue{}, io.ErrUnexpectedEOF
		}
		if p.data[p.off] == ']' {
			p.off++
			return v, nil
		}
		item, err := p.value()
		if err != nil {
			return pdfValue{}, err
		}
		v.items = append(v.items, item)
	}
}

func (p *objectParser) literal() (pdfValue, error) {
	start, depth := p.off, 0
	for p.off < len(p.data) {
		c := p.data[p.off]
		p.off++
		switch c {
		case '\\':
			p.off++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return pdfValue{kind: kindRaw, text: string(p.data[start:p.off])}, nil
			}
		}
	}
	return pdfValue{}, errors.New("unterminated string")
}

// token reads a name, number or keyword.
func (p *objectParser) token() string {
	p.skipSpace()
	start := p.off
	if p.off < len(p.data) && p.data[p.off] == '/' {
		p.off++
	}
	for p.off < len(p.data) && !isSpace(p.data[p.off]) && !isDelimiter(p.data[p.off]) {
		p.off++
	}
	return string(p.data[start:p.off])
}

func (p *objectParser) skipSpace() {
	for p.off < len(p.data) {
		switch c := p.data[p.off]; {
		case isSpace(c):
			p.off++
		case c == '%':
			for p.off < len(p.data) && p.data[p.off] != '\n' && p.data[p.off] != '\r' {
				p.off++
			}
		default:
			return
		}
	}
}

func isSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

type objectRef struct {
	at     int
	target int
}

type objectWriter struct {
	buf   bytes.Buffer
	index map[string]int
	refs  []objectRef
}

func (w *objectWriter) object(obj pdfObject) {
	w.value(obj.value)
	if obj.hasStream {
		w.buf.WriteString("\nstream\n")
		w.buf.Write(obj.stream)
		w.buf.WriteString("\nendstream")
	}
	w.buf.WriteString("\nendobj")
}

func (w *objectWriter) value(v pdfValue) {
	switch v.kind {
	case kindDict:
		w.buf.WriteString("<<")
		for _, k := range v.keys {
			w.buf.WriteString(k)
			w.buf.WriteByte(' ')
			w.value(v.dict[k])
		}
		w.buf.WriteString(">>")
	case kindArray:
		w.buf.WriteByte('[')
		for _, item := range v.items {
			w.value(item)
		}
		w.buf.WriteByte(']')
	case kindRef:
		target := w.index[v.ref]
		w.refs = append(w.refs, objectRef{at: w.buf.Len(), target: target})
		w.buf.WriteString(placeholder(target))
		w.buf.WriteString(" 0 R ")
	case kindRaw:
		w.buf.WriteString(v.text)
	default:
		w.buf.WriteString(v.text)
		w.buf.WriteByte(' ')
	}
}

var templateRef = regexp.MustCompile(`(/GOFPDITPL\d+ )(\d+) 0 R`)

// reorder renumbers the imported objects of a finished document in canonical
// order, strips their markers and rebuilds the cross-reference table.
func (p *pageImport) reorder(doc []byte) ([]byte, error) {
	if p == nil || len(p.refs) == 0 {
		return doc, nil
	}

	tail := bytes.LastIndex(doc, []byte("startxref\n"))
	if tail < 0 {
		return nil, errMalformedDocument
	}
	line, _, _ := bytes.Cut(doc[tail+len("startxref\n"):], []byte("\n"))
	xref, err := strconv.Atoi(string(line))
	if err != nil || xref >= tail {
		return nil, errMalformedDocument
	}
	head, ok := bytes.CutPrefix(doc[xref:tail], []byte("xref\n0 "))
	if !ok {
		return nil, errMalformedDocument
	}
	countLine, _, _ := bytes.Cut(head, []byte("\n"))
	count, err := strconv.Atoi(string(countLine))
	entries := xref + len("xref\n0 ") + len(countLine) + 1
	if err != nil || count < 2 || entries+count*20 > tail {
		return nil, errMalformedDocument
	}

	offsets := make([]int, count)
	nums := make([]int, 0, count-1)
	for n := 1; n < count; n++ {
		at := entries + n*20
		if offsets[n], err = strconv.Atoi(string(doc[at : at+10])); err != nil || offsets[n] >= xref {
			return nil, errMalformedDocument
		}
		nums = append(nums, n)
	}
	slices.SortFunc(nums, func(a, b int) int { return cmp.Compare(offsets[a], offsets[b]) })
	span := func(k int) []byte {
		end := xref
		if k+1 < len(nums) {
			end = offsets[nums[k+1]]
		}
		return doc[offsets[nums[k]]:end]
	}

	bodies := make([][]byte, len(p.refs))
	renumber := make(map[int]int, len(p.refs))
	base := count
	for k, n := range nums {
		_, body, _ := bytes.Cut(span(k), []byte("\n"))
		if !bytes.HasPrefix(body, []byte(importMarker)) || len(body) < markerLen {
			continue
		}
		i, err := strconv.Atoi(string(body[len(importMarker) : markerLen-1]))
		if err != nil || i >= len(bodies) || bodies[i] != nil {
			return nil, errMalformedDocument
		}
		bodies[i] = bytes.Clone(body)
		renumber[n] = i
		base = min(base, n)
	}
	if len(renumber) != len(bodies) {
		return nil, errMalformedDocument
	}
	for n, i := range renumber {
		renumber[n] = base + i
	}

	for i, body := range bodies {
		for _, at := range p.refs[i] {
			if at+hashLen > len(body) {
				return nil, errMalformedDocument
			}
			old, err := strconv.Atoi(string(bytes.TrimSpace(body[at : at+hashLen])))
			if err != nil {
				return nil, errMalformedDocument
			}
			copy(body[at:], fmt.Sprintf("%*d", hashLen, renumber[old]))
		}
	}

	var buf bytes.Buffer
	buf.Grow(len(doc))
	buf.Write(doc[:offsets[nums[0]]])
	placed := make([]int, count)
	written := false
	for k, n := range nums {
		if _, ok := renumber[n]; ok {
			if written {
				continue
			}
			written = true
			for i, body := range bodies {
				placed[base+i] = buf.Len()
				fmt.Fprintf(&buf, "%d 0 obj\n", base+i)
				buf.Write(body[markerLen:])
			}
			continue
		}

		placed[n] = buf.Len()
		obj := span(k)
		if n == 2 {
			obj = templateRef.ReplaceAllFunc(obj, func(m []byte) []byte {
				sub := templateRef.FindSubmatch(m)
				old, _ := strconv.Atoi(string(sub[2]))
				return fmt.Appendf(nil, "%s%d 0 R", sub[1], renumber[old])
			})
		}
		buf.Write(obj)
	}

	at := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", count)
	for n := 1; n < count; n++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", placed[n])
	}
	buf.Write(doc[entries+count*20 : tail])
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", at)
	return buf.Bytes(), nil
}
