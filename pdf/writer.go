// Package pdf emits minimal image-per-page PDF documents. Each page holds
// a single full-bleed image XObject behind a classic xref table.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/zlib"

	"quadpdf/geo"
)

// ErrNoPages is returned when writing a document with an empty page list.
var ErrNoPages = errors.New("pdf: document has no pages")

// Page is one output page: a single image scaled to fill the media box.
type Page struct {
	Size  geo.Size
	Image *Image
}

// Document is an ordered list of pages.
type Document struct {
	Pages []*Page
}

// Writer serializes Documents. The zero value is ready to use.
type Writer struct {
	// CompressionLevel for image streams, in the range accepted by
	// zlib.NewWriterLevel. Zero means zlib.DefaultCompression.
	CompressionLevel int
}

// Write serializes the document to out. Object numbering, dictionary key
// order, and stream layout are deterministic for identical input.
func (w *Writer) Write(doc *Document, out io.Writer) error {
	if doc == nil || len(doc.Pages) == 0 {
		return ErrNoPages
	}

	objects := make(map[Ref]Object)
	objNum := 1
	catalogRef := Ref{Num: objNum}
	objNum++
	pagesRef := Ref{Num: objNum}
	objNum++

	pageRefs := make([]Ref, 0, len(doc.Pages))
	for _, p := range doc.Pages {
		if p.Image == nil {
			return fmt.Errorf("pdf: page %d has no image", len(pageRefs))
		}

		imageRef := Ref{Num: objNum}
		objNum++
		imageDict := Dict{
			"Type":             Name("XObject"),
			"Subtype":          Name("Image"),
			"Width":            Integer(p.Image.Width),
			"Height":           Integer(p.Image.Height),
			"ColorSpace":       Name("DeviceRGB"),
			"BitsPerComponent": Integer(8),
			"Filter":           Name("FlateDecode"),
		}
		if p.Image.Alpha != nil {
			maskRef := Ref{Num: objNum}
			objNum++
			maskData, err := w.deflate(p.Image.Alpha)
			if err != nil {
				return err
			}
			objects[maskRef] = &Stream{
				Dict: Dict{
					"Type":             Name("XObject"),
					"Subtype":          Name("Image"),
					"Width":            Integer(p.Image.Width),
					"Height":           Integer(p.Image.Height),
					"ColorSpace":       Name("DeviceGray"),
					"BitsPerComponent": Integer(8),
					"Filter":           Name("FlateDecode"),
				},
				Data: maskData,
			}
			imageDict["SMask"] = maskRef
		}
		imageData, err := w.deflate(p.Image.Data)
		if err != nil {
			return err
		}
		objects[imageRef] = &Stream{Dict: imageDict, Data: imageData}

		contentRef := Ref{Num: objNum}
		objNum++
		content := fmt.Sprintf("q\n%.2f 0 0 %.2f 0 0 cm\n/Im0 Do\nQ\n",
			p.Size.Width, p.Size.Height)
		objects[contentRef] = &Stream{Dict: Dict{}, Data: []byte(content)}

		pageRef := Ref{Num: objNum}
		objNum++
		box := p.Size.MediaBox()
		objects[pageRef] = Dict{
			"Type":     Name("Page"),
			"Parent":   pagesRef,
			"MediaBox": Array{Real(box.LLX), Real(box.LLY), Real(box.URX), Real(box.URY)},
			"Resources": Dict{
				"XObject": Dict{"Im0": imageRef},
			},
			"Contents": contentRef,
		}
		pageRefs = append(pageRefs, pageRef)
	}

	kids := make(Array, 0, len(pageRefs))
	for _, r := range pageRefs {
		kids = append(kids, r)
	}
	objects[pagesRef] = Dict{
		"Type":  Name("Pages"),
		"Count": Integer(len(pageRefs)),
		"Kids":  kids,
	}
	objects[catalogRef] = Dict{
		"Type":  Name("Catalog"),
		"Pages": pagesRef,
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xE2\xE3\xCF\xD3\n")
	offsets := make(map[int]int64)

	ordered := make([]Ref, 0, len(objects))
	for ref := range objects {
		ordered = append(ordered, ref)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Num < ordered[j].Num })
	for _, ref := range ordered {
		offsets[ref.Num] = int64(buf.Len())
		buf.Write(serializeObject(ref, objects[ref]))
	}

	xrefOffset := buf.Len()
	maxObjNum := ordered[len(ordered)-1].Num
	fmt.Fprintf(&buf, "xref\n0 %d\n", maxObjNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= maxObjNum; i++ {
		if off, ok := offsets[i]; ok {
			fmt.Fprintf(&buf, "%010d 00000 n \n", off)
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}
	fmt.Fprintf(&buf, "trailer\n<< /Root %d 0 R /Size %d >>\nstartxref\n%d\n%%%%EOF\n",
		catalogRef.Num, maxObjNum+1, xrefOffset)

	_, err := out.Write(buf.Bytes())
	return err
}

func (w *Writer) deflate(data []byte) ([]byte, error) {
	level := w.CompressionLevel
	if level == 0 {
		level = zlib.DefaultCompression
	}
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
