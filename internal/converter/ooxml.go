package converter

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DocxConverter extracts headings, paragraphs and tables from Word documents
type DocxConverter struct{}

// NewDocxConverter creates a DocxConverter
func NewDocxConverter() *DocxConverter {
	return &DocxConverter{}
}

func (c *DocxConverter) Accepts(info StreamInfo) bool {
	return info.Extension == ".docx" || strings.HasPrefix(info.MIMEType, "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
}

func (c *DocxConverter) Convert(ctx context.Context, data []byte, info StreamInfo) (*Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open DOCX ZIP: %w", err)
	}

	doc, err := readZipFile(zr, "word/document.xml")
	if err != nil {
		return nil, fmt.Errorf("read document.xml: %w", err)
	}

	var (
		md        strings.Builder
		para      strings.Builder
		heading   int
		list      bool
		tableRows [][]string
		row       []string
		cell      strings.Builder
		tblDepth  int
		inCell    bool
	)

	decoder := xml.NewDecoder(bytes.NewReader(doc))
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tblDepth++
				if tblDepth == 1 {
					tableRows = nil
				}
			case "tr":
				row = nil
			case "tc":
				inCell = true
				cell.Reset()
			case "p":
				para.Reset()
				heading, list = 0, false
			case "pStyle":
				heading = headingLevel(attr(t, "val"))
			case "numPr":
				list = true
			case "t":
				var text string
				if err := decoder.DecodeElement(&text, &t); err == nil {
					if inCell {
						cell.WriteString(text)
					} else {
						para.WriteString(text)
					}
				}
			case "tab":
				para.WriteString("\t")
			case "br":
				para.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tc":
				inCell = false
				row = append(row, strings.TrimSpace(cell.String()))
			case "tr":
				tableRows = append(tableRows, row)
			case "tbl":
				tblDepth--
				if tblDepth == 0 {
					md.WriteString(renderMarkdownTable(tableRows))
					md.WriteString("\n")
				}
			case "p":
				if inCell {
					cell.WriteString(" ")
					continue
				}
				text := strings.TrimSpace(para.String())
				if text == "" {
					continue
				}
				switch {
				case heading > 0:
					md.WriteString(strings.Repeat("#", heading) + " " + text)
				case list:
					md.WriteString("- " + text)
				default:
					md.WriteString(text)
				}
				md.WriteString("\n\n")
			}
		}
	}

	return &Result{Markdown: strings.TrimSpace(md.String())}, nil
}

var headingStyle = regexp.MustCompile(`(?i)^heading\s*([1-6])$`)

// headingLevel maps paragraph style ids such as Heading2 or Title to a level
func headingLevel(style string) int {
	if strings.EqualFold(style, "title") {
		return 1
	}
	if m := headingStyle.FindStringSubmatch(style); m != nil {
		level, _ := strconv.Atoi(m[1])
		return level
	}
	return 0
}

// PptxConverter extracts slide text in slide order
type PptxConverter struct{}

// NewPptxConverter creates a PptxConverter
func NewPptxConverter() *PptxConverter {
	return &PptxConverter{}
}

func (c *PptxConverter) Accepts(info StreamInfo) bool {
	return info.Extension == ".pptx" || strings.HasPrefix(info.MIMEType, "application/vnd.openxmlformats-officedocument.presentationml.presentation")
}

var slideName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func (c *PptxConverter) Convert(ctx context.Context, data []byte, info StreamInfo) (*Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open PPTX ZIP: %w", err)
	}

	type slide struct {
		num  int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		if m := slideName.FindStringSubmatch(f.Name); m != nil {
			num, _ := strconv.Atoi(m[1])
			slides = append(slides, slide{num: num, name: f.Name})
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var md strings.Builder
	for _, s := range slides {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		content, err := readZipFile(zr, s.name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", s.name, err)
		}
		paragraphs, err := slideParagraphs(content)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", s.name, err)
		}

		fmt.Fprintf(&md, "<!-- Slide number: %d -->\n", s.num)
		for i, p := range paragraphs {
			if i == 0 {
				md.WriteString("# " + p + "\n")
				continue
			}
			md.WriteString(p + "\n")
		}
		md.WriteString("\n")
	}

	return &Result{Markdown: strings.TrimSpace(md.String())}, nil
}

// slideParagraphs returns the non-empty text paragraphs (a:p) of a slide
func slideParagraphs(content []byte) ([]string, error) {
	var (
		paragraphs []string
		current    strings.Builder
	)

	decoder := xml.NewDecoder(bytes.NewReader(content))
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				current.Reset()
			case "t":
				var text string
				if err := decoder.DecodeElement(&text, &t); err == nil {
					current.WriteString(text)
				}
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				if text := strings.TrimSpace(current.String()); text != "" {
					paragraphs = append(paragraphs, text)
				}
			}
		}
	}
	return paragraphs, nil
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return io.ReadAll(f)
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
