// Package extract turns uploaded document bytes into plain text and counts words.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/AnTengye/rollingquote/model"
	"github.com/PuerkitoBio/goquery"
	"github.com/extrame/xls"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// Format is the extraction strategy chosen for a file.
type Format string

const (
	FormatText        Format = "text"
	FormatSubtitle    Format = "subtitle"
	FormatHTML        Format = "html"
	FormatJSON        Format = "json"
	FormatPDF         Format = "pdf"
	FormatDOCX        Format = "docx"
	FormatDOC         Format = "doc"
	FormatSpreadsheet Format = "spreadsheet"
	FormatXLS         Format = "xls"
	FormatUnknown     Format = "unknown"
)

var extFormats = map[string]Format{
	".txt":  FormatText,
	".csv":  FormatText,
	".tsv":  FormatText,
	".md":   FormatText,
	".srt":  FormatSubtitle,
	".vtt":  FormatSubtitle,
	".html": FormatHTML,
	".htm":  FormatHTML,
	".json": FormatJSON,
	".pdf":  FormatPDF,
	".docx": FormatDOCX,
	".doc":  FormatDOC,
	".xlsx": FormatSpreadsheet,
	".xls":  FormatXLS,
}

// DetectFormat picks a format from the file extension, falling back to
// content sniffing for files without a recognised one.
func DetectFormat(filename string, data []byte) Format {
	if f, ok := extFormats[strings.ToLower(filepath.Ext(filename))]; ok {
		return f
	}
	sniff := data
	if len(sniff) > 512 {
		sniff = sniff[:512]
	}
	contentType := http.DetectContentType(sniff)
	switch {
	case strings.HasPrefix(contentType, "application/pdf"):
		return FormatPDF
	case strings.HasPrefix(contentType, "text/html"):
		return FormatHTML
	case strings.HasPrefix(contentType, "text/"):
		return FormatText
	}
	return FormatUnknown
}

// Extract returns the plain text of data. Legacy .doc files yield empty
// text rather than an error.
func Extract(data []byte, filename string) (string, error) {
	switch DetectFormat(filename, data) {
	case FormatText:
		return toText(data), nil
	case FormatSubtitle:
		return stripSubtitleTimings(toText(data)), nil
	case FormatHTML:
		return htmlText(data)
	case FormatJSON:
		return jsonText(data), nil
	case FormatPDF:
		return pdfText(data)
	case FormatDOCX:
		return docxText(data)
	case FormatDOC:
		return "", nil
	case FormatSpreadsheet:
		return spreadsheetText(data, filename)
	case FormatXLS:
		return xlsText(data)
	default:
		return toText(data), nil
	}
}

func toText(data []byte) string {
	return strings.ToValidUTF8(string(data), " ")
}

var (
	subtitleTiming = regexp.MustCompile(`(?m)^\s*\d{1,2}:\d{2}(?::\d{2})?[,.]\d{3}\s*-->.*$`)
	subtitleIndex  = regexp.MustCompile(`(?m)^\s*\d+\s*$`)
)

// stripSubtitleTimings drops cue timings, cue numbers and the WEBVTT header.
func stripSubtitleTimings(s string) string {
	s = strings.TrimPrefix(strings.TrimLeft(s, "\ufeff"), "WEBVTT")
	s = subtitleTiming.ReplaceAllString(s, "")
	return subtitleIndex.ReplaceAllString(s, "")
}

func htmlText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}
	doc.Find("script, style, noscript, template").Remove()
	return doc.Text(), nil
}

// jsonText compacts valid JSON so indentation does not count; anything else
// is treated as text.
func jsonText(data []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return toText(data)
	}
	return buf.String()
}

func pdfText(data []byte) (text string, err error) {
	// the PDF reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: unreadable PDF: %v", model.ErrUnsupportedFormat, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open PDF: %v", model.ErrUnsupportedFormat, err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: read PDF text: %v", model.ErrUnsupportedFormat, err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read PDF text: %w", err)
	}
	return toText(b), nil
}

// docxText reads the w:t runs of word/document.xml, one paragraph per line.
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open DOCX: %v", model.ErrUnsupportedFormat, err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("%w: DOCX has no word/document.xml", model.ErrUnsupportedFormat)
	}

	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	var sb strings.Builder
	dec := xml.NewDecoder(rc)
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: parse DOCX: %v", model.ErrUnsupportedFormat, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

// spreadsheetText joins every cell of every sheet.
func spreadsheetText(data []byte, filename string) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: open spreadsheet %s: %v", model.ErrUnsupportedFormat, filepath.Ext(filename), err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		for _, row := range rows {
			sb.WriteString(strings.Join(row, " "))
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}

// maxXLSRows caps how many rows are read from a legacy workbook.
const maxXLSRows = 1 << 20

// xlsText joins every cell of a BIFF (.xls) workbook.
func xlsText(data []byte) (text string, err error) {
	// the BIFF reader panics on truncated records
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: unreadable XLS: %v", model.ErrUnsupportedFormat, r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return "", fmt.Errorf("%w: open XLS: %v", model.ErrUnsupportedFormat, err)
	}
	if wb == nil {
		return "", fmt.Errorf("%w: XLS has no workbook stream", model.ErrUnsupportedFormat)
	}

	var sb strings.Builder
	for _, row := range wb.ReadAllCells(maxXLSRows) {
		sb.WriteString(strings.Join(row, " "))
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
