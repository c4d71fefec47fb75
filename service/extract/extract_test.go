package extract

import (
	"archive/zip"
	"bytes"
	"os"
	"testing"

	"github.com/AnTengye/rollingquote/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestCountWords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"whitespace only", " \n\t  ", 0},
		{"simple", "the quick brown fox", 4},
		{"punctuation splits", "hello,world;again", 3},
		{"apostrophe joins", "don't can’t", 2},
		{"hyphen joins", "state-of-the-art design", 2},
		{"lone dash is not a word", "one - two -- three", 3},
		{"digits count", "order 42 shipped in 2024", 5},
		{"unicode letters", "naïve café déjà vu", 4},
		{"non latin", "Привет мир こんにちは", 3},
		{"combining marks stay in word", "café noir", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountWords(tt.text))
		})
	}
}

func TestLikelyScanned(t *testing.T) {
	t.Parallel()

	assert.True(t, LikelyScanned("scan.PDF", 3))
	assert.False(t, LikelyScanned("scan.pdf", ScannedPDFThreshold))
	assert.False(t, LikelyScanned("notes.txt", 0))
}

func TestExtract_TextFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		data     string
		words    int
	}{
		{"plain", "a.txt", "one two three", 3},
		{"csv", "a.csv", "name,city\nAnn,Paris", 4},
		{"markdown", "a.md", "# Title\n\nSome *text*", 3},
		{
			name:     "srt timings removed",
			filename: "a.srt",
			data:     "1\n00:00:01,000 --> 00:00:04,000\nHello there\n\n2\n00:00:05,000 --> 00:00:06,500\nGeneral Kenobi\n",
			words:    4,
		},
		{
			name:     "vtt header and timings removed",
			filename: "a.vtt",
			data:     "WEBVTT\n\n00:01.000 --> 00:04.000 align:start\nHello there\n",
			words:    2,
		},
		{"html", "a.html", "<html><head><style>p{color:red}</style><script>var x = 1;</script></head><body><p>Hello <b>world</b></p></body></html>", 2},
		{"json compacted", "a.json", "{\n  \"greeting\": \"hello world\"\n}", 3},
		{"invalid json is text", "a.json", "hello {world", 2},
		{"legacy doc is empty", "a.doc", "\xd0\xcf\x11\xe0 binary", 0},
		{"unknown falls back to text", "a.xyz", "some words here", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := Extract([]byte(tt.data), tt.filename)
			require.NoError(t, err)
			assert.Equal(t, tt.words, CountWords(text), "text=%q", text)
		})
	}
}

func TestExtract_InvalidUTF8Fallback(t *testing.T) {
	t.Parallel()

	text, err := Extract([]byte("ok \xff\xfe words"), "notes")
	require.NoError(t, err)
	assert.Equal(t, 2, CountWords(text))
}

func TestExtract_DOCX(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve"> translated</w:t></w:r></w:p>
<w:p><w:r><w:t>world</w:t></w:r></w:p>
</w:body>
</w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	text, err := Extract(buf.Bytes(), "letter.docx")
	require.NoError(t, err)
	assert.Equal(t, "Hello translated\nworld\n", text)
}

func TestExtract_DOCXWithoutBody(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("other.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = Extract(buf.Bytes(), "broken.docx")
	require.ErrorIs(t, err, model.ErrUnsupportedFormat)
}

func TestExtract_Spreadsheet(t *testing.T) {
	t.Parallel()

	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "unit price"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "total"))
	_, err := f.NewSheet("Notes")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Notes", "A1", "deliver by friday"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	text, err := Extract(buf.Bytes(), "prices.xlsx")
	require.NoError(t, err)
	assert.Equal(t, 6, CountWords(text))
}

func TestExtract_LegacyXLS(t *testing.T) {
	t.Parallel()

	data, err := os.ReadFile("testdata/sheets.xls")
	require.NoError(t, err)
	require.Equal(t, FormatXLS, DetectFormat("sheets.XLS", data))

	text, err := Extract(data, "sheets.xls")
	require.NoError(t, err)
	assert.Contains(t, text, "Lorem")
	assert.Contains(t, text, "Avocado")
	assert.Greater(t, CountWords(text), 0)
}

func TestExtract_BrokenBinaries(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"scan.pdf", "sheet.xlsx", "sheet.xls", "doc.docx"} {
		_, err := Extract([]byte("definitely not a real file"), name)
		require.ErrorIs(t, err, model.ErrUnsupportedFormat, name)
	}
}

func TestDetectFormat_Sniffing(t *testing.T) {
	t.Parallel()

	assert.Equal(t, FormatPDF, DetectFormat("upload", []byte("%PDF-1.7\n")))
	assert.Equal(t, FormatHTML, DetectFormat("upload", []byte("<!DOCTYPE html><html></html>")))
	assert.Equal(t, FormatText, DetectFormat("upload", []byte("plain words")))
	assert.Equal(t, FormatUnknown, DetectFormat("upload", []byte{0x00, 0x01, 0x02, 0x03}))
	assert.Equal(t, FormatSubtitle, DetectFormat("EPISODE.SRT", nil))
}
