package textnorm

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/witto13/BESS-Crawler/go/skerr"
	"github.com/witto13/BESS-Crawler/go/sklog"
)

// extractionTriggers cause a progressive extraction to continue through the
// whole document rather than stopping after the first pages.
var extractionTriggers = []string{
	"batteriespeicher",
	"energiespeicher",
	"bebauungsplan",
	"aufstellungsbeschluss",
}

// PDFPages extracts plain text from the first maxPages pages of the given
// PDF. maxPages <= 0 means all pages. Returns the text and the number of
// pages in the document.
func PDFPages(b []byte, maxPages int) (string, int, error) {
	r, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", 0, skerr.Wrapf(err, "parsing PDF (%d bytes)", len(b))
	}
	numPages := r.NumPage()
	limit := numPages
	if maxPages > 0 && maxPages < numPages {
		limit = maxPages
	}
	var sb strings.Builder
	for i := 1; i <= limit; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Some municipal PDFs contain single broken pages; keep
			// the rest of the document.
			sklog.Warningf("Failed to extract text from PDF page %d: %s", i, err)
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), numPages, nil
}

// PDFProgressive extracts the first prefixPages pages and, if the prefix
// mentions one of the trigger terms, the rest of the document too. Returns
// the text, whether a trigger was seen, and the page count.
func PDFProgressive(b []byte, prefixPages int) (string, bool, int, error) {
	text, numPages, err := PDFPages(b, prefixPages)
	if err != nil {
		return "", false, 0, err
	}
	normalized := Normalize(text)
	hasTriggers := false
	for _, t := range extractionTriggers {
		if strings.Contains(normalized, t) {
			hasTriggers = true
			break
		}
	}
	if hasTriggers && numPages > prefixPages {
		full, _, err := PDFPages(b, 0)
		if err != nil {
			return "", false, 0, err
		}
		return full, true, numPages, nil
	}
	return text, hasTriggers, numPages, nil
}

// TextCache caches extracted PDF text on disk so that re-crawls skip the
// expensive extraction step.
type TextCache struct {
	base string
}

// NewTextCache returns a TextCache rooted at the given directory.
func NewTextCache(base string) *TextCache {
	return &TextCache{base: base}
}

// key derives the cache key from the URL and the PDF size, so a re-published
// PDF at the same URL invalidates the entry.
func (c *TextCache) key(url string, pdfLen int) string {
	sum := sha256.Sum256([]byte(url + strconv.Itoa(pdfLen)))
	return hex.EncodeToString(sum[:])
}

func (c *TextCache) path(key string) string {
	return filepath.Join(c.base, key[:2], key+".txt")
}

// Get returns the cached text for the given URL and PDF size, and whether it
// was present.
func (c *TextCache) Get(url string, pdfLen int) (string, bool) {
	b, err := os.ReadFile(c.path(c.key(url, pdfLen)))
	if err != nil {
		return "", false
	}
	return string(b), true
}

// Put stores extracted text.
func (c *TextCache) Put(url string, pdfLen int, text string) error {
	p := c.path(c.key(url, pdfLen))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return skerr.Wrap(err)
	}
	return skerr.Wrap(os.WriteFile(p, []byte(text), 0644))
}
