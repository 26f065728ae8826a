// Package assemble serializes extraction results: the combined XML document,
// streamed one page at a time, and the run manifest, written once at the end.
package assemble

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docstream/pdfextract-worker/internal/session"
)

// CombinedXMLName is the combined document's file name inside a session.
const CombinedXMLName = "combined.xml"

const (
	generatorName    = "pdfextract-worker"
	generatorVersion = "1.0"
)

// DocumentMeta is the header information written before any page is known.
type DocumentMeta struct {
	SourcePath string
	SourceSize int64
	PageCount  int
	StartPage  int
	EndPage    int
}

// ImageRef references one persisted image asset from a page record.
type ImageRef struct {
	Index  int
	Path   string
	Width  int
	Height int
}

// TableRef references one persisted table file from a page record.
type TableRef struct {
	Engine string
	Path   string
}

// PageRecord is one page's contribution to the combined document. Records
// are consumed immediately by WritePage and never retained, which is what
// keeps peak memory independent of document size.
type PageRecord struct {
	Index   int
	Text    string
	OCRUsed bool
	Error   string
	Images  []ImageRef
	Tables  []TableRef
}

// Assembler incrementally writes the combined XML document for one session
// and emits the manifest when the run finishes. It is single-writer by
// contract: exactly one run owns it.
type Assembler struct {
	sess  *session.Session
	file  *os.File
	w     *bufio.Writer
	begun bool
	done  bool

	meta  DocumentMeta
	stats PageStats
}

// NewAssembler creates an assembler bound to the given session directory.
func NewAssembler(sess *session.Session) *Assembler {
	return &Assembler{sess: sess}
}

// XMLPath returns the absolute path of the combined document.
func (a *Assembler) XMLPath() string {
	return filepath.Join(a.sess.Dir, CombinedXMLName)
}

// Begin creates the combined document and writes its metadata header. It
// must be called exactly once, before any WritePage.
func (a *Assembler) Begin(meta DocumentMeta) error {
	if a.begun {
		return fmt.Errorf("assembler already begun")
	}

	f, err := os.Create(a.XMLPath())
	if err != nil {
		return fmt.Errorf("failed to create combined document: %w", err)
	}
	a.file = f
	a.w = bufio.NewWriter(f)
	a.begun = true
	a.meta = meta

	fmt.Fprint(a.w, xml.Header)
	fmt.Fprintln(a.w, "<document>")
	fmt.Fprintln(a.w, "  <metadata>")
	fmt.Fprintf(a.w, "    <generator>%s</generator>\n", generatorName)
	fmt.Fprintf(a.w, "    <version>%s</version>\n", generatorVersion)
	fmt.Fprintf(a.w, "    <timestamp>%s</timestamp>\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintln(a.w, "    <file>")
	fmt.Fprintf(a.w, "      <path>%s</path>\n", escapeXML(meta.SourcePath))
	fmt.Fprintf(a.w, "      <pages>%d</pages>\n", meta.PageCount)
	fmt.Fprintf(a.w, "      <start_page>%d</start_page>\n", meta.StartPage)
	fmt.Fprintf(a.w, "      <end_page>%d</end_page>\n", meta.EndPage)
	fmt.Fprintln(a.w, "    </file>")
	fmt.Fprintln(a.w, "  </metadata>")
	fmt.Fprintln(a.w, "  <content>")

	return a.w.Flush()
}

// WritePage appends one page record immediately. The record's text is
// embedded as CDATA so arbitrary page content cannot corrupt the document
// structure.
func (a *Assembler) WritePage(p PageRecord) error {
	if !a.begun || a.done {
		return fmt.Errorf("assembler not open for pages")
	}

	if p.Error != "" {
		fmt.Fprintf(a.w, "    <page index=\"%d\" error=\"%s\">\n", p.Index, escapeXML(p.Error))
	} else if p.OCRUsed {
		fmt.Fprintf(a.w, "    <page index=\"%d\" ocr=\"true\">\n", p.Index)
	} else {
		fmt.Fprintf(a.w, "    <page index=\"%d\">\n", p.Index)
	}

	fmt.Fprintf(a.w, "      <text>%s</text>\n", cdata(p.Text))

	if len(p.Images) > 0 {
		fmt.Fprintln(a.w, "      <images>")
		for _, im := range p.Images {
			fmt.Fprintf(a.w, "        <image index=\"%d\" path=\"%s\" width=\"%d\" height=\"%d\"/>\n",
				im.Index, escapeXML(im.Path), im.Width, im.Height)
		}
		fmt.Fprintln(a.w, "      </images>")
	}

	if len(p.Tables) > 0 {
		fmt.Fprintln(a.w, "      <tables>")
		for _, t := range p.Tables {
			fmt.Fprintf(a.w, "        <table_ref engine=\"%s\" path=\"%s\"/>\n",
				escapeXML(t.Engine), escapeXML(t.Path))
		}
		fmt.Fprintln(a.w, "      </tables>")
	}

	fmt.Fprintln(a.w, "    </page>")

	a.stats.PagesProcessed++
	if p.OCRUsed {
		a.stats.PagesOCR++
	}
	a.stats.ImagesExtracted += len(p.Images)
	if len(p.Tables) > 0 {
		a.stats.TablesExtracted += len(p.Tables)
	}

	return a.w.Flush()
}

// Finish closes the document body, writes the manifest exactly once and
// returns it. The manifest is immutable afterward.
func (a *Assembler) Finish(cleanup *session.CleanupStats, runErrors []map[string]interface{}, params RunParams) (*Manifest, error) {
	if !a.begun || a.done {
		return nil, fmt.Errorf("assembler not open")
	}
	a.done = true

	fmt.Fprintln(a.w, "  </content>")
	fmt.Fprintln(a.w, "</document>")
	if err := a.w.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush combined document: %w", err)
	}
	if err := a.file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close combined document: %w", err)
	}

	m := &Manifest{
		SessionID: a.sess.ID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		OutputDir: a.sess.Dir,
		XMLPath:   a.XMLPath(),
		TablesDir: a.sess.TablesDir(),
		ImagesDir: a.sess.ImagesDir(),
		Source: SourceStats{
			Path:      a.meta.SourcePath,
			SizeBytes: a.meta.SourceSize,
			PageCount: a.meta.PageCount,
		},
		Pages: a.stats,
		Cleanup:   cleanup,
		Errors:    runErrors,
		Params:    params,
	}

	if err := m.write(filepath.Join(a.sess.Dir, ManifestName)); err != nil {
		return nil, err
	}
	return m, nil
}

// Abort closes the underlying file without finishing the document. The
// partial combined.xml stays in the session directory as the error marker
// for a terminated run.
func (a *Assembler) Abort() {
	if a.file != nil && !a.done {
		a.w.Flush()
		a.file.Close()
		a.done = true
	}
}

// escapeXML escapes a value for use in element content or attributes.
func escapeXML(s string) string {
	var sb strings.Builder
	xml.EscapeText(&sb, []byte(s))
	return sb.String()
}

// cdata wraps page text in a CDATA section. NULs and CRs are stripped the
// way the combined document consumers expect, and any "]]>" inside the text
// is split across adjacent sections so it cannot terminate the block early.
func cdata(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "]]>", "]]]]><![CDATA[>")
	return "<![CDATA[" + text + "]]>"
}
