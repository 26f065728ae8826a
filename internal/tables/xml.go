package tables

import (
	"encoding/xml"
	"io"
)

// xmlTables is the on-disk schema of a per-page table file:
//
//	<tables engine="lattice" page="3">
//	  <table index="1">
//	    <tr><td>…</td><td>…</td></tr>
//	  </table>
//	</tables>
type xmlTables struct {
	XMLName xml.Name   `xml:"tables"`
	Engine  string     `xml:"engine,attr"`
	Page    int        `xml:"page,attr"`
	Tables  []xmlTable `xml:"table"`
}

type xmlTable struct {
	Index int      `xml:"index,attr"`
	Rows  []xmlRow `xml:"tr"`
}

type xmlRow struct {
	Cells []string `xml:"td"`
}

func encodeTables(w io.Writer, engine string, page int, found []Table) error {
	doc := xmlTables{Engine: engine, Page: page}
	for i, t := range found {
		xt := xmlTable{Index: i + 1}
		for _, row := range t.Rows {
			xt.Rows = append(xt.Rows, xmlRow{Cells: row})
		}
		doc.Tables = append(doc.Tables, xt)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
