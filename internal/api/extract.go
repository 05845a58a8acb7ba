package api

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Column positions of a history table row.
const (
	ColDate = iota
	ColLastPrice
	ColMaxPrice
	ColMinPrice
	ColAvgPrice
	ColPercentChange
	ColQuantity
	ColBestTurnover
	ColTotalTurnover

	// NumColumns is the number of cells in a complete row.
	NumColumns
)

// errNoSelector is returned when the listing page has no security selector.
var errNoSelector = errors.New(`no <select id="Code"> on listing page`)

// ExtractRows returns the cell texts of the history table body.
// A page without a table body yields no rows and no error; the exchange
// renders that for windows without trades.
func ExtractRows(r io.Reader) ([][]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse history page: %w", err)
	}

	body := doc.Find("#resultsTable tbody").First()
	if body.Length() == 0 {
		body = doc.Find("tbody").First()
	}
	if body.Length() == 0 {
		return [][]string{}, nil
	}

	rows := make([][]string, 0, body.Children().Length())
	body.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return
		}
		row := make([]string, 0, cells.Length())
		cells.Each(func(_ int, td *goquery.Selection) {
			row = append(row, strings.TrimSpace(td.Text()))
		})
		rows = append(rows, row)
	})

	return rows, nil
}

// ExtractCodes returns the option values of the security selector, in page order.
func ExtractCodes(r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	sel := doc.Find("select#Code")
	if sel.Length() == 0 {
		return nil, errNoSelector
	}

	var codes []string
	sel.First().Find("option").Each(func(_ int, opt *goquery.Selection) {
		v, ok := opt.Attr("value")
		if !ok {
			v = opt.Text()
		}
		if v = strings.TrimSpace(v); v != "" {
			codes = append(codes, v)
		}
	})

	return codes, nil
}
