package edgar

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Form 4 transaction codes. P and S cover open-market trades; award and
// exercise codes are treated as buys since shares are acquired.
var buyCodes = map[string]bool{
	"P": true, // open-market purchase
	"A": true, // grant or award
	"M": true, // option exercise
}

var sellCodes = map[string]bool{
	"S": true, // open-market sale
	"D": true, // disposition to issuer
	"F": true, // tax withholding
}

var titleCaser = cases.Title(language.AmericanEnglish)

// ParseForm4 extracts non-derivative insider transactions from a Form 4
// ownership document. Filings report names in all caps ("DOE JANE A"); they
// are normalized to title case. Rows with unrecognized transaction codes or
// no share count are dropped.
func ParseForm4(doc []byte) ([]Transaction, error) {
	q, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return nil, eris.Wrap(err, "edgar: parse form 4 document")
	}

	insider := normalizeInsiderName(q.Find("reportingowner rptownername").First().Text())
	if insider == "" {
		insider = normalizeInsiderName(q.Find("rptownername").First().Text())
	}

	var txns []Transaction
	q.Find("nonderivativetransaction").Each(func(_ int, row *goquery.Selection) {
		code := strings.ToUpper(nodeValue(row, "transactioncoding transactioncode"))
		var kind string
		switch {
		case buyCodes[code]:
			kind = "buy"
		case sellCodes[code]:
			kind = "sell"
		default:
			return
		}

		shares := parseAmount(nodeValue(row, "transactionshares value"))
		if shares <= 0 {
			return
		}
		price := parseAmount(nodeValue(row, "transactionpricepershare value"))

		t := Transaction{
			Insider:  insider,
			Type:     kind,
			Shares:   shares,
			PriceUSD: price,
			TotalUSD: shares * price,
		}
		if ts, err := time.Parse("2006-01-02", nodeValue(row, "transactiondate value")); err == nil {
			t.FiledAt = ts
		}
		txns = append(txns, t)
	})

	return txns, nil
}

func nodeValue(s *goquery.Selection, selector string) string {
	return strings.TrimSpace(s.Find(selector).First().Text())
}

func parseAmount(raw string) float64 {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

// normalizeInsiderName turns EDGAR's "DOE JANE A" into "Doe Jane A".
func normalizeInsiderName(raw string) string {
	raw = strings.Join(strings.Fields(raw), " ")
	if raw == "" {
		return ""
	}
	return titleCaser.String(strings.ToLower(raw))
}
