package extract

import (
	"regexp"
	"strings"
)

// MaxItems caps how many line items one document may yield.
const MaxItems = 20

// name (5-40 chars), quantity, then eventually a $-marked unit price
var reItemLine = regexp.MustCompile(`(?i)(.{5,40})\s+(\d+(?:[,.]\d{1,3})?)\s+.*?\$(\d+[,.]?\d{0,2})`)

// ExtractItems scans lines in order and keeps those matching the item pattern
// with a positive quantity and price. A line either yields a full item or nothing.
func (e *Extractor) ExtractItems(lines []string) []LineItem {
	items := make([]LineItem, 0, 4)
	for _, line := range lines {
		if len(items) == MaxItems {
			break
		}
		item, ok := parseItemLine(line)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items
}

func parseItemLine(line string) (LineItem, bool) {
	m := reItemLine.FindStringSubmatch(line)
	if m == nil {
		return LineItem{}, false
	}
	qty, ok := parseAmount(m[2])
	if !ok || !qty.IsPositive() {
		return LineItem{}, false
	}
	price, ok := parseAmount(m[3])
	if !ok || !price.IsPositive() {
		return LineItem{}, false
	}
	item := LineItem{
		ProductName: strings.TrimSpace(m[1]),
		Quantity:    qty,
		UnitPrice:   price,
	}
	item.Recompute()
	return item, true
}
