package recognition

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-intake/internal/extract"
)

var (
	decimalRe = regexp.MustCompile(decimalPattern)

	headerSynonyms = map[string]string{
		"number":      "invoice_number",
		"invoice_no":  "invoice_number",
		"date":        "invoice_date",
		"provider":    "provider_name",
		"supplier":    "provider_name",
		"vendor_name": "provider_name",
		"line_items":  "items",
		"lines":       "items",
		"text":        "raw_text",
	}
	itemSynonyms = map[string]string{
		"name":        "product_name",
		"description": "product_name",
		"qty":         "quantity",
		"price":       "unit_price",
		"total":       "total_price",
	}
	headerAllowed = map[string]struct{}{
		"success": {}, "invoice_number": {}, "invoice_date": {}, "provider_name": {},
		"subtotal": {}, "tax": {}, "total": {}, "confidence": {}, "raw_text": {}, "items": {},
	}
	itemAllowed = map[string]struct{}{
		"product_name": {}, "quantity": {}, "unit_price": {}, "total_price": {},
	}
	headerMoney = []string{"subtotal", "tax", "total"}
	itemMoney   = []string{"quantity", "unit_price", "total_price"}
	headerText  = []string{"invoice_number", "invoice_date", "provider_name"}
)

// SanitizePrimaryJSON massages a primary recognizer response into the shape
// BuildPrimaryResponseSchema accepts:
//   - renames known synonyms
//   - coerces amounts to decimal strings, comma read as decimal separator
//   - reads a confidence in 0..100 as a percentage
//   - rewrites a non-ISO invoice_date through extract.NormalizeDate
//   - drops null, empty and unknown keys
//   - drops items without a name or a decimal quantity and unit price
//
// It returns the new document and the list of dropped or renamed keys.
func SanitizePrimaryJSON(raw []byte, today time.Time, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var dropped []string
	sanitizeObject(m, "", headerSynonyms, headerAllowed, headerMoney, &dropped)

	for _, k := range headerText {
		if v, ok := m[k].(string); ok {
			s := strings.TrimSpace(v)
			if s == "" {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
				continue
			}
			m[k] = s
		}
	}
	if d, ok := m["invoice_date"].(string); ok && !isISODate(d) {
		m["invoice_date"] = extract.NormalizeDate(d, today)
	}

	switch c := m["confidence"].(type) {
	case float64:
		if c > 1 && c <= 100 {
			m["confidence"] = c / 100
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(c), 64); err == nil {
			if f > 1 && f <= 100 {
				f /= 100
			}
			m["confidence"] = f
		} else {
			delete(m, "confidence")
			dropped = append(dropped, "confidence(type)")
		}
	case nil:
		if _, ok := m["confidence"]; ok {
			delete(m, "confidence")
			dropped = append(dropped, "confidence(null)")
		}
	}

	if items, ok := m["items"].([]any); ok {
		kept := make([]any, 0, len(items))
		for i, it := range items {
			obj, ok := it.(map[string]any)
			if !ok {
				dropped = append(dropped, fmt.Sprintf("items[%d](type)", i))
				continue
			}
			sanitizeObject(obj, fmt.Sprintf("items[%d].", i), itemSynonyms, itemAllowed, itemMoney, &dropped)
			if v, ok := obj["product_name"].(string); ok {
				obj["product_name"] = strings.TrimSpace(v)
			}
			if reason := unusableItem(obj); reason != "" {
				dropped = append(dropped, fmt.Sprintf("items[%d](%s)", i, reason))
				continue
			}
			kept = append(kept, obj)
		}
		m["items"] = kept
	} else if _, present := m["items"]; present {
		delete(m, "items")
		dropped = append(dropped, "items(type)")
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("recognition.primary.sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

func sanitizeObject(m map[string]any, prefix string, synonyms map[string]string, allowed map[string]struct{}, money []string, dropped *[]string) {
	for from, to := range synonyms {
		v, ok := m[from]
		if !ok {
			continue
		}
		if _, exists := m[to]; !exists {
			m[to] = v
		}
		delete(m, from)
		*dropped = append(*dropped, prefix+from+"->"+to)
	}

	for _, k := range money {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			m[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case string:
			s := decimalString(t)
			if s == "" {
				delete(m, k)
				*dropped = append(*dropped, prefix+k+"(empty)")
			} else {
				m[k] = s
			}
		case nil:
			delete(m, k)
			*dropped = append(*dropped, prefix+k+"(null)")
		default:
			delete(m, k)
			*dropped = append(*dropped, prefix+k+"(type)")
		}
	}

	for k, v := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			*dropped = append(*dropped, prefix+k+"(unknown)")
			continue
		}
		if v == nil {
			delete(m, k)
			*dropped = append(*dropped, prefix+k+"(null)")
		}
	}
}

// unusableItem names the first reason an item cannot become a line item, or
// returns "" for a usable one. A malformed total_price is removed since it is
// derived anyway.
func unusableItem(obj map[string]any) string {
	if name, _ := obj["product_name"].(string); name == "" {
		return "product_name"
	}
	for _, k := range []string{"quantity", "unit_price"} {
		if v, _ := obj[k].(string); !decimalRe.MatchString(v) {
			return k
		}
	}
	if v, ok := obj["total_price"].(string); ok && !decimalRe.MatchString(v) {
		delete(obj, "total_price")
	}
	return ""
}

// decimalString strips currency noise and reads a lone comma as the decimal
// separator. "$ 1.250,50" becomes "1250.50".
func decimalString(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, " ", "")
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	return s
}

func isISODate(s string) bool {
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}
