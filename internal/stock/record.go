// Package stock defines the stock record stored in the vector store and the
// payload codec shared by ingestion and retrieval.
package stock

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Payload keys. The column-style names match the source CSV headers.
const (
	KeySymbol        = "Symbol"
	KeyName          = "Name"
	KeySector        = "Sector"
	KeyPrice         = "Price"
	KeyMarketCap     = "MarketCap"
	KeyPERatio       = "PE_Ratio"
	KeyDividendYield = "Dividend_Yield"
	KeyDescription   = "Description"
	KeyDate          = "date"
	KeyEmbeddedText  = "embedded_text"
)

// Record is one company snapshot. Numeric columns are kept as their source
// text so values such as "2.8T" or "N/A" survive unchanged.
type Record struct {
	Symbol        string `json:"Symbol"`
	Name          string `json:"Name"`
	Sector        string `json:"Sector"`
	Price         string `json:"Price"`
	MarketCap     string `json:"MarketCap"`
	PERatio       string `json:"PE_Ratio"`
	DividendYield string `json:"Dividend_Yield"`
	Description   string `json:"Description"`
	Date          string `json:"date,omitempty"`
	EmbeddedText  string `json:"embedded_text,omitempty"`
}

// ScoredCandidate is a record returned by similarity search with its cosine
// similarity to the query.
type ScoredCandidate struct {
	ID     uint64
	Record Record
	Score  float32
}

// BuildEmbeddedText renders the text that is embedded for a record.
func BuildEmbeddedText(r Record) string {
	return fmt.Sprintf(
		"Symbol:%s | Name:%s | Sector:%s | Price:%s | MarketCap:%s | PE_Ratio:%s | Dividend_Yield:%s | Description:%s",
		r.Symbol, r.Name, r.Sector, r.Price, r.MarketCap, r.PERatio, r.DividendYield, r.Description,
	)
}

// WithEmbeddedText returns r with EmbeddedText filled in when empty.
func (r Record) WithEmbeddedText() Record {
	if r.EmbeddedText == "" {
		r.EmbeddedText = BuildEmbeddedText(r)
	}
	return r
}

// Payload encodes r for storage. Columns that parse as numbers are stored as
// float64 so range filters stay possible in Qdrant; everything else is text.
func (r Record) Payload() map[string]interface{} {
	p := map[string]interface{}{
		KeySymbol:       r.Symbol,
		KeyName:         r.Name,
		KeySector:       r.Sector,
		KeyDescription:  r.Description,
		KeyEmbeddedText: r.WithEmbeddedText().EmbeddedText,
	}
	for key, val := range map[string]string{
		KeyPrice:         r.Price,
		KeyMarketCap:     r.MarketCap,
		KeyPERatio:       r.PERatio,
		KeyDividendYield: r.DividendYield,
	} {
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			p[key] = f
		} else {
			p[key] = val
		}
	}
	if r.Date != "" {
		p[KeyDate] = r.Date
	}
	return p
}

// FromPayload decodes a stored payload. Unknown keys are ignored and missing
// keys leave the field empty.
func FromPayload(p map[string]interface{}) Record {
	return Record{
		Symbol:        payloadString(p, KeySymbol),
		Name:          payloadString(p, KeyName),
		Sector:        payloadString(p, KeySector),
		Price:         payloadString(p, KeyPrice),
		MarketCap:     payloadString(p, KeyMarketCap),
		PERatio:       payloadString(p, KeyPERatio),
		DividendYield: payloadString(p, KeyDividendYield),
		Description:   payloadString(p, KeyDescription),
		Date:          payloadString(p, KeyDate),
		EmbeddedText:  payloadString(p, KeyEmbeddedText),
	}
}

func payloadString(p map[string]interface{}, key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// JSON serializes r the way it is shown to the language models.
func (r Record) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		return "{}"
	}
	return string(data)
}
