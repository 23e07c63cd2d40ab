package stock

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() Record {
	return Record{
		Symbol:        "AAPL",
		Name:          "Apple Inc.",
		Sector:        "Technology",
		Price:         "189.5",
		MarketCap:     "2.9T",
		PERatio:       "29.1",
		DividendYield: "0.5",
		Description:   "Consumer electronics",
	}
}

func TestBuildEmbeddedText(t *testing.T) {
	got := BuildEmbeddedText(sampleRecord())
	assert.Equal(t,
		"Symbol:AAPL | Name:Apple Inc. | Sector:Technology | Price:189.5 | MarketCap:2.9T | PE_Ratio:29.1 | Dividend_Yield:0.5 | Description:Consumer electronics",
		got)
}

func TestPayload_NumericColumnsStoredAsNumbers(t *testing.T) {
	p := sampleRecord().Payload()

	assert.Equal(t, 189.5, p[KeyPrice])
	assert.Equal(t, "2.9T", p[KeyMarketCap])
	assert.Equal(t, "AAPL", p[KeySymbol])
	assert.Contains(t, p[KeyEmbeddedText], "Symbol:AAPL")
	_, hasDate := p[KeyDate]
	assert.False(t, hasDate)
}

func TestPayload_RoundTripsThroughStoreTypes(t *testing.T) {
	r := sampleRecord()
	r.Date = "2024-06-30"

	got := FromPayload(r.Payload())

	assert.Equal(t, r.WithEmbeddedText(), got)
}

func TestFromPayload_AcceptsStringifiedMetadata(t *testing.T) {
	// chromem stores metadata as strings only.
	got := FromPayload(map[string]interface{}{
		KeySymbol: "MSFT",
		KeyPrice:  "410.2",
		KeyDate:   "2024-06-30",
		"extra":   "ignored",
	})

	assert.Equal(t, "MSFT", got.Symbol)
	assert.Equal(t, "410.2", got.Price)
	assert.Equal(t, "2024-06-30", got.Date)
	assert.Empty(t, got.Sector)
}

func TestFromPayload_IntegerValues(t *testing.T) {
	got := FromPayload(map[string]interface{}{KeyMarketCap: int64(3000000000)})
	assert.Equal(t, "3000000000", got.MarketCap)
}

func TestRecordJSON_UsesColumnNames(t *testing.T) {
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(sampleRecord().JSON()), &decoded))

	assert.Equal(t, "29.1", decoded["PE_Ratio"])
	assert.Equal(t, "0.5", decoded["Dividend_Yield"])
	assert.NotContains(t, decoded, "date")
}
