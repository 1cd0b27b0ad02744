package queue

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkdrain/internal/types"
)

func TestDecodeItemsPreservesOrder(t *testing.T) {
	in := strings.NewReader(
		"UrlId;longUrl;Domain\n" +
			"a1;https://example.com/one;bit.ly\n" +
			"a2;https://example.com/two;\n" +
			"a3;https://example.com/three;cust.om\n")

	items, err := DecodeItems(in)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "a1", items[0].ItemID)
	assert.Equal(t, "a2", items[1].ItemID)
	assert.Equal(t, "a3", items[2].ItemID)
	assert.Equal(t, "https://example.com/two", items[1].LongURL)
	assert.Equal(t, "cust.om", items[2].Domain)
	assert.Empty(t, items[1].Domain)
}

func TestDecodeItemsHeaderOrderIndependent(t *testing.T) {
	in := strings.NewReader(
		"longUrl;Domain;UrlId\n" +
			"https://example.com/one;bit.ly;a1\n")

	items, err := DecodeItems(in)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a1", items[0].ItemID)
	assert.Equal(t, "https://example.com/one", items[0].LongURL)
	assert.Equal(t, "bit.ly", items[0].Domain)
}

func TestDecodeItemsMissingRequiredColumn(t *testing.T) {
	in := strings.NewReader("UrlId;Domain\na1;bit.ly\n")

	_, err := DecodeItems(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "longUrl")
}

func TestDecodeItemsEmptyInput(t *testing.T) {
	items, err := DecodeItems(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRoundTrip(t *testing.T) {
	original := []types.WorkItem{
		{ItemID: "a1", LongURL: "https://example.com/one", Domain: "bit.ly"},
		{ItemID: "a2", LongURL: "https://example.com/two?q=x;y", Domain: ""},
		{ItemID: "a3", LongURL: "https://example.com/three", Domain: "cust.om"},
	}

	encoded, err := EncodeItems(original)
	require.NoError(t, err)

	decoded, err := DecodeItems(bytes.NewReader(encoded))
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestEncodeItemsEmptyListKeepsHeader(t *testing.T) {
	encoded, err := EncodeItems(nil)
	require.NoError(t, err)
	assert.Equal(t, "UrlId;longUrl;Domain\n", string(encoded))

	decoded, err := DecodeItems(bytes.NewReader(encoded))
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestEncodeResultsKeepsEmptyShortURL(t *testing.T) {
	rows := []types.ResultRow{
		{WorkItem: types.WorkItem{ItemID: "a1", LongURL: "https://example.com/one"}, ShortURL: "https://bit.ly/x"},
		{WorkItem: types.WorkItem{ItemID: "a2", LongURL: "https://example.com/two"}, ShortURL: ""},
	}

	encoded, err := EncodeResults(rows)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(encoded), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "UrlId;longUrl;Domain;shortUrl", lines[0])
	assert.Equal(t, "a1;https://example.com/one;;https://bit.ly/x", lines[1])
	assert.Equal(t, "a2;https://example.com/two;;", lines[2])
}
