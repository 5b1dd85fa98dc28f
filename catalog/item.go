package catalog

// Item is one row of an agent's catalog snapshot. Snapshots are replaced
// wholesale on reload; items are never mutated in place.
type Item struct {
	ID            string  `json:"id"`
	SKU           string  `json:"sku"`
	Name          string  `json:"name"`
	Barcode       string  `json:"barcode"`
	PriceUSD      float64 `json:"price_usd"`
	PriceLBP      float64 `json:"price_lbp"`
	UnitOfMeasure string  `json:"unit_of_measure"`
}

// BarcodeAlias maps an alternate/case-pack barcode onto an item of the
// same agent.
type BarcodeAlias struct {
	Barcode string `json:"barcode"`
	ItemID  string `json:"item_id"`
}

type itemsResponse struct {
	Items []Item `json:"items"`
}

type barcodesResponse struct {
	Barcodes []BarcodeAlias `json:"barcodes"`
}
