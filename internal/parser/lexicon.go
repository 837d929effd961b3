package parser

// headerKeywords is the bilingual (English/Farsi) synonym dictionary used
// both by header-row detection (§4.1 step 3) and schema inference (step 4).
// Keys are canonical field names; values are lower-cased keyword variants
// that, when found in a header cell, count as a dictionary match.
var headerKeywords = map[string][]string{
	"sku": {
		"sku", "item code", "item no", "product code", "code",
		"کد کالا", "کد محصول", "کد",
	},
	"gtin": {
		"gtin", "barcode", "ean", "upc",
		"بارکد", "شناسه کالا",
	},
	"productName": {
		"product", "product name", "item", "item name", "description", "name",
		"نام کالا", "شرح کالا", "شرح",
	},
	"quantity": {
		"qty", "quantity", "count", "amount",
		"تعداد", "مقدار",
	},
	"unitPrice": {
		"unit price", "price", "rate", "unit cost",
		"قیمت واحد", "نرخ",
	},
	"lineTotal": {
		"total", "line total", "amount", "sum",
		"جمع", "مبلغ کل",
	},
	"customer": {
		"customer", "customer name", "client", "buyer",
		"مشتری", "نام مشتری", "خریدار",
	},
	"subtotal": {
		"subtotal", "sub total",
		"جمع جزء",
	},
	"tax": {
		"tax", "vat",
		"مالیات",
	},
	"total": {
		"grand total", "total amount", "final total",
		"جمع کل",
	},
}

// totalRowKeywords are tokens that, appearing in a data row, mark it as a
// summary/total row rather than a line item (§4.1 step 5).
var totalRowKeywords = []string{
	"total", "grand total", "subtotal", "sum",
	"جمع", "جمع کل",
}

// canonicalFields enumerates the closed set of fields schema inference may
// produce a column mapping for.
var canonicalFields = []string{
	"sku", "gtin", "productName", "quantity", "unitPrice", "lineTotal",
	"customer", "subtotal", "tax", "total",
}
