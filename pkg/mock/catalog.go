package mock

import (
	"strings"

	"github.com/papercomputeco/shopstream/pkg/chat"
)

const (
	searchAnswer    = "Here are some products I found"
	recommendAnswer = "Here are popular picks"

	// resultLimit matches the page size of the shop assistant's search.
	resultLimit = 5
)

// Catalog is the built-in product list served when no capture is configured.
var Catalog = []chat.Product{
	{ID: chat.NumericID(1), Title: "Fjallraven Foldsack No. 1 Backpack", Price: 109.95, Category: "men's clothing", Image: "https://fakestoreapi.com/img/81fPKd-2AYL._AC_SL1500_.jpg"},
	{ID: chat.NumericID(2), Title: "Mens Casual Premium Slim Fit T-Shirts", Price: 22.3, Category: "men's clothing"},
	{ID: chat.NumericID(3), Title: "Mens Cotton Jacket", Price: 55.99, Category: "men's clothing"},
	{ID: chat.NumericID(4), Title: "Ceramic Coffee Mug", Price: 12.5, Category: "kitchen"},
	{ID: chat.NumericID(5), Title: "John Hardy Women's Legends Naga Bracelet", Price: 695, Category: "jewelery"},
	{ID: chat.NumericID(6), Title: "Solid Gold Petite Micropave Ring", Price: 168, Category: "jewelery"},
	{ID: chat.NumericID(7), Title: "WD 2TB Elements Portable External Hard Drive", Price: 64, Category: "electronics"},
	{ID: chat.NumericID(8), Title: "Samsung 49-Inch Gaming Monitor", Price: 999.99, Category: "electronics"},
	{ID: chat.NumericID(9), Title: "Rain Jacket Women Windbreaker", Price: 39.99, Category: "women's clothing"},
	{ID: chat.NumericID(10), Title: "Café Crème Espresso Cups, set of 2", Price: 18.75, Category: "kitchen"},
}

// Respond builds the messages the assistant streams for query: products whose
// title or category mention a query word, or the first catalogue entries as
// popular picks when nothing matches.
func Respond(query string) []chat.Message {
	var words []string
	for w := range strings.FieldsSeq(strings.ToLower(query)) {
		w = strings.Trim(w, ".,!?\"'")
		if len([]rune(w)) >= 3 {
			words = append(words, w)
		}
	}

	var found []chat.Product
	for _, p := range Catalog {
		haystack := strings.ToLower(p.Title + " " + p.Category)
		for _, w := range words {
			if strings.Contains(haystack, w) {
				found = append(found, p)
				break
			}
		}
		if len(found) == resultLimit {
			break
		}
	}

	if len(found) == 0 {
		return []chat.Message{{Answer: recommendAnswer, Results: Catalog[:resultLimit]}}
	}
	return []chat.Message{{Answer: searchAnswer, Results: found}}
}
