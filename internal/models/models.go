package models

// Fixed quote identities, in publishing order.
const (
	ArabicaParchment = "arabica-parchment"
	ArabicaCherry    = "arabica-cherry"
	RobustaParchment = "robusta-parchment"
	RobustaCherry    = "robusta-cherry"
)

// NotAvailable is the price placed in every quote when no price row was found.
const NotAvailable = "N/A"

// UnknownDate is reported when the document carries no recognisable report date.
const UnknownDate = "Unknown"

// Grade pairs a quote id with its display label.
type Grade struct {
	ID   string
	Name string
}

// Grades lists the four published grades. The price row in the report carries
// a low/high pair for each of them in exactly this order.
var Grades = [4]Grade{
	{ID: ArabicaParchment, Name: "Arabica Parchment"},
	{ID: ArabicaCherry, Name: "Arabica Cherry"},
	{ID: RobustaParchment, Name: "Robusta Parchment"},
	{ID: RobustaCherry, Name: "Robusta Cherry"},
}

// PriceQuote is one grade's price range as published.
type PriceQuote struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

// PriceReport is the full payload handed to the dashboard, either as the
// static artifact or as the /api/prices response body.
type PriceReport struct {
	Prices      []PriceQuote `json:"prices"`
	LastUpdated string       `json:"lastUpdated"`
	Source      string       `json:"source"`
	Note        string       `json:"note,omitempty"`
	FetchedAt   string       `json:"fetchedAt,omitempty"`
	IsFallback  bool         `json:"isFallback,omitempty"`
}

// Extraction is what the locator pulled out of the document text.
// Tokens holds the digit runs of the winning line, or nothing on a miss.
type Extraction struct {
	Tokens []string
	Date   string
}

// FallbackReport is the constant report consumers show when neither the
// static artifact nor the live endpoint can be reached.
func FallbackReport() PriceReport {
	return PriceReport{
		Prices: []PriceQuote{
			{ID: RobustaCherry, Name: "Robusta Cherry", Price: "₹ 10,300 - 10,500"},
			{ID: RobustaParchment, Name: "Robusta Parchment", Price: "₹ 16,500 - 17,500"},
			{ID: ArabicaCherry, Name: "Arabica Cherry", Price: "₹ 14,300 - 14,600"},
			{ID: ArabicaParchment, Name: "Arabica Parchment", Price: "₹ 28,200 - 28,800"},
		},
		LastUpdated: "Service Interrupted (Cached)",
		IsFallback:  true,
	}
}
