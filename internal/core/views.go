package core

// Aggregate views: a row plus denormalized fields from related rows, built
// so callers don't need a second round trip.
type (
	CompanyView struct {
		Company
		Funders       []Funder       `json:"funders"`
		MoneyCapitals []MoneyCapital `json:"money_capitals,omitempty"`
	}

	ExpenseView struct {
		Expense
		User    string `json:"user"`
		Company string `json:"company"`
	}

	IncomeView struct {
		Income
		Admin   string `json:"admin"`
		Company string `json:"company"`
	}

	MoneyCapitalView struct {
		MoneyCapital
		User    string `json:"user"`
		Company string `json:"company"`
	}

	DocumentView struct {
		Document
		Path string `json:"path"`
	}
)

func NewDocumentView(d Document) DocumentView {
	return DocumentView{Document: d, Path: d.Path()}
}
