package domain

// DefaultCategory seeds a new user's category list.
type DefaultCategory struct {
	Name string
	Icon string
	Kind Kind
}

var DefaultCategories = []DefaultCategory{
	{"Salary", "💼", Income},
	{"Freelance", "💻", Income},
	{"Investments", "📈", Income},
	{"Sales", "🛒", Income},
	{"Other", "💰", Income},
	{"Food", "🍽️", Expense},
	{"Transport", "🚗", Expense},
	{"Housing", "🏠", Expense},
	{"Health", "🏥", Expense},
	{"Education", "📚", Expense},
	{"Leisure", "🎮", Expense},
	{"Shopping", "🛍️", Expense},
	{"Bills", "📄", Expense},
	{"Other", "💸", Expense},
}
