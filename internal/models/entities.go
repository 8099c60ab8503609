package models

// TransactionType distinguishes money in from money out.
type TransactionType string

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// Split assigns part of a transaction to another category.
type Split struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Note     string  `json:"note,omitempty"`
}

// Transaction is one ledger entry. Its id is a millisecond timestamp.
type Transaction struct {
	ID               int64           `json:"id"`
	Title            string          `json:"title" validate:"min=1"`
	Category         string          `json:"category"`
	Amount           float64         `json:"amount"`
	Date             string          `json:"date" validate:"date"`
	Type             TransactionType `json:"type" validate:"oneof=income expense"`
	Context          string          `json:"context,omitempty"`
	Splits           []Split         `json:"splits,omitempty" validate:"omitempty,dive"`
	OriginalAmount   *float64        `json:"originalAmount,omitempty"`
	OriginalCurrency string          `json:"originalCurrency,omitempty"`
	ExchangeRate     *float64        `json:"exchangeRate,omitempty"`
	Attachment       string          `json:"attachment,omitempty"`
	HasAttachment    bool            `json:"hasAttachment,omitempty"`
}

func (Transaction) required() []string {
	return []string{"id", "title", "category", "amount", "date", "type"}
}

// Subscription billing cycles.
const (
	Daily      = "daily"
	Weekly     = "weekly"
	Monthly    = "monthly"
	Quarterly  = "quarterly"
	HalfYearly = "half-yearly"
	Yearly     = "yearly"
)

type Subscription struct {
	ID              string  `json:"id"`
	Name            string  `json:"name" validate:"min=1"`
	Amount          float64 `json:"amount"`
	BillingCycle    string  `json:"billingCycle" validate:"oneof=daily weekly monthly quarterly half-yearly yearly"`
	NextBillingDate string  `json:"nextBillingDate" validate:"date"`
	Category        string  `json:"category"`
	AutoPay         bool    `json:"autoPay,omitempty"`
	Context         string  `json:"context,omitempty"`
}

func (Subscription) required() []string {
	return []string{"id", "name", "amount", "billingCycle", "nextBillingDate", "category"}
}

type Goal struct {
	ID            string  `json:"id"`
	Name          string  `json:"name" validate:"min=1"`
	TargetAmount  float64 `json:"targetAmount"`
	CurrentAmount float64 `json:"currentAmount"`
	Deadline      string  `json:"deadline,omitempty" validate:"omitempty,date"`
	Color         string  `json:"color"`
	Icon          string  `json:"icon,omitempty"`
	Context       string  `json:"context,omitempty"`
}

func (Goal) required() []string {
	return []string{"id", "name", "targetAmount", "currentAmount", "color"}
}

type Debt struct {
	ID             string  `json:"id"`
	Name           string  `json:"name" validate:"min=1"`
	CurrentBalance float64 `json:"currentBalance"`
	InterestRate   float64 `json:"interestRate"`
	MinimumPayment float64 `json:"minimumPayment"`
	Category       string  `json:"category"`
	Context        string  `json:"context,omitempty"`
}

func (Debt) required() []string {
	return []string{"id", "name", "currentBalance", "interestRate", "minimumPayment", "category"}
}

// ContextMeta describes a tenant: a budget a user keeps separate from the
// others, such as a household or a side business.
type ContextMeta struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Timeline    string `json:"timeline" validate:"oneof=weekly monthly yearly one-time"`
	Type        string `json:"type" validate:"oneof=custom personal business"`
	Icon        string `json:"icon,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
}

func (ContextMeta) required() []string {
	return []string{"id", "name", "timeline", "type"}
}

// Budget is one row of the budgets store.
type Budget struct {
	Key    string  `json:"key"`
	Amount float64 `json:"amount"`
}

// BudgetMap is the flattened form of the budgets store, key to amount.
type BudgetMap map[string]float64
