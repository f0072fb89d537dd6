package dashboard

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/lifedash/internal/client/store"
)

type Category string

const (
	CategoryPersonal Category = "personal"
	CategoryWork     Category = "work"
	CategoryHealth   Category = "health"
	CategoryFinance  Category = "finance"
	CategoryOther    Category = "other"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// TaskFilter selects which tasks ListTasks returns. Pending covers every
// task that is not completed.
type TaskFilter string

const (
	FilterAll       TaskFilter = "all"
	FilterPending   TaskFilter = "pending"
	FilterCompleted TaskFilter = "completed"
)

func (f TaskFilter) match(s Status) bool {
	switch f {
	case FilterPending:
		return s != StatusCompleted
	case FilterCompleted:
		return s == StatusCompleted
	}
	return true
}

type TxType string

const (
	TxIncome  TxType = "income"
	TxExpense TxType = "expense"
)

type Account string

const (
	AccountPersonal Account = "personal"
	AccountBusiness Account = "business"
)

// dateLayout is how transaction dates and task due dates are stored.
const dateLayout = "2006-01-02"

type Task struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Category    Category
	Priority    Priority
	Status      Status
	DueDate     string
	CreatedAt   time.Time
}

type Transaction struct {
	ID          string
	UserID      string
	Type        TxType
	Amount      float64
	Description string
	Category    string
	Account     Account
	Date        string
}

// NewTask is the input of AddTask. Empty Category and Priority default to
// personal and medium.
type NewTask struct {
	Title       string
	Description string
	Category    Category
	Priority    Priority
	DueDate     string
}

// NewTransaction is the input of AddTransaction. An empty Account means
// personal and a zero Date means today.
type NewTransaction struct {
	Type        TxType
	Amount      float64
	Description string
	Category    string
	Account     Account
	Date        time.Time
}

func taskFromRow(row store.Row) (Task, error) {
	created, err := row.Time("created_at")
	if err != nil {
		return Task{}, err
	}
	return Task{
		ID:          row.String("id"),
		UserID:      row.String("user_id"),
		Title:       row.String("title"),
		Description: row.String("description"),
		Category:    Category(row.String("category")),
		Priority:    Priority(row.String("priority")),
		Status:      Status(row.String("status")),
		DueDate:     row.String("due_date"),
		CreatedAt:   created,
	}, nil
}

func transactionFromRow(row store.Row) Transaction {
	return Transaction{
		ID:          row.String("id"),
		UserID:      row.String("user_id"),
		Type:        TxType(row.String("type")),
		Amount:      row.Float("amount"),
		Description: row.String("description"),
		Category:    row.String("category"),
		Account:     Account(row.String("account")),
		Date:        row.String("date"),
	}
}

func (s Status) validate() error {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return nil
	}
	return fmt.Errorf("%w: unknown task status %q", store.ErrInvalidArgument, s)
}

func (f TaskFilter) validate() error {
	switch f {
	case FilterAll, FilterPending, FilterCompleted:
		return nil
	}
	return fmt.Errorf("%w: unknown task filter %q", store.ErrInvalidArgument, f)
}

func (a Account) validate() error {
	switch a {
	case AccountPersonal, AccountBusiness:
		return nil
	}
	return fmt.Errorf("%w: unknown account %q", store.ErrInvalidArgument, a)
}

func (n *NewTask) validate() error {
	if n.Title == "" {
		return fmt.Errorf("%w: task title is required", store.ErrInvalidArgument)
	}
	if n.Category == "" {
		n.Category = CategoryPersonal
	}
	if n.Priority == "" {
		n.Priority = PriorityMedium
	}
	switch n.Category {
	case CategoryPersonal, CategoryWork, CategoryHealth, CategoryFinance, CategoryOther:
	default:
		return fmt.Errorf("%w: unknown task category %q", store.ErrInvalidArgument, n.Category)
	}
	switch n.Priority {
	case PriorityLow, PriorityMedium, PriorityHigh:
	default:
		return fmt.Errorf("%w: unknown task priority %q", store.ErrInvalidArgument, n.Priority)
	}
	if n.DueDate != "" {
		if _, err := time.Parse(dateLayout, n.DueDate); err != nil {
			return fmt.Errorf("%w: due date %q is not YYYY-MM-DD", store.ErrInvalidArgument, n.DueDate)
		}
	}
	return nil
}

func (n *NewTransaction) validate() error {
	switch n.Type {
	case TxIncome, TxExpense:
	default:
		return fmt.Errorf("%w: unknown transaction type %q", store.ErrInvalidArgument, n.Type)
	}
	if n.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", store.ErrInvalidArgument)
	}
	if n.Category == "" {
		return fmt.Errorf("%w: transaction category is required", store.ErrInvalidArgument)
	}
	if n.Account == "" {
		n.Account = AccountPersonal
	}
	return n.Account.validate()
}
