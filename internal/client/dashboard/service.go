// Package dashboard computes a user's task and finance summary and records
// new tasks and transactions.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/lifedash/internal/client/store"
	"github.com/dmitrijs2005/lifedash/internal/logging"
)

const (
	// RecentTasks is how many tasks the summary lists.
	RecentTasks = 5
	// LedgerSize is how many transactions ListTransactions returns.
	LedgerSize = 50
)

type TaskStats struct {
	Total     int
	Completed int
	Pending   int
}

type Finances struct {
	Income  float64
	Expense float64
	Balance float64
}

type Summary struct {
	Tasks    TaskStats
	Recent   []Task
	Finances Finances
	// Since is the first day of the month the finances cover.
	Since time.Time
}

// CategoryTotal is the expense sum of one category.
type CategoryTotal struct {
	Category string
	Amount   float64
}

// Ledger is the newest transactions of one account. Finances and
// ExpenseByCategory cover exactly the listed transactions.
type Ledger struct {
	Account           Account
	Transactions      []Transaction
	Finances          Finances
	ExpenseByCategory []CategoryTotal
}

type Service struct {
	records store.Records
	log     logging.Logger
	now     func() time.Time
}

func New(records store.Records, log logging.Logger) *Service {
	return &Service{records: records, log: log.With("module", "dashboard"), now: time.Now}
}

// Summary counts userID's tasks and totals the transactions dated in now's
// month.
func (s *Service) Summary(ctx context.Context, userID string, now time.Time) (*Summary, error) {
	res, err := s.records.Select(ctx, store.TableTasks, store.Where("user_id", userID),
		store.SelectOptions{OrderBy: "created_at", Descending: true})
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	sum := &Summary{Since: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())}
	for _, row := range res.Rows {
		task, err := taskFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("decode task: %w", err)
		}
		sum.Tasks.Total++
		if task.Status == StatusCompleted {
			sum.Tasks.Completed++
		} else {
			sum.Tasks.Pending++
		}
		if len(sum.Recent) < RecentTasks {
			sum.Recent = append(sum.Recent, task)
		}
	}

	filter := store.Where("user_id", userID).AtLeast("date", sum.Since.Format(dateLayout))
	res, err = s.records.Select(ctx, store.TableTransactions, filter, store.SelectOptions{})
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	for _, row := range res.Rows {
		switch TxType(row.String("type")) {
		case TxIncome:
			sum.Finances.Income += row.Float("amount")
		case TxExpense:
			sum.Finances.Expense += row.Float("amount")
		}
	}
	sum.Finances.Balance = sum.Finances.Income - sum.Finances.Expense
	return sum, nil
}

func (s *Service) AddTask(ctx context.Context, userID string, in NewTask) (Task, error) {
	if err := in.validate(); err != nil {
		return Task{}, err
	}
	row := store.Row{
		"user_id":     userID,
		"title":       in.Title,
		"description": in.Description,
		"category":    string(in.Category),
		"priority":    string(in.Priority),
		"status":      string(StatusPending),
	}
	if in.DueDate != "" {
		row["due_date"] = in.DueDate
	}
	saved, err := s.records.Insert(ctx, store.TableTasks, row)
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	s.log.Info(ctx, "task added", "user_id", userID, "task_id", saved.String("id"))
	return taskFromRow(saved)
}

// AddTransaction records a transaction and returns its id.
func (s *Service) AddTransaction(ctx context.Context, userID string, in NewTransaction) (string, error) {
	if err := in.validate(); err != nil {
		return "", err
	}
	date := in.Date
	if date.IsZero() {
		date = s.now()
	}
	saved, err := s.records.Insert(ctx, store.TableTransactions, store.Row{
		"user_id":     userID,
		"type":        string(in.Type),
		"amount":      in.Amount,
		"description": in.Description,
		"category":    in.Category,
		"account":     string(in.Account),
		"date":        date.Format(dateLayout),
	})
	if err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}
	id := saved.String("id")
	s.log.Info(ctx, "transaction added", "user_id", userID, "transaction_id", id)
	return id, nil
}

// ListTasks returns userID's tasks newest first, narrowed by filter. An
// empty filter means all.
func (s *Service) ListTasks(ctx context.Context, userID string, filter TaskFilter) ([]Task, error) {
	if filter == "" {
		filter = FilterAll
	}
	if err := filter.validate(); err != nil {
		return nil, err
	}
	res, err := s.records.Select(ctx, store.TableTasks, store.Where("user_id", userID),
		store.SelectOptions{OrderBy: "created_at", Descending: true})
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	tasks := make([]Task, 0, len(res.Rows))
	for _, row := range res.Rows {
		task, err := taskFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("decode task: %w", err)
		}
		if filter.match(task.Status) {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

// SetTaskStatus changes the status of one of userID's tasks. A task that
// does not exist or belongs to someone else yields store.ErrNotFound.
func (s *Service) SetTaskStatus(ctx context.Context, userID, taskID string, status Status) error {
	if err := status.validate(); err != nil {
		return err
	}
	if taskID == "" {
		return fmt.Errorf("%w: task id is required", store.ErrInvalidArgument)
	}
	n, err := s.records.Update(ctx, store.TableTasks, store.Where("id", taskID).And("user_id", userID),
		store.Row{"status": string(status)})
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("task %s: %w", taskID, store.ErrNotFound)
	}
	s.log.Info(ctx, "task status changed", "user_id", userID, "task_id", taskID, "status", string(status))
	return nil
}

// ListTransactions returns the newest LedgerSize transactions of userID's
// account with their totals. An empty account means personal.
func (s *Service) ListTransactions(ctx context.Context, userID string, account Account) (*Ledger, error) {
	if account == "" {
		account = AccountPersonal
	}
	if err := account.validate(); err != nil {
		return nil, err
	}
	res, err := s.records.Select(ctx, store.TableTransactions,
		store.Where("user_id", userID).And("account", string(account)),
		store.SelectOptions{OrderBy: "date", Descending: true, Limit: LedgerSize})
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	l := &Ledger{Account: account, Transactions: make([]Transaction, 0, len(res.Rows))}
	byCategory := map[string]float64{}
	for _, row := range res.Rows {
		tx := transactionFromRow(row)
		l.Transactions = append(l.Transactions, tx)
		switch tx.Type {
		case TxIncome:
			l.Finances.Income += tx.Amount
		case TxExpense:
			l.Finances.Expense += tx.Amount
			byCategory[tx.Category] += tx.Amount
		}
	}
	l.Finances.Balance = l.Finances.Income - l.Finances.Expense

	for c, amount := range byCategory {
		l.ExpenseByCategory = append(l.ExpenseByCategory, CategoryTotal{Category: c, Amount: amount})
	}
	sort.Slice(l.ExpenseByCategory, func(i, j int) bool {
		a, b := l.ExpenseByCategory[i], l.ExpenseByCategory[j]
		if a.Amount != b.Amount {
			return a.Amount > b.Amount
		}
		return a.Category < b.Category
	})
	return l, nil
}
