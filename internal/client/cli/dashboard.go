package cli

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/lifedash/internal/client/dashboard"
)

const dateLayout = "2006-01-02"

// Summary prints the signed-in user's task counts, recent tasks and this
// month's finances.
func (a *App) Summary(ctx context.Context) error {
	user := a.session.User()
	if user == nil {
		return nil
	}

	sum, err := a.dashboard.Summary(ctx, user.ID, a.now())
	if err != nil {
		return a.fail(ctx, "Loading summary failed", err)
	}

	fmt.Fprintf(a.out, "Tasks: %d total, %d completed, %d pending\n",
		sum.Tasks.Total, sum.Tasks.Completed, sum.Tasks.Pending)
	for _, t := range sum.Recent {
		due := ""
		if t.DueDate != "" {
			due = ", due " + t.DueDate
		}
		fmt.Fprintf(a.out, "  [%s] %s (%s, %s%s)\n", t.Status, t.Title, t.Category, t.Priority, due)
	}
	fmt.Fprintf(a.out, "Since %s: income %.2f, expense %.2f, balance %.2f\n",
		sum.Since.Format(dateLayout), sum.Finances.Income, sum.Finances.Expense, sum.Finances.Balance)
	return nil
}

func (a *App) AddTask(ctx context.Context) error {
	user := a.session.User()
	if user == nil {
		return nil
	}

	var in dashboard.NewTask
	var err error

	if in.Title, err = getSimpleText(a.reader, "Enter title", a.out); err != nil {
		return err
	}
	if in.Description, err = getSimpleText(a.reader, "Enter description", a.out); err != nil {
		return err
	}
	category, err := GetTextOrDefault(a.reader, "Category (personal, work, health, finance, other)", string(dashboard.CategoryPersonal), a.out)
	if err != nil {
		return err
	}
	in.Category = dashboard.Category(category)
	priority, err := GetTextOrDefault(a.reader, "Priority (low, medium, high)", string(dashboard.PriorityMedium), a.out)
	if err != nil {
		return err
	}
	in.Priority = dashboard.Priority(priority)
	if in.DueDate, err = getSimpleText(a.reader, "Due date, YYYY-MM-DD (optional)", a.out); err != nil {
		return err
	}

	task, err := a.dashboard.AddTask(ctx, user.ID, in)
	if err != nil {
		return a.fail(ctx, "Adding task failed", err)
	}
	fmt.Fprintf(a.out, "Task added: %s\n", task.ID)
	return nil
}

func (a *App) AddTransaction(ctx context.Context) error {
	user := a.session.User()
	if user == nil {
		return nil
	}

	var in dashboard.NewTransaction

	txType, err := getSimpleText(a.reader, "Type (income, expense)", a.out)
	if err != nil {
		return err
	}
	in.Type = dashboard.TxType(txType)

	amount, err := getSimpleText(a.reader, "Amount", a.out)
	if err != nil {
		return err
	}
	if in.Amount, err = strconv.ParseFloat(amount, 64); err != nil {
		return a.fail(ctx, "Invalid amount", err)
	}

	if in.Category, err = getSimpleText(a.reader, "Category", a.out); err != nil {
		return err
	}
	if in.Description, err = getSimpleText(a.reader, "Description", a.out); err != nil {
		return err
	}
	account, err := GetTextOrDefault(a.reader, "Account (personal, business)", string(dashboard.AccountPersonal), a.out)
	if err != nil {
		return err
	}
	in.Account = dashboard.Account(account)

	date, err := getSimpleText(a.reader, "Date, YYYY-MM-DD (empty for today)", a.out)
	if err != nil {
		return err
	}
	if date != "" {
		if in.Date, err = time.Parse(dateLayout, date); err != nil {
			return a.fail(ctx, "Invalid date", err)
		}
	}

	id, err := a.dashboard.AddTransaction(ctx, user.ID, in)
	if err != nil {
		return a.fail(ctx, "Adding transaction failed", err)
	}
	fmt.Fprintf(a.out, "Transaction added: %s\n", id)
	return nil
}

// Tasks lists the signed-in user's tasks. filter is all, pending or
// completed; empty means all.
func (a *App) Tasks(ctx context.Context, filter string) error {
	user := a.session.User()
	if user == nil {
		return nil
	}

	tasks, err := a.dashboard.ListTasks(ctx, user.ID, dashboard.TaskFilter(filter))
	if err != nil {
		return a.fail(ctx, "Loading tasks failed", err)
	}
	if len(tasks) == 0 {
		fmt.Fprintln(a.out, "No tasks")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tTITLE\tCATEGORY\tPRIORITY\tDUE")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Title, t.Category, t.Priority, orDash(t.DueDate))
	}
	return w.Flush()
}

func (a *App) SetStatus(ctx context.Context, taskID, status string) error {
	user := a.session.User()
	if user == nil {
		return nil
	}

	if err := a.dashboard.SetTaskStatus(ctx, user.ID, taskID, dashboard.Status(status)); err != nil {
		return a.fail(ctx, "Changing task status failed", err)
	}
	fmt.Fprintf(a.out, "Task %s is now %s\n", taskID, status)
	return nil
}

// Transactions prints the newest transactions of account with their
// totals and the expense breakdown by category.
func (a *App) Transactions(ctx context.Context, account string) error {
	user := a.session.User()
	if user == nil {
		return nil
	}

	l, err := a.dashboard.ListTransactions(ctx, user.ID, dashboard.Account(account))
	if err != nil {
		return a.fail(ctx, "Loading transactions failed", err)
	}

	fmt.Fprintf(a.out, "Account %s: income %.2f, expense %.2f, balance %.2f\n",
		l.Account, l.Finances.Income, l.Finances.Expense, l.Finances.Balance)
	if len(l.Transactions) == 0 {
		fmt.Fprintln(a.out, "No transactions")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tTYPE\tAMOUNT\tCATEGORY\tDESCRIPTION")
	for _, tx := range l.Transactions {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n", tx.Date, tx.Type, tx.Amount, tx.Category, orDash(tx.Description))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(l.ExpenseByCategory) > 0 {
		fmt.Fprintln(a.out, "Expenses by category:")
		for _, c := range l.ExpenseByCategory {
			fmt.Fprintf(a.out, "  %s: %.2f\n", c.Category, c.Amount)
		}
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
