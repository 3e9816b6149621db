package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
	Yearly  Period = "yearly"
)

type (
	// Period is the budgeting period a limit applies to.
	Period string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is a normalized, categorized ledger entry. Amounts are
	// signed integer cents: income positive, spending negative.
	// Transactions are append-only and immutable once recorded.
	Transaction struct {
		ID         string
		Date       Date
		Amount     Money
		Merchant   string
		Category   string
		Recurring  bool
		Confidence float64 // categorization confidence in [0,1]
	}

	// Budget is a per-category spending limit for a period. Several
	// budgets may exist for one category; the one with the latest
	// EffectiveFrom not after the evaluation period applies.
	Budget struct {
		Category      string
		Period        Period
		Limit         Money
		EffectiveFrom Date
	}

	// Goal is a savings target. Priority is a unique rank per user;
	// lower rank means higher priority.
	Goal struct {
		ID         string
		Name       string
		Target     Money
		TargetDate Date
		Progress   Money
		Priority   int
	}

	// Action is a proposed financial action under evaluation, for
	// example a purchase. Amount is the spend in positive cents; a
	// zero amount is the "do nothing" baseline.
	Action struct {
		Kind     string
		Amount   Money
		Category string
		Date     Date
	}

	// CategoryAmount is an amount aggregated by category name.
	CategoryAmount struct {
		Category string
		Amount   Money
		Count    int
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrEmptyID          = errors.New("empty id")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyName        = errors.New("empty name")
	ErrBadConfidence    = errors.New("confidence must be in [0,1]")
	ErrNonPositiveLimit = errors.New("limit must be positive")
)

// NewDate creates a Date at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a time to its UTC calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Day returns the day of the month.
func (d Date) Day() int { return d.Time.Day() }

// Month returns the month as 1-12.
func (d Date) Month() int { return int(d.Time.Month()) }

// Year returns the year.
func (d Date) Year() int { return d.Time.Year() }

// SameMonth reports whether both dates fall in the same calendar month.
func (d Date) SameMonth(o Date) bool {
	return d.Year() == o.Year() && d.Month() == o.Month()
}

// AddMonths returns the date shifted by n calendar months.
func (d Date) AddMonths(n int) Date {
	return Date{Time: d.Time.AddDate(0, n, 0)}
}

func (p Period) Validate() error {
	switch p {
	case Weekly, Monthly, Yearly:
		return nil
	default:
		return ErrInvalidPeriod
	}
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.Amount.Cents == 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if t.Confidence < 0 || t.Confidence > 1 {
		return ErrBadConfidence
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if err := b.Period.Validate(); err != nil {
		return err
	}
	if b.Limit.Cents <= 0 {
		return ErrNonPositiveLimit
	}
	if err := b.EffectiveFrom.Validate(); err != nil {
		return err
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if g.Target.Cents <= 0 {
		return ErrInvalidAmount
	}
	if err := g.TargetDate.Validate(); err != nil {
		return err
	}
	if g.Progress.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (a Action) Validate() error {
	if a.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if err := a.Date.Validate(); err != nil {
		return err
	}
	return nil
}
