package store

import "time"

// Plan is the root planning document. Payload holds the open-ended
// section data that was never promoted to a dedicated table.
type Plan struct {
	ID             string         `json:"id"`
	OrgID          string         `json:"org_id"`
	OwnerID        string         `json:"owner_id"`
	Title          string         `json:"title"`
	FuneralNotes   string         `json:"funeral_notes"`
	FinancialNotes string         `json:"financial_notes"`
	PersonalNotes  string         `json:"personal_notes"`
	Payload        map[string]any `json:"payload"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// PlanColumns carries the table-column half of a plan update. Nil
// pointers leave the stored column untouched.
type PlanColumns struct {
	Title          *string
	FuneralNotes   *string
	FinancialNotes *string
	PersonalNotes  *string
}

type Contact struct {
	ID           string    `json:"id"`
	PlanID       string    `json:"plan_id"`
	Name         string    `json:"name"`
	Relationship string    `json:"relationship"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"created_at"`
}

type Pet struct {
	ID            string    `json:"id"`
	PlanID        string    `json:"plan_id"`
	Name          string    `json:"name"`
	Species       string    `json:"species"`
	CaretakerName string    `json:"caretaker_name"`
	CareNotes     string    `json:"care_notes"`
	CreatedAt     time.Time `json:"created_at"`
}

type Policy struct {
	ID           string    `json:"id"`
	PlanID       string    `json:"plan_id"`
	Provider     string    `json:"provider"`
	PolicyNumber string    `json:"policy_number"`
	Kind         string    `json:"kind"`
	ContactInfo  string    `json:"contact_info"`
	CreatedAt    time.Time `json:"created_at"`
}

type Property struct {
	ID           string    `json:"id"`
	PlanID       string    `json:"plan_id"`
	Label        string    `json:"label"`
	Address      string    `json:"address"`
	Instructions string    `json:"instructions"`
	CreatedAt    time.Time `json:"created_at"`
}

type Message struct {
	ID           string    `json:"id"`
	PlanID       string    `json:"plan_id"`
	Recipient    string    `json:"recipient"`
	Body         string    `json:"body"`
	DeliverAfter string    `json:"deliver_after"`
	CreatedAt    time.Time `json:"created_at"`
}

type Investment struct {
	ID          string    `json:"id"`
	PlanID      string    `json:"plan_id"`
	Institution string    `json:"institution"`
	AccountType string    `json:"account_type"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
}

type Debt struct {
	ID        string    `json:"id"`
	PlanID    string    `json:"plan_id"`
	Creditor  string    `json:"creditor"`
	Amount    string    `json:"amount"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

// Account is an online account the estate needs access to.
type Account struct {
	ID           string    `json:"id"`
	PlanID       string    `json:"plan_id"`
	Provider     string    `json:"provider"`
	Username     string    `json:"username"`
	Instructions string    `json:"instructions"`
	CreatedAt    time.Time `json:"created_at"`
}

type Business struct {
	ID              string    `json:"id"`
	PlanID          string    `json:"plan_id"`
	Name            string    `json:"name"`
	Role            string    `json:"role"`
	SuccessionNotes string    `json:"succession_notes"`
	CreatedAt       time.Time `json:"created_at"`
}

// SectionHit is one search match inside a plan payload.
type SectionHit struct {
	PlanID  string `json:"plan_id"`
	Section string `json:"section"`
	Snippet string `json:"snippet"`
}
