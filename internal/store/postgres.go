package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) GetPlan(ctx context.Context, planID string) (Plan, error) {
	var item Plan
	var payloadRaw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, owner_id, title, funeral_notes, financial_notes, personal_notes, COALESCE(payload::text, '{}'), updated_at
		FROM plans
		WHERE id=$1
	`, planID).Scan(
		&item.ID,
		&item.OrgID,
		&item.OwnerID,
		&item.Title,
		&item.FuneralNotes,
		&item.FinancialNotes,
		&item.PersonalNotes,
		&payloadRaw,
		&item.UpdatedAt,
	)
	if err != nil {
		return Plan{}, err
	}
	if err := json.Unmarshal(payloadRaw, &item.Payload); err != nil {
		return Plan{}, fmt.Errorf("decode plan payload: %w", err)
	}
	if item.Payload == nil {
		item.Payload = map[string]any{}
	}
	return item, nil
}

func (s *PostgresStore) FindPlanByOwner(ctx context.Context, ownerID string) (Plan, error) {
	var planID string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM plans
		WHERE owner_id=$1
		ORDER BY updated_at DESC
		LIMIT 1
	`, ownerID).Scan(&planID)
	if err != nil {
		return Plan{}, err
	}
	return s.GetPlan(ctx, planID)
}

// GetPreferredPlanID returns the stored preferred plan association for a
// user, or empty string when none exists.
func (s *PostgresStore) GetPreferredPlanID(ctx context.Context, userID string) (string, error) {
	var planID string
	err := s.db.QueryRowContext(ctx, `SELECT plan_id FROM plan_preferences WHERE user_id=$1`, userID).Scan(&planID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read plan preference: %w", err)
	}
	return planID, nil
}

func (s *PostgresStore) SetPreferredPlan(ctx context.Context, userID, planID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plan_preferences (user_id, plan_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET plan_id=EXCLUDED.plan_id, updated_at=NOW()
	`, userID, planID)
	if err != nil {
		return fmt.Errorf("set plan preference: %w", err)
	}
	return nil
}

// InsertPlan creates a plan unless the owner already has one. The unique
// constraint on owner_id makes concurrent creation race-safe; the loser
// gets inserted=false and re-queries.
func (s *PostgresStore) InsertPlan(ctx context.Context, item Plan) (bool, error) {
	orgID := item.OrgID
	if orgID == "" {
		orgID = "org_default"
	}
	payload := item.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("encode plan payload: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO plans (id, org_id, owner_id, title, funeral_notes, financial_notes, personal_notes, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
		ON CONFLICT (owner_id) DO NOTHING
	`, item.ID, orgID, item.OwnerID, item.Title, item.FuneralNotes, item.FinancialNotes, item.PersonalNotes, string(encoded))
	if err != nil {
		return false, fmt.Errorf("insert plan: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert plan rows: %w", err)
	}
	return affected > 0, nil
}

// UpdatePlan writes the full document state in one statement: column
// fields (nil pointers keep the stored value) and the complete payload.
func (s *PostgresStore) UpdatePlan(ctx context.Context, planID string, cols PlanColumns, payload map[string]any) (time.Time, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return time.Time{}, fmt.Errorf("encode plan payload: %w", err)
	}
	var updatedAt time.Time
	err = s.db.QueryRowContext(ctx, `
		UPDATE plans
		SET title=COALESCE($2, title),
			funeral_notes=COALESCE($3, funeral_notes),
			financial_notes=COALESCE($4, financial_notes),
			personal_notes=COALESCE($5, personal_notes),
			payload=$6::jsonb,
			updated_at=NOW()
		WHERE id=$1
		RETURNING updated_at
	`, planID, cols.Title, cols.FuneralNotes, cols.FinancialNotes, cols.PersonalNotes, string(encoded)).Scan(&updatedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("update plan: %w", err)
	}
	return updatedAt, nil
}

func (s *PostgresStore) ListContactsByPlan(ctx context.Context, planID string) ([]Contact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plan_id, name, relationship, phone, email, created_at
		FROM contacts
		WHERE plan_id=$1
		ORDER BY created_at ASC
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	items := make([]Contact, 0)
	for rows.Next() {
		var item Contact
		if err := rows.Scan(&item.ID, &item.PlanID, &item.Name, &item.Relationship, &item.Phone, &item.Email, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertContact(ctx context.Context, item Contact) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (id, plan_id, name, relationship, phone, email)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, item.ID, item.PlanID, item.Name, item.Relationship, item.Phone, item.Email)
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPetsByPlan(ctx context.Context, planID string) ([]Pet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plan_id, name, species, caretaker_name, care_notes, created_at
		FROM pets
		WHERE plan_id=$1
		ORDER BY created_at ASC
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("list pets: %w", err)
	}
	defer rows.Close()

	items := make([]Pet, 0)
	for rows.Next() {
		var item Pet
		if err := rows.Scan(&item.ID, &item.PlanID, &item.Name, &item.Species, &item.CaretakerName, &item.CareNotes, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pet: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pets: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertPet(ctx context.Context, item Pet) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pets (id, plan_id, name, species, caretaker_name, care_notes)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, item.ID, item.PlanID, item.Name, item.Species, item.CaretakerName, item.CareNotes)
	if err != nil {
		return fmt.Errorf("insert pet: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPoliciesByPlan(ctx context.Context, planID string) ([]Policy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plan_id, provider, policy_number, kind, contact_info, created_at
		FROM policies
		WHERE plan_id=$1
		ORDER BY created_at ASC
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()

	items := make([]Policy, 0)
	for rows.Next() {
		var item Policy
		if err := rows.Scan(&item.ID, &item.PlanID, &item.Provider, &item.PolicyNumber, &item.Kind, &item.ContactInfo, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policies: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertPolicy(ctx context.Context, item Policy) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO policies (id, plan_id, provider, policy_number, kind, contact_info)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, item.ID, item.PlanID, item.Provider, item.PolicyNumber, item.Kind, item.ContactInfo)
	if err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPropertiesByPlan(ctx context.Context, planID string) ([]Property, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plan_id, label, address, instructions, created_at
		FROM properties
		WHERE plan_id=$1
		ORDER BY created_at ASC
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	items := make([]Property, 0)
	for rows.Next() {
		var item Property
		if err := rows.Scan(&item.ID, &item.PlanID, &item.Label, &item.Address, &item.Instructions, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate properties: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertProperty(ctx context.Context, item Property) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO properties (id, plan_id, label, address, instructions)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.PlanID, item.Label, item.Address, item.Instructions)
	if err != nil {
		return fmt.Errorf("insert property: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListMessagesByPlan(ctx context.Context, planID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plan_id, recipient, body, deliver_after, created_at
		FROM messages
		WHERE plan_id=$1
		ORDER BY created_at ASC
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]Message, 0)
	for rows.Next() {
		var item Message
		if err := rows.Scan(&item.ID, &item.PlanID, &item.Recipient, &item.Body, &item.DeliverAfter, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertMessage(ctx context.Context, item Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, plan_id, recipient, body, deliver_after)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.PlanID, item.Recipient, item.Body, item.DeliverAfter)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListInvestmentsByPlan(ctx context.Context, planID string) ([]Investment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plan_id, institution, account_type, notes, created_at
		FROM investments
		WHERE plan_id=$1
		ORDER BY created_at ASC
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("list investments: %w", err)
	}
	defer rows.Close()

	items := make([]Investment, 0)
	for rows.Next() {
		var item Investment
		if err := rows.Scan(&item.ID, &item.PlanID, &item.Institution, &item.AccountType, &item.Notes, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan investment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate investments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertInvestment(ctx context.Context, item Investment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO investments (id, plan_id, institution, account_type, notes)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.PlanID, item.Institution, item.AccountType, item.Notes)
	if err != nil {
		return fmt.Errorf("insert investment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDebtsByPlan(ctx context.Context, planID string) ([]Debt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plan_id, creditor, amount, notes, created_at
		FROM debts
		WHERE plan_id=$1
		ORDER BY created_at ASC
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("list debts: %w", err)
	}
	defer rows.Close()

	items := make([]Debt, 0)
	for rows.Next() {
		var item Debt
		if err := rows.Scan(&item.ID, &item.PlanID, &item.Creditor, &item.Amount, &item.Notes, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan debt: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate debts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertDebt(ctx context.Context, item Debt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO debts (id, plan_id, creditor, amount, notes)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.PlanID, item.Creditor, item.Amount, item.Notes)
	if err != nil {
		return fmt.Errorf("insert debt: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAccountsByPlan(ctx context.Context, planID string) ([]Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plan_id, provider, username, instructions, created_at
		FROM accounts
		WHERE plan_id=$1
		ORDER BY created_at ASC
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	items := make([]Account, 0)
	for rows.Next() {
		var item Account
		if err := rows.Scan(&item.ID, &item.PlanID, &item.Provider, &item.Username, &item.Instructions, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertAccount(ctx context.Context, item Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, plan_id, provider, username, instructions)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.PlanID, item.Provider, item.Username, item.Instructions)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBusinessesByPlan(ctx context.Context, planID string) ([]Business, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plan_id, name, role, succession_notes, created_at
		FROM businesses
		WHERE plan_id=$1
		ORDER BY created_at ASC
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	defer rows.Close()

	items := make([]Business, 0)
	for rows.Next() {
		var item Business
		if err := rows.Scan(&item.ID, &item.PlanID, &item.Name, &item.Role, &item.SuccessionNotes, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan business: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate businesses: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertBusiness(ctx context.Context, item Business) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO businesses (id, plan_id, name, role, succession_notes)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.PlanID, item.Name, item.Role, item.SuccessionNotes)
	if err != nil {
		return fmt.Errorf("insert business: %w", err)
	}
	return nil
}

// SearchSections is the fallback section search over the payload blob.
func (s *PostgresStore) SearchSections(ctx context.Context, ownerID, query string) ([]SectionHit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, kv.key, LEFT(kv.value, 160)
		FROM plans p, jsonb_each_text(p.payload) kv
		WHERE p.owner_id=$1 AND kv.value ILIKE '%' || $2 || '%'
		ORDER BY kv.key ASC
	`, ownerID, query)
	if err != nil {
		return nil, fmt.Errorf("search sections: %w", err)
	}
	defer rows.Close()

	items := make([]SectionHit, 0)
	for rows.Next() {
		var item SectionHit
		if err := rows.Scan(&item.PlanID, &item.Section, &item.Snippet); err != nil {
			return nil, fmt.Errorf("scan section hit: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate section hits: %w", err)
	}
	return items, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
