/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface of the loyalty core using SQLite.
  The same patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  loyalty.UserDirectory:  Users by email
  loyalty.CardRegistry:   Cards by ID
  loyalty.PurchaseLedger: Purchase create/read/status update

KEY TABLES:
  users:         Accounts (email unique, bcrypt hash, role)
  flags:         Card brands (bandeiras), name unique
  programs:      Points programs, name unique
  cards:         User cards with conversion factor
  purchases:     Purchases with computed points and credit due date
  notifications: Per-user messages
  promotions:    Program bonus campaigns (read-only over HTTP)

DECIMALS:
  Amounts, factors and points are stored as TEXT so no value ever passes
  through a float. Purchase amounts keep loyalty.AmountScale places and
  points keep loyalty.PointsScale places, so a stored 250.000 reads back as
  250.000. Calendar days are TEXT YYYY-MM-DD.

EMAILS:
  Emails are compared exactly. Callers normalize with
  loyalty.NormalizeEmail before writing.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, and a single connection so that
  ":memory:" databases are shared by every query.

USAGE:
  store, err := sqlite.New("./data/milhas.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := loyalty.NewPurchaseService(store, store, store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - loyalty/store.go: Interface definitions
  - loyalty/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/milhas/loyalty-engine/loyalty"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ loyalty.UserDirectory  = (*Store)(nil)
	_ loyalty.CardRegistry   = (*Store)(nil)
	_ loyalty.PurchaseLedger = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'USER',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS flags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE COLLATE NOCASE,
		logo_url TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS programs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE COLLATE NOCASE,
		description TEXT,
		logo_url TEXT,
		default_factor TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS cards (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		last_digits TEXT,
		conversion_factor TEXT NOT NULL,
		owner_id INTEGER NOT NULL REFERENCES users(id),
		flag_id INTEGER REFERENCES flags(id),
		program_id INTEGER REFERENCES programs(id),
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cards_owner
		ON cards(owner_id);

	-- Purchases: points are fixed at creation, only status changes afterwards
	CREATE TABLE IF NOT EXISTS purchases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		description TEXT NOT NULL,
		amount TEXT NOT NULL,
		purchase_date TEXT NOT NULL,
		points TEXT NOT NULL,
		status TEXT NOT NULL,
		card_id INTEGER NOT NULL REFERENCES cards(id),
		user_id INTEGER NOT NULL REFERENCES users(id),
		due_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_purchases_user_date
		ON purchases(user_id, purchase_date DESC);

	-- Hot path for the crediting scheduler
	CREATE INDEX IF NOT EXISTS idx_purchases_status_due
		ON purchases(status, due_date);

	CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id),
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		kind TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_user
		ON notifications(user_id, is_read);

	CREATE TABLE IF NOT EXISTS promotions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT,
		image_url TEXT,
		program_id INTEGER REFERENCES programs(id),
		bonus_factor TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// USER STORE (loyalty.UserDirectory interface)
// =============================================================================

// CreateUser inserts a user. Returns loyalty.ErrDuplicate if the email is taken.
func (s *Store) CreateUser(ctx context.Context, u loyalty.User) (loyalty.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.Role == "" {
		u.Role = loyalty.RoleUser
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?)",
		u.Name, u.Email, u.PasswordHash, u.Role, u.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return loyalty.User{}, mapWriteError(err, "create user")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return loyalty.User{}, err
	}
	u.ID = loyalty.UserID(id)
	return u, nil
}

// FindUserByEmail returns the user whose email matches exactly.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*loyalty.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, password_hash, role, created_at FROM users WHERE email = ?", email,
	)
	return scanUser(row)
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id loyalty.UserID) (*loyalty.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, password_hash, role, created_at FROM users WHERE id = ?", id,
	)
	return scanUser(row)
}

// UpdateUser rewrites name, email and password hash of an existing user.
// Returns loyalty.ErrDuplicate if the new email belongs to someone else.
func (s *Store) UpdateUser(ctx context.Context, u loyalty.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET name = ?, email = ?, password_hash = ? WHERE id = ?",
		u.Name, u.Email, u.PasswordHash, u.ID,
	)
	if err != nil {
		return mapWriteError(err, "update user")
	}
	return requireAffected(res, loyalty.KindUser, u.ID)
}

func scanUser(row *sql.Row) (*loyalty.User, error) {
	var u loyalty.User
	var createdAt string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}

// =============================================================================
// FLAG STORE (bandeiras)
// =============================================================================

// SaveFlag inserts f when f.ID is zero and updates it otherwise.
func (s *Store) SaveFlag(ctx context.Context, f loyalty.Flag) (loyalty.Flag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.ID == 0 {
		res, err := s.db.ExecContext(ctx,
			"INSERT INTO flags (name, logo_url, active) VALUES (?, ?, ?)",
			f.Name, nullString(f.LogoURL), f.Active,
		)
		if err != nil {
			return loyalty.Flag{}, mapWriteError(err, "create flag")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return loyalty.Flag{}, err
		}
		f.ID = loyalty.FlagID(id)
		return f, nil
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE flags SET name = ?, logo_url = ?, active = ? WHERE id = ?",
		f.Name, nullString(f.LogoURL), f.Active, f.ID,
	)
	if err != nil {
		return loyalty.Flag{}, mapWriteError(err, "update flag")
	}
	if err := requireAffected(res, loyalty.KindFlag, f.ID); err != nil {
		return loyalty.Flag{}, err
	}
	return f, nil
}

// GetFlag retrieves a flag by ID.
func (s *Store) GetFlag(ctx context.Context, id loyalty.FlagID) (*loyalty.Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var f loyalty.Flag
	var logo sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, logo_url, active FROM flags WHERE id = ?", id,
	).Scan(&f.ID, &f.Name, &logo, &f.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	f.LogoURL = logo.String
	return &f, nil
}

// ListFlags returns all flags ordered by name.
func (s *Store) ListFlags(ctx context.Context) ([]loyalty.Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, logo_url, active FROM flags ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flags := []loyalty.Flag{}
	for rows.Next() {
		var f loyalty.Flag
		var logo sql.NullString
		if err := rows.Scan(&f.ID, &f.Name, &logo, &f.Active); err != nil {
			return nil, err
		}
		f.LogoURL = logo.String
		flags = append(flags, f)
	}
	return flags, rows.Err()
}

// DeleteFlag removes a flag. Flags still used by a card cannot be removed.
func (s *Store) DeleteFlag(ctx context.Context, id loyalty.FlagID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM flags WHERE id = ?", id)
	if err != nil {
		return mapWriteError(err, "delete flag")
	}
	return requireAffected(res, loyalty.KindFlag, id)
}

// =============================================================================
// PROGRAM STORE (programas de pontos)
// =============================================================================

// SaveProgram inserts p when p.ID is zero and updates it otherwise.
func (s *Store) SaveProgram(ctx context.Context, p loyalty.Program) (loyalty.Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == 0 {
		res, err := s.db.ExecContext(ctx,
			"INSERT INTO programs (name, description, logo_url, default_factor, active) VALUES (?, ?, ?, ?, ?)",
			p.Name, nullString(p.Description), nullString(p.LogoURL), p.DefaultFactor.String(), p.Active,
		)
		if err != nil {
			return loyalty.Program{}, mapWriteError(err, "create program")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return loyalty.Program{}, err
		}
		p.ID = loyalty.ProgramID(id)
		return p, nil
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE programs SET name = ?, description = ?, logo_url = ?, default_factor = ?, active = ? WHERE id = ?",
		p.Name, nullString(p.Description), nullString(p.LogoURL), p.DefaultFactor.String(), p.Active, p.ID,
	)
	if err != nil {
		return loyalty.Program{}, mapWriteError(err, "update program")
	}
	if err := requireAffected(res, loyalty.KindProgram, p.ID); err != nil {
		return loyalty.Program{}, err
	}
	return p, nil
}

const programColumns = "id, name, description, logo_url, default_factor, active"

func scanProgram(scan func(dest ...any) error) (loyalty.Program, error) {
	var p loyalty.Program
	var desc, logo sql.NullString
	var factor string
	if err := scan(&p.ID, &p.Name, &desc, &logo, &factor, &p.Active); err != nil {
		return loyalty.Program{}, err
	}
	p.Description = desc.String
	p.LogoURL = logo.String
	p.DefaultFactor = parseDecimal(factor)
	return p, nil
}

// GetProgram retrieves a program by ID.
func (s *Store) GetProgram(ctx context.Context, id loyalty.ProgramID) (*loyalty.Program, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := scanProgram(s.db.QueryRowContext(ctx,
		"SELECT "+programColumns+" FROM programs WHERE id = ?", id,
	).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPrograms returns all programs ordered by name.
func (s *Store) ListPrograms(ctx context.Context) ([]loyalty.Program, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+programColumns+" FROM programs ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	programs := []loyalty.Program{}
	for rows.Next() {
		p, err := scanProgram(rows.Scan)
		if err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}
	return programs, rows.Err()
}

// DeleteProgram removes a program. Programs still used by a card cannot be removed.
func (s *Store) DeleteProgram(ctx context.Context, id loyalty.ProgramID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM programs WHERE id = ?", id)
	if err != nil {
		return mapWriteError(err, "delete program")
	}
	return requireAffected(res, loyalty.KindProgram, id)
}

// =============================================================================
// CARD STORE (loyalty.CardRegistry interface)
// =============================================================================

// CreateCard inserts a card and returns it with its ID.
func (s *Store) CreateCard(ctx context.Context, c loyalty.Card) (loyalty.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO cards (name, last_digits, conversion_factor, owner_id, flag_id, program_id, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, nullString(c.LastDigits), c.ConversionFactor.String(), c.OwnerID,
		nullID(int64(c.FlagID)), nullID(int64(c.ProgramID)), c.Active, c.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return loyalty.Card{}, mapWriteError(err, "create card")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return loyalty.Card{}, err
	}
	c.ID = loyalty.CardID(id)
	return c, nil
}

const cardColumns = "id, name, last_digits, conversion_factor, owner_id, flag_id, program_id, active, created_at"

// UpdateCard rewrites the editable fields of a card. Owner and creation
// time never change, and stored purchases keep the points they were
// registered with.
func (s *Store) UpdateCard(ctx context.Context, c loyalty.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE cards SET name = ?, last_digits = ?, conversion_factor = ?, flag_id = ?, program_id = ?, active = ?
		WHERE id = ?`,
		c.Name, nullString(c.LastDigits), c.ConversionFactor.String(),
		nullID(int64(c.FlagID)), nullID(int64(c.ProgramID)), c.Active, c.ID,
	)
	if err != nil {
		return mapWriteError(err, "update card")
	}
	return requireAffected(res, loyalty.KindCard, c.ID)
}

func scanCard(scan func(dest ...any) error) (loyalty.Card, error) {
	var c loyalty.Card
	var digits sql.NullString
	var flagID, programID sql.NullInt64
	var factor, createdAt string
	if err := scan(&c.ID, &c.Name, &digits, &factor, &c.OwnerID, &flagID, &programID, &c.Active, &createdAt); err != nil {
		return loyalty.Card{}, err
	}
	c.LastDigits = digits.String
	c.ConversionFactor = parseDecimal(factor)
	c.FlagID = loyalty.FlagID(flagID.Int64)
	c.ProgramID = loyalty.ProgramID(programID.Int64)
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return c, nil
}

// FindCardByID retrieves a card by ID.
func (s *Store) FindCardByID(ctx context.Context, id loyalty.CardID) (*loyalty.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := scanCard(s.db.QueryRowContext(ctx,
		"SELECT "+cardColumns+" FROM cards WHERE id = ?", id,
	).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCardsByOwner returns the cards of a user ordered by name.
func (s *Store) ListCardsByOwner(ctx context.Context, owner loyalty.UserID) ([]loyalty.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+cardColumns+" FROM cards WHERE owner_id = ? ORDER BY name, id", owner,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := []loyalty.Card{}
	for rows.Next() {
		c, err := scanCard(rows.Scan)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// DeleteCard removes a card. Cards with purchases cannot be removed.
func (s *Store) DeleteCard(ctx context.Context, id loyalty.CardID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM cards WHERE id = ?", id)
	if err != nil {
		return mapWriteError(err, "delete card")
	}
	return requireAffected(res, loyalty.KindCard, id)
}

// =============================================================================
// PURCHASE STORE (loyalty.PurchaseLedger interface)
// =============================================================================

// SavePurchase inserts a purchase. The database assigns the ID.
func (s *Store) SavePurchase(ctx context.Context, p loyalty.Purchase) (loyalty.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO purchases (description, amount, purchase_date, points, status, card_id, user_id, due_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Description, p.Amount.StringFixed(loyalty.AmountScale), p.PurchaseDate.String(), p.Points.StringFixed(loyalty.PointsScale),
		p.Status, p.CardID, p.UserID, p.DueDate.String(), p.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return loyalty.Purchase{}, mapWriteError(err, "save purchase")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return loyalty.Purchase{}, err
	}
	p.ID = loyalty.PurchaseID(id)
	return p, nil
}

const purchaseColumns = "id, description, amount, purchase_date, points, status, card_id, user_id, due_date, created_at"

func scanPurchase(scan func(dest ...any) error) (loyalty.Purchase, error) {
	var p loyalty.Purchase
	var amount, points, purchaseDate, dueDate, createdAt string
	err := scan(&p.ID, &p.Description, &amount, &purchaseDate, &points, &p.Status,
		&p.CardID, &p.UserID, &dueDate, &createdAt)
	if err != nil {
		return loyalty.Purchase{}, err
	}
	p.Amount = parseDecimal(amount)
	p.Points = parseDecimal(points)
	p.PurchaseDate, _ = loyalty.ParseDate(purchaseDate)
	p.DueDate, _ = loyalty.ParseDate(dueDate)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return p, nil
}

// GetPurchase retrieves a purchase by ID.
func (s *Store) GetPurchase(ctx context.Context, id loyalty.PurchaseID) (*loyalty.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := scanPurchase(s.db.QueryRowContext(ctx,
		"SELECT "+purchaseColumns+" FROM purchases WHERE id = ?", id,
	).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPurchases returns purchases matching filter, newest first.
func (s *Store) ListPurchases(ctx context.Context, filter loyalty.PurchaseFilter) ([]loyalty.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if filter.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.CardID != 0 {
		where = append(where, "card_id = ?")
		args = append(args, filter.CardID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if !filter.From.IsZero() {
		where = append(where, "purchase_date >= ?")
		args = append(args, filter.From.String())
	}
	if !filter.To.IsZero() {
		where = append(where, "purchase_date <= ?")
		args = append(args, filter.To.String())
	}
	if !filter.DueUntil.IsZero() {
		where = append(where, "due_date <= ?")
		args = append(args, filter.DueUntil.String())
	}

	query := "SELECT " + purchaseColumns + " FROM purchases"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY purchase_date DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := []loyalty.Purchase{}
	for rows.Next() {
		p, err := scanPurchase(rows.Scan)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

// UpdatePurchaseStatus moves a purchase from one status to another.
// The WHERE clause on the old status makes concurrent transitions safe.
func (s *Store) UpdatePurchaseStatus(ctx context.Context, id loyalty.PurchaseID, from, to loyalty.PurchaseStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE purchases SET status = ? WHERE id = ? AND status = ?", to, id, from,
	)
	if err != nil {
		return fmt.Errorf("failed to update purchase status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var current loyalty.PurchaseStatus
	err = s.db.QueryRowContext(ctx, "SELECT status FROM purchases WHERE id = ?", id).Scan(&current)
	if err == sql.ErrNoRows {
		return loyalty.NotFound(loyalty.KindPurchase, id)
	}
	if err != nil {
		return err
	}
	return &loyalty.TransitionError{PurchaseID: id, From: current, To: to}
}

// =============================================================================
// NOTIFICATION STORE
// =============================================================================

// CreateNotification inserts a notification for n.UserID.
func (s *Store) CreateNotification(ctx context.Context, n loyalty.Notification) (loyalty.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Kind == "" {
		n.Kind = loyalty.NotificationNotice
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO notifications (user_id, title, message, kind, is_read, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		n.UserID, n.Title, n.Message, n.Kind, n.Read, n.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return loyalty.Notification{}, mapWriteError(err, "create notification")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return loyalty.Notification{}, err
	}
	n.ID = loyalty.NotificationID(id)
	return n, nil
}

// ListNotifications returns a user's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID loyalty.UserID) ([]loyalty.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, message, kind, is_read, created_at
		FROM notifications WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := []loyalty.Notification{}
	for rows.Next() {
		var n loyalty.Notification
		var createdAt string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Kind, &n.Read, &createdAt); err != nil {
			return nil, err
		}
		n.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead marks one of the user's notifications as read.
func (s *Store) MarkNotificationRead(ctx context.Context, userID loyalty.UserID, id loyalty.NotificationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = TRUE WHERE id = ? AND user_id = ?", id, userID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res, loyalty.KindNotification, id)
}

// MarkAllNotificationsRead marks every notification of the user as read.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID loyalty.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = TRUE WHERE user_id = ? AND is_read = FALSE", userID,
	)
	return err
}

// CountUnreadNotifications returns how many notifications the user has not read.
func (s *Store) CountUnreadNotifications(ctx context.Context, userID loyalty.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = FALSE", userID,
	).Scan(&count)
	return count, err
}

// =============================================================================
// PROMOTION STORE
// =============================================================================

const promotionColumns = "id, title, description, image_url, program_id, bonus_factor, start_date, end_date, active"

// SavePromotion inserts p when p.ID is zero and updates it otherwise.
func (s *Store) SavePromotion(ctx context.Context, p loyalty.Promotion) (loyalty.Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	args := []any{
		p.Title, nullString(p.Description), nullString(p.ImageURL), nullID(int64(p.ProgramID)),
		p.BonusFactor.String(), p.StartDate.String(), p.EndDate.String(), p.Active,
	}
	if p.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO promotions (title, description, image_url, program_id, bonus_factor, start_date, end_date, active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, args...)
		if err != nil {
			return loyalty.Promotion{}, mapWriteError(err, "create promotion")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return loyalty.Promotion{}, err
		}
		p.ID = loyalty.PromotionID(id)
		return p, nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE promotions SET title = ?, description = ?, image_url = ?, program_id = ?,
			bonus_factor = ?, start_date = ?, end_date = ?, active = ?
		WHERE id = ?`, append(args, p.ID)...)
	if err != nil {
		return loyalty.Promotion{}, mapWriteError(err, "update promotion")
	}
	if err := requireAffected(res, loyalty.KindPromotion, p.ID); err != nil {
		return loyalty.Promotion{}, err
	}
	return p, nil
}

func scanPromotion(scan func(dest ...any) error) (loyalty.Promotion, error) {
	var p loyalty.Promotion
	var description, imageURL sql.NullString
	var programID sql.NullInt64
	var bonus, start, end string
	if err := scan(&p.ID, &p.Title, &description, &imageURL, &programID, &bonus, &start, &end, &p.Active); err != nil {
		return loyalty.Promotion{}, err
	}
	p.Description = description.String
	p.ImageURL = imageURL.String
	p.ProgramID = loyalty.ProgramID(programID.Int64)
	p.BonusFactor = parseDecimal(bonus)
	p.StartDate, _ = loyalty.ParseDate(start)
	p.EndDate, _ = loyalty.ParseDate(end)
	return p, nil
}

// GetPromotion retrieves a promotion by ID.
func (s *Store) GetPromotion(ctx context.Context, id loyalty.PromotionID) (*loyalty.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := scanPromotion(s.db.QueryRowContext(ctx,
		"SELECT "+promotionColumns+" FROM promotions WHERE id = ?", id,
	).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPromotions returns every promotion, latest start date first.
func (s *Store) ListPromotions(ctx context.Context) ([]loyalty.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+promotionColumns+" FROM promotions ORDER BY start_date DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	promotions := []loyalty.Promotion{}
	for rows.Next() {
		p, err := scanPromotion(rows.Scan)
		if err != nil {
			return nil, err
		}
		promotions = append(promotions, p)
	}
	return promotions, rows.Err()
}

// =============================================================================
// ADMIN OPERATIONS
// =============================================================================

// Reset clears all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	tables := []string{"promotions", "notifications", "purchases", "cards", "programs", "flags", "users"}
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	// Restart AUTOINCREMENT counters so demo IDs are stable
	if _, err := tx.ExecContext(ctx, "DELETE FROM sqlite_sequence"); err != nil {
		return fmt.Errorf("failed to reset sequences: %w", err)
	}
	return tx.Commit()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullID(id int64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func requireAffected(res sql.Result, kind loyalty.EntityKind, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return loyalty.NotFound(kind, id)
	}
	return nil
}

// mapWriteError turns constraint violations into loyalty sentinels.
func mapWriteError(err error, op string) error {
	switch {
	case isUniqueConstraintError(err):
		return fmt.Errorf("%s: %w", op, loyalty.ErrDuplicate)
	case isForeignKeyError(err):
		return fmt.Errorf("%s: %w", op, loyalty.ErrInUse)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
