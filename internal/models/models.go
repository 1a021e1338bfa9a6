package models

import (
	"time"

	"gorm.io/gorm"
)

type BorrowStatus string

const (
	BorrowStatusBorrowed BorrowStatus = "BORROWED"
	BorrowStatusReturned BorrowStatus = "RETURNED"
)

type Book struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Title           string    `gorm:"size:255;not null" json:"title"`
	Author          string    `gorm:"size:255;not null" json:"author"`
	ISBN            *string   `gorm:"size:20;uniqueIndex" json:"isbn"`
	PublishedYear   *int      `json:"publishedYear"`
	Genre           *string   `gorm:"size:100" json:"genre"`
	TotalCopies     int       `gorm:"not null;default:1" json:"totalCopies"`
	AvailableCopies int       `gorm:"not null;default:1;check:available_copies >= 0 AND available_copies <= total_copies" json:"availableCopies"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// IsAvailable reports whether the book has copies left to borrow.
func (b *Book) IsAvailable() bool {
	return b.AvailableCopies > 0
}

// BorrowedCopies is the number of copies currently out.
func (b *Book) BorrowedCopies() int {
	return b.TotalCopies - b.AvailableCopies
}

type Member struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	Email          string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Phone          *string   `gorm:"size:20" json:"phone"`
	Address        *string   `gorm:"type:text" json:"address"`
	MembershipDate time.Time `gorm:"not null" json:"membershipDate"`
	IsActive       bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// CanBorrow reports whether the member is eligible to borrow books.
func (m *Member) CanBorrow() bool {
	return m.IsActive
}

type BorrowRecord struct {
	ID         uint         `gorm:"primaryKey" json:"id"`
	BookID     uint         `gorm:"not null;index" json:"bookId"`
	Book       *Book        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"book,omitempty"`
	MemberID   uint         `gorm:"not null;index" json:"memberId"`
	Member     *Member      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"member,omitempty"`
	BorrowDate time.Time    `gorm:"not null" json:"borrowDate"`
	DueDate    time.Time    `gorm:"not null" json:"dueDate"`
	ReturnDate *time.Time   `json:"returnDate"`
	Status     BorrowStatus `gorm:"size:20;not null;default:BORROWED" json:"status"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// IsReturned reports whether the book has been returned.
func (r *BorrowRecord) IsReturned() bool {
	return r.Status == BorrowStatusReturned
}

// IsOverdue reports whether an active borrow is past its due date.
func (r *BorrowRecord) IsOverdue() bool {
	if r.IsReturned() {
		return false
	}
	return time.Now().After(r.DueDate)
}

// DaysUntilDue is the number of days until the due date, negative once overdue.
func (r *BorrowRecord) DaysUntilDue() int {
	return int(time.Until(r.DueDate).Hours() / 24)
}

// PaginatedResult wraps one page of items plus the total matching count.
type PaginatedResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
}

func (p *PaginatedResult[T]) TotalPages() int {
	return int((p.TotalCount + int64(p.PageSize) - 1) / int64(p.PageSize))
}

func (p *PaginatedResult[T]) HasNext() bool {
	return p.Page < p.TotalPages()
}

func (p *PaginatedResult[T]) HasPrevious() bool {
	return p.Page > 1
}

// Migrate creates the schema, including the partial unique index that keeps
// at most one BORROWED record per (book, member) pair even under concurrent
// transactions.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Book{}, &Member{}, &BorrowRecord{}); err != nil {
		return err
	}
	return db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_active_borrow
		 ON borrow_records (book_id, member_id) WHERE status = 'BORROWED'`,
	).Error
}
