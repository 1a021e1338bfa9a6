package repositories

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/thecoder12/library-mangement-system/internal/models"
)

// base holds the capability set shared by every entity repository. Each
// repository is bound to a single *gorm.DB handle — either the root
// connection or one transaction — for its whole lifetime.
type base[M any] struct {
	db *gorm.DB
}

func (r *base[M]) GetByID(id uint) (*M, error) {
	var m M
	if err := r.db.First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *base[M]) Exists(id uint) (bool, error) {
	var count int64
	err := r.db.Model(new(M)).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *base[M]) Count() (int64, error) {
	var count int64
	err := r.db.Model(new(M)).Count(&count).Error
	return count, err
}

func (r *base[M]) Create(m *M) error {
	return r.db.Create(m).Error
}

func (r *base[M]) DeleteByID(id uint) error {
	return r.db.Delete(new(M), "id = ?", id).Error
}

func paginate(db *gorm.DB, page, pageSize int) *gorm.DB {
	return db.Offset((page - 1) * pageSize).Limit(pageSize)
}

func likePattern(search string) string {
	return "%" + strings.ToLower(search) + "%"
}

// ─── Books ────────────────────────────────────────────────────────────────────

// BookUpdate is a partial update; nil fields are left untouched.
type BookUpdate struct {
	Title         *string
	Author        *string
	ISBN          *string
	PublishedYear *int
	Genre         *string
	TotalCopies   *int
}

type BookRepository struct {
	base[models.Book]
}

func NewBookRepository(db *gorm.DB) *BookRepository {
	return &BookRepository{base[models.Book]{db: db}}
}

func (r *BookRepository) GetByISBN(isbn string) (*models.Book, error) {
	var book models.Book
	if err := r.db.First(&book, "isbn = ?", isbn).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// ISBNExists checks ISBN uniqueness, optionally excluding one book (for updates).
func (r *BookRepository) ISBNExists(isbn string, excludeID uint) (bool, error) {
	q := r.db.Model(&models.Book{}).Where("isbn = ?", isbn)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	err := q.Count(&count).Error
	return count > 0, err
}

// Update applies a partial update. A total_copies change shifts
// available_copies by the same delta, floored at 0, so the borrowed-copy
// count stays stable across a capacity change.
func (r *BookRepository) Update(id uint, upd BookUpdate) (*models.Book, error) {
	var book models.Book
	if err := r.db.First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}

	if upd.TotalCopies != nil {
		diff := *upd.TotalCopies - book.TotalCopies
		book.AvailableCopies += diff
		if book.AvailableCopies < 0 {
			book.AvailableCopies = 0
		}
		book.TotalCopies = *upd.TotalCopies
	}
	if upd.Title != nil {
		book.Title = *upd.Title
	}
	if upd.Author != nil {
		book.Author = *upd.Author
	}
	if upd.ISBN != nil {
		book.ISBN = upd.ISBN
	}
	if upd.PublishedYear != nil {
		book.PublishedYear = upd.PublishedYear
	}
	if upd.Genre != nil {
		book.Genre = upd.Genre
	}

	if err := r.db.Save(&book).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// DecrementAvailable atomically takes one copy, guarded so available_copies
// never drops below 0. Returns false when no copy was available — the guard
// is what serializes concurrent borrowers of the last copy.
func (r *BookRepository) DecrementAvailable(id uint) (bool, error) {
	res := r.db.Model(&models.Book{}).
		Where("id = ? AND available_copies > 0", id).
		UpdateColumn("available_copies", gorm.Expr("available_copies - 1"))
	return res.RowsAffected > 0, res.Error
}

// IncrementAvailable atomically releases one copy, clamped at total_copies.
func (r *BookRepository) IncrementAvailable(id uint) (bool, error) {
	res := r.db.Model(&models.Book{}).
		Where("id = ? AND available_copies < total_copies", id).
		UpdateColumn("available_copies", gorm.Expr("available_copies + 1"))
	return res.RowsAffected > 0, res.Error
}

// ListPaginated lists books ordered by id with optional case-insensitive
// substring search over title and author.
func (r *BookRepository) ListPaginated(page, pageSize int, search string) (*models.PaginatedResult[models.Book], error) {
	q := r.db.Model(&models.Book{})
	if search != "" {
		pat := likePattern(search)
		q = q.Where("LOWER(title) LIKE ? OR LOWER(author) LIKE ?", pat, pat)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	var items []models.Book
	if err := paginate(q.Order("id ASC"), page, pageSize).Find(&items).Error; err != nil {
		return nil, err
	}

	return &models.PaginatedResult[models.Book]{
		Items:      items,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// ─── Members ──────────────────────────────────────────────────────────────────

// MemberUpdate is a partial update; nil fields are left untouched. IsActive
// is a pointer so an explicit false is distinguishable from unset.
type MemberUpdate struct {
	Name     *string
	Email    *string
	Phone    *string
	Address  *string
	IsActive *bool
}

type MemberRepository struct {
	base[models.Member]
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{base[models.Member]{db: db}}
}

func (r *MemberRepository) GetByEmail(email string) (*models.Member, error) {
	var member models.Member
	if err := r.db.First(&member, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// EmailExists checks email uniqueness, optionally excluding one member.
func (r *MemberRepository) EmailExists(email string, excludeID uint) (bool, error) {
	q := r.db.Model(&models.Member{}).Where("email = ?", email)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	err := q.Count(&count).Error
	return count > 0, err
}

func (r *MemberRepository) Update(id uint, upd MemberUpdate) (*models.Member, error) {
	var member models.Member
	if err := r.db.First(&member, "id = ?", id).Error; err != nil {
		return nil, err
	}

	if upd.Name != nil {
		member.Name = *upd.Name
	}
	if upd.Email != nil {
		member.Email = *upd.Email
	}
	if upd.Phone != nil {
		member.Phone = upd.Phone
	}
	if upd.Address != nil {
		member.Address = upd.Address
	}
	if upd.IsActive != nil {
		member.IsActive = *upd.IsActive
	}

	if err := r.db.Save(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// ListPaginated lists members ordered by id with optional case-insensitive
// substring search over name and email.
func (r *MemberRepository) ListPaginated(page, pageSize int, search string) (*models.PaginatedResult[models.Member], error) {
	q := r.db.Model(&models.Member{})
	if search != "" {
		pat := likePattern(search)
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", pat, pat)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	var items []models.Member
	if err := paginate(q.Order("id ASC"), page, pageSize).Find(&items).Error; err != nil {
		return nil, err
	}

	return &models.PaginatedResult[models.Member]{
		Items:      items,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// ─── Borrow records ───────────────────────────────────────────────────────────

// BorrowListOptions filters the paginated borrow listing. Zero values mean
// "no filter". Search matches book title/author and member name/email.
type BorrowListOptions struct {
	Page     int
	PageSize int
	MemberID uint
	BookID   uint
	Status   models.BorrowStatus
	Search   string
}

type BorrowRepository struct {
	base[models.BorrowRecord]
}

func NewBorrowRepository(db *gorm.DB) *BorrowRepository {
	return &BorrowRepository{base[models.BorrowRecord]{db: db}}
}

// GetByID loads a record with its book and member snapshots for read
// responses. Shadows the base accessor, which loads the bare row.
func (r *BorrowRepository) GetByID(id uint) (*models.BorrowRecord, error) {
	var rec models.BorrowRecord
	err := r.db.Preload("Book").Preload("Member").First(&rec, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkReturned flips an active record to RETURNED. The status guard in the
// WHERE clause makes a concurrent double-return lose the race; false means
// the record was missing or already returned.
func (r *BorrowRepository) MarkReturned(id uint, returnDate time.Time) (bool, error) {
	res := r.db.Model(&models.BorrowRecord{}).
		Where("id = ? AND status = ?", id, models.BorrowStatusBorrowed).
		Updates(map[string]interface{}{
			"return_date": returnDate,
			"status":      models.BorrowStatusReturned,
		})
	return res.RowsAffected > 0, res.Error
}

// ActiveCountForMember counts a member's BORROWED records.
func (r *BorrowRepository) ActiveCountForMember(memberID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.BorrowRecord{}).
		Where("member_id = ? AND status = ?", memberID, models.BorrowStatusBorrowed).
		Count(&count).Error
	return count, err
}

// TotalCountForMember counts all records, active and returned, for a member.
func (r *BorrowRepository) TotalCountForMember(memberID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.BorrowRecord{}).
		Where("member_id = ?", memberID).
		Count(&count).Error
	return count, err
}

// ActiveCountForBook counts a book's BORROWED records.
func (r *BorrowRepository) ActiveCountForBook(bookID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.BorrowRecord{}).
		Where("book_id = ? AND status = ?", bookID, models.BorrowStatusBorrowed).
		Count(&count).Error
	return count, err
}

// TotalCountForBook counts all records, active and returned, for a book.
func (r *BorrowRepository) TotalCountForBook(bookID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.BorrowRecord{}).
		Where("book_id = ?", bookID).
		Count(&count).Error
	return count, err
}

// HasActiveBorrow reports whether the member already holds this book.
func (r *BorrowRepository) HasActiveBorrow(bookID, memberID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.BorrowRecord{}).
		Where("book_id = ? AND member_id = ? AND status = ?",
			bookID, memberID, models.BorrowStatusBorrowed).
		Count(&count).Error
	return count > 0, err
}

// ActiveForMember returns a member's BORROWED records with book snapshots.
func (r *BorrowRepository) ActiveForMember(memberID uint) ([]models.BorrowRecord, error) {
	var recs []models.BorrowRecord
	err := r.db.Preload("Book").
		Where("member_id = ? AND status = ?", memberID, models.BorrowStatusBorrowed).
		Order("id DESC").
		Find(&recs).Error
	return recs, err
}

// ListPaginated lists borrow records most-recent-first with optional
// filters and a joined search across the referenced book and member.
func (r *BorrowRepository) ListPaginated(opts BorrowListOptions) (*models.PaginatedResult[models.BorrowRecord], error) {
	q := r.db.Model(&models.BorrowRecord{})

	if opts.MemberID != 0 {
		q = q.Where("borrow_records.member_id = ?", opts.MemberID)
	}
	if opts.BookID != 0 {
		q = q.Where("borrow_records.book_id = ?", opts.BookID)
	}
	if opts.Status != "" {
		q = q.Where("borrow_records.status = ?", opts.Status)
	}
	if opts.Search != "" {
		pat := likePattern(opts.Search)
		q = q.Joins("LEFT JOIN books ON books.id = borrow_records.book_id").
			Joins("LEFT JOIN members ON members.id = borrow_records.member_id").
			Where(`LOWER(books.title) LIKE ? OR LOWER(books.author) LIKE ?
				OR LOWER(members.name) LIKE ? OR LOWER(members.email) LIKE ?`,
				pat, pat, pat, pat)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	var items []models.BorrowRecord
	err := paginate(q.Order("borrow_records.id DESC"), opts.Page, opts.PageSize).
		Preload("Book").
		Preload("Member").
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	return &models.PaginatedResult[models.BorrowRecord]{
		Items:      items,
		TotalCount: total,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
	}, nil
}
