package services

import (
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/thecoder12/library-mangement-system/internal/apperr"
	"github.com/thecoder12/library-mangement-system/internal/models"
	"github.com/thecoder12/library-mangement-system/internal/repositories"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Config carries the externally-supplied business limits.
type Config struct {
	// MaxBooksPerMember caps a member's simultaneous active borrows.
	MaxBooksPerMember int

	// DefaultBorrowDays is the loan period used to derive due dates.
	DefaultBorrowDays int
}

// DefaultConfig returns the stock limits: 5 books per member, 14-day loans.
func DefaultConfig() Config {
	return Config{MaxBooksPerMember: 5, DefaultBorrowDays: 14}
}

// DeleteMemberOutcome distinguishes a physical delete from the
// deactivate-instead substitution applied to members with borrow history.
type DeleteMemberOutcome string

const (
	MemberDeleted     DeleteMemberOutcome = "deleted"
	MemberDeactivated DeleteMemberOutcome = "deactivated"
)

// CreateBookInput holds the fields accepted when registering a book.
// TotalCopies below 1 is treated as 1.
type CreateBookInput struct {
	Title         string
	Author        string
	ISBN          *string
	PublishedYear *int
	Genre         *string
	TotalCopies   int
}

// CreateMemberInput holds the fields accepted when registering a member.
type CreateMemberInput struct {
	Name    string
	Email   string
	Phone   *string
	Address *string
}

// LibraryService is the transactional core: every mutating operation runs
// inside exactly one unit of work and either commits completely or leaves
// no trace. Failures carry an apperr kind callers can branch on.
type LibraryService interface {
	CreateBook(in CreateBookInput) (*models.Book, error)
	GetBook(id uint) (*models.Book, error)
	UpdateBook(id uint, upd repositories.BookUpdate) (*models.Book, error)
	DeleteBook(id uint) error
	ListBooks(page, pageSize int, search string) (*models.PaginatedResult[models.Book], error)

	CreateMember(in CreateMemberInput) (*models.Member, error)
	GetMember(id uint) (*models.Member, error)
	UpdateMember(id uint, upd repositories.MemberUpdate) (*models.Member, error)
	DeleteMember(id uint) (DeleteMemberOutcome, error)
	ListMembers(page, pageSize int, search string) (*models.PaginatedResult[models.Member], error)
	MemberBorrowedBooks(memberID uint) (*models.Member, []models.BorrowRecord, error)

	BorrowBook(bookID, memberID uint) (*models.BorrowRecord, error)
	ReturnBook(borrowID uint) (*models.BorrowRecord, error)
	GetBorrowRecord(id uint) (*models.BorrowRecord, error)
	ListBorrowRecords(opts repositories.BorrowListOptions) (*models.PaginatedResult[models.BorrowRecord], error)
}

type libraryService struct {
	db  *gorm.DB
	cfg Config
}

// NewLibraryService builds the rules engine on top of the given store.
func NewLibraryService(db *gorm.DB, cfg Config) LibraryService {
	if cfg.MaxBooksPerMember <= 0 {
		cfg.MaxBooksPerMember = DefaultConfig().MaxBooksPerMember
	}
	if cfg.DefaultBorrowDays <= 0 {
		cfg.DefaultBorrowDays = DefaultConfig().DefaultBorrowDays
	}
	return &libraryService{db: db, cfg: cfg}
}

// today is the calendar date used for borrow/return/membership dates.
func today() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// ─── Book Management ──────────────────────────────────────────────────────────

func (s *libraryService) CreateBook(in CreateBookInput) (*models.Book, error) {
	if in.TotalCopies < 1 {
		in.TotalCopies = 1
	}

	var created *models.Book
	err := repositories.Do(s.db, func(uow *repositories.UnitOfWork) error {
		if in.ISBN != nil && *in.ISBN != "" {
			exists, err := uow.Books().ISBNExists(*in.ISBN, 0)
			if err != nil {
				return err
			}
			if exists {
				log.Printf("[WARN] CreateBook: duplicate ISBN %q", *in.ISBN)
				return apperr.AlreadyExists("book with ISBN %q already exists", *in.ISBN)
			}
		}

		book := &models.Book{
			Title:           in.Title,
			Author:          in.Author,
			ISBN:            in.ISBN,
			PublishedYear:   in.PublishedYear,
			Genre:           in.Genre,
			TotalCopies:     in.TotalCopies,
			AvailableCopies: in.TotalCopies,
		}
		if err := uow.Books().Create(book); err != nil {
			return err
		}
		created = book
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] CreateBook: created book %q (id=%d) with %d copies", created.Title, created.ID, created.TotalCopies)
	return created, nil
}

func (s *libraryService) GetBook(id uint) (*models.Book, error) {
	book, err := repositories.NewBookRepository(s.db).GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("book with ID %d not found", id)
		}
		return nil, err
	}
	return book, nil
}

func (s *libraryService) UpdateBook(id uint, upd repositories.BookUpdate) (*models.Book, error) {
	var updated *models.Book
	err := repositories.Do(s.db, func(uow *repositories.UnitOfWork) error {
		exists, err := uow.Books().Exists(id)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.NotFound("book with ID %d not found", id)
		}

		if upd.ISBN != nil && *upd.ISBN != "" {
			taken, err := uow.Books().ISBNExists(*upd.ISBN, id)
			if err != nil {
				return err
			}
			if taken {
				return apperr.AlreadyExists("book with ISBN %q already exists", *upd.ISBN)
			}
		}

		updated, err = uow.Books().Update(id, upd)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] UpdateBook: updated book id=%d", id)
	return updated, nil
}

// DeleteBook physically removes a book only when no borrow record — active
// or historical — references it. Books with history survive and can only be
// updated or retired.
func (s *libraryService) DeleteBook(id uint) error {
	err := repositories.Do(s.db, func(uow *repositories.UnitOfWork) error {
		exists, err := uow.Books().Exists(id)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.NotFound("book with ID %d not found", id)
		}

		active, err := uow.Borrows().ActiveCountForBook(id)
		if err != nil {
			return err
		}
		if active > 0 {
			log.Printf("[WARN] DeleteBook: book id=%d has %d active borrow(s)", id, active)
			return apperr.FailedPrecondition("cannot delete book with %d active borrow(s)", active)
		}

		total, err := uow.Borrows().TotalCountForBook(id)
		if err != nil {
			return err
		}
		if total > 0 {
			log.Printf("[WARN] DeleteBook: book id=%d has borrow history (%d record(s))", id, total)
			return apperr.FailedPrecondition("cannot delete book with borrow history (%d record(s)); update the book instead", total)
		}

		return uow.Books().DeleteByID(id)
	})
	if err != nil {
		return err
	}
	log.Printf("[INFO] DeleteBook: deleted book id=%d", id)
	return nil
}

func (s *libraryService) ListBooks(page, pageSize int, search string) (*models.PaginatedResult[models.Book], error) {
	page, pageSize = normalizePage(page, pageSize)
	return repositories.NewBookRepository(s.db).ListPaginated(page, pageSize, search)
}

// ─── Member Management ────────────────────────────────────────────────────────

func (s *libraryService) CreateMember(in CreateMemberInput) (*models.Member, error) {
	var created *models.Member
	err := repositories.Do(s.db, func(uow *repositories.UnitOfWork) error {
		exists, err := uow.Members().EmailExists(in.Email, 0)
		if err != nil {
			return err
		}
		if exists {
			log.Printf("[WARN] CreateMember: duplicate email %q", in.Email)
			return apperr.AlreadyExists("member with email %q already exists", in.Email)
		}

		member := &models.Member{
			Name:           in.Name,
			Email:          in.Email,
			Phone:          in.Phone,
			Address:        in.Address,
			MembershipDate: today(),
			IsActive:       true,
		}
		if err := uow.Members().Create(member); err != nil {
			return err
		}
		created = member
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] CreateMember: created member %q (id=%d)", created.Name, created.ID)
	return created, nil
}

func (s *libraryService) GetMember(id uint) (*models.Member, error) {
	member, err := repositories.NewMemberRepository(s.db).GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("member with ID %d not found", id)
		}
		return nil, err
	}
	return member, nil
}

func (s *libraryService) UpdateMember(id uint, upd repositories.MemberUpdate) (*models.Member, error) {
	var updated *models.Member
	err := repositories.Do(s.db, func(uow *repositories.UnitOfWork) error {
		exists, err := uow.Members().Exists(id)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.NotFound("member with ID %d not found", id)
		}

		if upd.Email != nil && *upd.Email != "" {
			taken, err := uow.Members().EmailExists(*upd.Email, id)
			if err != nil {
				return err
			}
			if taken {
				return apperr.AlreadyExists("member with email %q already exists", *upd.Email)
			}
		}

		updated, err = uow.Members().Update(id, upd)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] UpdateMember: updated member id=%d", id)
	return updated, nil
}

// DeleteMember removes a member with no borrow history, deactivates one
// whose history must be preserved, and rejects outright while books are
// still out. Callers must inspect the outcome to tell delete from
// deactivate apart.
func (s *libraryService) DeleteMember(id uint) (DeleteMemberOutcome, error) {
	var outcome DeleteMemberOutcome
	err := repositories.Do(s.db, func(uow *repositories.UnitOfWork) error {
		exists, err := uow.Members().Exists(id)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.NotFound("member with ID %d not found", id)
		}

		active, err := uow.Borrows().ActiveCountForMember(id)
		if err != nil {
			return err
		}
		if active > 0 {
			log.Printf("[WARN] DeleteMember: member id=%d has %d active borrow(s)", id, active)
			return apperr.FailedPrecondition("cannot delete member with %d active borrow(s); return all books first", active)
		}

		total, err := uow.Borrows().TotalCountForMember(id)
		if err != nil {
			return err
		}
		if total > 0 {
			inactive := false
			if _, err := uow.Members().Update(id, repositories.MemberUpdate{IsActive: &inactive}); err != nil {
				return err
			}
			outcome = MemberDeactivated
			return nil
		}

		if err := uow.Members().DeleteByID(id); err != nil {
			return err
		}
		outcome = MemberDeleted
		return nil
	})
	if err != nil {
		return "", err
	}
	log.Printf("[INFO] DeleteMember: member id=%d %s", id, outcome)
	return outcome, nil
}

func (s *libraryService) ListMembers(page, pageSize int, search string) (*models.PaginatedResult[models.Member], error) {
	page, pageSize = normalizePage(page, pageSize)
	return repositories.NewMemberRepository(s.db).ListPaginated(page, pageSize, search)
}

func (s *libraryService) MemberBorrowedBooks(memberID uint) (*models.Member, []models.BorrowRecord, error) {
	member, err := s.GetMember(memberID)
	if err != nil {
		return nil, nil, err
	}
	records, err := repositories.NewBorrowRepository(s.db).ActiveForMember(memberID)
	if err != nil {
		return nil, nil, err
	}
	return member, records, nil
}

// ─── Borrowing ────────────────────────────────────────────────────────────────

// BorrowBook checks the preconditions in order — book exists, book
// available, member exists, member active, borrow limit, no duplicate
// active borrow — and on success decrements available_copies and inserts
// the BORROWED record in the same transaction. First failure wins.
func (s *libraryService) BorrowBook(bookID, memberID uint) (*models.BorrowRecord, error) {
	var created *models.BorrowRecord
	err := repositories.Do(s.db, func(uow *repositories.UnitOfWork) error {
		book, err := uow.Books().GetByID(bookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("book with ID %d not found", bookID)
			}
			return err
		}
		if !book.IsAvailable() {
			log.Printf("[WARN] BorrowBook: book %q (id=%d) not available", book.Title, bookID)
			return apperr.FailedPrecondition("book %q is not available for borrowing", book.Title)
		}

		member, err := uow.Members().GetByID(memberID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("member with ID %d not found", memberID)
			}
			return err
		}
		if !member.CanBorrow() {
			log.Printf("[WARN] BorrowBook: member %q (id=%d) is not active", member.Name, memberID)
			return apperr.FailedPrecondition("member %q is not active", member.Name)
		}

		active, err := uow.Borrows().ActiveCountForMember(memberID)
		if err != nil {
			return err
		}
		if active >= int64(s.cfg.MaxBooksPerMember) {
			log.Printf("[WARN] BorrowBook: member id=%d at borrow limit (%d)", memberID, s.cfg.MaxBooksPerMember)
			return apperr.FailedPrecondition("member has reached maximum borrow limit (%d books)", s.cfg.MaxBooksPerMember)
		}

		duplicate, err := uow.Borrows().HasActiveBorrow(bookID, memberID)
		if err != nil {
			return err
		}
		if duplicate {
			log.Printf("[WARN] BorrowBook: member id=%d already has book id=%d", memberID, bookID)
			return apperr.AlreadyExists("member already has this book borrowed")
		}

		// The guarded decrement re-checks availability atomically, so two
		// transactions racing for the last copy cannot both pass.
		ok, err := uow.Books().DecrementAvailable(bookID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.FailedPrecondition("book %q is not available for borrowing", book.Title)
		}

		borrowDate := today()
		record := &models.BorrowRecord{
			BookID:     bookID,
			MemberID:   memberID,
			BorrowDate: borrowDate,
			DueDate:    borrowDate.AddDate(0, 0, s.cfg.DefaultBorrowDays),
			Status:     models.BorrowStatusBorrowed,
		}
		if err := uow.Borrows().Create(record); err != nil {
			return err
		}

		book, err = uow.Books().GetByID(bookID)
		if err != nil {
			return err
		}
		record.Book = book
		record.Member = member
		created = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] BorrowBook: record id=%d created (book=%d, member=%d, due=%s)",
		created.ID, bookID, memberID, created.DueDate.Format("2006-01-02"))
	return created, nil
}

// ReturnBook marks an active record RETURNED and releases the copy back to
// the book, clamped at total_copies, in one transaction. Returning twice
// fails with a precondition error.
func (s *libraryService) ReturnBook(borrowID uint) (*models.BorrowRecord, error) {
	var returned *models.BorrowRecord
	err := repositories.Do(s.db, func(uow *repositories.UnitOfWork) error {
		record, err := uow.Borrows().GetByID(borrowID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("borrow record with ID %d not found", borrowID)
			}
			return err
		}
		if record.IsReturned() {
			log.Printf("[WARN] ReturnBook: record id=%d already returned", borrowID)
			return apperr.FailedPrecondition("book has already been returned")
		}

		ok, err := uow.Borrows().MarkReturned(borrowID, today())
		if err != nil {
			return err
		}
		if !ok {
			return apperr.FailedPrecondition("book has already been returned")
		}

		// Clamped: a concurrent total_copies shrink can never push
		// available_copies past the cap.
		if _, err := uow.Books().IncrementAvailable(record.BookID); err != nil {
			return err
		}

		returned, err = uow.Borrows().GetByID(borrowID)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] ReturnBook: record id=%d returned (book=%d, member=%d)",
		borrowID, returned.BookID, returned.MemberID)
	return returned, nil
}

func (s *libraryService) GetBorrowRecord(id uint) (*models.BorrowRecord, error) {
	record, err := repositories.NewBorrowRepository(s.db).GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("borrow record with ID %d not found", id)
		}
		return nil, err
	}
	return record, nil
}

func (s *libraryService) ListBorrowRecords(opts repositories.BorrowListOptions) (*models.PaginatedResult[models.BorrowRecord], error) {
	opts.Page, opts.PageSize = normalizePage(opts.Page, opts.PageSize)
	return repositories.NewBorrowRepository(s.db).ListPaginated(opts)
}
