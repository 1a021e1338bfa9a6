package services_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/thecoder12/library-mangement-system/internal/apperr"
	"github.com/thecoder12/library-mangement-system/internal/models"
	"github.com/thecoder12/library-mangement-system/internal/repositories"
	"github.com/thecoder12/library-mangement-system/internal/services"
	"github.com/thecoder12/library-mangement-system/internal/testutil"
)

func newService(t *testing.T) (services.LibraryService, *gorm.DB) {
	t.Helper()
	db := testutil.OpenDB(t)
	return services.NewLibraryService(db, services.DefaultConfig()), db
}

func createBook(t *testing.T, svc services.LibraryService, title string, copies int) *models.Book {
	t.Helper()
	book, err := svc.CreateBook(services.CreateBookInput{Title: title, Author: "Author", TotalCopies: copies})
	require.NoError(t, err)
	return book
}

func createMember(t *testing.T, svc services.LibraryService, name, email string) *models.Member {
	t.Helper()
	member, err := svc.CreateMember(services.CreateMemberInput{Name: name, Email: email})
	require.NoError(t, err)
	return member
}

// requireConserved asserts the core invariant: for every book,
// available_copies equals total_copies minus its BORROWED record count.
func requireConserved(t *testing.T, db *gorm.DB) {
	t.Helper()
	books, err := repositories.NewBookRepository(db).ListPaginated(1, 100, "")
	require.NoError(t, err)
	borrows := repositories.NewBorrowRepository(db)
	for _, book := range books.Items {
		active, err := borrows.ActiveCountForBook(book.ID)
		require.NoError(t, err)
		assert.EqualValues(t, book.TotalCopies-int(active), book.AvailableCopies,
			"book %d: available=%d total=%d active=%d", book.ID, book.AvailableCopies, book.TotalCopies, active)
	}
}

// ─── Books ────────────────────────────────────────────────────────────────────

func TestCreateBookDefaultsAndDuplicateISBN(t *testing.T) {
	svc, _ := newService(t)

	// total_copies below 1 is treated as 1, available starts equal to total.
	book, err := svc.CreateBook(services.CreateBookInput{Title: "Tiny", Author: "A", TotalCopies: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, book.TotalCopies)
	assert.Equal(t, 1, book.AvailableCopies)

	isbn := "978-0134190440"
	_, err = svc.CreateBook(services.CreateBookInput{Title: "GOPL", Author: "Donovan", ISBN: &isbn, TotalCopies: 2})
	require.NoError(t, err)

	_, err = svc.CreateBook(services.CreateBookInput{Title: "Other", Author: "B", ISBN: &isbn, TotalCopies: 1})
	assert.True(t, apperr.IsAlreadyExists(err), "duplicate ISBN must conflict, got %v", err)
}

func TestGetBookNotFound(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.GetBook(42)
	assert.True(t, apperr.IsNotFound(err))
}

func TestUpdateBookISBNUniqueness(t *testing.T) {
	svc, _ := newService(t)

	isbn1 := "isbn-1"
	isbn2 := "isbn-2"
	first, err := svc.CreateBook(services.CreateBookInput{Title: "One", Author: "A", ISBN: &isbn1, TotalCopies: 1})
	require.NoError(t, err)
	second, err := svc.CreateBook(services.CreateBookInput{Title: "Two", Author: "B", ISBN: &isbn2, TotalCopies: 1})
	require.NoError(t, err)

	// Taking another book's ISBN conflicts.
	_, err = svc.UpdateBook(second.ID, repositories.BookUpdate{ISBN: &isbn1})
	assert.True(t, apperr.IsAlreadyExists(err))

	// Re-asserting one's own ISBN does not.
	updated, err := svc.UpdateBook(first.ID, repositories.BookUpdate{ISBN: &isbn1, Title: testutil.Ptr("One v2")})
	require.NoError(t, err)
	assert.Equal(t, "One v2", updated.Title)

	_, err = svc.UpdateBook(999, repositories.BookUpdate{Title: testutil.Ptr("x")})
	assert.True(t, apperr.IsNotFound(err))
}

// Scenario E: growing capacity 2 -> 4 while both copies are out.
func TestUpdateBookCapacityIncreaseWhileBorrowed(t *testing.T) {
	svc, db := newService(t)

	book := createBook(t, svc, "Popular", 2)
	m1 := createMember(t, svc, "Ada", "ada@example.com")
	m2 := createMember(t, svc, "Grace", "grace@example.com")

	_, err := svc.BorrowBook(book.ID, m1.ID)
	require.NoError(t, err)
	_, err = svc.BorrowBook(book.ID, m2.ID)
	require.NoError(t, err)

	got, err := svc.GetBook(book.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.AvailableCopies)

	updated, err := svc.UpdateBook(book.ID, repositories.BookUpdate{TotalCopies: testutil.Ptr(4)})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.TotalCopies)
	assert.Equal(t, 2, updated.AvailableCopies)
	requireConserved(t, db)
}

// Scenario C: deletion is only possible for books with no borrow history.
func TestDeleteBookHistoryGuard(t *testing.T) {
	svc, _ := newService(t)

	// No history: physically removed.
	pristine := createBook(t, svc, "Untouched", 1)
	require.NoError(t, svc.DeleteBook(pristine.ID))
	_, err := svc.GetBook(pristine.ID)
	assert.True(t, apperr.IsNotFound(err))

	// Active borrow blocks deletion.
	book := createBook(t, svc, "Borrowed", 1)
	member := createMember(t, svc, "Ada", "ada@example.com")
	rec, err := svc.BorrowBook(book.ID, member.ID)
	require.NoError(t, err)

	err = svc.DeleteBook(book.ID)
	assert.True(t, apperr.IsFailedPrecondition(err))

	// Returned history still blocks deletion: the book survives forever.
	_, err = svc.ReturnBook(rec.ID)
	require.NoError(t, err)

	err = svc.DeleteBook(book.ID)
	assert.True(t, apperr.IsFailedPrecondition(err))

	got, err := svc.GetBook(book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Borrowed", got.Title)

	err = svc.DeleteBook(12345)
	assert.True(t, apperr.IsNotFound(err))
}

// ─── Members ──────────────────────────────────────────────────────────────────

func TestCreateMemberDuplicateEmail(t *testing.T) {
	svc, _ := newService(t)

	member := createMember(t, svc, "Ada", "ada@example.com")
	assert.True(t, member.IsActive)
	assert.False(t, member.MembershipDate.IsZero())

	_, err := svc.CreateMember(services.CreateMemberInput{Name: "Imposter", Email: "ada@example.com"})
	assert.True(t, apperr.IsAlreadyExists(err))
}

func TestUpdateMemberEmailAndActivation(t *testing.T) {
	svc, _ := newService(t)

	ada := createMember(t, svc, "Ada", "ada@example.com")
	createMember(t, svc, "Grace", "grace@example.com")

	_, err := svc.UpdateMember(ada.ID, repositories.MemberUpdate{Email: testutil.Ptr("grace@example.com")})
	assert.True(t, apperr.IsAlreadyExists(err))

	// is_active is settable both ways regardless of history.
	updated, err := svc.UpdateMember(ada.ID, repositories.MemberUpdate{IsActive: testutil.Ptr(false)})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	updated, err = svc.UpdateMember(ada.ID, repositories.MemberUpdate{IsActive: testutil.Ptr(true)})
	require.NoError(t, err)
	assert.True(t, updated.IsActive)

	_, err = svc.UpdateMember(999, repositories.MemberUpdate{})
	assert.True(t, apperr.IsNotFound(err))
}

// Scenario D: delete-vs-deactivate policy.
func TestDeleteMemberOutcomes(t *testing.T) {
	svc, _ := newService(t)

	// No history: physically removed.
	fresh := createMember(t, svc, "Fresh", "fresh@example.com")
	outcome, err := svc.DeleteMember(fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, services.MemberDeleted, outcome)
	_, err = svc.GetMember(fresh.ID)
	assert.True(t, apperr.IsNotFound(err))

	// Active borrow blocks entirely.
	book := createBook(t, svc, "Dune", 1)
	ada := createMember(t, svc, "Ada", "ada@example.com")
	rec, err := svc.BorrowBook(book.ID, ada.ID)
	require.NoError(t, err)

	_, err = svc.DeleteMember(ada.ID)
	assert.True(t, apperr.IsFailedPrecondition(err))

	// History converts the delete into a deactivation; the record survives.
	_, err = svc.ReturnBook(rec.ID)
	require.NoError(t, err)

	outcome, err = svc.DeleteMember(ada.ID)
	require.NoError(t, err)
	assert.Equal(t, services.MemberDeactivated, outcome)

	got, err := svc.GetMember(ada.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	kept, err := svc.GetBorrowRecord(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BorrowStatusReturned, kept.Status)

	_, err = svc.DeleteMember(54321)
	assert.True(t, apperr.IsNotFound(err))
}

// ─── Borrowing ────────────────────────────────────────────────────────────────

func TestBorrowBookPreconditionOrder(t *testing.T) {
	svc, _ := newService(t)

	// 1. Book must exist.
	member := createMember(t, svc, "Ada", "ada@example.com")
	_, err := svc.BorrowBook(999, member.ID)
	assert.True(t, apperr.IsNotFound(err))

	// 2. Availability beats a missing member: first failure wins.
	empty := createBook(t, svc, "Empty", 1)
	other := createMember(t, svc, "Grace", "grace@example.com")
	_, err = svc.BorrowBook(empty.ID, other.ID)
	require.NoError(t, err)
	_, err = svc.BorrowBook(empty.ID, 999)
	assert.True(t, apperr.IsFailedPrecondition(err), "unavailable book is reported before the missing member, got %v", err)

	// 3. Member must exist.
	book := createBook(t, svc, "Dune", 2)
	_, err = svc.BorrowBook(book.ID, 999)
	assert.True(t, apperr.IsNotFound(err))

	// 4. Member must be active.
	inactive := createMember(t, svc, "Idle", "idle@example.com")
	_, err = svc.UpdateMember(inactive.ID, repositories.MemberUpdate{IsActive: testutil.Ptr(false)})
	require.NoError(t, err)
	_, err = svc.BorrowBook(book.ID, inactive.ID)
	assert.True(t, apperr.IsFailedPrecondition(err))

	// 6. Duplicate active borrow for the same pair.
	_, err = svc.BorrowBook(book.ID, member.ID)
	require.NoError(t, err)
	_, err = svc.BorrowBook(book.ID, member.ID)
	assert.True(t, apperr.IsAlreadyExists(err))
}

func TestBorrowRecordFields(t *testing.T) {
	svc, db := newService(t)

	book := createBook(t, svc, "Dune", 3)
	member := createMember(t, svc, "Ada", "ada@example.com")

	rec, err := svc.BorrowBook(book.ID, member.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BorrowStatusBorrowed, rec.Status)
	assert.Nil(t, rec.ReturnDate)
	assert.Equal(t, rec.BorrowDate.AddDate(0, 0, 14), rec.DueDate)
	require.NotNil(t, rec.Book)
	assert.Equal(t, 2, rec.Book.AvailableCopies, "snapshot reflects the decrement")
	require.NotNil(t, rec.Member)
	assert.Equal(t, "Ada", rec.Member.Name)
	requireConserved(t, db)
}

// Scenario A: last copy contention resolved by return.
func TestLastCopyBorrowReturnCycle(t *testing.T) {
	svc, db := newService(t)

	book := createBook(t, svc, "Scarce", 1)
	m1 := createMember(t, svc, "Ada", "ada@example.com")
	m2 := createMember(t, svc, "Grace", "grace@example.com")

	rec1, err := svc.BorrowBook(book.ID, m1.ID)
	require.NoError(t, err)

	got, err := svc.GetBook(book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableCopies)

	_, err = svc.BorrowBook(book.ID, m2.ID)
	assert.True(t, apperr.IsFailedPrecondition(err))

	_, err = svc.ReturnBook(rec1.ID)
	require.NoError(t, err)

	got, err = svc.GetBook(book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)

	_, err = svc.BorrowBook(book.ID, m2.ID)
	require.NoError(t, err)
	requireConserved(t, db)
}

// Scenario B: the borrow limit boundary.
func TestBorrowLimitBoundary(t *testing.T) {
	svc, db := newService(t)

	member := createMember(t, svc, "Ada", "ada@example.com")
	var books []*models.Book
	for i := 0; i < 6; i++ {
		books = append(books, createBook(t, svc, fmt.Sprintf("Book %d", i), 1))
	}

	var recs []*models.BorrowRecord
	for i := 0; i < 5; i++ {
		rec, err := svc.BorrowBook(books[i].ID, member.ID)
		require.NoError(t, err)
		recs = append(recs, rec)
	}

	// At exactly the limit, the next borrow is rejected.
	_, err := svc.BorrowBook(books[5].ID, member.ID)
	assert.True(t, apperr.IsFailedPrecondition(err))

	// Returning one frees a slot.
	_, err = svc.ReturnBook(recs[0].ID)
	require.NoError(t, err)

	_, err = svc.BorrowBook(books[5].ID, member.ID)
	require.NoError(t, err)
	requireConserved(t, db)
}

func TestReturnBookIdempotenceViolation(t *testing.T) {
	svc, _ := newService(t)

	book := createBook(t, svc, "Dune", 1)
	member := createMember(t, svc, "Ada", "ada@example.com")
	rec, err := svc.BorrowBook(book.ID, member.ID)
	require.NoError(t, err)

	returned, err := svc.ReturnBook(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BorrowStatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnDate)

	// The second return fails; the record never goes back to BORROWED.
	_, err = svc.ReturnBook(rec.ID)
	assert.True(t, apperr.IsFailedPrecondition(err))

	got, err := svc.GetBook(book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies, "double return must not over-credit the book")

	_, err = svc.ReturnBook(999)
	assert.True(t, apperr.IsNotFound(err))
}

func TestFailedBorrowLeavesNoTrace(t *testing.T) {
	svc, db := newService(t)

	book := createBook(t, svc, "Dune", 2)
	inactive := createMember(t, svc, "Idle", "idle@example.com")
	_, err := svc.UpdateMember(inactive.ID, repositories.MemberUpdate{IsActive: testutil.Ptr(false)})
	require.NoError(t, err)

	_, err = svc.BorrowBook(book.ID, inactive.ID)
	require.True(t, apperr.IsFailedPrecondition(err))

	// The aborted transaction left the copy count and record set untouched.
	got, err := svc.GetBook(book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AvailableCopies)

	count, err := repositories.NewBorrowRepository(db).Count()
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func TestMemberBorrowedBooks(t *testing.T) {
	svc, _ := newService(t)

	member := createMember(t, svc, "Ada", "ada@example.com")
	b1 := createBook(t, svc, "Dune", 1)
	b2 := createBook(t, svc, "Emma", 1)

	rec1, err := svc.BorrowBook(b1.ID, member.ID)
	require.NoError(t, err)
	_, err = svc.BorrowBook(b2.ID, member.ID)
	require.NoError(t, err)
	_, err = svc.ReturnBook(rec1.ID)
	require.NoError(t, err)

	got, records, err := svc.MemberBorrowedBooks(member.ID)
	require.NoError(t, err)
	assert.Equal(t, member.ID, got.ID)
	require.Len(t, records, 1, "only active borrows are listed")
	assert.Equal(t, b2.ID, records[0].BookID)
	require.NotNil(t, records[0].Book)
	assert.Equal(t, "Emma", records[0].Book.Title)

	_, _, err = svc.MemberBorrowedBooks(999)
	assert.True(t, apperr.IsNotFound(err))
}

func TestListPageNormalization(t *testing.T) {
	svc, _ := newService(t)

	for i := 0; i < 3; i++ {
		createBook(t, svc, fmt.Sprintf("Book %d", i), 1)
	}

	// Out-of-range paging values are clamped, not rejected, at this layer.
	result, err := svc.ListBooks(0, 0, "")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Page)
	assert.Equal(t, 10, result.PageSize)

	result, err = svc.ListBooks(1, 1000, "")
	require.NoError(t, err)
	assert.Equal(t, 100, result.PageSize)
}

func TestConfiguredLimitsAreRespected(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := services.NewLibraryService(db, services.Config{MaxBooksPerMember: 1, DefaultBorrowDays: 7})

	member := createMember(t, svc, "Ada", "ada@example.com")
	b1 := createBook(t, svc, "One", 1)
	b2 := createBook(t, svc, "Two", 1)

	rec, err := svc.BorrowBook(b1.ID, member.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.BorrowDate.AddDate(0, 0, 7), rec.DueDate)

	_, err = svc.BorrowBook(b2.ID, member.ID)
	assert.True(t, apperr.IsFailedPrecondition(err))
}
