package repositories

import "gorm.io/gorm"

// UnitOfWork is a single transaction boundary for multiple repository
// operations. Repositories are created lazily and every accessor binds to
// the same transaction handle, so all mutations within one unit commit or
// roll back together.
//
// Usage:
//
//	uow, err := Begin(db)
//	if err != nil { ... }
//	defer uow.Rollback()
//	...
//	return uow.Commit()
//
// Rollback after a successful Commit is a no-op, so it is always safe to
// defer immediately after Begin.
type UnitOfWork struct {
	tx   *gorm.DB
	done bool

	books   *BookRepository
	members *MemberRepository
	borrows *BorrowRepository
}

// Begin opens a transaction and wraps it in a UnitOfWork.
func Begin(db *gorm.DB) (*UnitOfWork, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &UnitOfWork{tx: tx}, nil
}

// Books returns the book repository bound to this transaction.
func (u *UnitOfWork) Books() *BookRepository {
	if u.books == nil {
		u.books = NewBookRepository(u.tx)
	}
	return u.books
}

// Members returns the member repository bound to this transaction.
func (u *UnitOfWork) Members() *MemberRepository {
	if u.members == nil {
		u.members = NewMemberRepository(u.tx)
	}
	return u.members
}

// Borrows returns the borrow-record repository bound to this transaction.
func (u *UnitOfWork) Borrows() *BorrowRepository {
	if u.borrows == nil {
		u.borrows = NewBorrowRepository(u.tx)
	}
	return u.borrows
}

// Commit makes all mutations in this unit durable.
func (u *UnitOfWork) Commit() error {
	if u.done {
		return nil
	}
	u.done = true
	return u.tx.Commit().Error
}

// Rollback discards the transaction unless it was already committed.
func (u *UnitOfWork) Rollback() {
	if u.done {
		return
	}
	u.done = true
	u.tx.Rollback()
}

// Do runs fn inside a fresh UnitOfWork, committing on nil error and rolling
// back otherwise.
func Do(db *gorm.DB, fn func(uow *UnitOfWork) error) error {
	uow, err := Begin(db)
	if err != nil {
		return err
	}
	defer uow.Rollback()

	if err := fn(uow); err != nil {
		return err
	}
	return uow.Commit()
}
