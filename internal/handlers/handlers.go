package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/thecoder12/library-mangement-system/internal/apperr"
	"github.com/thecoder12/library-mangement-system/internal/models"
	"github.com/thecoder12/library-mangement-system/internal/repositories"
	"github.com/thecoder12/library-mangement-system/internal/services"
)

type LibraryHandler struct {
	svc services.LibraryService
}

func RegisterRoutes(r *gin.Engine, svc services.LibraryService) {
	h := &LibraryHandler{svc: svc}

	api := r.Group("/api")

	books := api.Group("/books")
	books.POST("", h.createBook)
	books.GET("", h.listBooks)
	books.GET("/:id", h.getBook)
	books.PUT("/:id", h.updateBook)
	books.DELETE("/:id", h.deleteBook)

	members := api.Group("/members")
	members.POST("", h.createMember)
	members.GET("", h.listMembers)
	members.GET("/:id", h.getMember)
	members.PUT("/:id", h.updateMember)
	members.DELETE("/:id", h.deleteMember)
	members.GET("/:id/borrowed", h.memberBorrowedBooks)

	borrows := api.Group("/borrows")
	borrows.POST("", h.borrowBook)
	borrows.GET("", h.listBorrowRecords)
	borrows.GET("/:id", h.getBorrowRecord)
	borrows.POST("/:id/return", h.returnBook)
}

// writeError maps the service's error kinds to HTTP statuses. The kind, not
// the message, is the contract.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindAlreadyExists:
		status = http.StatusConflict
	case apperr.KindFailedPrecondition, apperr.KindInvalid:
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

// parsePagination validates page >= 1 and 1 <= page_size <= 100 before the
// core is invoked.
func parsePagination(c *gin.Context) (page, pageSize int, ok bool) {
	var err error
	page, err = strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be >= 1"})
		return 0, 0, false
	}
	pageSize, err = strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page_size must be between 1 and 100"})
		return 0, 0, false
	}
	return page, pageSize, true
}

func paginatedResponse[T any](key string, p *models.PaginatedResult[T]) gin.H {
	return gin.H{
		key:           p.Items,
		"totalCount":  p.TotalCount,
		"page":        p.Page,
		"pageSize":    p.PageSize,
		"totalPages":  p.TotalPages(),
		"hasNext":     p.HasNext(),
		"hasPrevious": p.HasPrevious(),
	}
}

// ─── Books ────────────────────────────────────────────────────────────────────

type createBookRequest struct {
	Title         string  `json:"title" binding:"required"`
	Author        string  `json:"author" binding:"required"`
	ISBN          *string `json:"isbn"`
	PublishedYear *int    `json:"publishedYear"`
	Genre         *string `json:"genre"`
	TotalCopies   int     `json:"totalCopies" binding:"min=0"`
}

func (h *LibraryHandler) createBook(c *gin.Context) {
	var req createBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	book, err := h.svc.CreateBook(services.CreateBookInput{
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		PublishedYear: req.PublishedYear,
		Genre:         req.Genre,
		TotalCopies:   req.TotalCopies,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

func (h *LibraryHandler) listBooks(c *gin.Context) {
	page, pageSize, ok := parsePagination(c)
	if !ok {
		return
	}

	result, err := h.svc.ListBooks(page, pageSize, c.Query("search"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, paginatedResponse("books", result))
}

func (h *LibraryHandler) getBook(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	book, err := h.svc.GetBook(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

// updateBookRequest is a partial update: absent fields stay untouched.
type updateBookRequest struct {
	Title         *string `json:"title"`
	Author        *string `json:"author"`
	ISBN          *string `json:"isbn"`
	PublishedYear *int    `json:"publishedYear"`
	Genre         *string `json:"genre"`
	TotalCopies   *int    `json:"totalCopies"`
}

func (h *LibraryHandler) updateBook(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req updateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.TotalCopies != nil && *req.TotalCopies < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "totalCopies must be >= 1"})
		return
	}

	book, err := h.svc.UpdateBook(id, repositories.BookUpdate{
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		PublishedYear: req.PublishedYear,
		Genre:         req.Genre,
		TotalCopies:   req.TotalCopies,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *LibraryHandler) deleteBook(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.svc.DeleteBook(id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Book deleted successfully"})
}

// ─── Members ──────────────────────────────────────────────────────────────────

type createMemberRequest struct {
	Name    string  `json:"name" binding:"required"`
	Email   string  `json:"email" binding:"required,email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

func (h *LibraryHandler) createMember(c *gin.Context) {
	var req createMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, err := h.svc.CreateMember(services.CreateMemberInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, member)
}

func (h *LibraryHandler) listMembers(c *gin.Context) {
	page, pageSize, ok := parsePagination(c)
	if !ok {
		return
	}

	result, err := h.svc.ListMembers(page, pageSize, c.Query("search"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, paginatedResponse("members", result))
}

func (h *LibraryHandler) getMember(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	member, err := h.svc.GetMember(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

// updateMemberRequest is a partial update. IsActive is a pointer so an
// explicit false deactivates while an absent field leaves the flag alone.
type updateMemberRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
	IsActive *bool   `json:"isActive"`
}

func (h *LibraryHandler) updateMember(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req updateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, err := h.svc.UpdateMember(id, repositories.MemberUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
		IsActive: req.IsActive,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

func (h *LibraryHandler) deleteMember(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	outcome, err := h.svc.DeleteMember(id)
	if err != nil {
		writeError(c, err)
		return
	}

	if outcome == services.MemberDeactivated {
		c.JSON(http.StatusOK, gin.H{
			"message":     "Member deactivated successfully (has borrow history)",
			"deactivated": true,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Member deleted successfully",
		"deleted": true,
	})
}

func (h *LibraryHandler) memberBorrowedBooks(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	member, records, err := h.svc.MemberBorrowedBooks(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"member":  member,
		"records": records,
	})
}

// ─── Borrowing ────────────────────────────────────────────────────────────────

type borrowRequest struct {
	BookID   uint `json:"bookId" binding:"required"`
	MemberID uint `json:"memberId" binding:"required"`
}

func (h *LibraryHandler) borrowBook(c *gin.Context) {
	var req borrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.svc.BorrowBook(req.BookID, req.MemberID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *LibraryHandler) listBorrowRecords(c *gin.Context) {
	page, pageSize, ok := parsePagination(c)
	if !ok {
		return
	}

	opts := repositories.BorrowListOptions{
		Page:     page,
		PageSize: pageSize,
		Search:   c.Query("search"),
		Status:   models.BorrowStatus(c.Query("status")),
	}
	if v := c.Query("member_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member_id"})
			return
		}
		opts.MemberID = uint(id)
	}
	if v := c.Query("book_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid book_id"})
			return
		}
		opts.BookID = uint(id)
	}

	result, err := h.svc.ListBorrowRecords(opts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, paginatedResponse("records", result))
}

func (h *LibraryHandler) getBorrowRecord(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	record, err := h.svc.GetBorrowRecord(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *LibraryHandler) returnBook(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	record, err := h.svc.ReturnBook(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}
