// AngelaMos | 2026
// handler.go

package book

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/angelamos/bookstore-api/internal/core"
	"github.com/angelamos/bookstore-api/internal/middleware"
	"github.com/angelamos/bookstore-api/internal/query"
)

const maxCoverSize = 5 << 20

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/books", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{bookID}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Use(adminOnly)

			r.Post("/", h.Create)
			r.Patch("/{bookID}", h.Update)
			r.Delete("/{bookID}", h.Delete)
			r.Post("/{bookID}/cover", h.UploadCover)
		})
	})
}

// List translates the raw query string through the builder pipeline. With a
// fields projection the rows come back as sparse maps instead of full DTOs.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := query.New(r.URL.Query()).
		Filter().
		Search().
		Sort().
		Project().
		Paginate().
		Build()

	var (
		items any
		total int
		err   error
	)
	if len(q.Fields) > 0 {
		items, total, err = h.service.ListProjected(r.Context(), q)
	} else {
		var books []Book
		books, total, err = h.service.List(r.Context(), q)
		if err == nil {
			items = ToBookResponseList(books)
		}
	}
	if err != nil {
		if errors.Is(err, query.ErrBadField) {
			core.BadRequest(w, "invalid query parameter")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, items, query.ComputePagination(q.Page, q.Limit, total))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "bookID")

	if r.URL.Query().Get("include") == "owner" {
		b, owner, err := h.service.GetWithOwner(r.Context(), bookID)
		if err != nil {
			h.writeGetError(w, err)
			return
		}
		resp := ToBookResponse(b)
		resp.Owner = owner
		core.OK(w, resp)
		return
	}

	b, err := h.service.Get(r.Context(), bookID)
	if err != nil {
		h.writeGetError(w, err)
		return
	}

	core.OK(w, ToBookResponse(b))
}

func (h *Handler) writeGetError(w http.ResponseWriter, err error) {
	if errors.Is(err, core.ErrNotFound) {
		core.NotFound(w, "book")
		return
	}
	core.InternalServerError(w, err)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.ValidationFailed(w, err)
		return
	}

	ownerID := middleware.GetUserID(r.Context())

	b, err := h.service.Create(r.Context(), ownerID, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrDiscountTooHigh):
			core.BadRequest(w, "discount price must be less than price")
		case errors.Is(err, core.ErrDuplicateKey):
			core.JSONError(w, core.DuplicateError("isbn"))
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.Created(w, ToBookResponse(b))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "bookID")

	var req UpdateBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.ValidationFailed(w, err)
		return
	}

	b, err := h.service.Update(r.Context(), bookID, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrDiscountTooHigh):
			core.BadRequest(w, "discount price must be less than price")
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "book")
		case errors.Is(err, core.ErrDuplicateKey):
			core.JSONError(w, core.DuplicateError("isbn"))
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.OK(w, ToBookResponse(b))
}

func (h *Handler) UploadCover(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "bookID")

	r.Body = http.MaxBytesReader(w, r.Body, maxCoverSize)
	if err := r.ParseMultipartForm(maxCoverSize); err != nil {
		core.BadRequest(w, "invalid multipart upload")
		return
	}

	file, header, err := r.FormFile("cover")
	if err != nil {
		core.BadRequest(w, "missing cover file")
		return
	}
	defer file.Close() //nolint:errcheck

	b, err := h.service.UploadCover(
		r.Context(),
		bookID,
		header.Filename,
		file,
	)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "book")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToBookResponse(b))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "bookID")

	if err := h.service.Delete(r.Context(), bookID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "book")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}
